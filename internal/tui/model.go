// Package tui is the terminal front-end of the node editor. It translates
// mouse and key events into canvas and session operations and draws the
// graph as text.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/canvas"
	"github.com/Benny93/rigweave/internal/editor"
	"github.com/Benny93/rigweave/internal/graph"
	"github.com/Benny93/rigweave/internal/rig"
	"github.com/Benny93/rigweave/internal/search"
)

// Rows above and below the canvas.
const (
	headerRows = 1
	footerRows = 2
)

// statusTTL is how long a status message stays on screen.
const statusTTL = 5 * time.Second

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#5F00AF")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			MarginLeft(1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	dirtyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#AF0000")).
			Padding(0, 1)
)

const mirrorDirty = "recovery mirror out of date, press R to retry"

type prompt int

const (
	promptNone prompt = iota
	promptRename
	promptParam
	promptSaveAs
	promptFind
)

type clearStatusMsg int

// Model is the bubbletea model for one editing session.
type Model struct {
	ctx     context.Context
	session *editor.Session
	canvas  *canvas.Canvas
	logger  *zap.Logger

	keys  keyMap
	help  help.Model
	input textinput.Model

	prompt prompt
	target graph.NodeID

	kinds []*graph.KindSpec
	kind  int

	// held is the button of the last press; some terminals report releases
	// without one.
	held canvas.Button

	lastStatus string
	statusSeq  int

	width, height int
}

// New creates the model. Canvas edits run under ctx.
func New(ctx context.Context, s *editor.Session, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 48

	m := Model{
		ctx:     ctx,
		session: s,
		canvas:  canvas.New(s.Actions(ctx), canvas.WithLogger(logger)),
		logger:  logger,
		keys:    keys,
		help:    help.New(),
		input:   ti,
		kinds:   graph.PaletteKinds(),
	}
	if s.MirrorDirty() {
		m.canvas.SetStatus(mirrorDirty)
	}
	return m
}

// Run starts the editor on the terminal until the user quits or ctx ends.
func Run(ctx context.Context, s *editor.Session, logger *zap.Logger) error {
	p := tea.NewProgram(New(ctx, s, logger),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Canvas exposes the interaction state.
func (m Model) Canvas() *canvas.Canvas { return m.canvas }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case clearStatusMsg:
		if int(msg) == m.statusSeq {
			m.canvas.SetStatus("")
			m.lastStatus = ""
		}
		return m, nil

	case tea.MouseMsg:
		if m.prompt != promptNone {
			return m, nil
		}
		var ev canvas.PointerEvent
		var ok bool
		ev, m.held, ok = translateMouse(msg, m.held)
		if ok {
			m.canvas.HandlePointer(ev)
		}

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		return m, tea.Batch(cmd, m.statusTimer())
	}

	return m, m.statusTimer()
}

// statusTimer schedules clearing a status message that just changed.
func (m *Model) statusTimer() tea.Cmd {
	status := m.canvas.Status()
	if status == m.lastStatus {
		return nil
	}
	m.lastStatus = status
	if status == "" {
		return nil
	}
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg { return clearStatusMsg(seq) })
}

// translateMouse converts a terminal mouse event to a canvas event in screen
// units. It returns the button now held.
func translateMouse(msg tea.MouseMsg, held canvas.Button) (canvas.PointerEvent, canvas.Button, bool) {
	ev := canvas.PointerEvent{
		Pos:  cellCenter(msg.X, msg.Y-headerRows),
		Mods: canvas.Modifiers{Ctrl: msg.Ctrl, Shift: msg.Shift},
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		ev.Action, ev.Button = canvas.ActionWheel, canvas.ButtonWheelUp
		return ev, held, msg.Action == tea.MouseActionPress
	case tea.MouseButtonWheelDown:
		ev.Action, ev.Button = canvas.ActionWheel, canvas.ButtonWheelDown
		return ev, held, msg.Action == tea.MouseActionPress
	}

	button := canvas.ButtonNone
	switch msg.Button {
	case tea.MouseButtonLeft:
		button = canvas.ButtonPrimary
	case tea.MouseButtonMiddle:
		button = canvas.ButtonMiddle
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if button == canvas.ButtonNone {
			return ev, held, false
		}
		ev.Action, ev.Button = canvas.ActionPress, button
		return ev, button, true
	case tea.MouseActionRelease:
		if button == canvas.ButtonNone {
			button = held
		}
		if button == canvas.ButtonNone {
			return ev, canvas.ButtonNone, false
		}
		ev.Action, ev.Button = canvas.ActionRelease, button
		return ev, canvas.ButtonNone, true
	case tea.MouseActionMotion:
		ev.Action = canvas.ActionMove
		return ev, held, true
	}
	return ev, held, false
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	const panStep = 4 * cellWidth

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.canvas.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.canvas.Cancel()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Delete):
		if err := m.canvas.DeleteSelection(); err != nil {
			m.logger.Warn("delete failed", zap.Error(err))
		}

	case key.Matches(msg, m.keys.NextKind):
		m.kind = (m.kind + 1) % len(m.kinds)
	case key.Matches(msg, m.keys.PrevKind):
		m.kind = (m.kind + len(m.kinds) - 1) % len(m.kinds)

	case key.Matches(msg, m.keys.Add):
		m.addNode()

	case key.Matches(msg, m.keys.Rename):
		if n := m.singleSelected(); n != nil {
			m.startPrompt(promptRename, n.ID, "name: ", n.Name)
			return m, textinput.Blink
		}
	case key.Matches(msg, m.keys.Param):
		if n := m.singleSelected(); n != nil {
			m.startPrompt(promptParam, n.ID, "param=value: ", "")
			return m, textinput.Blink
		}

	case key.Matches(msg, m.keys.Find):
		m.startPrompt(promptFind, "", "find: ", "")
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Template):
		m.template()
	case key.Matches(msg, m.keys.Build):
		m.build()
	case key.Matches(msg, m.keys.Relink):
		report, err := m.session.UpdateConnections(m.ctx)
		m.report("relinked", report, err)

	case key.Matches(msg, m.keys.Save):
		if m.session.Path() == "" {
			m.startPrompt(promptSaveAs, "", "save as: ", "")
			return m, textinput.Blink
		}
		m.save(m.session.Save())
	case key.Matches(msg, m.keys.SaveAs):
		m.startPrompt(promptSaveAs, "", "save as: ", m.session.Path())
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Retry):
		if err := m.session.RetryMirror(m.ctx); err != nil {
			m.fail("recovery write", err)
		} else {
			m.canvas.SetStatus("recovery mirror up to date")
		}

	case key.Matches(msg, m.keys.ZoomIn):
		m.canvas.HandlePointer(canvas.PointerEvent{Action: canvas.ActionWheel, Button: canvas.ButtonWheelUp, Pos: m.center()})
	case key.Matches(msg, m.keys.ZoomOut):
		m.canvas.HandlePointer(canvas.PointerEvent{Action: canvas.ActionWheel, Button: canvas.ButtonWheelDown, Pos: m.center()})
	case key.Matches(msg, m.keys.Up):
		m.canvas.Pan(canvas.Point{Y: panStep})
	case key.Matches(msg, m.keys.Down):
		m.canvas.Pan(canvas.Point{Y: -panStep})
	case key.Matches(msg, m.keys.Left):
		m.canvas.Pan(canvas.Point{X: panStep})
	case key.Matches(msg, m.keys.Right):
		m.canvas.Pan(canvas.Point{X: -panStep})
	}
	return m, nil
}

func (m *Model) startPrompt(p prompt, target graph.NodeID, label, value string) {
	m.prompt = p
	m.target = target
	m.input.Prompt = label
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		p := m.prompt
		m.prompt = promptNone
		m.input.Blur()
		m.applyPrompt(p, value)
		return m, m.statusTimer()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) applyPrompt(p prompt, value string) {
	switch p {
	case promptRename:
		got, err := m.session.RenameNode(m.ctx, m.target, value)
		if err != nil {
			m.fail("rename", err)
			return
		}
		m.canvas.SetStatus("renamed to " + got)

	case promptParam:
		name, raw, ok := strings.Cut(value, "=")
		if !ok {
			m.canvas.SetStatus("expected param=value")
			return
		}
		name = strings.TrimSpace(name)
		if err := m.session.SetParam(m.ctx, m.target, name, strings.TrimSpace(raw)); err != nil {
			m.fail("set "+name, err)
			return
		}
		m.canvas.SetStatus(name + " updated")

	case promptSaveAs:
		if value == "" {
			return
		}
		m.save(m.session.SaveAs(value))

	case promptFind:
		m.find(value)
	}
}

// find selects the best match for query and centres the view on it.
func (m *Model) find(query string) {
	results := search.Build(m.session.Graph()).Search(query, 1)
	if len(results) == 0 {
		m.canvas.SetStatus(fmt.Sprintf("no node matches %q", query))
		return
	}
	n := m.session.Graph().Node(results[0].NodeID)
	if n == nil {
		return
	}
	style := m.canvas.Style()
	mid := canvas.Point{X: n.Position.X + style.NodeWidth/2, Y: n.Position.Y + style.NodeHeight/2}
	at := m.canvas.Viewport().ToScreen(mid)
	c := m.center()
	m.canvas.Pan(canvas.Point{X: c.X - at.X, Y: c.Y - at.Y})
	m.canvas.SelectNode(n.ID, false)
	m.canvas.SetStatus("found " + n.Name)
}

func (m *Model) save(err error) {
	if err != nil {
		m.fail("save", err)
		return
	}
	m.canvas.SetStatus("saved " + m.session.Path())
}

func (m *Model) fail(op string, err error) {
	m.logger.Warn(op+" failed", zap.Error(err))
	m.canvas.SetStatus(op + " failed: " + err.Error())
}

func (m *Model) addNode() {
	spec := m.kinds[m.kind]
	style := m.canvas.Style()
	at := m.canvas.Viewport().ToWorld(m.center())
	at.X -= style.NodeWidth / 2
	at.Y -= style.NodeHeight / 2

	n, err := m.session.AddNode(m.ctx, spec.Kind, string(spec.Kind), at)
	if n == nil {
		m.fail("add", err)
		return
	}
	m.canvas.SelectNode(n.ID, false)
	if err != nil {
		m.fail("add", err)
		return
	}
	m.canvas.SetStatus("added " + n.Name)
}

func (m *Model) template() {
	nodes, _ := m.canvas.Selection()
	var failed int
	for _, id := range nodes {
		if err := m.session.Template(m.ctx, id); err != nil {
			failed++
		}
	}
	m.canvas.SetStatus(fmt.Sprintf("templated %d node(s), %d failed", len(nodes)-failed, failed))
}

func (m *Model) build() {
	nodes, _ := m.canvas.Selection()
	if len(nodes) == 0 {
		m.canvas.SetStatus("nothing selected")
		return
	}
	report, err := m.session.Build(m.ctx, nodes...)
	m.report("built", report, err)
}

func (m *Model) report(verb string, r *rig.Report, err error) {
	msg := fmt.Sprintf("%s: %d node(s), %d link(s), %d pending", verb, len(r.Built), len(r.Linked), len(r.Pending))
	if len(r.Failures) > 0 {
		msg += fmt.Sprintf(", %d failure(s): %v", len(r.Failures), r.Failures[0])
	}
	if err != nil {
		m.logger.Warn("build results not mirrored", zap.Error(err))
		msg += " (not saved to recovery)"
	}
	m.canvas.SetStatus(msg)
}

func (m Model) singleSelected() *graph.Node {
	nodes, _ := m.canvas.Selection()
	if len(nodes) != 1 {
		m.canvas.SetStatus("select exactly one node")
		return nil
	}
	return m.session.Graph().Node(nodes[0])
}

func (m Model) canvasSize() (int, int) {
	return m.width, max(m.height-headerRows-footerRows, 0)
}

func (m Model) center() canvas.Point {
	w, h := m.canvasSize()
	return canvas.Point{X: float64(w) * cellWidth / 2, Y: float64(h) * cellHeight / 2}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	name := m.session.Path()
	if name == "" {
		name = "untitled"
	}
	s.WriteString(titleStyle.Render("rigweave · " + name))
	s.WriteString("\n")

	w, h := m.canvasSize()
	s.WriteString(renderCanvas(m.canvas, m.session.Graph(), w, h))
	s.WriteString("\n")

	if m.prompt != promptNone {
		s.WriteString(promptStyle.Render(m.input.View()))
	} else {
		s.WriteString(stateStyle.Render(m.canvas.State().String()))
		s.WriteString(kindStyle.Render(m.kinds[m.kind].Label))
		if m.session.MirrorDirty() {
			s.WriteString(dirtyStyle.Render("unmirrored"))
		}
		s.WriteString(statusStyle.Render(m.canvas.Status()))
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return s.String()
}
