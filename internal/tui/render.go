package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Benny93/rigweave/internal/canvas"
	"github.com/Benny93/rigweave/internal/graph"
)

// One terminal cell covers this many screen units.
const (
	cellWidth  = 10.0
	cellHeight = 20.0
)

type layer int

const (
	layerBlank layer = iota
	layerGrid
	layerGridMajor
	layerLine
	layerLineSelected
	layerTemp
	layerBand
	layerNode
	layerNodeSelected
	layerTitle
	layerSocket
	layerLabel
)

var layerStyles = map[layer]lipgloss.Style{
	layerBlank:        lipgloss.NewStyle(),
	layerGrid:         lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A")),
	layerGridMajor:    lipgloss.NewStyle().Foreground(lipgloss.Color("#5F5F5F")),
	layerLine:         lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")),
	layerLineSelected: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")).Bold(true),
	layerTemp:         lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00FF")),
	layerBand:         lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	layerNode:         lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
	layerNodeSelected: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")).Bold(true),
	layerTitle:        lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true),
	layerSocket:       lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
	layerLabel:        lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
}

type cell struct {
	r rune
	l layer
}

// raster is a character grid the canvas is drawn into.
type raster struct {
	w, h  int
	cells []cell
}

func newRaster(w, h int) *raster {
	r := &raster{w: max(w, 0), h: max(h, 0)}
	r.cells = make([]cell, r.w*r.h)
	for i := range r.cells {
		r.cells[i] = cell{r: ' ', l: layerBlank}
	}
	return r
}

func (r *raster) set(x, y int, ch rune, l layer) {
	if x < 0 || y < 0 || x >= r.w || y >= r.h {
		return
	}
	r.cells[y*r.w+x] = cell{r: ch, l: l}
}

func (r *raster) text(x, y int, s string, l layer, limit int) {
	for i, ch := range []rune(s) {
		if i >= limit {
			break
		}
		r.set(x+i, y, ch, l)
	}
}

// line draws with Bresenham's algorithm.
func (r *raster) line(x0, y0, x1, y1 int, ch rune, l layer) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		r.set(x0, y0, ch, l)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (r *raster) box(x0, y0, x1, y1 int, l layer, double bool) {
	h, v, tl, tr, bl, br := '─', '│', '┌', '┐', '└', '┘'
	if double {
		h, v, tl, tr, bl, br = '═', '║', '╔', '╗', '╚', '╝'
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			switch {
			case y == y0 && x == x0:
				r.set(x, y, tl, l)
			case y == y0 && x == x1:
				r.set(x, y, tr, l)
			case y == y1 && x == x0:
				r.set(x, y, bl, l)
			case y == y1 && x == x1:
				r.set(x, y, br, l)
			case y == y0 || y == y1:
				r.set(x, y, h, l)
			case x == x0 || x == x1:
				r.set(x, y, v, l)
			default:
				r.set(x, y, ' ', layerBlank)
			}
		}
	}
}

func (r *raster) String() string {
	var b strings.Builder
	for y := 0; y < r.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		row := r.cells[y*r.w : (y+1)*r.w]
		for start := 0; start < len(row); {
			end := start
			var run []rune
			for end < len(row) && row[end].l == row[start].l {
				run = append(run, row[end].r)
				end++
			}
			if row[start].l == layerBlank {
				b.WriteString(string(run))
			} else {
				b.WriteString(layerStyles[row[start].l].Render(string(run)))
			}
			start = end
		}
	}
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// cellOf maps a screen position to the cell containing it.
func cellOf(p canvas.Point) (int, int) {
	return int(math.Floor(p.X / cellWidth)), int(math.Floor(p.Y / cellHeight))
}

// cellCenter maps a cell to the screen position of its centre.
func cellCenter(x, y int) canvas.Point {
	return canvas.Point{X: (float64(x) + 0.5) * cellWidth, Y: (float64(y) + 0.5) * cellHeight}
}

func renderCanvas(c *canvas.Canvas, g *graph.Graph, w, h int) string {
	r := newRaster(w, h)
	view := c.Viewport()
	style := c.Style()
	toCell := func(p canvas.Point) (int, int) { return cellOf(view.ToScreen(p)) }

	xs, ys := view.Grid(style, float64(w)*cellWidth, float64(h)*cellHeight)
	for _, gx := range xs {
		for _, gy := range ys {
			ch, l := '·', layerGrid
			if gx.Major && gy.Major {
				ch, l = '+', layerGridMajor
			}
			r.set(int(gx.Pos/cellWidth), int(gy.Pos/cellHeight), ch, l)
		}
	}

	for _, ln := range c.Lines() {
		ax, ay := toCell(ln.Segment.A)
		bx, by := toCell(ln.Segment.B)
		l := layerLine
		if ln.Selected {
			l = layerLineSelected
		}
		r.line(ax, ay, bx, by, '•', l)
	}

	for _, n := range g.Nodes() {
		drawNode(r, c, n, toCell)
	}

	if band, ok := c.RubberBand(); ok {
		x0, y0 := toCell(band.Min)
		x1, y1 := toCell(band.Max)
		for x := x0; x <= x1; x++ {
			r.set(x, y0, '.', layerBand)
			r.set(x, y1, '.', layerBand)
		}
		for y := y0; y <= y1; y++ {
			r.set(x0, y, ':', layerBand)
			r.set(x1, y, ':', layerBand)
		}
	}

	if seg, ok := c.TempLine(); ok {
		ax, ay := toCell(seg.A)
		bx, by := toCell(seg.B)
		ch := '•'
		if c.State() == canvas.StateDrawingCutLine {
			ch = '×'
		}
		r.line(ax, ay, bx, by, ch, layerTemp)
	}

	return r.String()
}

func drawNode(r *raster, c *canvas.Canvas, n *graph.Node, toCell func(canvas.Point) (int, int)) {
	style := c.Style()
	rect := style.NodeRect(n)
	x0, y0 := toCell(rect.Min)
	x1, y1 := toCell(rect.Max)
	selected := c.IsSelected(n.ID)
	l := layerNode
	if selected {
		l = layerNodeSelected
	}
	r.box(x0, y0, x1, y1, l, selected)

	inner := x1 - x0 - 1
	r.text(x0+1, y0+1, n.Name, layerTitle, inner)
	r.text(x0+1, y0+2, string(n.Kind), layerLabel, inner)

	for _, dir := range []graph.Direction{graph.DirectionInput, graph.DirectionOutput} {
		for _, s := range n.Sockets(dir) {
			p, _ := style.SocketCenter(n, dir, s.Name)
			x, y := toCell(p)
			ch := '○'
			if s.Connected() {
				ch = '●'
			}
			r.set(x, y, ch, layerSocket)

			label := []rune(s.Name)
			limit := inner/2 - 1
			if limit < 1 {
				continue
			}
			if len(label) > limit {
				label = label[:limit]
			}
			if dir == graph.DirectionInput {
				r.text(x+1, y, string(label), layerLabel, limit)
			} else {
				r.text(x-len(label), y, string(label), layerLabel, limit)
			}
		}
	}
}
