package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Cancel   key.Binding
	Delete   key.Binding
	Add      key.Binding
	NextKind key.Binding
	PrevKind key.Binding
	Rename   key.Binding
	Param    key.Binding
	Find     key.Binding
	Template key.Binding
	Build    key.Binding
	Relink   key.Binding
	Save     key.Binding
	SaveAs   key.Binding
	Retry    key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Help     key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Delete: key.NewBinding(
		key.WithKeys("delete", "backspace", "x"),
		key.WithHelp("del", "delete selection"),
	),
	Add: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "add node"),
	),
	NextKind: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next kind"),
	),
	PrevKind: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev kind"),
	),
	Rename: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rename"),
	),
	Param: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "set parameter"),
	),
	Find: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "find node"),
	),
	Template: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "template"),
	),
	Build: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "build selection"),
	),
	Relink: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "update connections"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	SaveAs: key.NewBinding(
		key.WithKeys("S"),
		key.WithHelp("S", "save as"),
	),
	Retry: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "retry recovery write"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+/-", "zoom"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑↓←→", "pan"),
	),
	Down:  key.NewBinding(key.WithKeys("down", "j")),
	Left:  key.NewBinding(key.WithKeys("left", "h")),
	Right: key.NewBinding(key.WithKeys("right", "l")),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.NextKind, k.Delete, k.Build, k.Save, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Add, k.NextKind, k.PrevKind, k.Rename, k.Param, k.Find},
		{k.Delete, k.Template, k.Build, k.Relink},
		{k.Save, k.SaveAs, k.Retry, k.ZoomIn, k.Up, k.Cancel},
		{k.Help, k.Quit},
	}
}
