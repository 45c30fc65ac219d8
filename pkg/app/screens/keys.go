package screens

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/reader/pkg/app/styles"
	"github.com/kerbaras/reader/pkg/pager"
)

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	NextUnit key.Binding
	PrevUnit key.Binding
	Open     key.Binding
	Resume   key.Binding
	Export   key.Binding
	Refresh  key.Binding
	Delete   key.Binding
	Back     key.Binding
	Tab      key.Binding
	Quit     key.Binding

	NextSource key.Binding
	Direction  key.Binding

	SeekBack    key.Binding
	SeekForward key.Binding
	Finished    key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "page")),
	Right:    key.NewBinding(key.WithKeys("right", "l", " "), key.WithHelp("→/l", "page")),
	NextUnit: key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", "next unit")),
	PrevUnit: key.NewBinding(key.WithKeys("p", "pgup"), key.WithHelp("p", "previous unit")),
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Resume:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "continue")),
	Export:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export EPUB")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Back:     key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

	NextSource: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next source")),
	Direction:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "reading direction")),

	SeekBack:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "-30s")),
	SeekForward: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "+30s")),
	Finished:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "finished")),
}

// gesture maps arrow keys onto physical gestures. The reading direction
// decides what each gesture means.
func gesture(msg tea.KeyMsg) (pager.Gesture, bool) {
	switch {
	case key.Matches(msg, keys.Left):
		return pager.GestureLeft, true
	case key.Matches(msg, keys.Right):
		return pager.GestureRight, true
	case key.Matches(msg, keys.Up):
		return pager.GestureUp, true
	case key.Matches(msg, keys.Down):
		return pager.GestureDown, true
	}
	return 0, false
}

// newHelp returns a short help view in the theme's help colours.
func newHelp() help.Model {
	h := help.New()
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpStyle
	h.Styles.ShortSeparator = styles.HelpStyle
	return h
}
