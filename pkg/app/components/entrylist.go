package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/reader/pkg/app/styles"
	"github.com/kerbaras/reader/pkg/data"
)

type EntryListItem struct {
	Entry      *data.Entry
	UnitCount  int
	Checkpoint *data.Checkpoint
}

// ProgressText describes how far the entry has been read.
func (i EntryListItem) ProgressText() string {
	if i.Checkpoint == nil {
		return "Not started"
	}
	ordinal := data.FormatOrdinal(i.Checkpoint.UnitOrdinal)
	if i.Entry.MediaType == data.MediaVideo {
		return fmt.Sprintf("Episode %s at %s", ordinal, FormatPlayback(i.Checkpoint.Offset))
	}
	return fmt.Sprintf("Chapter %s, page %d", ordinal, i.Checkpoint.Offset+1)
}

type EntryList struct {
	Items         []EntryListItem
	SelectedIndex int
	Width         int
	Height        int
}

func NewEntryList() *EntryList {
	return &EntryList{
		Items:         []EntryListItem{},
		SelectedIndex: 0,
		Width:         80,
		Height:        20,
	}
}

func (m *EntryList) SetItems(items []EntryListItem) {
	m.Items = items
	if m.SelectedIndex >= len(items) && len(items) > 0 {
		m.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		m.SelectedIndex = 0
	}
}

func (m *EntryList) Next() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex++
	if m.SelectedIndex >= len(m.Items) {
		m.SelectedIndex = 0
	}
}

func (m *EntryList) Prev() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex--
	if m.SelectedIndex < 0 {
		m.SelectedIndex = len(m.Items) - 1
	}
}

func (m *EntryList) Selected() *EntryListItem {
	if len(m.Items) == 0 || m.SelectedIndex >= len(m.Items) {
		return nil
	}
	return &m.Items[m.SelectedIndex]
}

func (m *EntryList) View() string {
	if len(m.Items) == 0 {
		emptyMsg := styles.MutedStyle.Render("Library is empty")
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, emptyMsg)
	}

	var b strings.Builder
	for i, item := range m.Items {
		cardStyle := styles.CardStyle
		if i == m.SelectedIndex {
			cardStyle = styles.ActiveCardStyle
		}

		title := styles.TitleStyle.Render(item.Entry.Title)

		desc := item.Entry.Description
		if len(desc) > 80 {
			desc = desc[:77] + "..."
		}
		description := styles.TextStyle.Render(desc)

		unitInfo := styles.MutedStyle.Render(
			fmt.Sprintf("%s • %d units • %s", item.Entry.MediaType, item.UnitCount, item.Entry.Source),
		)
		progress := styles.SubtitleStyle.Render(item.ProgressText())

		cardContent := lipgloss.JoinVertical(
			lipgloss.Left,
			title,
			description,
			"",
			unitInfo,
			progress,
		)

		card := cardStyle.Width(m.Width - 4).Render(cardContent)
		b.WriteString(card)
		b.WriteString("\n")
	}

	return b.String()
}

// FormatPlayback renders seconds as m:ss or h:mm:ss
func FormatPlayback(seconds int) string {
	seconds = max(seconds, 0)
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
