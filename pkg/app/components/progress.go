package components

import (
	"fmt"
	"strings"

	"github.com/kerbaras/reader/pkg/app/styles"
	"github.com/kerbaras/reader/pkg/services"
)

// ProgressTracker follows page loads of the units in the reader's cache.
type ProgressTracker struct {
	units map[string]*services.PageProgress
	width int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		units: make(map[string]*services.PageProgress),
		width: width,
	}
}

func (p *ProgressTracker) Update(progress services.PageProgress) {
	prev, ok := p.units[progress.UnitID]
	if ok {
		// Failures and loading updates carry no counts
		if progress.Total == 0 {
			progress.Total = prev.Total
		}
		if progress.Status != "ready" {
			progress.Loaded = max(progress.Loaded, prev.Loaded)
		}
	}
	prog := progress // Copy
	p.units[progress.UnitID] = &prog
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
}

// Forget drops a unit that left the cache.
func (p *ProgressTracker) Forget(unitID string) {
	delete(p.units, unitID)
}

func (p *ProgressTracker) Clear() {
	p.units = make(map[string]*services.PageProgress)
}

func (p *ProgressTracker) HasActive() bool {
	for _, progress := range p.units {
		if progress.Status == "loading" {
			return true
		}
	}
	return false
}

// View renders the load state of one unit. total is the page count when the
// updates did not carry it.
func (p *ProgressTracker) View(unitID string, total int) string {
	progress, ok := p.units[unitID]
	if !ok {
		return ""
	}
	total = max(total, progress.Total)

	var b strings.Builder
	statusText := progress.Status
	if total > 0 {
		percentage := float64(progress.Loaded) / float64(total) * 100
		statusText = fmt.Sprintf("%s (%d/%d pages - %.0f%%)",
			progress.Status, progress.Loaded, total, percentage)

		b.WriteString(renderProgressBar(progress.Loaded, total, p.width-4))
		b.WriteString("\n")
	} else if progress.Loaded > 0 {
		statusText = fmt.Sprintf("%s (%d pages cached)", progress.Status, progress.Loaded)
	}
	b.WriteString(styles.StatusStyle(progress.Status).Render(statusText))

	if progress.Err != nil {
		b.WriteString("\n")
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: page %d: %s", progress.Index+1, progress.Err)))
	}
	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total == 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// SimpleProgress renders a simple progress bar
func SimpleProgress(current, total, width int) string {
	return renderProgressBar(current, total, width)
}
