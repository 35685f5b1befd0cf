// Package render assembles a partially translated document from section
// progress events as they arrive.
package render

import (
	"fmt"
	"strings"

	"mdclip/internal/events"
)

// Progressive accumulates section events for one article. It is not safe for
// concurrent use; each listener owns its own instance.
type Progressive struct {
	articleID  int64
	total      int
	sections   []string
	headings   []string
	fallbacks  int
	percentage int
}

func NewProgressive(articleID int64) *Progressive {
	return &Progressive{articleID: articleID}
}

// Apply records the next section. Events for other articles are ignored;
// out-of-order or duplicate sections are rejected.
func (p *Progressive) Apply(event events.Event) (bool, error) {
	if event.Action != events.ActionSectionComplete || event.ArticleID != p.articleID {
		return false, nil
	}
	progress := event.Progress
	if progress == nil {
		return false, fmt.Errorf("section event for article %d has no progress payload", event.ArticleID)
	}
	if progress.TotalSections <= 0 {
		return false, fmt.Errorf("section event reports %d total sections", progress.TotalSections)
	}
	if p.total != 0 && progress.TotalSections != p.total {
		return false, fmt.Errorf("total sections changed from %d to %d", p.total, progress.TotalSections)
	}
	if progress.SectionIndex != len(p.sections) {
		return false, fmt.Errorf("section %d arrived, expected %d", progress.SectionIndex, len(p.sections))
	}

	p.total = progress.TotalSections
	p.sections = append(p.sections, progress.TranslatedContent)
	p.headings = append(p.headings, progress.Heading)
	p.percentage = progress.Percentage
	if progress.UsedFallback {
		p.fallbacks++
	}
	return true, nil
}

// Markdown returns the sections received so far, joined the same way the
// final document is.
func (p *Progressive) Markdown() string {
	return strings.Join(p.sections, "\n\n")
}

func (p *Progressive) Percentage() int { return p.percentage }

func (p *Progressive) Received() int { return len(p.sections) }

func (p *Progressive) Total() int { return p.total }

func (p *Progressive) Fallbacks() int { return p.fallbacks }

func (p *Progressive) Done() bool {
	return p.total > 0 && len(p.sections) == p.total
}

// StatusLine renders the latest section as "[i/N] pct% heading".
func (p *Progressive) StatusLine() string {
	if len(p.sections) == 0 {
		return "[0/?] 0%"
	}
	line := fmt.Sprintf("[%d/%d] %d%%", len(p.sections), p.total, p.percentage)
	if heading := strings.TrimSpace(strings.TrimLeft(p.headings[len(p.headings)-1], "#")); heading != "" {
		line += " " + heading
	}
	return line
}
