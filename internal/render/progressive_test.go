package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdclip/internal/events"
)

func sectionEvent(articleID int64, index, total, pct int, content, heading string) events.Event {
	return events.Event{
		Action:    events.ActionSectionComplete,
		ArticleID: articleID,
		Progress: &events.SectionProgress{
			SectionIndex:      index,
			TotalSections:     total,
			TranslatedContent: content,
			Heading:           heading,
			HasHeading:        heading != "",
			Percentage:        pct,
		},
	}
}

func TestProgressiveAccumulatesInOrder(t *testing.T) {
	p := NewProgressive(1)

	applied, err := p.Apply(sectionEvent(1, 0, 2, 50, "# 一", "# One"))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 2, p.Total())
	assert.False(t, p.Done())
	assert.Equal(t, "[1/2] 50% One", p.StatusLine())

	_, err = p.Apply(sectionEvent(1, 1, 2, 100, "# 二", "# Two"))
	require.NoError(t, err)
	assert.True(t, p.Done())
	assert.Equal(t, 100, p.Percentage())
	assert.Equal(t, "# 一\n\n# 二", p.Markdown())
}

func TestProgressiveRejectsOutOfOrder(t *testing.T) {
	p := NewProgressive(1)

	_, err := p.Apply(sectionEvent(1, 1, 3, 67, "b", ""))
	assert.Error(t, err)

	_, err = p.Apply(sectionEvent(1, 0, 3, 33, "a", ""))
	require.NoError(t, err)
	_, err = p.Apply(sectionEvent(1, 0, 3, 33, "a", ""))
	assert.Error(t, err, "duplicate index must be rejected")
	assert.Equal(t, 1, p.Received())
}

func TestProgressiveIgnoresOtherArticlesAndActions(t *testing.T) {
	p := NewProgressive(1)

	applied, err := p.Apply(sectionEvent(2, 0, 1, 100, "x", ""))
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = p.Apply(events.Event{Action: events.ActionTranslationComplete, ArticleID: 1})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, p.Received())
}

func TestProgressiveCountsFallbacks(t *testing.T) {
	p := NewProgressive(4)
	event := sectionEvent(4, 0, 1, 100, "original", "")
	event.Progress.UsedFallback = true

	_, err := p.Apply(event)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Fallbacks())
	assert.Equal(t, "[1/1] 100%", p.StatusLine())
}
