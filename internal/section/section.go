// Package section splits a Markdown document into independently translatable
// sections at top-level (H1/H2) headings.
package section

import (
	"regexp"
	"strings"
)

// boundary matches an H1 or H2 heading with non-empty text. H3 and deeper
// never start a section.
var boundary = regexp.MustCompile(`^(#{1,2})\s+.+$`)

// Section is a contiguous span of the document. Content includes the heading
// line that opened it.
type Section struct {
	Heading    string
	HasHeading bool
	Content    string
}

// HeadingText returns the heading line, or "" for leading content.
func (s Section) HeadingText() string {
	if !s.HasHeading {
		return ""
	}
	return s.Heading
}

// Split returns the sections of markdownText in document order. It never
// returns an empty slice: an empty document yields one section with no
// heading and empty content. Joining every Content with "\n" reproduces the
// input exactly.
func Split(markdownText string) []Section {
	lines := strings.Split(markdownText, "\n")
	sections := make([]Section, 0, 8)

	current := make([]string, 0, 16)
	heading := ""
	hasHeading := false
	inCodeBlock := false

	flush := func() {
		if len(current) == 0 {
			return
		}
		sections = append(sections, Section{
			Heading:    heading,
			HasHeading: hasHeading,
			Content:    strings.Join(current, "\n"),
		})
		current = make([]string, 0, 16)
	}

	for _, line := range lines {
		if isFence(line) {
			inCodeBlock = !inCodeBlock
			current = append(current, line)
			continue
		}

		if !inCodeBlock && IsBoundary(line) {
			flush()
			heading = line
			hasHeading = true
			current = append(current, line)
			continue
		}

		current = append(current, line)
	}

	flush()
	return sections
}

// Join reassembles translated section texts with a blank line between them.
func Join(texts []string) string {
	return strings.Join(texts, "\n\n")
}

// IsBoundary reports whether line would open a new section outside a code
// block.
func IsBoundary(line string) bool {
	return boundary.MatchString(line)
}

func isFence(line string) bool {
	return strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~")
}
