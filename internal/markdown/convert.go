package markdown

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// mermaidHeader matches the first line of a diagram exactly as mermaid
// expects it. Keywords are case-sensitive and must stand alone on the line,
// so prose such as "Graphs are everywhere." never matches.
var mermaidHeader = regexp.MustCompile(`^(?:(?:graph|flowchart)(?:\s+(?:TB|TD|BT|RL|LR))?|sequenceDiagram|classDiagram(?:-v2)?|stateDiagram(?:-v2)?|erDiagram|journey|gantt|mindmap|timeline|gitGraph|quadrantChart|requirementDiagram|pie(?:\s+showData)?)$`)

func FromHTML(html string) (string, error) {
	return FromPageHTML(html, "")
}

// FromPageHTML converts html taken from pageURL, resolving relative links and
// image sources against it.
func FromPageHTML(html string, pageURL string) (string, error) {
	var opts []converter.ConvertOptionFunc
	if domain := strings.TrimSpace(pageURL); domain != "" {
		opts = append(opts, converter.WithDomain(domain))
	}

	md, err := htmltomarkdown.ConvertString(html, opts...)
	if err != nil {
		return "", err
	}

	md = strings.TrimSpace(strings.ReplaceAll(md, "\r\n", "\n"))
	return FenceMermaid(md), nil
}

// FenceMermaid puts unfenced mermaid diagrams (a header line followed by a
// body, as pages often render them in plain <pre> or <div> blocks) into a
// ```mermaid block so they are treated as code downstream. A diagram ends at
// a blank line, a heading or a fence.
func FenceMermaid(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))

	var open fence
	inDiagram := false
	closeDiagram := func() {
		if inDiagram {
			out = append(out, "```")
			inDiagram = false
		}
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if f, ok := parseFence(trimmed); ok {
			closeDiagram()
			switch {
			case open.marker == 0:
				open = f
			case f.closes(open):
				open = fence{}
			}
			out = append(out, line)
			continue
		}
		if open.marker != 0 {
			out = append(out, line)
			continue
		}

		if inDiagram {
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				closeDiagram()
			}
			out = append(out, line)
			continue
		}

		if mermaidHeader.MatchString(trimmed) && hasDiagramBody(lines, i) {
			out = append(out, "```mermaid")
			inDiagram = true
		}
		out = append(out, line)
	}
	closeDiagram()

	return strings.Join(out, "\n")
}

func hasDiagramBody(lines []string, header int) bool {
	if header+1 >= len(lines) {
		return false
	}
	next := strings.TrimSpace(lines[header+1])
	if next == "" || strings.HasPrefix(next, "#") {
		return false
	}
	_, isFence := parseFence(next)
	return !isFence
}

// fence is an opening or closing code fence line.
type fence struct {
	marker rune
	length int
}

func parseFence(trimmed string) (fence, bool) {
	for _, marker := range []rune{'`', '~'} {
		n := 0
		for _, r := range trimmed {
			if r != marker {
				break
			}
			n++
		}
		if n >= 3 {
			return fence{marker: marker, length: n}, true
		}
	}
	return fence{}, false
}

func (f fence) closes(open fence) bool {
	return f.marker == open.marker && f.length >= open.length
}
