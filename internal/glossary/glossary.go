// Package glossary holds preferred term translations. Terms are listed in the
// translation prompt and enforced on translated sections outside code.
package glossary

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mdclip/internal/provider"
)

// Terms maps a source term to its preferred translation.
type Terms map[string]string

// Load reads a YAML (or JSON) mapping of term to translation. An empty path
// yields no terms.
func Load(path string) (Terms, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read glossary file %s: %w", path, err)
	}

	var data map[string]string
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse glossary %s: %w", path, err)
	}

	cleaned := make(Terms, len(data))
	for k, v := range data {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		cleaned[key] = val
	}
	return cleaned, nil
}

// Prompt lists the terms in sorted order.
func (t Terms) Prompt() string {
	if len(t) == 0 {
		return ""
	}

	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString("用語集（以下の訳語を必ず使用してください）:\n")
	for _, key := range keys {
		builder.WriteString("- ")
		builder.WriteString(key)
		builder.WriteString(" => ")
		builder.WriteString(t[key])
		builder.WriteString("\n")
	}
	return strings.TrimSuffix(builder.String(), "\n")
}

// Template inserts the term list into template just before the content
// placeholder. A template without the placeholder is treated as the default
// prompt.
func (t Terms) Template(template string) string {
	if len(t) == 0 {
		return template
	}
	if !strings.Contains(template, provider.ContentPlaceholder) {
		template = provider.DefaultPrompt
	}
	return strings.Replace(template, provider.ContentPlaceholder, t.Prompt()+"\n\n"+provider.ContentPlaceholder, 1)
}

// Apply replaces remaining source terms in markdownText, leaving fenced code
// and inline code untouched. Longer terms win over their prefixes.
func (t Terms) Apply(markdownText string) string {
	if len(t) == 0 || markdownText == "" {
		return markdownText
	}

	replacer := t.replacer()
	lines := strings.Split(markdownText, "\n")

	out := make([]string, 0, len(lines))
	inFence := false
	fenceDelimiter := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if delimiter, ok := fenceStart(trimmed); ok {
			out = append(out, line)
			if inFence && strings.HasPrefix(trimmed, fenceDelimiter) {
				inFence = false
				fenceDelimiter = ""
			} else if !inFence {
				inFence = true
				fenceDelimiter = delimiter
			}
			continue
		}

		if inFence {
			out = append(out, line)
			continue
		}

		out = append(out, applyOutsideInlineCode(line, replacer))
	}

	return strings.Join(out, "\n")
}

func (t Terms) replacer() *strings.Replacer {
	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		li, lj := len([]rune(keys[i])), len([]rune(keys[j]))
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	replacements := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		replacements = append(replacements, key, t[key])
	}
	return strings.NewReplacer(replacements...)
}

func applyOutsideInlineCode(line string, replacer *strings.Replacer) string {
	var builder strings.Builder
	var segment strings.Builder
	inInlineCode := false

	for _, r := range line {
		if r != '`' {
			segment.WriteRune(r)
			continue
		}
		if inInlineCode {
			builder.WriteString(segment.String())
		} else {
			builder.WriteString(replacer.Replace(segment.String()))
		}
		segment.Reset()
		builder.WriteRune('`')
		inInlineCode = !inInlineCode
	}

	if inInlineCode {
		builder.WriteString(segment.String())
	} else {
		builder.WriteString(replacer.Replace(segment.String()))
	}
	return builder.String()
}

func fenceStart(trimmed string) (string, bool) {
	if strings.HasPrefix(trimmed, "```") {
		return strings.Repeat("`", countPrefix(trimmed, '`')), true
	}
	if strings.HasPrefix(trimmed, "~~~") {
		return strings.Repeat("~", countPrefix(trimmed, '~')), true
	}
	return "", false
}

func countPrefix(s string, marker rune) int {
	n := 0
	for _, r := range s {
		if r != marker {
			break
		}
		n++
	}
	return n
}
