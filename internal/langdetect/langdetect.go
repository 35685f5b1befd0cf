// Package langdetect guesses the language of a clipped article.
package langdetect

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

const maxSampleRunes = 4000

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector

	linkTarget = regexp.MustCompile(`\]\([^)]*\)`)
)

// DetectISO6391 returns a two-letter language code, or "" when text is too
// short or ambiguous.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// DetectMarkdown detects the language of prose in markdownText, ignoring
// fenced code and link targets.
func DetectMarkdown(markdownText string) string {
	return DetectISO6391(Sample(markdownText))
}

// Sample strips code blocks and URLs and caps the result.
func Sample(markdownText string) string {
	var b strings.Builder
	inFence := false
	for _, line := range strings.Split(markdownText, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		b.WriteString(linkTarget.ReplaceAllString(line, "]"))
		b.WriteByte('\n')
	}

	sample := []rune(strings.TrimSpace(b.String()))
	if len(sample) > maxSampleRunes {
		sample = sample[:maxSampleRunes]
	}
	return string(sample)
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})
	return detector
}
