package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectISO6391(t *testing.T) {
	assert.Equal(t, "en", DetectISO6391("The quick brown fox jumps over the lazy dog while the weather stays pleasant."))
	assert.Equal(t, "ja", DetectISO6391("これは日本語の文章です。今日はとても良い天気ですね。"))
	assert.Equal(t, "", DetectISO6391("ok"))
	assert.Equal(t, "", DetectISO6391("   "))
}

func TestSampleDropsCodeAndLinkTargets(t *testing.T) {
	input := "# Title\n\nSee [docs](https://example.com/very/long/path).\n```go\nfunc main() {}\n```\nEnd."
	got := Sample(input)
	assert.Equal(t, "# Title\n\nSee [docs].\nEnd.", got)
}

func TestDetectMarkdownIgnoresCode(t *testing.T) {
	input := "# Einführung\n\nDies ist ein deutscher Artikel über die Entwicklung von Software und Werkzeugen.\n" +
		"```\nthe quick brown fox jumps over the lazy dog in english code comments\n```"
	assert.Equal(t, "de", DetectMarkdown(input))
}
