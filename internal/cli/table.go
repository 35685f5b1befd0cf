package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"mdclip/internal/store"
)

const maxTitleWidth = 56

// renderArticleTable prints articles as aligned columns. Widths are display
// widths so CJK titles line up.
func renderArticleTable(w io.Writer, articles []store.Article) {
	header := []string{"ID", "SAVED", "LANG", "JA", "IMG", "TITLE"}
	rows := make([][]string, 0, len(articles))
	for _, article := range articles {
		translated := "-"
		if article.HasTranslation {
			translated = "yes"
		}
		lang := article.Metadata.Language
		if lang == "" {
			lang = "-"
		}
		title := strings.Join(strings.Fields(article.Metadata.Title), " ")
		rows = append(rows, []string{
			strconv.FormatInt(article.ID, 10),
			article.Metadata.Timestamp.Local().Format("2006-01-02"),
			lang,
			translated,
			strconv.Itoa(article.ImageCount),
			runewidth.Truncate(title, maxTitleWidth, "…"),
		})
	}

	widths := make([]int, len(header))
	for i, cell := range header {
		widths[i] = runewidth.StringWidth(cell)
	}
	for _, row := range rows {
		for i, cell := range row {
			if width := runewidth.StringWidth(cell); width > widths[i] {
				widths[i] = width
			}
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = cell
				continue
			}
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(header)
	for _, row := range rows {
		writeRow(row)
	}
}
