// Package export writes articles as ZIP archives: Markdown, images,
// metadata and the translation when one exists.
package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"mdclip/internal/store"
)

const maxFilenameRunes = 100

var (
	invalidFilenameRunes = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	whitespaceRuns       = regexp.MustCompile(`\s+`)
	underscoreRuns       = regexp.MustCompile(`_{2,}`)
)

// Bundle is one article with its images.
type Bundle struct {
	Article store.Article
	Images  []store.Image
}

type Options struct {
	IncludeMetadata bool
}

type metadataFile struct {
	Title          string    `json:"title"`
	Author         string    `json:"author,omitempty"`
	URL            string    `json:"url"`
	SiteName       string    `json:"siteName,omitempty"`
	Language       string    `json:"language,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	CreatedAt      time.Time `json:"createdAt"`
	HasTranslation bool      `json:"hasTranslation"`
}

// Article writes a single-article archive:
//
//	<title>.md
//	<title>_ja.md      (when translated)
//	metadata.json      (when opts.IncludeMetadata)
//	images/<file>
func Article(w io.Writer, bundle Bundle, opts Options) error {
	zw := zip.NewWriter(w)
	name := Filename(bundle.Article.Metadata.Title)

	if err := writeArticle(zw, "", name+".md", name+"_ja.md", bundle, opts); err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// Articles writes every bundle into its own "<n>_<title>/" folder.
func Articles(w io.Writer, bundles []Bundle, opts Options) error {
	zw := zip.NewWriter(w)

	for i, bundle := range bundles {
		folder := fmt.Sprintf("%d_%s/", i+1, Filename(bundle.Article.Metadata.Title))
		if err := writeArticle(zw, folder, "article.md", "article_ja.md", bundle, opts); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// ArchiveName is the download name for one article.
func ArchiveName(article store.Article) string {
	return Filename(article.Metadata.Title) + ".zip"
}

// BulkArchiveName is the download name for an export of all articles.
func BulkArchiveName(now time.Time) string {
	return "articles_export_" + now.UTC().Format("2006-01-02") + ".zip"
}

// Filename turns a title into a name that is safe on common file systems.
func Filename(title string) string {
	name := norm.NFKC.String(title)
	name = invalidFilenameRunes.ReplaceAllString(name, "_")
	name = whitespaceRuns.ReplaceAllString(name, "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if runes := []rune(name); len(runes) > maxFilenameRunes {
		name = string(runes[:maxFilenameRunes])
	}
	if name == "" {
		return "article"
	}
	return name
}

func writeArticle(zw *zip.Writer, folder, markdownName, translatedName string, bundle Bundle, opts Options) error {
	article := bundle.Article

	if err := writeFile(zw, folder+markdownName, []byte(article.Markdown), article.CreatedAt); err != nil {
		return err
	}

	for _, img := range bundle.Images {
		if len(img.Data) == 0 {
			continue
		}
		if err := writeFile(zw, folder+"images/"+img.FileName(), img.Data, article.CreatedAt); err != nil {
			return err
		}
	}

	if opts.IncludeMetadata {
		meta, err := json.MarshalIndent(metadataFile{
			Title:          article.Metadata.Title,
			Author:         article.Metadata.Author,
			URL:            article.Metadata.URL,
			SiteName:       article.Metadata.SiteName,
			Language:       article.Metadata.Language,
			Timestamp:      article.Metadata.Timestamp,
			CreatedAt:      article.CreatedAt,
			HasTranslation: article.HasTranslation,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if err := writeFile(zw, folder+"metadata.json", meta, article.CreatedAt); err != nil {
			return err
		}
	}

	if article.HasTranslation && article.TranslatedMarkdown != "" {
		if err := writeFile(zw, folder+translatedName, []byte(article.TranslatedMarkdown), article.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !modified.IsZero() {
		header.Modified = modified
	}

	fw, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
