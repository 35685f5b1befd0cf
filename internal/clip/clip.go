// Package clip turns a URL into a stored article: readable content as
// Markdown, with its images downloaded and referenced locally.
package clip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mdclip/internal/fetch"
	"mdclip/internal/images"
	"mdclip/internal/langdetect"
	"mdclip/internal/markdown"
	"mdclip/internal/store"
)

var ErrEmptyContent = errors.New("no readable content found")

type PageFetcher interface {
	Page(ctx context.Context, rawURL string) (fetch.Document, error)
}

type ImageDownloader interface {
	DownloadAll(ctx context.Context, refs []markdown.ImageRef) []images.Result
}

type ArticleStore interface {
	SaveArticle(ctx context.Context, article store.Article) (int64, error)
	SaveImage(ctx context.Context, image store.Image) (int64, error)
}

type Clipper struct {
	fetcher PageFetcher
	images  ImageDownloader
	store   ArticleStore
	log     zerolog.Logger
	now     func() time.Time
}

func New(fetcher PageFetcher, downloader ImageDownloader, articles ArticleStore, log zerolog.Logger) *Clipper {
	return &Clipper{
		fetcher: fetcher,
		images:  downloader,
		store:   articles,
		log:     log,
		now:     time.Now,
	}
}

// Save clips rawURL and returns the new article ID. Image download and
// image save failures are logged and skipped.
func (c *Clipper) Save(ctx context.Context, rawURL string) (int64, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return 0, errors.New("url is required")
	}

	doc, err := c.fetcher.Page(ctx, rawURL)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	pageURL := doc.FinalURL
	if pageURL == "" {
		pageURL = rawURL
	}

	md, err := markdown.FromPageHTML(doc.HTML, pageURL)
	if err != nil {
		return 0, fmt.Errorf("convert %s: %w", pageURL, err)
	}
	if strings.TrimSpace(md) == "" {
		return 0, fmt.Errorf("%s: %w", pageURL, ErrEmptyContent)
	}

	refs := markdown.ExtractImages(md, pageURL)
	c.log.Debug().Str("url", pageURL).Int("images", len(refs)).Msg("article converted")

	var downloaded []images.Result
	if len(refs) > 0 && c.images != nil {
		localPaths := make(map[string]string, len(refs))
		for _, result := range c.images.DownloadAll(ctx, refs) {
			if result.Err != nil {
				c.log.Warn().Err(result.Err).Str("image", result.Ref.URL).Msg("image download failed")
				continue
			}
			localPaths[result.Ref.Raw] = result.LocalPath
			downloaded = append(downloaded, result)
		}
		md = markdown.RewriteImages(md, localPaths)
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = pageURL
	}

	articleID, err := c.store.SaveArticle(ctx, store.Article{
		Metadata: store.Metadata{
			Title:     title,
			URL:       pageURL,
			Author:    doc.Author,
			SiteName:  doc.SiteName,
			Excerpt:   doc.Excerpt,
			Language:  langdetect.DetectMarkdown(md),
			Timestamp: c.now().UTC(),
		},
		Markdown:   md,
		ImageCount: len(downloaded),
	})
	if err != nil {
		return 0, fmt.Errorf("save article: %w", err)
	}

	for _, result := range downloaded {
		_, err := c.store.SaveImage(ctx, store.Image{
			ArticleID:   articleID,
			OriginalURL: result.Ref.URL,
			LocalPath:   result.LocalPath,
			MimeType:    result.MimeType,
			Data:        result.Data,
		})
		if err != nil {
			c.log.Error().Err(err).Int64("article_id", articleID).Str("image", result.Ref.URL).Msg("image save failed")
		}
	}

	c.log.Info().Int64("article_id", articleID).Str("title", title).Int("images", len(downloaded)).Msg("article saved")
	return articleID, nil
}
