// Package store persists clipped articles, their images and translations.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrInvalidID       = errors.New("invalid article ID")
)

// Metadata describes where an article came from.
type Metadata struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Author    string    `json:"author,omitempty"`
	SiteName  string    `json:"siteName,omitempty"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Article struct {
	ID                 int64      `json:"id"`
	Metadata           Metadata   `json:"metadata"`
	Markdown           string     `json:"markdown"`
	TranslatedMarkdown string     `json:"translatedMarkdown,omitempty"`
	HasTranslation     bool       `json:"hasTranslation"`
	TranslatedAt       *time.Time `json:"translatedAt,omitempty"`
	ImageCount         int        `json:"imageCount"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Image is one downloaded image. LocalPath is the reference used inside the
// article Markdown, e.g. "./images/photo.jpg".
type Image struct {
	ID          int64  `json:"id"`
	ArticleID   int64  `json:"articleId"`
	OriginalURL string `json:"originalUrl"`
	LocalPath   string `json:"localPath"`
	MimeType    string `json:"mimeType,omitempty"`
	Data        []byte `json:"-"`
}

// FileName is the bare name the image is referenced by in Markdown.
func (img Image) FileName() string {
	name := strings.TrimPrefix(img.LocalPath, "./images/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return fmt.Sprintf("image_%d", img.ID)
	}
	return name
}

type Stats struct {
	TotalArticles        int        `json:"totalArticles"`
	TotalWithTranslation int        `json:"totalWithTranslation"`
	TotalImages          int        `json:"totalImages"`
	OldestArticle        *time.Time `json:"oldestArticle,omitempty"`
	NewestArticle        *time.Time `json:"newestArticle,omitempty"`
}

type Store interface {
	SaveArticle(ctx context.Context, article Article) (int64, error)
	GetArticle(ctx context.Context, id int64) (*Article, error)
	ListArticles(ctx context.Context) ([]Article, error)
	SearchArticles(ctx context.Context, query string) ([]Article, error)
	DeleteArticle(ctx context.Context, id int64) error
	SaveImage(ctx context.Context, image Image) (int64, error)
	GetArticleImages(ctx context.Context, articleID int64) ([]Image, error)
	SaveTranslation(ctx context.Context, id int64, translatedMarkdown string, at time.Time) error
	Stats(ctx context.Context) (Stats, error)
	ClearAll(ctx context.Context) error
	Close() error
}

func validateID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return nil
}

func matchesQuery(article Article, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(article.Metadata.Title), lowerQuery) ||
		strings.Contains(strings.ToLower(article.Metadata.URL), lowerQuery) ||
		strings.Contains(strings.ToLower(article.Metadata.Excerpt), lowerQuery)
}

// sortNewestFirst orders by metadata timestamp, then id, descending.
func sortNewestFirst(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		ti, tj := articles[i].Metadata.Timestamp, articles[j].Metadata.Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return articles[i].ID > articles[j].ID
	})
}

func computeStats(articles []Article) Stats {
	stats := Stats{TotalArticles: len(articles)}
	for _, article := range articles {
		if article.HasTranslation {
			stats.TotalWithTranslation++
		}
		stats.TotalImages += article.ImageCount
	}
	if len(articles) > 0 {
		sorted := append([]Article(nil), articles...)
		sortNewestFirst(sorted)
		newest := sorted[0].Metadata.Timestamp
		oldest := sorted[len(sorted)-1].Metadata.Timestamp
		stats.NewestArticle = &newest
		stats.OldestArticle = &oldest
	}
	return stats
}
