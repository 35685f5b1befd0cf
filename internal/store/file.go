package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	fileStateName    = "articles.json"
	fileStateVersion = 1
)

var unsafeFileRune = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type fileState struct {
	Version     int         `json:"version"`
	UpdatedAt   string      `json:"updated_at"`
	NextArticle int64       `json:"next_article_id"`
	NextImage   int64       `json:"next_image_id"`
	Articles    []Article   `json:"articles"`
	Images      []fileImage `json:"images"`
}

type fileImage struct {
	Image
	File string `json:"file"`
}

// FileStore keeps articles in one JSON document under dir and image bytes as
// files under dir/images/<articleID>/.
//
// Every operation re-reads the document while holding an exclusive lock on
// articles.json.lock, so a CLI command and a running server can share one
// data directory.
type FileStore struct {
	mu   sync.Mutex
	dir  string
	path string
	lock *flock.Flock
	now  func() time.Time
}

func OpenFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fileStateName)
	s := &FileStore{
		dir:  dir,
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}

	// Fail at open rather than on the first write when the document is unreadable.
	if err := s.view(func(fileState) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) SaveArticle(_ context.Context, article Article) (int64, error) {
	err := s.update(func(state *fileState) error {
		article.ID = state.NextArticle
		if article.CreatedAt.IsZero() {
			article.CreatedAt = s.now().UTC()
		}
		if article.Metadata.Timestamp.IsZero() {
			article.Metadata.Timestamp = article.CreatedAt
		}
		article.HasTranslation = article.TranslatedMarkdown != ""

		state.NextArticle++
		state.Articles = append(state.Articles, article)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return article.ID, nil
}

func (s *FileStore) GetArticle(_ context.Context, id int64) (*Article, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var article Article
	err := s.view(func(state fileState) error {
		i := state.index(id)
		if i < 0 {
			return ErrArticleNotFound
		}
		article = state.Articles[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *FileStore) ListArticles(_ context.Context) ([]Article, error) {
	var articles []Article
	err := s.view(func(state fileState) error {
		articles = state.Articles
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(articles)
	return articles, nil
}

func (s *FileStore) SearchArticles(ctx context.Context, query string) ([]Article, error) {
	articles, err := s.ListArticles(ctx)
	if err != nil {
		return nil, err
	}
	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	if lowerQuery == "" {
		return articles, nil
	}

	matched := make([]Article, 0, len(articles))
	for _, article := range articles {
		if matchesQuery(article, lowerQuery) {
			matched = append(matched, article)
		}
	}
	return matched, nil
}

func (s *FileStore) DeleteArticle(_ context.Context, id int64) error {
	if err := validateID(id); err != nil {
		return err
	}

	err := s.update(func(state *fileState) error {
		i := state.index(id)
		if i < 0 {
			return ErrArticleNotFound
		}
		state.Articles = append(state.Articles[:i], state.Articles[i+1:]...)

		kept := state.Images[:0]
		for _, img := range state.Images {
			if img.ArticleID != id {
				kept = append(kept, img)
			}
		}
		state.Images = kept
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.RemoveAll(s.imageDir(id)); err != nil {
		return fmt.Errorf("remove images for article %d: %w", id, err)
	}
	return nil
}

func (s *FileStore) SaveImage(_ context.Context, image Image) (int64, error) {
	if err := validateID(image.ArticleID); err != nil {
		return 0, err
	}

	var written string
	err := s.update(func(state *fileState) error {
		if state.index(image.ArticleID) < 0 {
			return ErrArticleNotFound
		}

		image.ID = state.NextImage
		dir := s.imageDir(image.ArticleID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create image directory %s: %w", dir, err)
		}
		name := fmt.Sprintf("%d_%s", image.ID, unsafeFileRune.ReplaceAllString(image.FileName(), "_"))
		if err := os.WriteFile(filepath.Join(dir, name), image.Data, 0o644); err != nil {
			return fmt.Errorf("write image %s: %w", name, err)
		}
		written = filepath.Join(dir, name)

		record := fileImage{Image: image, File: name}
		record.Data = nil
		state.NextImage++
		state.Images = append(state.Images, record)
		return nil
	})
	if err != nil {
		if written != "" {
			_ = os.Remove(written)
		}
		return 0, err
	}
	return image.ID, nil
}

func (s *FileStore) GetArticleImages(_ context.Context, articleID int64) ([]Image, error) {
	if err := validateID(articleID); err != nil {
		return nil, err
	}

	images := make([]Image, 0)
	err := s.view(func(state fileState) error {
		for _, record := range state.Images {
			if record.ArticleID != articleID {
				continue
			}
			data, err := os.ReadFile(filepath.Join(s.imageDir(articleID), record.File))
			if err != nil {
				return fmt.Errorf("read image %d: %w", record.ID, err)
			}
			img := record.Image
			img.Data = data
			images = append(images, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (s *FileStore) SaveTranslation(_ context.Context, id int64, translatedMarkdown string, at time.Time) error {
	if err := validateID(id); err != nil {
		return err
	}

	return s.update(func(state *fileState) error {
		i := state.index(id)
		if i < 0 {
			return ErrArticleNotFound
		}

		translatedAt := at.UTC()
		article := &state.Articles[i]
		article.TranslatedMarkdown = translatedMarkdown
		article.HasTranslation = true
		article.TranslatedAt = &translatedAt
		return nil
	})
}

func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	articles, err := s.ListArticles(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(articles), nil
}

func (s *FileStore) ClearAll(_ context.Context) error {
	err := s.update(func(state *fileState) error {
		state.Articles = nil
		state.Images = nil
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.dir, "images")); err != nil {
		return fmt.Errorf("remove image directory: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) imageDir(articleID int64) string {
	return filepath.Join(s.dir, "images", fmt.Sprintf("%d", articleID))
}

// view runs fn on the current document under a shared lock.
func (s *FileStore) view(fn func(fileState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return fmt.Errorf("lock store file %s: %w", s.path, err)
	}
	defer s.lock.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	return fn(state)
}

// update runs fn on the current document under an exclusive lock and writes
// the result. Nothing is written when fn fails.
func (s *FileStore) update(fn func(*fileState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock store file %s: %w", s.path, err)
	}
	defer s.lock.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&state); err != nil {
		return err
	}
	return s.persist(state)
}

func (s *FileStore) load() (fileState, error) {
	state := fileState{
		Version:     fileStateVersion,
		NextArticle: 1,
		NextImage:   1,
	}

	content, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return fileState{}, fmt.Errorf("read store file %s: %w", s.path, err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return state, nil
	}
	if err := json.Unmarshal(content, &state); err != nil {
		return fileState{}, fmt.Errorf("parse store file %s: %w", s.path, err)
	}
	if state.Version == 0 {
		state.Version = fileStateVersion
	}
	if state.NextArticle < 1 {
		state.NextArticle = 1
	}
	if state.NextImage < 1 {
		state.NextImage = 1
	}
	return state, nil
}

func (s *FileStore) persist(state fileState) error {
	state.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store state: %w", err)
	}
	payload = append(payload, '\n')

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return fmt.Errorf("write store temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace store file %s: %w", s.path, err)
	}
	return nil
}

func (st fileState) index(id int64) int {
	for i, article := range st.Articles {
		if article.ID == id {
			return i
		}
	}
	return -1
}
