package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenFileStore(dir)
	require.NoError(t, err)
	return s, dir
}

func testArticle(title, url string, ts time.Time) Article {
	return Article{
		Metadata: Metadata{Title: title, URL: url, Excerpt: "excerpt of " + title, Timestamp: ts},
		Markdown: "# " + title + "\n\nbody",
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	id, err := s.SaveArticle(ctx, testArticle("Go Tips", "https://example.com/go", base))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := s.GetArticle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Go Tips", got.Metadata.Title)
	assert.False(t, got.HasTranslation)
	assert.Nil(t, got.TranslatedAt)

	at := base.Add(time.Hour)
	require.NoError(t, s.SaveTranslation(ctx, id, "# Goのヒント", at))

	reopened, err := OpenFileStore(dir)
	require.NoError(t, err)
	got, err = reopened.GetArticle(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.HasTranslation)
	assert.Equal(t, "# Goのヒント", got.TranslatedMarkdown)
	require.NotNil(t, got.TranslatedAt)
	assert.True(t, got.TranslatedAt.Equal(at))
	assert.Equal(t, "# Go Tips\n\nbody", got.Markdown, "original markdown must be preserved")

	next, err := reopened.SaveArticle(ctx, testArticle("Second", "https://example.com/2", base))
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestFileStoreInvalidAndMissingIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.GetArticle(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = s.GetArticle(ctx, 42)
	assert.ErrorIs(t, err, ErrArticleNotFound)
	assert.ErrorIs(t, s.SaveTranslation(ctx, 42, "x", time.Now()), ErrArticleNotFound)
	assert.ErrorIs(t, s.DeleteArticle(ctx, -1), ErrInvalidID)
}

func TestFileStoreDeleteCascadesImages(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)

	id, err := s.SaveArticle(ctx, testArticle("With Images", "https://example.com/img", time.Now()))
	require.NoError(t, err)

	_, err = s.SaveImage(ctx, Image{
		ArticleID:   id,
		OriginalURL: "https://example.com/a.png",
		LocalPath:   "./images/a.png",
		MimeType:    "image/png",
		Data:        []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)

	images, err := s.GetArticleImages(ctx, id)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, images[0].Data)
	assert.Equal(t, "a.png", images[0].FileName())

	require.NoError(t, s.DeleteArticle(ctx, id))

	_, err = s.GetArticle(ctx, id)
	assert.ErrorIs(t, err, ErrArticleNotFound)
	_, statErr := os.Stat(filepath.Join(dir, "images", "1"))
	assert.True(t, os.IsNotExist(statErr))
	images, err = s.GetArticleImages(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestFileStoreSaveImageRequiresArticle(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.SaveImage(context.Background(), Image{ArticleID: 5, LocalPath: "./images/x.png"})
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestFileStoreListSearchAndStats(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.SaveArticle(ctx, testArticle("Old Kubernetes Post", "https://k8s.example/old", base))
	require.NoError(t, err)
	newID, err := s.SaveArticle(ctx, testArticle("New Go Release", "https://go.example/new", base.Add(48*time.Hour)))
	require.NoError(t, err)
	require.NoError(t, s.SaveTranslation(ctx, newID, "翻訳", base))

	list, err := s.ListArticles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "New Go Release", list[0].Metadata.Title)

	found, err := s.SearchArticles(ctx, "KUBERNETES")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Old Kubernetes Post", found[0].Metadata.Title)

	found, err = s.SearchArticles(ctx, "go.example")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalArticles)
	assert.Equal(t, 1, stats.TotalWithTranslation)
	require.NotNil(t, stats.NewestArticle)
	assert.True(t, stats.NewestArticle.Equal(base.Add(48*time.Hour)))
	assert.True(t, stats.OldestArticle.Equal(base))

	require.NoError(t, s.ClearAll(ctx))
	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalArticles)
	assert.Nil(t, stats.NewestArticle)
}

func TestFileStoreHandlesShareOneDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cli, err := OpenFileStore(dir)
	require.NoError(t, err)
	server, err := OpenFileStore(dir)
	require.NoError(t, err)

	cliID, err := cli.SaveArticle(ctx, testArticle("From CLI", "https://example.com/cli", time.Now()))
	require.NoError(t, err)
	serverID, err := server.SaveArticle(ctx, testArticle("From Server", "https://example.com/server", time.Now()))
	require.NoError(t, err)
	assert.NotEqual(t, cliID, serverID)

	require.NoError(t, server.SaveTranslation(ctx, cliID, "# CLIから", time.Now()))
	got, err := cli.GetArticle(ctx, cliID)
	require.NoError(t, err)
	assert.Equal(t, "# CLIから", got.TranslatedMarkdown)

	reopened, err := OpenFileStore(dir)
	require.NoError(t, err)
	list, err := reopened.ListArticles(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestFileStoreConcurrentHandlesAssignDistinctIDs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	handles := make([]*FileStore, 4)
	for i := range handles {
		h, err := OpenFileStore(dir)
		require.NoError(t, err)
		handles[i] = h
	}

	var wg sync.WaitGroup
	ids := make(chan int64, len(handles)*5)
	for _, h := range handles {
		wg.Add(1)
		go func(h *FileStore) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				id, err := h.SaveArticle(ctx, testArticle("Parallel", "https://example.com/p", time.Now()))
				assert.NoError(t, err)
				ids <- id
			}
		}(h)
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}

	list, err := handles[0].ListArticles(ctx)
	require.NoError(t, err)
	assert.Len(t, list, len(handles)*5)
}

func TestFileStoreFailedWriteLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)

	id, err := s.SaveArticle(ctx, testArticle("Keep Me", "https://example.com/keep", time.Now()))
	require.NoError(t, err)

	blocker := filepath.Join(dir, fileStateName+".tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))

	assert.Error(t, s.DeleteArticle(ctx, id))
	assert.Error(t, s.ClearAll(ctx))

	require.NoError(t, os.Remove(blocker))
	got, err := s.GetArticle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Keep Me", got.Metadata.Title)

	list, err := s.ListArticles(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOpenDefaultsToFileStore(t *testing.T) {
	s, err := Open(context.Background(), Options{DataDir: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*FileStore)
	assert.True(t, ok)
}
