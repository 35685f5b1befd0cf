package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdclip/internal/markdown"
)

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "./images/photo.jpg", LocalPath("https://cdn.example.com/a/photo.jpg?w=200", 0))
	assert.Equal(t, "./images/my_photo__1_.png", LocalPath("https://cdn.example.com/my%20photo%20(1).png", 0))
	assert.Equal(t, "./images/image-3", LocalPath("https://cdn.example.com/", 3))
	assert.Equal(t, "./images/image-4", LocalPath("https://cdn.example.com/..", 4))
	assert.Equal(t, "./images/image-5", LocalPath("https://cdn.example.com/a/b/..", 5))
	assert.Equal(t, "./images/image-6", LocalPath("...", 6))

	long := LocalPath("https://cdn.example.com/"+strings.Repeat("a", 80)+".png", 0)
	assert.Len(t, strings.TrimPrefix(long, "./images/"), 50)
}

func TestUniquePathSkipsEveryTakenName(t *testing.T) {
	used := map[string]struct{}{}

	assert.Equal(t, "./images/logo.png", uniquePath("./images/logo.png", 0, used))
	assert.Equal(t, "./images/1_logo.png", uniquePath("./images/1_logo.png", 1, used))
	assert.Equal(t, "./images/2_logo.png", uniquePath("./images/logo.png", 2, used))
	assert.Equal(t, "./images/3_logo.png", uniquePath("./images/logo.png", 3, used))

	used["./images/4_logo.png"] = struct{}{}
	assert.Equal(t, "./images/4_2_logo.png", uniquePath("./images/logo.png", 4, used))
	assert.Len(t, used, 6)
}

func TestDownloadAllKeepsOrderAndReportsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a/logo.png", "/b/logo.png":
			w.Header().Set("Content-Type", "image/png; charset=binary")
			_, _ = w.Write([]byte("png:" + r.URL.Path))
		case "/c.gif":
			_, _ = w.Write([]byte("gif"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	refs := []markdown.ImageRef{
		{Raw: "/a/logo.png", URL: server.URL + "/a/logo.png"},
		{Raw: "/missing.jpg", URL: server.URL + "/missing.jpg"},
		{Raw: "/b/logo.png", URL: server.URL + "/b/logo.png"},
		{Raw: "/c.gif", URL: server.URL + "/c.gif"},
	}

	results := NewDownloader(server.Client(), "mdclip-test", 2).DownloadAll(context.Background(), refs)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "./images/logo.png", results[0].LocalPath)
	assert.Equal(t, "image/png", results[0].MimeType)
	assert.Equal(t, []byte("png:/a/logo.png"), results[0].Data)

	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Data)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, "./images/2_logo.png", results[2].LocalPath, "duplicate names get an index prefix")

	assert.NoError(t, results[3].Err)
	assert.NotEmpty(t, results[3].MimeType)
}

func TestDownloadAllCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewDownloader(nil, "", 1).DownloadAll(ctx, []markdown.ImageRef{{URL: "http://127.0.0.1:1/x.png"}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
