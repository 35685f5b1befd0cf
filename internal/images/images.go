// Package images downloads the images referenced by a clipped article and
// assigns each a local path under ./images/.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"mdclip/internal/markdown"
)

const (
	defaultWorkers  = 4
	maxImageBytes   = 20 << 20
	maxNameRunes    = 50
	defaultMimeType = "image/png"
)

var unsafeNameRune = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Result is the outcome for one image. Err is set when the download failed;
// such images keep their remote URL in the Markdown.
type Result struct {
	Ref       markdown.ImageRef
	LocalPath string
	MimeType  string
	Data      []byte
	Err       error
}

type Downloader struct {
	httpClient *http.Client
	userAgent  string
	workers    int
}

func NewDownloader(httpClient *http.Client, userAgent string, workers int) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Downloader{httpClient: httpClient, userAgent: userAgent, workers: workers}
}

// DownloadAll fetches refs with a bounded pool and returns results in the
// order of refs. Local paths are assigned up front so they are stable and
// unique within the article.
func (d *Downloader) DownloadAll(ctx context.Context, refs []markdown.ImageRef) []Result {
	results := make([]Result, len(refs))
	used := map[string]struct{}{}
	for i, ref := range refs {
		results[i] = Result{Ref: ref, LocalPath: uniquePath(LocalPath(ref.URL, i), i, used)}
	}
	if len(refs) == 0 {
		return results
	}

	workerCount := d.workers
	if workerCount > len(refs) {
		workerCount = len(refs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				data, mimeType, err := d.Download(ctx, results[i].Ref.URL)
				results[i].Data = data
				results[i].MimeType = mimeType
				results[i].Err = err
			}
		}()
	}

	for i := range refs {
		if ctx.Err() != nil {
			for j := i; j < len(refs); j++ {
				results[j].Err = ctx.Err()
			}
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// Download fetches one image.
func (d *Downloader) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("download image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mimeType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	return data, mimeType, nil
}

// LocalPath derives "./images/<name>" from the last path segment of
// imageURL. Unsafe characters become "_" and the name is capped at 50
// characters. Names made only of dots fall back to "image-<index>".
func LocalPath(imageURL string, index int) string {
	name := ""
	if u, err := url.Parse(imageURL); err == nil {
		name = path.Base(u.Path)
	}
	if strings.Trim(name, "./") == "" {
		return fmt.Sprintf("./images/image-%d", index)
	}

	name = unsafeNameRune.ReplaceAllString(name, "_")
	if len(name) > maxNameRunes {
		name = name[:maxNameRunes]
	}
	return "./images/" + name
}

// uniquePath prefixes a taken name with "<index>_", adding a counter until
// the result is unused too.
func uniquePath(p string, index int, used map[string]struct{}) string {
	name := strings.TrimPrefix(p, "./images/")
	candidate := p
	for n := 1; ; n++ {
		if _, taken := used[candidate]; !taken {
			break
		}
		if n == 1 {
			candidate = fmt.Sprintf("./images/%d_%s", index, name)
		} else {
			candidate = fmt.Sprintf("./images/%d_%d_%s", index, n, name)
		}
	}
	used[candidate] = struct{}{}
	return candidate
}
