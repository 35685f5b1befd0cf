// Package fetch downloads a web page and extracts its readable article.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"golang.org/x/net/html"
)

const (
	maxPageBody      = 10 << 20
	defaultUserAgent = "mdclip/1.0"
)

// Document is the readable part of a page plus the metadata stored with the
// clipped article.
type Document struct {
	HTML     string
	Title    string
	Author   string
	SiteName string
	Excerpt  string
	FinalURL string
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func New(httpClient *http.Client, userAgent string) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{httpClient: httpClient, userAgent: userAgent}
}

// Page downloads rawURL. When the page is HTML and readability finds an
// article, HTML holds only the article body; otherwise the full page.
func (f *Fetcher) Page(ctx context.Context, rawURL string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("download URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Document{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return Document{}, fmt.Errorf("read response body: %w", err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	rawHTML := string(body)
	doc := Document{
		HTML:     rawHTML,
		Title:    normalizeTitle(extractTitle(rawHTML)),
		FinalURL: finalURL,
	}

	if !isHTMLContentType(resp.Header.Get("Content-Type")) {
		return doc, nil
	}

	parsedURL, err := url.Parse(finalURL)
	if err != nil {
		return doc, nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return doc, nil
	}

	var rendered bytes.Buffer
	if err := article.RenderHTML(&rendered); err == nil {
		if content := strings.TrimSpace(rendered.String()); content != "" {
			doc.HTML = content
		}
	}
	if title := strings.TrimSpace(article.Title()); title != "" {
		doc.Title = normalizeTitle(title)
	}
	doc.Author = normalizeTitle(article.Byline())
	doc.SiteName = normalizeTitle(article.SiteName())
	doc.Excerpt = normalizeTitle(article.Excerpt())

	return doc, nil
}

func isHTMLContentType(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}

	lower := strings.ToLower(contentType)
	return strings.Contains(lower, "text/html") || strings.Contains(lower, "application/xhtml+xml")
}

func extractTitle(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var walk func(*html.Node) string
	walk = func(node *html.Node) string {
		if node.Type == html.ElementNode && node.Data == "title" {
			return strings.TrimSpace(extractNodeText(node))
		}

		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if title := walk(child); title != "" {
				return title
			}
		}
		return ""
	}

	return walk(doc)
}

func extractNodeText(node *html.Node) string {
	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	walk(node)
	return b.String()
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
