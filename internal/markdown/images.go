package markdown

import (
	"net/url"
	"regexp"
	"strings"
)

var imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

// ImageRef is one image reference found in Markdown. Raw is the destination
// exactly as written; URL is Raw resolved against the page URL.
type ImageRef struct {
	Alt string
	Raw string
	URL string
}

// ExtractImages returns the distinct remote images referenced by
// markdownText in document order. data: URLs and non-HTTP schemes are
// skipped.
func ExtractImages(markdownText string, pageURL string) []ImageRef {
	base, _ := url.Parse(pageURL)

	seen := map[string]struct{}{}
	var refs []ImageRef
	for _, match := range imagePattern.FindAllStringSubmatch(markdownText, -1) {
		raw := destination(match[2])
		if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
			continue
		}
		resolved, ok := resolve(base, raw)
		if !ok {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		refs = append(refs, ImageRef{Alt: match[1], Raw: raw, URL: resolved})
	}
	return refs
}

// RewriteImages replaces image destinations found in localPaths (keyed by the
// raw destination) and keeps alt text and titles.
func RewriteImages(markdownText string, localPaths map[string]string) string {
	if len(localPaths) == 0 {
		return markdownText
	}
	return imagePattern.ReplaceAllStringFunc(markdownText, func(image string) string {
		match := imagePattern.FindStringSubmatch(image)
		inner := match[2]
		raw := destination(inner)
		local, ok := localPaths[raw]
		if !ok {
			return image
		}
		return "![" + match[1] + "](" + strings.Replace(inner, raw, local, 1) + ")"
	})
}

// destination strips an optional <...> wrapper and a trailing title.
func destination(inner string) string {
	inner = strings.TrimSpace(inner)
	if strings.HasPrefix(inner, "<") {
		if end := strings.Index(inner, ">"); end > 0 {
			return inner[1:end]
		}
	}
	if i := strings.IndexAny(inner, " \t"); i >= 0 {
		return inner[:i]
	}
	return inner
}

func resolve(base *url.URL, raw string) (string, bool) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	return ref.String(), true
}
