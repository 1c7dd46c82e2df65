// Package sources holds the source-specific extractors. Each one follows
// locate, disambiguate, extract primary, extract fallback and enrich, with
// parsing kept in pure functions over a goquery document.
package sources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/scraper"
)

// Fetcher is the HTTP surface extractors need.
type Fetcher interface {
	Get(ctx context.Context, source, rawURL string, hdr http.Header) (*scraper.Page, error)
	Post(ctx context.Context, source, rawURL string, body []byte, hdr http.Header) (*scraper.Page, error)
	Document(ctx context.Context, source, rawURL string) (*goquery.Document, error)
}

func absoluteURL(doc *goquery.Document, base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	var baseURL *url.URL
	if doc != nil && doc.Url != nil {
		baseURL = doc.Url
	} else if b, err := url.Parse(base); err == nil {
		baseURL = b
	}
	if baseURL == nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	replacer := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u")
	s = replacer.Replace(s)
	var b strings.Builder
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
