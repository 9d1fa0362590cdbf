// Package canonical maps work URLs to the canonical URL the work page
// declares, over plain HTTP or through a real browser.
package canonical

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/review-harvester/internal/work"
)

// OGURLSelector matches the Open Graph canonical URL declaration.
const OGURLSelector = `meta[property="og:url"]`

// Resolver canonicalizes a single URL. Implementations never return an
// error: every failure becomes an Unresolved resolution.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) work.Resolution
}

// FromHTML extracts the og:url content from an HTML document.
func FromHTML(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	content, ok := doc.Find(OGURLSelector).First().Attr("content")
	content = strings.TrimSpace(content)
	if !ok || content == "" {
		return "", false
	}
	return content, true
}
