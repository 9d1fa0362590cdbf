package reviews

import (
	"html"
	"regexp"
	"strings"
)

var (
	breakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
)

// ExtractContext returns the part of a review body around keyword. The body
// is split into paragraphs at <br> tags and the first paragraph containing
// the keyword (case-insensitive) is kept. Paragraphs longer than maxWords are
// cut to a maxWords window around the first word containing the keyword,
// with "... " and " ..." marking the cut ends. It reports false when no
// paragraph mentions the keyword.
func ExtractContext(body, keyword string, maxWords int) (string, bool) {
	needle := strings.ToLower(keyword)
	if needle == "" {
		return "", false
	}
	var paragraph string
	for _, part := range breakPattern.Split(body, -1) {
		text := strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(part, "")))
		if text != "" && strings.Contains(strings.ToLower(text), needle) {
			paragraph = text
			break
		}
	}
	if paragraph == "" {
		return "", false
	}

	words := strings.Fields(paragraph)
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " "), true
	}

	pos := -1
	for i, w := range words {
		if strings.Contains(strings.ToLower(w), needle) {
			pos = i
			break
		}
	}
	if pos < 0 {
		// Keyword spans a word boundary.
		return strings.Join(words[:maxWords], " ") + "...", true
	}

	start := max(0, pos-maxWords/2)
	end := min(len(words), start+maxWords)
	if end == len(words) {
		start = max(0, end-maxWords)
	}
	var b strings.Builder
	if start > 0 {
		b.WriteString("... ")
	}
	b.WriteString(strings.Join(words[start:end], " "))
	if end < len(words) {
		b.WriteString(" ...")
	}
	return b.String(), true
}
