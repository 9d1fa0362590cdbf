package reviews

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/review-harvester/internal/work"
)

// NotFound fills metadata fields missing from the page.
const NotFound = "Not Found"

// NotRated is the star value of a review without a rating.
const NotRated = "Not rated"

var (
	slugPattern         = regexp.MustCompile(`/show/\d+[.-]([^/?#]+)`)
	digitsPattern       = regexp.MustCompile(`\d+`)
	reviewCountsPattern = regexp.MustCompile(`([\d,]+)\s+reviews`)
)

// Review is one keyword-matching review.
type Review struct {
	BookName string
	ReviewID string
	Stars    string
	Date     string
	Context  string
}

// Metadata describes a work as shown on its main page.
type Metadata struct {
	Author       string
	AvgRating    string
	TotalReviews string
	ReleaseDate  string
	Genres       string
}

// MainURL strips the review section suffix from a reviews URL.
func MainURL(reviewsURL string) string {
	return strings.Replace(reviewsURL, "/reviews", "", 1)
}

// BookName derives a display name from the slug of a work URL, replacing
// underscores and hyphens with spaces.
func BookName(rawURL string) string {
	if m := slugPattern.FindStringSubmatch(rawURL); m != nil {
		name := strings.NewReplacer("_", " ", "-", " ").Replace(m[1])
		if name = strings.Join(strings.Fields(name), " "); name != "" {
			return name
		}
	}
	if id, ok := work.ExtractID(rawURL); ok {
		return "URL_ID_" + id
	}
	return "URL_Parse_Error_For_" + rawURL
}

// ReviewSelectors locate review card parts.
type ReviewSelectors struct {
	Card   string
	Link   string
	Body   string
	Rating string
}

// DefaultReviewSelectors match the review section markup.
var DefaultReviewSelectors = ReviewSelectors{
	Card:   "article.ReviewCard",
	Link:   `a[href*="/review/show/"]`,
	Body:   "span.Formatted",
	Rating: "span.RatingStars",
}

// ParseReviews extracts keyword-matching reviews from a rendered reviews
// page. Reviews whose ID is already in seen are skipped and new IDs are
// added to it.
func ParseReviews(doc, keyword, bookName string, maxWords int, seen map[string]struct{}) ([]Review, error) {
	return parseReviews(doc, keyword, bookName, maxWords, seen, DefaultReviewSelectors)
}

func parseReviews(doc, keyword, bookName string, maxWords int, seen map[string]struct{}, sel ReviewSelectors) ([]Review, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse reviews page: %w", err)
	}
	var out []Review
	root.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		link := card.Find(sel.Link).First()
		id, ok := link.Attr("href")
		if !ok || id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		body, err := card.Find(sel.Body).First().Html()
		if err != nil {
			return
		}
		text, ok := ExtractContext(body, keyword, maxWords)
		if !ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, Review{
			BookName: bookName,
			ReviewID: id,
			Stars:    stars(card.Find(sel.Rating).First()),
			Date:     strings.TrimSpace(link.Text()),
			Context:  text,
		})
	})
	return out, nil
}

func stars(s *goquery.Selection) string {
	label, ok := s.Attr("aria-label")
	if !ok {
		return NotRated
	}
	if d := digitsPattern.FindString(label); d != "" {
		return d
	}
	return NotRated
}

// MetadataSelectors locate book metadata on the main page.
type MetadataSelectors struct {
	Content     string
	Author      string
	Rating      string
	ReviewCount string
	Published   string
	Genre       string
}

// DefaultMetadataSelectors match the book page markup.
var DefaultMetadataSelectors = MetadataSelectors{
	Content:     "div.BookPage__mainContent",
	Author:      "div.ContributorLinksList span.ContributorLink__name",
	Rating:      "div.RatingStatistics__rating",
	ReviewCount: `a[href*="#CommunityReviews"]`,
	Published:   `[data-testid="publicationInfo"]`,
	Genre:       `div[data-testid="genresList"] a.Button--tag span.Button__labelItem`,
}

// ParseMetadata reads book metadata from a rendered main page. Missing
// fields are set to NotFound.
func ParseMetadata(doc string) (Metadata, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return MissingMetadata(), fmt.Errorf("parse book page: %w", err)
	}
	sel := DefaultMetadataSelectors
	md := Metadata{
		Author:       joinTexts(root.Find(sel.Author)),
		AvgRating:    firstText(root.Find(sel.Rating)),
		TotalReviews: NotFound,
		ReleaseDate:  NotFound,
		Genres:       joinTexts(root.Find(sel.Genre)),
	}
	root.Find(sel.ReviewCount).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := reviewCountsPattern.FindStringSubmatch(s.Text()); m != nil {
			md.TotalReviews = strings.ReplaceAll(m[1], ",", "")
			return false
		}
		return true
	})
	if pub := firstText(root.Find(sel.Published)); pub != NotFound {
		if pub = strings.TrimSpace(strings.TrimPrefix(pub, "First published ")); pub != "" {
			md.ReleaseDate = pub
		}
	}
	return md, nil
}

// MissingMetadata returns metadata with every field set to NotFound.
func MissingMetadata() Metadata {
	return Metadata{
		Author:       NotFound,
		AvgRating:    NotFound,
		TotalReviews: NotFound,
		ReleaseDate:  NotFound,
		Genres:       NotFound,
	}
}

func firstText(s *goquery.Selection) string {
	if text := strings.TrimSpace(s.First().Text()); text != "" {
		return text
	}
	return NotFound
}

func joinTexts(s *goquery.Selection) string {
	var parts []string
	s.Each(func(_ int, item *goquery.Selection) {
		if text := strings.TrimSpace(item.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return NotFound
	}
	return strings.Join(parts, " | ")
}
