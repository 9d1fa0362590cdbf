package reviews

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewsPage = `<html><body>
<article class="ReviewCard">
  <span class="RatingStars" aria-label="Rating 4 out of 5"></span>
  <a href="https://site/review/show/111">March 3, 2021</a>
  <span class="Formatted">Strange book.<br>Truly kafkaesque from the start.</span>
</article>
<article class="ReviewCard">
  <a href="https://site/review/show/222">May 1, 2022</a>
  <span class="Formatted">Bureaucratic and <b>Kafkaesque</b>.</span>
</article>
<article class="ReviewCard">
  <span class="RatingStars" aria-label="Rating 5 out of 5"></span>
  <a href="https://site/review/show/333">June 9, 2023</a>
  <span class="Formatted">Loved it.</span>
</article>
<article class="ReviewCard">
  <span class="Formatted">No link, kafkaesque anyway.</span>
</article>
</body></html>`

func TestParseReviews(t *testing.T) {
	t.Parallel()

	seen := map[string]struct{}{}
	got, err := ParseReviews(reviewsPage, "kafkaesque", "The Trial", 500, seen)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, Review{
		BookName: "The Trial",
		ReviewID: "https://site/review/show/111",
		Stars:    "4",
		Date:     "March 3, 2021",
		Context:  "Truly kafkaesque from the start.",
	}, got[0])
	assert.Equal(t, NotRated, got[1].Stars)
	assert.Equal(t, "Bureaucratic and Kafkaesque.", got[1].Context)
	assert.Len(t, seen, 2)

	again, err := ParseReviews(reviewsPage, "kafkaesque", "The Trial", 500, seen)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestBookName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"https://site/book/show/123.The_Trial", "The Trial"},
		{"https://site/book/show/123-the-castle?from=x", "the castle"},
		{"https://site/book/show/123", "URL_ID_123"},
		{"https://site/author/9", "URL_Parse_Error_For_https://site/author/9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BookName(tt.in), tt.in)
	}
}

func TestMainURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://site/book/show/1.X", MainURL("https://site/book/show/1.X/reviews"))
	assert.Equal(t, "https://site/book/show/1.X", MainURL("https://site/book/show/1.X"))
}

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	page := `<html><body><div class="BookPage__mainContent">
<div class="ContributorLinksList">
  <span class="ContributorLink__name">Franz Kafka</span>
  <span class="ContributorLink__name">Willa Muir</span>
</div>
<div class="RatingStatistics__rating">3.98</div>
<a href="#CommunityReviews">12,345 ratings</a>
<a href="#CommunityReviews">6,789 reviews</a>
<p data-testid="publicationInfo">First published April 26, 1925</p>
<div data-testid="genresList">
  <a class="Button--tag"><span class="Button__labelItem">Classics</span></a>
  <a class="Button--tag"><span class="Button__labelItem">Fiction</span></a>
</div>
</div></body></html>`

	md, err := ParseMetadata(page)
	require.NoError(t, err)
	assert.Equal(t, Metadata{
		Author:       "Franz Kafka | Willa Muir",
		AvgRating:    "3.98",
		TotalReviews: "6789",
		ReleaseDate:  "April 26, 1925",
		Genres:       "Classics | Fiction",
	}, md)
}

func TestParseMetadataMissingFields(t *testing.T) {
	t.Parallel()

	md, err := ParseMetadata(`<html><body><div class="BookPage__mainContent"></div></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, MissingMetadata(), md)
}
