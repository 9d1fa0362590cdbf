package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func page(body string) string {
	return "<!doctype html><html><body>" + body + "</body></html>"
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/search?q=kafka":        page(`<a class="listTitle" href="/list/show/1">L1</a><a class="listTitle" href="/list/show/2">L2</a><a class="next_page" href="/search?q=kafka&page=2">next</a>`),
		"/search?q=kafka&page=2": page(`<a class="listTitle" href="/list/show/3">L3</a><a class="listTitle" href="/list/show/1">L1 again</a>`),
		"/list/show/1":           page(`<a class="bookTitle" href="/book/show/1.A">A</a><a class="bookTitle" href="/book/show/2.B">B</a><a class="next_page" href="/list/show/1?page=2">next</a>`),
		"/list/show/1?page=2":    page(`<a class="bookTitle" href="/book/show/3.C">C</a><a class="next_page" href="/list/show/1">loop</a>`),
		"/list/show/2":           page(`<a class="bookTitle" href="/book/show/2.B">B</a><a class="bookTitle" href="/book/show/4.D">D</a>`),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawlerRun(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	c := New(Config{}, zap.NewNop())

	res, err := c.Run(context.Background(), srv.URL+"/search?q=kafka")
	require.NoError(t, err)

	assert.Equal(t, 2, res.SearchPages)
	assert.Equal(t, []string{srv.URL + "/list/show/1", srv.URL + "/list/show/2", srv.URL + "/list/show/3"}, res.Lists)
	assert.Equal(t, []string{
		srv.URL + "/book/show/1.A",
		srv.URL + "/book/show/2.B",
		srv.URL + "/book/show/3.C",
		srv.URL + "/book/show/4.D",
	}, res.Works)
}

func TestCrawlerMaxPages(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	c := New(Config{MaxSearchPages: 1, MaxListPages: 1}, nil)

	res, err := c.Run(context.Background(), srv.URL+"/search?q=kafka")
	require.NoError(t, err)
	assert.Equal(t, 1, res.SearchPages)
	assert.Len(t, res.Lists, 2)
	for _, w := range res.Works {
		assert.False(t, strings.HasSuffix(w, "3.C"), "second list page must not be crawled")
	}
}

func TestCrawlerSearchFailure(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	_, err := New(Config{}, nil).Run(context.Background(), srv.URL+"/nope")
	require.Error(t, err)
}

func TestCrawlerRunFile(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	out := filepath.Join(t.TempDir(), "works.txt")
	res, err := New(Config{}, nil).RunFile(context.Background(), srv.URL+"/search?q=kafka", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(res.Works, "\n")+"\n", string(data))
}

func TestCrawlerCanceled(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}, nil).Run(ctx, srv.URL+"/search?q=kafka")
	require.Error(t, err)
}
