package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"newsbrief/internal/fetch"
)

func TestEligible(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://site.com/news/corn-prices-rise", true},
		{"https://site.com/2025/03/01/wheat-harvest-outlook", true},
		{"https://site.com/category/corn", false},
		{"https://site.com/tag/soybeans/", false},
		{"https://site.com/author/jane-doe", false},
		{"https://site.com/search?q=corn", false},
		{"https://site.com/news/page/2", false},
		{"https://site.com/feed/", false},
		{"https://site.com/sitemap.xml", false},
		{"https://site.com/wp-admin/options.php", false},
		{"https://site.com/images/cow.jpg", false},
		{"https://site.com/", false},
		{"https://site.com/abc", false},
		{"mailto:editor@site.com", false},
		{"javascript:void(0)", false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Eligible(c.url), c.url)
	}
}

func TestSameSite(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"https://news.site.com/story", "https://site.com/news", true},
		{"https://www.site.com/story", "https://site.com/news", true},
		{"https://agro.site.co.uk/story", "https://www.site.co.uk/", true},
		{"https://site.co.uk/story", "https://other.co.uk/", false},
		{"https://elsewhere.example/story", "http://127.0.0.1:8080/news", false},
		{"http://127.0.0.1:9000/story", "http://127.0.0.1:8080/news", true},
		{"http://127.0.0.2/story", "http://127.0.0.1/news", false},
	}

	for _, c := range cases {
		a, err := url.Parse(c.a)
		require.NoError(t, err)
		b, err := url.Parse(c.b)
		require.NoError(t, err)
		assert.Equal(t, c.want, sameSite(a, b), c.a+" vs "+c.b)
	}
}

func listingServer(t *testing.T, body func(base string) string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, body(srv.URL))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTMLDiscoverer_RespectsMaxLinks(t *testing.T) {
	srv := listingServer(t, func(string) string {
		return `<html><body>
			<article><a href="/news/corn-prices-rise">Corn</a></article>
			<article><a href="/news/wheat-harvest-starts">Wheat</a></article>
			<article><a href="/news/dairy-exports-grow">Dairy</a></article>
			<article><a href="/news/soy-demand-slows">Soy</a></article>
			<article><a href="/news/cattle-futures-climb">Cattle</a></article>
		</body></html>`
	})

	d := NewHTMLDiscoverer(fetch.New(0, ""), zap.NewNop())
	links := d.Discover(context.Background(), srv.URL+"/news", 3)

	assert.Equal(t, []string{
		srv.URL + "/news/corn-prices-rise",
		srv.URL + "/news/wheat-harvest-starts",
		srv.URL + "/news/dairy-exports-grow",
	}, links)
}

func TestHTMLDiscoverer_FiltersAndDedups(t *testing.T) {
	srv := listingServer(t, func(base string) string {
		return `<html><body>
			<nav><a href="/category/corn">Corn</a><a href="/tag/markets">Markets</a></nav>
			<article>
				<a href="/news/corn-prices-rise#comments">Corn</a>
				<a href="/news/corn-prices-rise">Corn again</a>
				<a href="/author/jane">Jane</a>
			</article>
			<h2><a href="` + base + `/news/grain-storage-tips">Grain</a></h2>
			<h2><a href="https://elsewhere.example/news/offsite-story">Offsite</a></h2>
			<a href="/category/news/">More</a>
		</body></html>`
	})

	d := NewHTMLDiscoverer(fetch.New(0, ""), zap.NewNop())
	links := d.Discover(context.Background(), srv.URL+"/news", 10)

	assert.Equal(t, []string{
		srv.URL + "/news/corn-prices-rise",
		srv.URL + "/news/grain-storage-tips",
	}, links)
}

func TestHTMLDiscoverer_NetworkErrorYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTMLDiscoverer(fetch.New(0, ""), zap.NewNop())
	links := d.Discover(context.Background(), srv.URL, 5)

	require.NotNil(t, links)
	assert.Empty(t, links)
}

func TestFeedDiscoverer(t *testing.T) {
	srv := listingServer(t, func(base string) string {
		return `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Farm news</title>
<item><title>A</title><link>` + base + `/news/first-story</link></item>
<item><title>B</title><link>` + base + `/tag/markets</link></item>
<item><title>C</title><link>` + base + `/news/second-story</link></item>
<item><title>D</title><link>` + base + `/news/third-story</link></item>
</channel></rss>`
	})

	d := NewFeedDiscoverer(fetch.New(0, ""), zap.NewNop())
	links := d.Discover(context.Background(), srv.URL+"/rss", 2)

	assert.Equal(t, []string{
		srv.URL + "/news/first-story",
		srv.URL + "/news/second-story",
	}, links)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	html := NewHTMLDiscoverer(fetch.New(0, ""), zap.NewNop())
	r.Register("listing", html)

	got, err := r.Resolve("listing")
	require.NoError(t, err)
	assert.Same(t, html, got)

	_, err = r.Resolve("feed")
	assert.Error(t, err)
}
