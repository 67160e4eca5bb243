package sitegraph

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/": `<html><head><title>Home</title></head><body>
			<a href="/about/">About us</a>
			<a href="/products?b=2&a=1#top">Products</a>
			<a href="/products?a=1&b=2">Products again</a>
			<a href="/missing">Broken</a>
			<a href="/logo.png">Logo</a>
			<a href="mailto:hi@example.com">Mail</a>
			<a href="https://elsewhere.example.org/">Elsewhere</a>
		</body></html>`,
		"/about": `<html><head><title>About</title></head><body><a href="/about/team">Team</a><a href="/">Home</a></body></html>`,
		"/products": `<html><head><title>Products</title></head><body><a href="/products/deep">Deep</a></body></html>`,
		"/about/team": `<html><head><title>Team</title></head><body><a href="/about/team/history">History</a></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCrawler_BuildSiteGraph(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	c := NewCrawler(Config{MaxDepth: 1, MaxPages: 50, MaxInFlight: 2}, zap.NewNop())

	g, err := c.BuildSiteGraph(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/", g.Seed())

	seed, ok := g.Node(g.Seed())
	require.True(t, ok)
	require.True(t, seed.Fetched)
	require.Equal(t, "Home", seed.Title)
	require.Equal(t, []string{
		srv.URL + "/about",
		srv.URL + "/products?a=1&b=2",
		srv.URL + "/missing",
	}, seed.Outgoing)

	about, ok := g.Node(srv.URL + "/about")
	require.True(t, ok)
	require.True(t, about.Fetched)
	require.Equal(t, "About", about.Title)
	require.Equal(t, []string{"About us"}, about.AnchorTexts)

	products, _ := g.Node(srv.URL + "/products?a=1&b=2")
	require.Equal(t, []string{"Products", "Products again"}, products.AnchorTexts)

	missing, _ := g.Node(srv.URL + "/missing")
	require.True(t, missing.Failed)

	team, ok := g.Node(srv.URL + "/about/team")
	require.True(t, ok, "depth-2 link is discovered")
	require.False(t, team.Fetched, "depth-2 link is not fetched")
	_, ok = g.Node(srv.URL + "/about/team/history")
	require.False(t, ok)

	keys := SelectKeyPages(g, []string{"about"}, 3)
	require.Equal(t, []string{srv.URL + "/", srv.URL + "/about", srv.URL + "/about/team"}, keys)
}

func TestCrawler_MaxPagesBoundsFetches(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	c := NewCrawler(Config{MaxDepth: 3, MaxPages: 1}, zap.NewNop())

	g, err := c.BuildSiteGraph(context.Background(), srv.URL)
	require.NoError(t, err)
	fetched := 0
	for _, n := range g.Nodes() {
		if n.Fetched {
			fetched++
		}
	}
	require.Equal(t, 1, fetched)
}

func TestCrawler_UnreachableSeedFailsFast(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := NewCrawler(Config{}, zap.NewNop())

	_, err := c.BuildSiteGraph(context.Background(), srv.URL)
	require.ErrorIs(t, err, seo.ErrCrawl)

	_, err = c.BuildSiteGraph(context.Background(), "not a url")
	require.ErrorIs(t, err, seo.ErrCrawl)
}

func TestCrawler_CanceledContext(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCrawler(Config{}, zap.NewNop()).BuildSiteGraph(ctx, srv.URL)
	require.ErrorIs(t, err, seo.ErrCrawl)
	require.ErrorIs(t, err, context.Canceled)
}

// hostRoutedTransport sends every request to srv whatever host the URL names.
func hostRoutedTransport(srv *httptest.Server) *http.Transport {
	addr := srv.Listener.Addr().String()
	return &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}

func TestCrawler_SeedRedirectToWWW(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host != "www.example.test" {
			http.Redirect(w, r, "http://www.example.test"+r.URL.Path, http.StatusMovedPermanently)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			_, _ = fmt.Fprint(w, `<html><head><title>Home</title></head><body>
				<a href="/about">About</a>
				<a href="http://www.example.test/">Home again</a>
				<a href="http://other.test/">Other</a>
			</body></html>`)
		case "/about":
			_, _ = fmt.Fprint(w, `<html><head><title>About</title></head><body></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewCrawler(Config{MaxDepth: 1, Transport: hostRoutedTransport(srv)}, zap.NewNop())
	g, err := c.BuildSiteGraph(context.Background(), "http://example.test/")
	require.NoError(t, err)
	require.Equal(t, "http://example.test/", g.Seed())

	seed, ok := g.Node(g.Seed())
	require.True(t, ok)
	require.True(t, seed.Fetched)
	require.Equal(t, "Home", seed.Title)
	require.Equal(t, []string{"http://www.example.test/about"}, seed.Outgoing)

	about, ok := g.Node("http://www.example.test/about")
	require.True(t, ok)
	require.True(t, about.Fetched)
	_, ok = g.Node("http://www.example.test/")
	require.False(t, ok, "landing URL folds onto the seed")
	_, ok = g.Node("http://other.test/")
	require.False(t, ok)
}

func TestWWWTwin(t *testing.T) {
	t.Parallel()

	require.Equal(t, "www.example.test", wwwTwin("example.test"))
	require.Equal(t, "example.test", wwwTwin("www.example.test"))
}
