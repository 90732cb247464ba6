package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/cirruslabs/imagecache/internal/blob/memory"
	"github.com/cirruslabs/imagecache/internal/feed"
	"github.com/cirruslabs/imagecache/internal/imagecache"
	"github.com/cirruslabs/imagecache/internal/objecturl"
	"github.com/cirruslabs/imagecache/internal/profile"
	"github.com/cirruslabs/imagecache/internal/server"
	"github.com/cirruslabs/imagecache/internal/session"
	"github.com/cirruslabs/imagecache/internal/signedurl"
	"github.com/cirruslabs/imagecache/internal/testutil"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	origin  *testutil.Origin
	backend *testutil.Backend
	cache   *imagecache.Cache
	feed    *feed.Cache
	session *session.Session

	baseURL    string
	httpClient *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	origin := testutil.NewOrigin(t)
	backend := testutil.NewBackend(t, origin)

	registry, err := objecturl.New(memory.New())
	require.NoError(t, err)

	cache := imagecache.New(registry)
	sess := session.New()
	signer := signedurl.NewClient(backend.URL, signedurl.WithTokenFunc(sess.Token))
	feedCache := feed.New(backend.URL, feed.WithSigner(signer), feed.WithTokenFunc(sess.Token))
	profileCache := profile.New(backend.URL, profile.WithTokenFunc(sess.Token))

	sess.OnLogout(cache.InvalidateAll)
	sess.OnLogout(profileCache.Clear)
	cache.OnInvalidateAll(feedCache.ClearAll)

	imageCacheServer, err := server.New("127.0.0.1:0", registry, cache, signedurl.NewRefresher(cache, signer),
		server.WithSession(sess),
		server.WithFeed(feedCache),
		server.WithProfile(profileCache),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = imageCacheServer.Run(ctx)
	}()

	return &fixture{
		origin:  origin,
		backend: backend,
		cache:   cache,
		feed:    feedCache,
		session: sess,
		baseURL: "http://" + imageCacheServer.Addr(),
		httpClient: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (f *fixture) do(t *testing.T, method string, path string, body string) *http.Response {
	t.Helper()

	request, err := http.NewRequest(method, f.baseURL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := f.httpClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	return resp
}

func (f *fixture) image(t *testing.T, query url.Values) *http.Response {
	t.Helper()

	return f.do(t, http.MethodGet, "/images?"+query.Encode(), "")
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(body)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", readBody(t, resp))
}

func TestImageIsServedFromHandle(t *testing.T) {
	f := newFixture(t)

	resp := f.image(t, url.Values{"url": {f.origin.URL("/a.png")}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, objecturl.DefaultBaseURL), location)

	resp = f.do(t, http.MethodGet, location, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.Equal(t, "image:/a.png?", readBody(t, resp))

	// Second request is a cache hit
	resp = f.image(t, url.Values{"url": {f.origin.URL("/a.png")}})
	require.Equal(t, location, resp.Header.Get("Location"))
	require.Equal(t, 1, f.origin.Hits("/a.png"))
}

func TestExpiredImageIsRecovered(t *testing.T) {
	f := newFixture(t)

	query := url.Values{
		"url":     {f.origin.SignedURL("post-1.png")},
		"post_id": {"1"},
	}

	f.origin.Rotate("second")

	resp := f.image(t, query)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Location"), objecturl.DefaultBaseURL))
	require.Equal(t, 1, f.backend.Requests())
}

func TestImageFallsBackToSource(t *testing.T) {
	f := newFixture(t)

	resp := f.image(t, url.Values{"url": {f.origin.URL("/missing/a.png")}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, f.origin.URL("/missing/a.png"), resp.Header.Get("Location"))
	require.Equal(t, 0, f.cache.Len())
}

func TestImageRequiresResource(t *testing.T) {
	f := newFixture(t)

	resp := f.image(t, url.Values{"key": {"a"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImageRecover(t *testing.T) {
	f := newFixture(t)

	query := url.Values{
		"url":     {f.origin.SignedURL("post-1.png")},
		"post_id": {"1"},
	}

	resp := f.do(t, http.MethodPost, "/images/recover?"+query.Encode(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		URL       string `json:"url"`
		Cached    bool   `json:"cached"`
		Recovered bool   `json:"recovered"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.True(t, result.Cached)
	require.True(t, result.Recovered)
	require.True(t, strings.HasPrefix(result.URL, objecturl.DefaultBaseURL))

	// Recovery failure degrades to the source URL
	query = url.Values{
		"url":     {f.origin.SignedURL("post-broken.png")},
		"post_id": {"broken"},
	}

	resp = f.do(t, http.MethodPost, "/images/recover?"+query.Encode(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.False(t, result.Cached)
	require.Equal(t, query.Get("url"), result.URL)
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)

	resp := f.image(t, url.Values{"url": {f.origin.URL("/a.png")}})
	location := resp.Header.Get("Location")

	resp = f.do(t, http.MethodDelete, "/images", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/images?"+url.Values{"key": {f.origin.URL("/a.png")}}.Encode(), "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 0, f.cache.Len())

	// The handle is released
	resp = f.do(t, http.MethodGet, location, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidateAll(t *testing.T) {
	f := newFixture(t)

	f.image(t, url.Values{"url": {f.origin.URL("/a.png")}})
	f.image(t, url.Values{"url": {f.origin.URL("/b.png")}})
	require.Equal(t, 2, f.cache.Len())

	resp := f.do(t, http.MethodDelete, "/images/all", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 0, f.cache.Len())
}

func TestInvalidateAllClearsFeed(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.feed.Set(feed.ScopePublic, []feed.Post{{ID: "1"}}))

	resp := f.do(t, http.MethodGet, "/feed/public", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/images/all", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The cached posts are gone, so the backend is asked again
	resp = f.do(t, http.MethodGet, "/feed/public", "")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	f.image(t, url.Values{"url": {f.origin.URL("/a.png")}})
	f.image(t, url.Values{"url": {f.origin.URL("/a.png")}})

	resp := f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats imagecache.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, 1, stats.Entries)
	require.Equal(t, imagecache.DefaultCapacity, stats.Capacity)
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 1, stats.Misses)
	require.EqualValues(t, len("image:/a.png?"), stats.Bytes)
}

func TestSession(t *testing.T) {
	f := newFixture(t)

	// No token yet
	resp := f.do(t, http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/session/token", `{"token": ""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/session/token", `{"token": "secret"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "secret", f.session.Token())

	// The backend used in tests knows nothing about profiles
	resp = f.do(t, http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"auth": {}, "metrics": {}}`, readBody(t, resp))

	// Logging out drops the cached images
	f.image(t, url.Values{"url": {f.origin.URL("/a.png")}})
	require.Equal(t, 1, f.cache.Len())

	resp = f.do(t, http.MethodPost, "/session/logout", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, 0, f.cache.Len())
	require.Empty(t, f.session.Token())
}

func TestFeed(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/feed/friends", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The backend used in tests doesn't serve posts
	resp = f.do(t, http.MethodGet, "/feed/public", "")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/feed/public", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
