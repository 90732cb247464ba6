package profile_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cirruslabs/imagecache/internal/profile"
	"github.com/stretchr/testify/require"
)

type backend struct {
	*httptest.Server

	authHits    atomic.Int64
	metricsHits atomic.Int64
}

func newBackend(t *testing.T, metricsStatus int, metricsBody string) *backend {
	t.Helper()

	b := &backend{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/me", func(writer http.ResponseWriter, request *http.Request) {
		b.authHits.Add(1)

		if request.Header.Get("Authorization") != "Bearer secret" {
			writer.WriteHeader(http.StatusUnauthorized)

			return
		}

		_, _ = writer.Write([]byte(`{"username": "alice"}`))
	})
	mux.HandleFunc("GET /me/body_metrics", func(writer http.ResponseWriter, request *http.Request) {
		b.metricsHits.Add(1)

		writer.WriteHeader(metricsStatus)
		_, _ = writer.Write([]byte(metricsBody))
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)

	return b
}

func tokenFunc(token string) profile.Option {
	return profile.WithTokenFunc(func() string {
		return token
	})
}

func TestGet(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"height_cm": 170}`)

	cache := profile.New(b.URL, tokenFunc("secret"))

	p, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "alice", p.Auth["username"])
	require.EqualValues(t, 170, p.Metrics["height_cm"])

	// Served from the cache
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, b.authHits.Load())
	require.EqualValues(t, 1, b.metricsHits.Load())

	cache.Clear()

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, b.authHits.Load())
}

func TestNoToken(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)

	cache := profile.New(b.URL)

	_, err := cache.Get(context.Background())
	require.ErrorIs(t, err, profile.ErrNoToken)
	require.EqualValues(t, 0, b.authHits.Load())
}

func TestUnauthorized(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)

	cache := profile.New(b.URL, tokenFunc("stale"))

	_, err := cache.Get(context.Background())
	require.ErrorIs(t, err, profile.ErrUnauthorized)

	// Either request being rejected is enough
	b = newBackend(t, http.StatusUnauthorized, ``)

	cache = profile.New(b.URL, tokenFunc("secret"))

	_, err = cache.Get(context.Background())
	require.ErrorIs(t, err, profile.ErrUnauthorized)
}

func TestDegradesToEmpty(t *testing.T) {
	for name, b := range map[string]*backend{
		"server error": newBackend(t, http.StatusInternalServerError, `oops`),
		"garbage":      newBackend(t, http.StatusOK, `<html>`),
		"null":         newBackend(t, http.StatusOK, `null`),
	} {
		t.Run(name, func(t *testing.T) {
			cache := profile.New(b.URL, tokenFunc("secret"))

			p, err := cache.Get(context.Background())
			require.NoError(t, err)
			require.Equal(t, "alice", p.Auth["username"])
			require.NotNil(t, p.Metrics)
			require.Empty(t, p.Metrics)
		})
	}
}

func TestSet(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)

	cache := profile.New(b.URL, tokenFunc("secret"))

	cache.Set(&profile.Profile{Auth: map[string]any{"username": "bob"}})

	p, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "bob", p.Auth["username"])
	require.EqualValues(t, 0, b.authHits.Load())
}
