package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cirruslabs/imagecache/internal/signedurl"
	"github.com/go-chi/render"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Scope string

const (
	ScopePublic Scope = "public"
	ScopeMine   Scope = "mine"
)

var (
	ErrUnknownScope = errors.New("unknown feed scope")
	ErrFetchFailed  = errors.New("failed to fetch posts")
)

var endpoints = map[Scope]string{
	ScopePublic: "/posts/?visibility=public&limit=50",
	ScopeMine:   "/posts/?scope=mine&limit=30",
}

func ParseScope(s string) (Scope, error) {
	scope := Scope(s)

	if _, ok := endpoints[scope]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
	}

	return scope, nil
}

// Cache keeps the last loaded post list of each scope for the
// duration of the session.
type Cache struct {
	baseURL    string
	httpClient *http.Client
	signer     signedurl.Signer
	token      func() string
	logger     *zap.SugaredLogger

	group singleflight.Group

	mtx        sync.Mutex
	posts      map[Scope][]Post
	generation map[Scope]uint64
}

func New(baseURL string, opts ...Option) *Cache {
	cache := &Cache{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		posts:      map[Scope][]Post{},
		generation: map[Scope]uint64{},
	}

	// Apply options
	for _, opt := range opts {
		opt(cache)
	}

	// Apply defaults
	if cache.httpClient == nil {
		cache.httpClient = http.DefaultClient
	}

	if cache.token == nil {
		cache.token = func() string {
			return ""
		}
	}

	if cache.logger == nil {
		cache.logger = zap.NewNop().Sugar()
	}

	return cache
}

func (cache *Cache) Public(ctx context.Context) ([]Post, error) {
	return cache.Get(ctx, ScopePublic)
}

func (cache *Cache) Mine(ctx context.Context) ([]Post, error) {
	return cache.Get(ctx, ScopeMine)
}

// Get returns the cached posts of the scope, loading them on the first call.
// Concurrent loads of the same scope share a single request.
func (cache *Cache) Get(ctx context.Context, scope Scope) ([]Post, error) {
	endpoint, ok := endpoints[scope]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}

	cache.mtx.Lock()
	posts, ok := cache.posts[scope]
	generation := cache.generation[scope]
	cache.mtx.Unlock()

	if ok {
		return posts, nil
	}

	flightName := fmt.Sprintf("%s/%d", scope, generation)

	resultCh := cache.group.DoChan(flightName, func() (interface{}, error) {
		cache.mtx.Lock()
		posts, ok := cache.posts[scope]
		cache.mtx.Unlock()

		if ok {
			return posts, nil
		}

		// The request is shared, so it outlives any single caller
		posts, err := cache.fetch(context.WithoutCancel(ctx), endpoint)
		if err != nil {
			return nil, err
		}

		cache.mtx.Lock()
		defer cache.mtx.Unlock()

		// Cleared or overwritten in the meantime
		if cache.generation[scope] == generation {
			cache.posts[scope] = posts
		}

		return posts, nil
	})

	select {
	case result := <-resultCh:
		if result.Err != nil {
			return nil, result.Err
		}

		return result.Val.([]Post), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Set replaces the cached posts of the scope.
func (cache *Cache) Set(scope Scope, posts []Post) error {
	if _, ok := endpoints[scope]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}

	if posts == nil {
		posts = []Post{}
	}

	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	cache.generation[scope]++
	cache.posts[scope] = posts

	return nil
}

// Clear forgets the scope's posts and any load in progress for it.
func (cache *Cache) Clear(scope Scope) {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	cache.generation[scope]++
	delete(cache.posts, scope)
}

func (cache *Cache) ClearAll() {
	for scope := range endpoints {
		cache.Clear(scope)
	}
}

func (cache *Cache) fetch(ctx context.Context, endpoint string) ([]Post, error) {
	url := cache.baseURL + endpoint

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	request.Header.Set("Accept", "application/json")

	if token := cache.token(); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := cache.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

		message := strings.TrimSpace(string(body))
		if message == "" {
			message = response.Status
		}

		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrFetchFailed, response.StatusCode, message)
	}

	var posts []Post

	if err := render.DecodeJSON(response.Body, &posts); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response from %s: %w", ErrFetchFailed, url, err)
	}

	if posts == nil {
		posts = []Post{}
	}

	for i := range posts {
		posts[i].Media = signedurl.ResolveMedia(ctx, cache.signer, posts[i].Media)
	}

	cache.logger.Debugf("loaded %d posts from %s", len(posts), url)

	return posts, nil
}
