package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/render"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNoToken      = errors.New("no token")
	ErrUnauthorized = errors.New("unauthorized")
)

// Profile merges the account details with the body metrics of the user.
// A part the backend failed to provide is left empty.
type Profile struct {
	Auth    map[string]any `json:"auth"`
	Metrics map[string]any `json:"metrics"`
}

type Cache struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
	logger     *zap.SugaredLogger

	group singleflight.Group

	mtx        sync.Mutex
	profile    *Profile
	generation uint64
}

func New(baseURL string, opts ...Option) *Cache {
	cache := &Cache{
		baseURL: strings.TrimSuffix(baseURL, "/"),
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

// Get returns the cached profile, loading it on the first call.
func (cache *Cache) Get(ctx context.Context) (*Profile, error) {
	token := cache.token()
	if token == "" {
		return nil, ErrNoToken
	}

	cache.mtx.Lock()
	profile := cache.profile
	generation := cache.generation
	cache.mtx.Unlock()

	if profile != nil {
		return profile, nil
	}

	resultCh := cache.group.DoChan(fmt.Sprintf("profile/%d", generation), func() (interface{}, error) {
		profile, err := cache.fetch(context.WithoutCancel(ctx), token)
		if err != nil {
			return nil, err
		}

		cache.mtx.Lock()
		defer cache.mtx.Unlock()

		if cache.generation == generation {
			cache.profile = profile
		}

		return profile, nil
	})

	select {
	case result := <-resultCh:
		if result.Err != nil {
			return nil, result.Err
		}

		return result.Val.(*Profile), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Set replaces the cached profile, nil clears it.
func (cache *Cache) Set(profile *Profile) {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	cache.generation++

	if profile != nil {
		copied := *profile
		profile = &copied
	}

	cache.profile = profile
}

func (cache *Cache) Clear() {
	cache.Set(nil)
}

func (cache *Cache) fetch(ctx context.Context, token string) (*Profile, error) {
	var profile Profile

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		auth, err := cache.fetchObject(ctx, "/auth/me", token)
		profile.Auth = auth

		return err
	})

	group.Go(func() error {
		metrics, err := cache.fetchObject(ctx, "/me/body_metrics", token)
		profile.Metrics = metrics

		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return &profile, nil
}

func (cache *Cache) fetchObject(ctx context.Context, path string, token string) (map[string]any, error) {
	url := cache.baseURL + path

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", url, err)
	}

	request.Header.Set("Accept", "application/json")
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := cache.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, url)
	}

	object := map[string]any{}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		cache.logger.Debugf("got HTTP %d from %s, assuming no data", response.StatusCode, url)

		return object, nil
	}

	if err := render.DecodeJSON(response.Body, &object); err != nil || object == nil {
		cache.logger.Debugf("failed to decode response from %s, assuming no data: %v", url, err)

		return map[string]any{}, nil
	}

	return object, nil
}
