package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Origin is an image server for tests. Paths under /missing/ answer with
// 404, paths under /private/ require the "sig" query parameter to match
// the current signature and everything else is served as a PNG.
type Origin struct {
	*httptest.Server

	mtx       sync.Mutex
	hits      map[string]int
	gates     map[string]*Gate
	signature string
}

// Gate holds requests to a path until released.
type Gate struct {
	Arrived chan struct{}
	Aborted chan struct{}

	release chan struct{}
	once    sync.Once
}

func (gate *Gate) Release() {
	gate.once.Do(func() {
		close(gate.release)
	})
}

func NewOrigin(t *testing.T) *Origin {
	t.Helper()

	origin := &Origin{
		hits:      map[string]int{},
		gates:     map[string]*Gate{},
		signature: "initial",
	}

	origin.Server = httptest.NewServer(http.HandlerFunc(origin.serveHTTP))
	t.Cleanup(origin.Server.Close)

	return origin
}

func (origin *Origin) URL(path string) string {
	return origin.Server.URL + path
}

// SignedURL returns a URL for the private object at path
// carrying the current signature.
func (origin *Origin) SignedURL(path string) string {
	origin.mtx.Lock()
	defer origin.mtx.Unlock()

	return fmt.Sprintf("%s/private/%s?sig=%s", origin.Server.URL, strings.TrimPrefix(path, "/"), origin.signature)
}

// Rotate expires every signature handed out so far.
func (origin *Origin) Rotate(signature string) {
	origin.mtx.Lock()
	defer origin.mtx.Unlock()

	origin.signature = signature
}

func (origin *Origin) Hits(path string) int {
	origin.mtx.Lock()
	defer origin.mtx.Unlock()

	return origin.hits[path]
}

func (origin *Origin) Block(path string) *Gate {
	origin.mtx.Lock()
	defer origin.mtx.Unlock()

	gate := &Gate{
		Arrived: make(chan struct{}, 128),
		Aborted: make(chan struct{}, 128),
		release: make(chan struct{}),
	}

	origin.gates[path] = gate

	return gate
}

func (origin *Origin) serveHTTP(writer http.ResponseWriter, request *http.Request) {
	origin.mtx.Lock()
	origin.hits[request.URL.Path]++
	gate := origin.gates[request.URL.Path]
	signature := origin.signature
	origin.mtx.Unlock()

	if gate != nil {
		gate.Arrived <- struct{}{}

		select {
		case <-gate.release:
		case <-request.Context().Done():
			gate.Aborted <- struct{}{}

			return
		}
	}

	switch {
	case strings.HasPrefix(request.URL.Path, "/missing/"):
		writer.WriteHeader(http.StatusNotFound)

		return
	case strings.HasPrefix(request.URL.Path, "/private/"):
		if request.URL.Query().Get("sig") != signature {
			writer.WriteHeader(http.StatusForbidden)

			return
		}
	}

	writer.Header().Set("Content-Type", "image/png")
	writer.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(writer, "image:%s?%s", request.URL.Path, request.URL.RawQuery)
}
