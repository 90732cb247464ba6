package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Backend issues signed URLs for objects of an Origin the way the product's
// API does. Post "broken" and objects under gs://broken/ fail with HTTP 500.
type Backend struct {
	*httptest.Server

	origin *Origin

	mtx            sync.Mutex
	requests       int
	authorizations []string
}

func NewBackend(t *testing.T, origin *Origin) *Backend {
	t.Helper()

	backend := &Backend{
		origin: origin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /posts/{id}/signed-url", backend.handlePost)
	mux.HandleFunc("GET /media/signed-url", backend.handleMedia)

	backend.Server = httptest.NewServer(mux)
	t.Cleanup(backend.Server.Close)

	return backend
}

func (backend *Backend) Requests() int {
	backend.mtx.Lock()
	defer backend.mtx.Unlock()

	return backend.requests
}

func (backend *Backend) Authorizations() []string {
	backend.mtx.Lock()
	defer backend.mtx.Unlock()

	return append([]string{}, backend.authorizations...)
}

func (backend *Backend) record(request *http.Request) {
	backend.mtx.Lock()
	defer backend.mtx.Unlock()

	backend.requests++
	backend.authorizations = append(backend.authorizations, request.Header.Get("Authorization"))
}

func (backend *Backend) handlePost(writer http.ResponseWriter, request *http.Request) {
	backend.record(request)

	id := request.PathValue("id")
	if id == "broken" {
		writer.WriteHeader(http.StatusInternalServerError)

		return
	}

	writeJSON(writer, map[string]string{
		"signed_url": backend.origin.SignedURL("post-" + id + ".png"),
	})
}

func (backend *Backend) handleMedia(writer http.ResponseWriter, request *http.Request) {
	backend.record(request)

	withoutScheme, ok := strings.CutPrefix(request.URL.Query().Get("gcs_uri"), "gs://")
	if !ok || strings.HasPrefix(withoutScheme, "broken/") {
		writer.WriteHeader(http.StatusInternalServerError)

		return
	}

	_, object, _ := strings.Cut(withoutScheme, "/")

	writeJSON(writer, map[string]string{
		"authenticated_url": backend.origin.SignedURL(object),
	})
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(writer).Encode(value)
}
