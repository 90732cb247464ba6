package signedurl

import (
	"context"
	"net/url"
	"strings"

	"github.com/cirruslabs/imagecache/internal/keyrule"
)

const publicStorageBaseURL = "https://storage.googleapis.com/"

// Resource identifies an image both logically (by post or object URI)
// and by the URL it is currently displayed from.
type Resource struct {
	PostID    string
	ObjectURI string
	URL       string

	// Key overrides the cache key derived from ObjectURI or URL.
	Key string
}

type Signer interface {
	SignedURL(ctx context.Context, resource Resource) (string, error)
}

// StableKey is the cache key of the resource. It doesn't depend on
// the signature, so every re-signed URL maps to the same slot.
func (resource Resource) StableKey(rules keyrule.Rules) string {
	if resource.Key != "" {
		return resource.Key
	}

	if resource.ObjectURI != "" {
		return rules.StableKey(ResolveGCS(resource.ObjectURI))
	}

	return rules.StableKey(resource.URL)
}

// ResolveGCS rewrites a gs://bucket/object URI into the public bucket URL.
// HTTP(S) URLs and anything it can't parse are returned unchanged.
func ResolveGCS(uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}

	withoutScheme, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return uri
	}

	bucket, object, ok := strings.Cut(withoutScheme, "/")
	if !ok || bucket == "" {
		return uri
	}

	objectURL := url.URL{Path: object}

	return publicStorageBaseURL + bucket + "/" + strings.TrimPrefix(objectURL.EscapedPath(), "/")
}
