package signedurl_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cirruslabs/imagecache/internal/signedurl"
	"github.com/cirruslabs/imagecache/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestClientPost(t *testing.T) {
	origin := testutil.NewOrigin(t)
	backend := testutil.NewBackend(t, origin)

	client := signedurl.NewClient(backend.URL+"/", signedurl.WithToken("secret"))

	signedURL, err := client.SignedURL(context.Background(), signedurl.Resource{PostID: "42"})
	require.NoError(t, err)
	require.Equal(t, origin.SignedURL("post-42.png"), signedURL)
	require.Equal(t, []string{"Bearer secret"}, backend.Authorizations())
}

func TestClientMedia(t *testing.T) {
	origin := testutil.NewOrigin(t)
	backend := testutil.NewBackend(t, origin)

	// No token, no Authorization header
	client := signedurl.NewClient(backend.URL)

	signedURL, err := client.SignedURL(context.Background(), signedurl.Resource{ObjectURI: "gs://bucket/dir/a.png"})
	require.NoError(t, err)
	require.Equal(t, origin.SignedURL("dir/a.png"), signedURL)
	require.Equal(t, []string{""}, backend.Authorizations())
}

func TestClientTokenFunc(t *testing.T) {
	origin := testutil.NewOrigin(t)
	backend := testutil.NewBackend(t, origin)

	token := "first"
	client := signedurl.NewClient(backend.URL, signedurl.WithTokenFunc(func() string {
		return token
	}))

	_, err := client.SignedURL(context.Background(), signedurl.Resource{PostID: "1"})
	require.NoError(t, err)

	token = "second"

	_, err = client.SignedURL(context.Background(), signedurl.Resource{PostID: "1"})
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer first", "Bearer second"}, backend.Authorizations())
}

func TestClientFailures(t *testing.T) {
	origin := testutil.NewOrigin(t)
	backend := testutil.NewBackend(t, origin)

	client := signedurl.NewClient(backend.URL)

	// Non-2xx
	_, err := client.SignedURL(context.Background(), signedurl.Resource{PostID: "broken"})
	require.ErrorIs(t, err, signedurl.ErrSignedURLRequestFailed)

	// Nothing to sign
	_, err = client.SignedURL(context.Background(), signedurl.Resource{URL: "https://example.com/a.png"})
	require.ErrorIs(t, err, signedurl.ErrSignedURLRequestFailed)
	require.ErrorIs(t, err, signedurl.ErrUnsupportedResource)

	// Unreachable backend
	_, err = signedurl.NewClient("http://127.0.0.1:1").SignedURL(context.Background(),
		signedurl.Resource{PostID: "1"})
	require.ErrorIs(t, err, signedurl.ErrSignedURLRequestFailed)
}

func TestClientResponseFields(t *testing.T) {
	for body, expected := range map[string]string{
		`{"signed_url": "https://a", "url": "https://b"}`:        "https://a",
		`{"url": "https://b", "authenticated_url": "https://c"}`: "https://b",
		`{"authenticated_url": "https://c"}`:                     "https://c",
	} {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			_, _ = writer.Write([]byte(body))
		}))

		signedURL, err := signedurl.NewClient(server.URL).SignedURL(context.Background(),
			signedurl.Resource{PostID: "1"})
		require.NoError(t, err)
		require.Equal(t, expected, signedURL)

		server.Close()
	}

	for _, body := range []string{`{}`, `not json`} {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			_, _ = writer.Write([]byte(body))
		}))

		_, err := signedurl.NewClient(server.URL).SignedURL(context.Background(),
			signedurl.Resource{PostID: "1"})
		require.ErrorIs(t, err, signedurl.ErrSignedURLRequestFailed)

		server.Close()
	}
}

func TestPresigner(t *testing.T) {
	presigner, err := signedurl.NewPresigner(context.Background(), &signedurl.PresignerConfig{
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "us-east-1",
		AccessKeyID:     "key-id",
		AccessKeySecret: "key-secret",
	})
	require.NoError(t, err)

	signedURL, err := presigner.SignedURL(context.Background(), signedurl.Resource{
		ObjectURI: "s3://wardrobe/clothes/shirt.png",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(signedURL, "http://127.0.0.1:9000/wardrobe/clothes/shirt.png?"), signedURL)
	require.Contains(t, signedURL, "X-Amz-Signature=")
	require.Contains(t, signedURL, "X-Amz-Expires=900")

	// Only s3:// URIs are supported
	_, err = presigner.SignedURL(context.Background(), signedurl.Resource{ObjectURI: "gs://bucket/a.png"})
	require.ErrorIs(t, err, signedurl.ErrUnsupportedResource)

	_, err = presigner.SignedURL(context.Background(), signedurl.Resource{ObjectURI: "s3://bucket-only"})
	require.ErrorIs(t, err, signedurl.ErrSignedURLRequestFailed)
}

func TestChain(t *testing.T) {
	origin := testutil.NewOrigin(t)
	backend := testutil.NewBackend(t, origin)

	presigner, err := signedurl.NewPresigner(context.Background(), &signedurl.PresignerConfig{
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "us-east-1",
		AccessKeyID:     "key-id",
		AccessKeySecret: "key-secret",
	})
	require.NoError(t, err)

	chain := signedurl.Chain{presigner, signedurl.NewClient(backend.URL)}

	// gs:// URIs skip the presigner and end up at the backend
	signedURL, err := chain.SignedURL(context.Background(), signedurl.Resource{ObjectURI: "gs://bucket/a.png"})
	require.NoError(t, err)
	require.Equal(t, origin.SignedURL("a.png"), signedURL)

	// s3:// URIs are handled by the presigner alone
	signedURL, err = chain.SignedURL(context.Background(), signedurl.Resource{ObjectURI: "s3://bucket/a.png"})
	require.NoError(t, err)
	require.Contains(t, signedURL, "X-Amz-Signature=")
	require.Equal(t, 1, backend.Requests())

	// Nobody can sign a bare URL
	_, err = chain.SignedURL(context.Background(), signedurl.Resource{URL: "https://example.com/a.png"})
	require.ErrorIs(t, err, signedurl.ErrSignedURLRequestFailed)
}
