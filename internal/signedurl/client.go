package signedurl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/render"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Client asks the backend to re-sign the URL of a post or a media object.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
	logger     *zap.SugaredLogger
}

type signedURLResponse struct {
	SignedURL        string `json:"signed_url"`
	URL              string `json:"url"`
	AuthenticatedURL string `json:"authenticated_url"`
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}

	// Apply options
	for _, opt := range opts {
		opt(client)
	}

	// Apply defaults
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}

	if client.token == nil {
		client.token = func() string {
			return ""
		}
	}

	if client.logger == nil {
		client.logger = zap.NewNop().Sugar()
	}

	return client
}

func (client *Client) SignedURL(ctx context.Context, resource Resource) (string, error) {
	var endpoint string

	switch {
	case resource.PostID != "":
		endpoint = fmt.Sprintf("%s/posts/%s/signed-url", client.baseURL, url.PathEscape(resource.PostID))
	case strings.HasPrefix(resource.ObjectURI, "gs://"):
		endpoint = fmt.Sprintf("%s/media/signed-url?gcs_uri=%s", client.baseURL, url.QueryEscape(resource.ObjectURI))
	default:
		return "", fmt.Errorf("%w: %w: neither post ID nor gs:// URI is set", ErrSignedURLRequestFailed,
			ErrUnsupportedResource)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSignedURLRequestFailed, err)
	}

	request.Header.Set("Accept", "application/json")

	// Provide authorization
	if token := client.token(); token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSignedURLRequestFailed, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected HTTP %d from %s", ErrSignedURLRequestFailed,
			response.StatusCode, endpoint)
	}

	var signedURL signedURLResponse

	if err := render.DecodeJSON(response.Body, &signedURL); err != nil {
		return "", fmt.Errorf("%w: failed to decode response from %s: %w", ErrSignedURLRequestFailed,
			endpoint, err)
	}

	result, ok := lo.Coalesce(signedURL.SignedURL, signedURL.URL, signedURL.AuthenticatedURL)
	if !ok {
		return "", fmt.Errorf("%w: response from %s carries no URL", ErrSignedURLRequestFailed, endpoint)
	}

	client.logger.Debugf("obtained a fresh signed URL from %s", endpoint)

	return result, nil
}
