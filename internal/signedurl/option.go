package signedurl

import (
	"net/http"

	"github.com/cirruslabs/imagecache/internal/keyrule"
	"go.uber.org/zap"
)

type ClientOption func(client *Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

// WithToken makes the client authenticate with a static bearer token.
func WithToken(token string) ClientOption {
	return func(client *Client) {
		client.token = func() string {
			return token
		}
	}
}

// WithTokenFunc makes the client ask for the current bearer token on every request.
func WithTokenFunc(token func() string) ClientOption {
	return func(client *Client) {
		client.token = token
	}
}

func WithClientLogger(logger *zap.SugaredLogger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

type RefresherOption func(refresher *Refresher)

func WithRules(rules keyrule.Rules) RefresherOption {
	return func(refresher *Refresher) {
		refresher.rules = rules
	}
}

func WithRefresherLogger(logger *zap.SugaredLogger) RefresherOption {
	return func(refresher *Refresher) {
		refresher.logger = logger
	}
}
