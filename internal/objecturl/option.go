package objecturl

import "go.uber.org/zap"

type Option func(registry *Registry)

// WithBaseURL sets the prefix of issued handle URLs, e.g. "http://127.0.0.1:8080/blobs/".
func WithBaseURL(baseURL string) Option {
	return func(registry *Registry) {
		registry.baseURL = baseURL
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(registry *Registry) {
		registry.logger = logger
	}
}
