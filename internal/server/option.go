package server

import (
	"github.com/cirruslabs/imagecache/internal/feed"
	"github.com/cirruslabs/imagecache/internal/profile"
	"github.com/cirruslabs/imagecache/internal/session"
	"go.uber.org/zap"
)

type Option func(server *Server)

func WithSession(session *session.Session) Option {
	return func(server *Server) {
		server.session = session
	}
}

func WithFeed(feed *feed.Cache) Option {
	return func(server *Server) {
		server.feed = feed
	}
}

func WithProfile(profile *profile.Cache) Option {
	return func(server *Server) {
		server.profile = profile
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(server *Server) {
		server.logger = logger
	}
}
