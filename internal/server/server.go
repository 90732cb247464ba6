package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/brpaz/echozap"
	"github.com/cirruslabs/imagecache/internal/feed"
	"github.com/cirruslabs/imagecache/internal/imagecache"
	"github.com/cirruslabs/imagecache/internal/objecturl"
	"github.com/cirruslabs/imagecache/internal/profile"
	"github.com/cirruslabs/imagecache/internal/session"
	"github.com/cirruslabs/imagecache/internal/signedurl"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Server exposes the image cache to a local renderer over HTTP.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	echo       *echo.Echo
	logger     *zap.SugaredLogger

	registry  *objecturl.Registry
	cache     *imagecache.Cache
	refresher *signedurl.Refresher
	session   *session.Session
	feed      *feed.Cache
	profile   *profile.Cache
}

func New(
	addr string,
	registry *objecturl.Registry,
	cache *imagecache.Cache,
	refresher *signedurl.Refresher,
	opts ...Option,
) (*Server, error) {
	server := &Server{
		registry:  registry,
		cache:     cache,
		refresher: refresher,
	}

	// Listen on the desired port
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server.listener = listener

	// Apply options
	for _, opt := range opts {
		opt(server)
	}

	// Apply defaults
	if server.logger == nil {
		server.logger = zap.NewNop().Sugar()
	}

	if server.session == nil {
		server.session = session.New()
	}

	// Configure routes
	server.echo = echo.New()
	server.echo.HideBanner = true
	server.echo.HidePort = true
	server.echo.Use(echozap.ZapLogger(server.logger.Desugar()))

	server.echo.GET("/health", server.handleHealth)
	server.echo.GET("/stats", server.handleStats)

	server.echo.GET(objecturl.DefaultBaseURL+":token", server.handleBlob)

	server.echo.GET("/images", server.handleImage)
	server.echo.POST("/images/recover", server.handleImageRecover)
	server.echo.DELETE("/images", server.handleImageInvalidate)
	server.echo.DELETE("/images/all", server.handleImageInvalidateAll)

	server.echo.PUT("/session/token", server.handleSessionToken)
	server.echo.POST("/session/logout", server.handleSessionLogout)

	if server.feed != nil {
		server.echo.GET("/feed/:scope", server.handleFeedGet)
		server.echo.DELETE("/feed/:scope", server.handleFeedClear)
	}

	if server.profile != nil {
		server.echo.GET("/profile", server.handleProfileGet)
		server.echo.DELETE("/profile", server.handleProfileClear)
	}

	// Configure HTTP server
	server.httpServer = &http.Server{
		Handler:           server.echo,
		ReadHeaderTimeout: 30 * time.Second,
	}

	return server, nil
}

func (server *Server) Addr() string {
	return strings.ReplaceAll(server.listener.Addr().String(), "[::]", "127.0.0.1")
}

// Handler is useful for serving the routes without listening.
func (server *Server) Handler() http.Handler {
	return server.echo
}

func (server *Server) Run(ctx context.Context) error {
	server.logger.Infof("listening on %s", server.Addr())

	go func() {
		<-ctx.Done()

		_ = server.httpServer.Close()
	}()

	if err := server.httpServer.Serve(server.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (server *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "healthy")
}

func (server *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, server.cache.Stats())
}
