package server

import (
	"errors"
	"net/http"

	"github.com/cirruslabs/imagecache/internal/feed"
	"github.com/cirruslabs/imagecache/internal/server/fail"
	"github.com/labstack/echo/v4"
)

func (server *Server) handleFeedGet(c echo.Context) error {
	scope, err := feed.ParseScope(c.Param("scope"))
	if err != nil {
		return fail.Fail(c, http.StatusNotFound, "%v", err)
	}

	posts, err := server.feed.Get(c.Request().Context(), scope)
	if err != nil {
		if errors.Is(err, feed.ErrFetchFailed) {
			return fail.Fail(c, http.StatusBadGateway, "%v", err)
		}

		return err
	}

	return c.JSON(http.StatusOK, posts)
}

func (server *Server) handleFeedClear(c echo.Context) error {
	scope, err := feed.ParseScope(c.Param("scope"))
	if err != nil {
		return fail.Fail(c, http.StatusNotFound, "%v", err)
	}

	server.feed.Clear(scope)

	return c.NoContent(http.StatusNoContent)
}
