package server

import (
	"errors"
	"net/http"

	"github.com/cirruslabs/imagecache/internal/profile"
	"github.com/cirruslabs/imagecache/internal/server/fail"
	"github.com/labstack/echo/v4"
)

func (server *Server) handleProfileGet(c echo.Context) error {
	p, err := server.profile.Get(c.Request().Context())
	if err != nil {
		if errors.Is(err, profile.ErrNoToken) || errors.Is(err, profile.ErrUnauthorized) {
			return fail.Fail(c, http.StatusUnauthorized, "%v", err)
		}

		return fail.Fail(c, http.StatusBadGateway, "failed to load profile: %v", err)
	}

	return c.JSON(http.StatusOK, p)
}

func (server *Server) handleProfileClear(c echo.Context) error {
	server.profile.Clear()

	return c.NoContent(http.StatusNoContent)
}
