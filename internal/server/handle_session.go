package server

import (
	"net/http"

	"github.com/cirruslabs/imagecache/internal/server/fail"
	"github.com/go-chi/render"
	"github.com/labstack/echo/v4"
)

type tokenRequest struct {
	Token string `json:"token"`
}

func (server *Server) handleSessionToken(c echo.Context) error {
	var request tokenRequest

	if err := render.DecodeJSON(c.Request().Body, &request); err != nil {
		return fail.Fail(c, http.StatusBadRequest, "failed to decode request: %v", err)
	}

	if request.Token == "" {
		return fail.Fail(c, http.StatusBadRequest, "token cannot be empty, log out instead")
	}

	server.session.SetToken(request.Token)

	return c.NoContent(http.StatusNoContent)
}

func (server *Server) handleSessionLogout(c echo.Context) error {
	server.session.Logout()

	return c.NoContent(http.StatusNoContent)
}
