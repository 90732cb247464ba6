package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/cirruslabs/imagecache/internal/server/fail"
	"github.com/cirruslabs/imagecache/internal/signedurl"
	"github.com/labstack/echo/v4"
)

type imageResponse struct {
	URL       string `json:"url"`
	Cached    bool   `json:"cached"`
	Recovered bool   `json:"recovered"`
	Error     string `json:"error,omitempty"`
}

func resourceFromContext(c echo.Context) (signedurl.Resource, bool) {
	resource := signedurl.Resource{
		PostID:    c.QueryParam("post_id"),
		ObjectURI: c.QueryParam("gcs_uri"),
		URL:       c.QueryParam("url"),
		Key:       c.QueryParam("key"),
	}

	if resource.URL == "" && resource.ObjectURI == "" && resource.PostID == "" {
		return signedurl.Resource{}, false
	}

	return resource, true
}

// handleImage redirects to the cached copy of the image, or to the image
// itself when it can't be cached.
func (server *Server) handleImage(c echo.Context) error {
	resource, ok := resourceFromContext(c)
	if !ok {
		return fail.Fail(c, http.StatusBadRequest, "either \"url\", \"gcs_uri\" or \"post_id\" "+
			"query parameter is required")
	}

	result, err := server.refresher.Load(c.Request().Context(), resource)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}

		if result.Fallback == "" {
			return fail.Fail(c, http.StatusBadGateway, "failed to load image: %v", err)
		}

		server.logger.Warnf("failed to load image, falling back to %s: %v", result.Fallback, err)

		return c.Redirect(http.StatusFound, result.Fallback)
	}

	return c.Redirect(http.StatusFound, result.Handle.URL)
}

// handleImageRecover is called by the renderer when a handle or
// a signed URL failed to render.
func (server *Server) handleImageRecover(c echo.Context) error {
	resource, ok := resourceFromContext(c)
	if !ok {
		return fail.Fail(c, http.StatusBadRequest, "either \"url\", \"gcs_uri\" or \"post_id\" "+
			"query parameter is required")
	}

	result, err := server.refresher.Recover(c.Request().Context(), resource)
	if err != nil {
		if result.Fallback == "" {
			return fail.Fail(c, http.StatusBadGateway, "failed to recover image: %v", err)
		}

		return c.JSON(http.StatusOK, &imageResponse{
			URL:   result.Fallback,
			Error: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, &imageResponse{
		URL:       result.Handle.URL,
		Cached:    true,
		Recovered: result.Recovered,
	})
}

func (server *Server) handleImageInvalidate(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return fail.Fail(c, http.StatusBadRequest, "\"key\" query parameter is required")
	}

	server.cache.Invalidate(key)

	return c.NoContent(http.StatusNoContent)
}

func (server *Server) handleImageInvalidateAll(c echo.Context) error {
	server.cache.InvalidateAll()

	return c.NoContent(http.StatusNoContent)
}
