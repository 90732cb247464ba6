package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cirruslabs/imagecache/internal/objecturl"
	"github.com/cirruslabs/imagecache/internal/server/fail"
	"github.com/labstack/echo/v4"
)

func (server *Server) handleBlob(c echo.Context) error {
	blobReader, metadata, err := server.registry.Open(c.Request().Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, objecturl.ErrRevoked) {
			return fail.Fail(c, http.StatusNotFound, "object handle is not live")
		}

		return fail.Fail(c, http.StatusInternalServerError, "failed to open blob: %v", err)
	}
	defer func() {
		_ = blobReader.Close()
	}()

	contentType := metadata.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentLength, strconv.FormatInt(metadata.Size, 10))

	// A token always refers to the same bytes
	header.Set(echo.HeaderCacheControl, "private, max-age=31536000, immutable")

	return c.Stream(http.StatusOK, contentType, blobReader)
}
