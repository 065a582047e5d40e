package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"storywoven/pkg/inference"
	"storywoven/pkg/schema"
	"storywoven/pkg/storage"
	"storywoven/pkg/store"
)

// httpError maps pipeline failures onto response codes. Unrecognized errors
// stay opaque 500s.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, store.ErrProjectNotFound), errors.Is(err, schema.ErrPageNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, schema.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, schema.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, schema.ErrLocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, inference.ErrMalformedOutput), errors.Is(err, inference.ErrNoImage):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, storage.ErrStorageFailure):
		return echo.NewHTTPError(http.StatusInternalServerError, "storage failure")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
