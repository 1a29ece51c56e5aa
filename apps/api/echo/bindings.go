package echoapi

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
)

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	DeletedResponse struct {
		Deleted int `json:"deleted"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

// bindBody binds the request body only, leaving path and query params out of maps.
func bindBody(ctx echo.Context, i interface{}) error {
	return (&echo.DefaultBinder{}).BindBody(ctx, i)
}

// pathParam returns the unescaped path parameter. Column names may hold reserved characters.
func pathParam(ctx echo.Context, name string) string {
	raw := ctx.Param(name)
	if val, err := url.PathUnescape(raw); err == nil {
		return val
	}
	return raw
}

// queryBool reads a boolean query parameter; a bare "?flag" counts as true.
func queryBool(ctx echo.Context, name string) (bool, error) {
	vals, ok := ctx.QueryParams()[name]
	if !ok || len(vals) == 0 {
		return false, nil
	}
	if vals[0] == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(vals[0])
	if err != nil {
		return false, core.NewValidationError(errors.Wrap(err, name), core.FieldError{Field: name, Error: "must be a boolean"})
	}
	return b, nil
}
