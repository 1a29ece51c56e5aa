package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core/rubric"
)

type columnApi struct {
	svc      *rubric.Service
	validate *validator.Validate
}

// registerColumnAPI exposes the rubric of the active cycle. Columns are addressed by name.
func registerColumnAPI(g *echo.Group, svc *rubric.Service, validate *validator.Validate) {
	api := columnApi{svc: svc, validate: validate}

	cg := g.Group("/columns")
	cg.GET("", api.list)
	cg.GET("/:name", api.retrieve)

	admin := cg.Group("", adminMiddleware())
	admin.POST("", api.create)
	admin.PUT("/order", api.reorder)
	admin.PATCH("/:name", api.update)
	admin.DELETE("/:name", api.destroy)
}

func (api *columnApi) list(ctx echo.Context) error {
	cols, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cols)
}

func (api *columnApi) retrieve(ctx echo.Context) error {
	col, err := api.svc.Get(ctx.Request().Context(), pathParam(ctx, "name"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, col)
}

func (api *columnApi) create(ctx echo.Context) error {
	var data rubric.NewColumn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewColumn")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	col, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating column")
	}
	return ctx.JSON(http.StatusCreated, col)
}

func (api *columnApi) update(ctx echo.Context) error {
	name := pathParam(ctx, "name")
	col, err := api.svc.Get(ctx.Request().Context(), name)
	if err != nil {
		return err
	}

	var data rubric.UpdateColumn
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateColumn")
	}
	nc := data.Merge(col)
	if err := nc.Validate(api.validate); err != nil {
		return err
	}

	col, err = api.svc.Update(ctx.Request().Context(), name, nc)
	if err != nil {
		return errors.Wrap(err, "updating column")
	}
	return ctx.JSON(http.StatusOK, col)
}

// destroy removes the column; recorded values stay unless purging is configured.
func (api *columnApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), pathParam(ctx, "name")); err != nil {
		return errors.Wrap(err, "deleting column")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *columnApi) reorder(ctx echo.Context) error {
	var data rubric.ReorderColumns
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to ReorderColumns")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	cols, err := api.svc.Reorder(ctx.Request().Context(), data.Names)
	if err != nil {
		return errors.Wrap(err, "reordering columns")
	}
	return ctx.JSON(http.StatusOK, cols)
}
