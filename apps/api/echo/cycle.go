package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core/cycle"
)

type cycleApi struct {
	svc      *cycle.Service
	validate *validator.Validate
}

func registerCycleAPI(g *echo.Group, svc *cycle.Service, validate *validator.Validate) {
	api := cycleApi{svc: svc, validate: validate}

	cg := g.Group("/cycles")
	cg.GET("", api.list)
	cg.GET("/current", api.current)

	admin := cg.Group("", adminMiddleware())
	admin.POST("", api.create)
	admin.GET("/:id", api.retrieve)
	admin.POST("/:id/activate", api.activate)
	admin.POST("/:id/reset", api.reset)
	admin.DELETE("/:id", api.destroy)
}

func (api *cycleApi) create(ctx echo.Context) error {
	var data cycle.NewCycle
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCycle")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating cycle")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *cycleApi) list(ctx echo.Context) error {
	cycles, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing cycles")
	}
	return ctx.JSON(http.StatusOK, cycles)
}

func (api *cycleApi) current(ctx echo.Context) error {
	c, err := api.svc.Current(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *cycleApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *cycleApi) activate(ctx echo.Context) error {
	c, err := api.svc.Activate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "activating cycle")
	}
	return ctx.JSON(http.StatusOK, c)
}

// reset drops every team's record for the cycle.
func (api *cycleApi) reset(ctx echo.Context) error {
	if err := api.svc.ResetData(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "resetting cycle data")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Review data has been reset."})
}

func (api *cycleApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting cycle")
	}
	return ctx.NoContent(http.StatusNoContent)
}
