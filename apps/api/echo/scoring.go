package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core/scoring"
	"github.com/trezcool/reviewdesk/core/team"
)

type scoringApi struct {
	engine *scoring.Engine
}

// registerScoringAPI exposes a team's record for the active cycle.
func registerScoringAPI(g *echo.Group, engine *scoring.Engine, teams *team.Service) {
	api := scoringApi{engine: engine}

	rg := g.Group("/teams/:id/record", reviewerMiddleware(), teamAccessMiddleware(teams))
	rg.GET("", api.sheet)
	rg.POST("", api.submit)
	rg.POST("/preview", api.preview)
	rg.POST("/lock", api.lock, adminMiddleware())
	rg.POST("/unlock", api.unlock, adminMiddleware())
}

func bindPayload(ctx echo.Context) (team.Payload, error) {
	var bag map[string]interface{}
	if err := bindBody(ctx, &bag); err != nil {
		return team.Payload{}, errors.Wrap(err, "binding to payload")
	}
	return team.ParsePayload(bag)
}

func (api *scoringApi) sheet(ctx echo.Context) error {
	sheet, err := api.engine.Sheet(ctx.Request().Context(), ctx.Param("id"), nil)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

// preview returns the sheet with totals computed over the unsaved payload.
func (api *scoringApi) preview(ctx echo.Context) error {
	p, err := bindPayload(ctx)
	if err != nil {
		return err
	}
	sheet, err := api.engine.Sheet(ctx.Request().Context(), ctx.Param("id"), &p)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *scoringApi) submit(ctx echo.Context) error {
	p, err := bindPayload(ctx)
	if err != nil {
		return err
	}
	usr := mustContextUser(ctx)
	if _, err := api.engine.Submit(ctx.Request().Context(), ctx.Param("id"), usr.Identity(), usr.IsAdmin(), p); err != nil {
		return errors.Wrap(err, "submitting scores")
	}
	return api.sheet(ctx)
}

func (api *scoringApi) lock(ctx echo.Context) error {
	if _, err := api.engine.Lock(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "locking record")
	}
	return api.sheet(ctx)
}

func (api *scoringApi) unlock(ctx echo.Context) error {
	if _, err := api.engine.Unlock(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unlocking record")
	}
	return api.sheet(ctx)
}
