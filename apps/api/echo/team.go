package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core/scoring"
	"github.com/trezcool/reviewdesk/core/team"
	"github.com/trezcool/reviewdesk/core/user"
)

type teamApi struct {
	svc      *team.Service
	engine   *scoring.Engine
	validate *validator.Validate
}

func registerTeamAPI(g *echo.Group, svc *team.Service, engine *scoring.Engine, validate *validator.Validate) {
	api := teamApi{svc: svc, engine: engine, validate: validate}

	tg := g.Group("/teams", reviewerMiddleware())
	tg.GET("", api.list)
	tg.GET("/sections", api.sections)
	tg.GET("/:id", api.retrieve, teamAccessMiddleware(svc))

	admin := tg.Group("", adminMiddleware())
	admin.POST("", api.create)
	admin.DELETE("", api.destroyMultiple)
	admin.PATCH("/:id", api.update)
	admin.DELETE("/:id", api.destroy)
	admin.POST("/:id/rename-member", api.renameMember)
}

// teamAccessMiddleware loads the :id team and hides it from reviewers outside its section.
func teamAccessMiddleware(svc *team.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			t, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return err
			}
			usr := mustContextUser(ctx)
			if !usr.CanReviewSection(t.Section()) {
				return errHttpNotFound
			}
			ctx.Set(contextObjectKey, t)
			return next(ctx)
		}
	}
}

func (api *teamApi) list(ctx echo.Context) error {
	var filter team.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []team.Team{})
	}
	filter.Clean()

	teams, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, visibleTeams(mustContextUser(ctx), teams))
}

// visibleTeams keeps the teams the user may review.
func visibleTeams(usr user.User, teams []team.Team) []team.Team {
	visible := make([]team.Team, 0, len(teams))
	for _, t := range teams {
		if usr.CanReviewSection(t.Section()) {
			visible = append(visible, t)
		}
	}
	return visible
}

func (api *teamApi) sections(ctx echo.Context) error {
	sections, err := api.svc.Sections(ctx.Request().Context())
	if err != nil {
		return err
	}
	usr := mustContextUser(ctx)
	visible := make([]string, 0, len(sections))
	for _, s := range sections {
		if usr.CanReviewSection(s) {
			visible = append(visible, s)
		}
	}
	return ctx.JSON(http.StatusOK, visible)
}

func (api *teamApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, ctx.Get(contextObjectKey))
}

func (api *teamApi) create(ctx echo.Context) error {
	var data team.NewTeam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating team")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teamApi) update(ctx echo.Context) error {
	var data team.UpdateTeam
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating team")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teamApi) renameMember(ctx echo.Context) error {
	var data team.RenameMember
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to RenameMember")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.engine.RenameMember(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "renaming member")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teamApi) destroy(ctx echo.Context) error {
	n, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting team")
	}
	if n == 0 {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teamApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if len(query.IDs) == 0 {
		return ctx.JSON(http.StatusOK, DeletedResponse{})
	}

	n, err := api.svc.Delete(ctx.Request().Context(), query.IDs...)
	if err != nil {
		return errors.Wrap(err, "deleting teams")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: n})
}
