package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/submission"
	"github.com/trezcool/reviewdesk/core/team"
)

const requiredFileText = "a file is required"

type submissionApi struct {
	svc      *submission.Service
	teams    *team.Service
	validate *validator.Validate
}

func registerSubmissionAPI(g *echo.Group, svc *submission.Service, teams *team.Service, validate *validator.Validate) {
	api := submissionApi{svc: svc, teams: teams, validate: validate}

	rg := g.Group("/requirements")
	rg.GET("", api.listRequirements)
	rg.GET("/:id", api.retrieveRequirement)
	rg.POST("/:id/submissions", api.submit)
	rg.POST("", api.createRequirement, adminMiddleware())
	rg.PUT("/:id", api.updateRequirement, adminMiddleware())
	rg.DELETE("/:id", api.destroyRequirement, adminMiddleware())

	sg := g.Group("/submissions")
	sg.GET("", api.list)
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/lock", api.lock, adminMiddleware())
	sg.POST("/:id/unlock", api.unlock, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())
}

// Requirements

func (api *submissionApi) listRequirements(ctx echo.Context) error {
	reqs, err := api.svc.ListRequirements(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *submissionApi) retrieveRequirement(ctx echo.Context) error {
	r, err := api.svc.GetRequirement(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *submissionApi) createRequirement(ctx echo.Context) error {
	var data submission.NewRequirement
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewRequirement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.CreateRequirement(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating requirement")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *submissionApi) updateRequirement(ctx echo.Context) error {
	var data submission.NewRequirement
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewRequirement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.UpdateRequirement(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating requirement")
	}
	return ctx.JSON(http.StatusOK, r)
}

// destroyRequirement also removes every submission made against it.
func (api *submissionApi) destroyRequirement(ctx echo.Context) error {
	if err := api.svc.DeleteRequirement(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting requirement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Submissions

func (api *submissionApi) list(ctx echo.Context) error {
	var filter submission.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []submission.Submission{})
	}
	filter.RequirementID = core.CleanString(filter.RequirementID)
	filter.BatchName = core.CleanString(filter.BatchName)

	subs, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

// submit uploads the "file" form field for the team named by the "team" form field.
func (api *submissionApi) submit(ctx echo.Context) error {
	batch := core.CleanString(ctx.FormValue("team"))
	if batch == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "team", Error: "this field is required"})
	}
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: uploadField, Error: requiredFileText})
	}

	usr := mustContextUser(ctx)
	if !usr.IsAdmin() {
		t, err := api.teams.GetByName(ctx.Request().Context(), batch)
		if err != nil {
			return err
		}
		if !usr.CanReviewSection(t.Section()) {
			return errHttpForbidden
		}
	}

	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	s, err := api.svc.Submit(ctx.Request().Context(), submission.Upload{
		RequirementID: ctx.Param("id"),
		BatchName:     batch,
		FileName:      fh.Filename,
		Content:       src,
		UploadedBy:    usr.Identity(),
		IsAdmin:       usr.IsAdmin(),
	})
	if err != nil {
		return errors.Wrap(err, "submitting file")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *submissionApi) lock(ctx echo.Context) error {
	return api.setLock(ctx, true)
}

func (api *submissionApi) unlock(ctx echo.Context) error {
	return api.setLock(ctx, false)
}

func (api *submissionApi) setLock(ctx echo.Context, locked bool) error {
	s, err := api.svc.SetLock(ctx.Request().Context(), ctx.Param("id"), locked)
	if err != nil {
		return errors.Wrap(err, "setting submission lock")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	return ctx.NoContent(http.StatusNoContent)
}
