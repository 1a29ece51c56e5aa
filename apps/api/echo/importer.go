package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/importer"
)

const uploadField = "file"

type importApi struct {
	svc *importer.Service
}

func registerImportAPI(g *echo.Group, svc *importer.Service) {
	api := importApi{svc: svc}
	g.POST("/teams/import", api.importTeams, adminMiddleware())
}

// importTeams reads a roster spreadsheet from the "file" form field. ?dry_run parses without saving.
func (api *importApi) importTeams(ctx echo.Context) error {
	dryRun, err := queryBool(ctx, "dry_run")
	if err != nil {
		return err
	}
	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: uploadField, Error: requiredFileText})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	res, err := api.svc.Import(ctx.Request().Context(), src, dryRun)
	if err != nil {
		return err
	}
	code := http.StatusCreated
	if dryRun {
		code = http.StatusOK
	}
	return ctx.JSON(code, res)
}
