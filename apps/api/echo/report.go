package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, svc *report.Service) {
	api := reportApi{svc: svc}

	rg := g.Group("/reports", adminMiddleware())
	rg.GET("/:kind", api.preview)
	rg.GET("/:kind/export", api.export)
}

func bindReport(ctx echo.Context) (string, report.Filter, error) {
	var f report.Filter
	if err := ctx.Bind(&f); err != nil {
		return "", f, errors.Wrap(err, "binding to report.Filter")
	}
	return ctx.Param("kind"), f, nil
}

func (api *reportApi) preview(ctx echo.Context) error {
	kind, f, err := bindReport(ctx)
	if err != nil {
		return err
	}
	sheet, err := api.svc.Preview(ctx.Request().Context(), kind, f)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *reportApi) export(ctx echo.Context) error {
	kind, f, err := bindReport(ctx)
	if err != nil {
		return err
	}
	file, err := api.svc.Export(ctx.Request().Context(), kind, f)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return ctx.Blob(http.StatusOK, file.ContentType, file.Data)
}
