package echoapi

import (
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/storage/files"
)

type uploadsApi struct {
	fileStore core.FileStorage
}

func registerUploadsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := uploadsApi{fileStore: deps.FileStore}
	g.GET("/uploads/*", api.serve, jwt)
}

func (api *uploadsApi) serve(ctx echo.Context) error {
	key := ctx.Param("*")

	f, err := api.fileStore.Open(ctx.Request().Context(), key)
	if err != nil {
		if errors.Cause(err) == files.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "opening upload")
	}
	defer f.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filepath.Base(key))
	return ctx.Stream(http.StatusOK, echo.MIMEOctetStream, f)
}
