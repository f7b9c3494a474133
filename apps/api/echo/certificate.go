package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/certificate"
)

type certificateApi struct {
	svc      *certificate.Service
	gate     *access.Gate
	validate *validator.Validate
}

func registerCertificateAPI(g *echo.Group, api *certificateApi, rl *rateLimiter, presets presetSet) {
	standard := rl.middleware(presets.standard)

	cg := g.Group("/certificates")
	cg.POST("", api.issue, standard, apiGate(api.gate, access.AdminRoles()...))
	cg.GET("/:code", api.verify, standard) // public
}

func (api *certificateApi) issue(ctx echo.Context) error {
	sess, err := mustContextSession(ctx)
	if err != nil {
		return err
	}

	var data certificate.NewCertificate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCertificate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cert, err := api.svc.Issue(ctx.Request().Context(), sess.UserID, data)
	if err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	return ctx.JSON(http.StatusCreated, cert)
}

func (api *certificateApi) verify(ctx echo.Context) error {
	ver, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		if errors.Cause(err) == certificate.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, ver)
}
