package echoapi

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core/access"
)

type permissionDenied struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

// apiGate answers denials with a status code: 401 when there is no session, 403 plus the caller's home otherwise.
func apiGate(gate *access.Gate, allowed ...access.Role) echo.MiddlewareFunc {
	allowed = append([]access.Role(nil), allowed...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			dec := gate.Authorize(contextSession(ctx, gate), allowed...)
			switch dec.Kind {
			case access.Allow:
				return next(ctx)
			case access.DenyRedirect:
				return ctx.JSON(http.StatusForbidden, permissionDenied{Error: errHttpForbidden.Message.(string), Redirect: dec.Target})
			default:
				return errUnauthorized
			}
		}
	}
}

// pageGate answers denials with a redirect: to the login page when there is no session, to the caller's home otherwise.
func pageGate(gate *access.Gate, allowed ...access.Role) echo.MiddlewareFunc {
	allowed = append([]access.Role(nil), allowed...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			dec := gate.Authorize(contextSession(ctx, gate), allowed...)
			switch dec.Kind {
			case access.Allow:
				return next(ctx)
			case access.DenyRedirect:
				return ctx.Redirect(http.StatusFound, dec.Target)
			default:
				return ctx.Redirect(http.StatusFound, loginURL(ctx.Request().URL.Path))
			}
		}
	}
}

func loginURL(next string) string {
	if next == "" || next == "/" {
		return access.LoginPage
	}
	return access.LoginPage + "?" + url.Values{"next": {next}}.Encode()
}

func mustContextSession(ctx echo.Context) (access.Session, error) {
	sess, ok := ctx.Get(contextSessionKey).(access.Session)
	if !ok || !sess.Authenticated {
		return access.Session{}, errUnauthorized
	}
	return sess, nil
}
