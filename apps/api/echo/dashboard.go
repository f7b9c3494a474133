package echoapi

import (
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	appfs "github.com/trezcool/academia/fs"
)

const pageTemplatesGlob = "templates/pages/*.gohtml"

// pageRenderer is the echo.Renderer of the page shells.
type pageRenderer struct {
	templates *template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	tmpl, err := template.ParseFS(appfs.FS, pageTemplatesGlob)
	if err != nil {
		return nil, errors.Wrap(err, "parsing page templates")
	}
	return &pageRenderer{templates: tmpl}, nil
}

func (r *pageRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type dashboardPage struct {
	AppName string
	Title   string
	Session access.Session
}

type dashboardApi struct {
	conf *core.Config
	gate *access.Gate
}

func registerDashboards(e *echo.Echo, api *dashboardApi, rl *rateLimiter, presets presetSet) {
	standard := rl.middleware(presets.standard)

	e.GET(access.StudentHome, api.page("Dashboard"), standard, pageGate(api.gate, access.RoleStudent))
	e.GET(access.AdminHome, api.page("Admin dashboard"), standard, pageGate(api.gate, access.AdminRoles()...))
	e.GET(access.SuperAdminHome, api.page("Super admin dashboard"), standard, pageGate(api.gate, access.RoleSuperAdmin))
}

func (api *dashboardApi) page(title string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, err := mustContextSession(ctx)
		if err != nil {
			return err
		}
		return ctx.Render(http.StatusOK, "dashboard", dashboardPage{AppName: api.conf.AppName, Title: title, Session: sess})
	}
}
