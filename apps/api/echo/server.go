package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/ratelimit"
	"github.com/trezcool/academia/core/user"
)

type (
	Deps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        *user.Service
		CertificateSvc *certificate.Service
		RoleStore      access.RoleStore
		// Limiter defaults to an in-memory limiter reporting to Metrics.
		Limiter *ratelimit.Limiter
		Presets ratelimit.Presets
		Metrics *Metrics
		// DisableReqLogs turns echo's request logger off (tests).
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		addr string
		app  *echo.Echo
	}

	presetSet struct {
		sensitive ratelimit.Preset
		standard  ratelimit.Preset
	}
)

var _ Server = (*server)(nil)

// NewServer builds the HTTP server. shutdown receives a signal when a handler hits an unrecoverable error.
func NewServer(addr string, shutdown chan os.Signal, deps *Deps) (Server, error) {
	s := &server{
		addr: addr,
		app:  echo.New(),
	}
	if err := s.setup(shutdown, deps); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *server) setup(shutdown chan os.Signal, deps *Deps) error {
	conf := deps.Conf

	presets := presetSet{
		sensitive: ratelimit.Sensitive,
		standard:  ratelimit.Standard,
	}
	if deps.Presets != nil {
		var ok bool
		if presets.sensitive, ok = deps.Presets.Get(ratelimit.Sensitive.Name); !ok {
			return core.NewConfigurationError("ratelimit.sensitive", errors.New("preset missing"))
		}
		if presets.standard, ok = deps.Presets.Get(ratelimit.Standard.Name); !ok {
			return core.NewConfigurationError("ratelimit.standard", errors.New("preset missing"))
		}
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.WithObserver(metrics.ObserveRateLimit))
	}

	renderer, err := newPageRenderer()
	if err != nil {
		return err
	}

	gate := access.NewGate(
		NewSessionResolver(conf, deps.UserSvc),
		deps.RoleStore,
		access.WithLogger(deps.Logger),
		access.WithGateObserver(metrics.ObserveGate),
	)
	rl := newRateLimiter(limiter, clientIdentity(conf.Server.TrustProxy), deps.Logger)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(metrics.middleware())
	if !deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, func() {
		if shutdown != nil {
			shutdown <- syscall.SIGTERM
		}
	})
	s.app.Renderer = renderer
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/healthz", health)
	s.app.GET("/metrics", echo.WrapHandler(metrics.handler()))

	registerDashboards(s.app, &dashboardApi{conf: conf, gate: gate}, rl, presets)

	v1 := s.app.Group("/v1")
	registerUserAPI(v1, &userApi{
		conf:     conf,
		svc:      deps.UserSvc,
		gate:     gate,
		validate: deps.Validate,
	}, rl, presets)
	registerCertificateAPI(v1, &certificateApi{
		svc:      deps.CertificateSvc,
		gate:     gate,
		validate: deps.Validate,
	}, rl, presets)

	return nil
}

func (s *server) Start() error {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
