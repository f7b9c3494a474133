package echoapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/ratelimit"
)

const (
	headerXForwardedFor = "X-Forwarded-For"
	headerXRealIP       = "X-Real-IP"
)

type identityFunc func(r *http.Request) string

// clientIdentity keys requests on the client address.
// Proxy headers are only honoured when the server sits behind a trusted proxy.
func clientIdentity(trustProxy bool) identityFunc {
	return func(r *http.Request) string {
		if trustProxy {
			if xff := r.Header.Get(headerXForwardedFor); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get(headerXRealIP)); ip != "" {
				return ip
			}
		}

		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return host
		}
		if addr != "" {
			return addr
		}
		return ratelimit.UnknownIdentity
	}
}

type rateLimiter struct {
	limiter  *ratelimit.Limiter
	identify identityFunc
	logger   core.Logger
	logEvery *rate.Sometimes
}

func newRateLimiter(limiter *ratelimit.Limiter, identify identityFunc, logger core.Logger) *rateLimiter {
	return &rateLimiter{
		limiter:  limiter,
		identify: identify,
		logger:   logger,
		logEvery: &rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// middleware must run before any handler or gate touches a collaborator.
func (rl *rateLimiter) middleware(preset ratelimit.Preset) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			ident := rl.identify(req)

			res := rl.limiter.Check(req.Context(), ident, preset)
			if res.Allowed {
				return next(ctx)
			}

			rl.logEvery.Do(func() {
				rl.logger.Info("rate limit exceeded", map[string]interface{}{
					"identity":    ident,
					"preset":      preset.Name,
					"path":        req.URL.Path,
					"retry_after": res.RetryAfterSeconds,
				})
			})

			rj := ratelimit.NewRejection(res)
			for key, vals := range rj.Header() {
				for _, v := range vals {
					ctx.Response().Header().Set(key, v)
				}
			}
			return ctx.JSON(rj.Status, rj)
		}
	}
}
