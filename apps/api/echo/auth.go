package echoapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/user"
)

const (
	sessionCookieName = "session"
	contextSessionKey = "session"
	bearerPrefix      = "Bearer "
	jwtAudience       = "Academia"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Claims represents the authorization claims transmitted via a JWT.
// Roles are not part of the token: they are resolved on every request.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
}

func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  jwtAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(conf *core.Config, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwtSigningMethod.Alg() {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || !claims.VerifyAudience(jwtAudience, true) {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

type userFinder interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// NewSessionResolver validates JWT credentials and checks that their subject is still an active user.
// Bad or expired tokens and unknown or deactivated users resolve to no identity;
// only store failures are errors.
func NewSessionResolver(conf *core.Config, users userFinder) access.SessionResolver {
	return access.SessionResolverFunc(func(ctx context.Context, credential string) (*access.Identity, error) {
		claims, err := parseToken(conf, credential)
		if err != nil {
			return nil, nil
		}
		usr, err := users.GetByID(ctx, claims.Subject)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return nil, nil
			}
			return nil, errors.Wrap(err, "finding user by ID")
		}
		if !usr.IsActive {
			return nil, nil
		}
		return &access.Identity{UserID: usr.ID, Email: usr.Email}, nil
	})
}

// requestCredential reads the bearer token, falling back to the session cookie.
func requestCredential(ctx echo.Context) string {
	if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	if cookie, err := ctx.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// contextSession resolves the request's session once and caches it on ctx.
func contextSession(ctx echo.Context, gate *access.Gate) access.Session {
	if sess, ok := ctx.Get(contextSessionKey).(access.Session); ok {
		return sess
	}
	sess := gate.Resolve(ctx.Request().Context(), requestCredential(ctx))
	ctx.Set(contextSessionKey, sess)
	return sess
}

func setSessionCookie(ctx echo.Context, conf *core.Config, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(conf.Server.JWTExpirationDelta),
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(ctx echo.Context, conf *core.Config) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshToken(ctx echo.Context, conf *core.Config, svc *user.Service) (string, error) {
	claims, err := parseToken(conf, requestCredential(ctx))
	if err != nil {
		return "", errUnauthorized
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", errUnauthorized
		}
		return "", errors.Wrap(err, "finding user by ID")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(conf, GetUserClaims(conf, usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
