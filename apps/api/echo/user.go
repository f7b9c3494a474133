package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/user"
)

const (
	msgPasswordResetSent     = "if an active account exists for this email, a password reset link has been sent"
	msgVerificationSent      = "if an unverified account exists for this email, a verification link has been sent"
	msgPasswordResetComplete = "your password has been reset"
	msgEmailVerified         = "your email address has been verified"
	msgLoggedOut             = "logged out"
)

type userApi struct {
	conf     *core.Config
	svc      *user.Service
	gate     *access.Gate
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, api *userApi, rl *rateLimiter, presets presetSet) {
	standard := rl.middleware(presets.standard)
	sensitive := rl.middleware(presets.sensitive)

	ag := g.Group("/auth")
	ag.POST("/login", api.login, standard)
	ag.POST("/logout", api.logout, standard)
	ag.POST("/token-refresh", api.refreshToken, standard, apiGate(api.gate))
	ag.POST("/forgot-password", api.forgotPassword, sensitive)
	ag.POST("/reset-password", api.resetPassword, sensitive)
	ag.POST("/resend-verification", api.resendVerification, sensitive)
	ag.POST("/verify-email", api.verifyEmail, standard)

	g.GET("/me", api.me, standard, apiGate(api.gate))
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	usr, err := api.svc.Authenticate(reqCtx, data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrAuthenticationFailed:
			return errAuthenticationFailed
		case user.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}

	role, err := api.gate.ResolveRole(reqCtx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "resolving role")
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	setSessionCookie(ctx, api.conf, token)

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, Role: role, Home: role.Home()})
}

func (api *userApi) logout(ctx echo.Context) error {
	clearSessionCookie(ctx, api.conf)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgLoggedOut})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	setSessionCookie(ctx, api.conf, token)
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

// forgotPassword gives the same answer whether the account exists or not.
func (api *userApi) forgotPassword(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		switch errors.Cause(err) {
		case user.ErrNotFound, user.ErrAccountDeactivated: // not revealed
		default:
			return errors.Wrap(err, "requesting password reset")
		}
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgPasswordResetSent})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgPasswordResetComplete})
}

func (api *userApi) resendVerification(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestEmailVerification(ctx.Request().Context(), data.Email); err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return errors.Wrap(err, "requesting email verification")
		}
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgVerificationSent})
}

func (api *userApi) verifyEmail(ctx echo.Context) error {
	var data user.VerifyUserEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyUserEmail")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.VerifyEmail(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "verifying email")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgEmailVerified})
}

func (api *userApi) me(ctx echo.Context) error {
	sess, err := mustContextSession(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), sess.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, Role: sess.Role, Home: sess.Home()})
}

// Bindings

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string      `json:"token"`
		Role  access.Role `json:"role"`
		Home  string      `json:"home"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	EmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	MeResponse struct {
		user.User
		Role access.Role `json:"role"`
		Home string      `json:"home"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (er *EmailRequest) Validate(validate *validator.Validate) error {
	er.Email = core.CleanString(er.Email, true /* lower */)
	return validate.Struct(er)
}
