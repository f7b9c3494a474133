package user

import (
	"context"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const (
	passwordResetSalt     = "academia.core.user.password_reset"
	emailVerificationSalt = "academia.core.user.email_verification"

	errInvalidValue = "invalid value"
)

var (
	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account deactivated")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// UpdateUser saves every mutable field of usr.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// CheckEmailUniqueness returns ErrEmailExists if a user other than the excluded ones owns email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
	}

	Service struct {
		repo         Repository
		mailSvc      core.EmailService
		resetTokens  *tokenGenerator
		verifyTokens *tokenGenerator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:         repo,
		mailSvc:      mailSvc,
		resetTokens:  newTokenGenerator(passwordResetSalt, conf.SecretKey, conf.PasswordResetTimeoutDelta),
		verifyTokens: newTokenGenerator(emailVerificationSalt, conf.SecretKey, conf.EmailVerificationTimeoutDelta),
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create creates an active, unverified User. nu must have been validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Authenticate checks the credentials of an active user and records the login.
// Unknown emails and wrong passwords are both ErrAuthenticationFailed.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	now := NowFunc().UTC()
	usr.LastLogin = &now
	usr.UpdatedAt = now
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

// SetPassword applies the password policy (against usr's attributes) and saves the new password.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if tag := checkPassword(pwd, usr.Name, usr.Email); tag != "" {
		return User{}, policyError(tag)
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset mails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrAccountDeactivated
	}
	return svc.sendTokenMail(usr, svc.resetTokens, "Password reset", "password_reset")
}

// ResetPassword sets a new password for the user identified by data.UID if data.Token is valid.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	usr, err := svc.userFromToken(ctx, data.UID, data.Token, svc.resetTokens)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return core.NewValidationError(ErrAccountDeactivated, core.FieldError{Field: "uid", Error: errInvalidValue})
	}
	_, err = svc.SetPassword(ctx, usr, data.Password)
	return err
}

// RequestEmailVerification mails an email verification link to the user owning email, unless already verified.
func (svc *Service) RequestEmailVerification(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.EmailVerified {
		return nil
	}
	return svc.sendTokenMail(usr, svc.verifyTokens, "Verify your email address", "email_verification")
}

// VerifyEmail marks the email of the user identified by data.UID as verified if data.Token is valid.
// The token cannot be used twice.
func (svc *Service) VerifyEmail(ctx context.Context, data VerifyUserEmail) (User, error) {
	usr, err := svc.userFromToken(ctx, data.UID, data.Token, svc.verifyTokens)
	if err != nil {
		return User{}, err
	}
	usr.EmailVerified = true
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) userFromToken(ctx context.Context, uid, token string, tokens *tokenGenerator) (User, error) {
	id, err := decodeUID(uid)
	if err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "uid", Error: errInvalidValue})
	}
	if _, err = uuid.Parse(id); err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "uid", Error: errInvalidValue})
	}

	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "uid", Error: errInvalidValue})
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}

	if err = tokens.verifyToken(usr, token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: errInvalidValue})
		}
		return User{}, errors.Wrap(err, "verifying token")
	}
	return usr, nil
}

type tokenMailData struct {
	Name  string
	UID   string
	Token string
}

func (svc *Service) sendTokenMail(usr User, tokens *tokenGenerator, subject, tmpl string) error {
	token, err := tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: tokenMailData{Name: usr.Name, UID: EncodeUID(usr), Token: token},
	})
	return nil
}

// MakePasswordResetToken makes a token that ResetPassword accepts for usr.
func (svc *Service) MakePasswordResetToken(usr User) (string, error) {
	return svc.resetTokens.makeToken(usr)
}

// MakeEmailVerificationToken is the email verification counterpart of MakePasswordResetToken.
func (svc *Service) MakeEmailVerificationToken(usr User) (string, error) {
	return svc.verifyTokens.makeToken(usr)
}
