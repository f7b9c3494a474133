// Package certificate issues course completion certificates and lets anyone verify them by code.
package certificate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

const (
	codePrefix      = "ACD-"
	codeLen         = 12
	maxCodeAttempts = 3
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound   = errors.New("certificate not found")
	ErrCodeExists = errors.New("certificate code already exists")
)

type (
	Repository interface {
		// CreateCertificate returns ErrCodeExists if the code is taken.
		CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		GetCertificateByCode(ctx context.Context, code string) (Certificate, error)
	}

	// UserFinder is satisfied by *user.Service.
	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		GetByEmail(ctx context.Context, email string) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserFinder
	}
)

func NewService(repo Repository, users UserFinder) *Service {
	return &Service{repo: repo, users: users}
}

// Issue creates a Certificate for the active user owning nc.StudentEmail. nc must have been validated.
func (svc *Service) Issue(ctx context.Context, issuerID string, nc NewCertificate) (Certificate, error) {
	student, err := svc.users.GetByEmail(ctx, nc.StudentEmail)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Certificate{}, core.NewValidationError(err, core.FieldError{Field: "student_email", Error: "unknown student"})
		}
		return Certificate{}, errors.Wrap(err, "finding student by email")
	}
	if !student.IsActive {
		return Certificate{}, core.NewValidationError(user.ErrAccountDeactivated, core.FieldError{Field: "student_email", Error: "unknown student"})
	}

	cert := Certificate{
		StudentID:   student.ID,
		CourseTitle: nc.CourseTitle,
		IssuedBy:    issuerID,
		IssuedAt:    NowFunc().UTC(),
	}
	for attempt := 1; ; attempt++ {
		cert.ID = uuid.New().String()
		cert.Code = NewCode()

		created, err := svc.repo.CreateCertificate(ctx, cert)
		if err == nil {
			return created, nil
		}
		if errors.Cause(err) != ErrCodeExists || attempt == maxCodeAttempts {
			return Certificate{}, errors.Wrap(err, "creating certificate")
		}
	}
}

// Verify looks up a certificate by its public code.
func (svc *Service) Verify(ctx context.Context, code string) (Verification, error) {
	code = NormalizeCode(code)
	if !strings.HasPrefix(code, codePrefix) || len(code) != len(codePrefix)+codeLen {
		return Verification{}, ErrNotFound
	}

	cert, err := svc.repo.GetCertificateByCode(ctx, code)
	if err != nil {
		return Verification{}, err
	}

	v := Verification{Code: cert.Code, CourseTitle: cert.CourseTitle, IssuedAt: cert.IssuedAt}
	student, err := svc.users.GetByID(ctx, cert.StudentID)
	switch {
	case err == nil:
		v.StudentName = student.Name
		v.Valid = student.IsActive
	case errors.Cause(err) != user.ErrNotFound:
		return Verification{}, errors.Wrap(err, "finding student by ID")
	}
	return v, nil
}

// NewCode returns a random, human friendly certificate code (e.g. ACD-3F2A9C0B1D4E).
func NewCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return codePrefix + strings.ToUpper(raw[:codeLen])
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
