package testutil

import (
	"context"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/user"
)

// NewConfig returns the configuration the tests run with.
func NewConfig() *core.Config {
	return &core.Config{
		Env:                           "TEST",
		TestMode:                      true,
		AppName:                       "Academia",
		SecretKey:                     "test-secret",
		FrontendBaseURL:               "http://localhost:3000",
		DefaultFromEmail:              mail.Address{Name: "Academia", Address: "noreply@test.cd"},
		PasswordResetTimeoutDelta:     3 * 24 * time.Hour,
		EmailVerificationTimeoutDelta: 7 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		RateLimit: core.RateLimitConfig{
			Backend:       "memory",
			SweepInterval: time.Minute,
			Presets: []core.RateLimitPreset{
				{Name: "sensitive", Max: 3, Window: 5 * time.Minute},
				{Name: "standard", Max: 20, Window: time.Minute},
			},
		},
	}
}

// CreateUser saves a user and, unless role is access.RoleUnauthenticated, records its role.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	roles access.RoleWriter,
	name, email, pwd string,
	role access.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}

	ctx := context.Background()
	usr, err := repo.CreateUser(ctx, usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	if role != access.RoleUnauthenticated {
		if err = roles.AssignRole(ctx, usr.ID, role); err != nil {
			t.Fatalf("createUser() failed to assign role: %v", err)
		}
	}
	return usr
}

// Logger discards everything and counts what was logged.
type Logger struct {
	mu               sync.Mutex
	warnings, errors int
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) Debug(string, ...interface{}) {}
func (l *Logger) Info(string, ...interface{})  {}

func (l *Logger) Warn(string, ...interface{}) {
	l.mu.Lock()
	l.warnings++
	l.mu.Unlock()
}

func (l *Logger) Error(string, ...interface{}) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func (l *Logger) Fatal(msg string, _ ...interface{}) {
	panic("fatal: " + msg)
}

func (l *Logger) Warnings() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warnings
}

func (l *Logger) Errors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errors
}
