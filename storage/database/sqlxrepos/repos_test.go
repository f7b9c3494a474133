package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database/sqlxrepos"
	"github.com/trezcool/academia/tests"
)

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(db)
	roles := sqlxrepos.NewRoleRepository(db)

	usr := testutil.CreateUser(t, repo, roles, "Hero", "hero@test.cd", "LolC@t123", access.RoleStudent, true)

	got, err := repo.GetUserByEmail(ctx, "hero@test.cd")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.Nil(t, got.LastLogin)

	_, err = repo.GetUserByID(ctx, "5f0fd9ab-2b3c-4c8b-9c55-0b4c0d6a4d11")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	assert.Equal(t, user.ErrEmailExists, repo.CheckEmailUniqueness(ctx, "hero@test.cd"))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "hero@test.cd", usr))
	assert.NoError(t, repo.CheckEmailUniqueness(ctx, "lol@test.cd"))

	now := time.Now().UTC().Truncate(time.Microsecond)
	got.LastLogin = &now
	got.EmailVerified = true
	got, err = repo.UpdateUser(ctx, got)
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	require.NotNil(t, got.LastLogin)
	assert.True(t, now.Equal(*got.LastLogin))

	dup := usr
	dup.ID = "5f0fd9ab-2b3c-4c8b-9c55-0b4c0d6a4d11"
	_, err = repo.CreateUser(ctx, dup)
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
}

func TestRoleRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewRoleRepository(db)

	nobody := testutil.CreateUser(t, usrRepo, repo, "Nobody", "nobody@test.cd", "", access.RoleUnauthenticated, true)
	both := testutil.CreateUser(t, usrRepo, repo, "Both", "both@test.cd", "", access.RoleStudent, true)

	_, err := repo.AdminRole(ctx, nobody.ID)
	assert.Equal(t, access.ErrNoRoleRecord, err)
	isStudent, err := repo.IsStudent(ctx, nobody.ID)
	require.NoError(t, err)
	assert.False(t, isStudent)

	require.NoError(t, repo.AssignRole(ctx, both.ID, access.RoleSuperAdmin))
	role, err := repo.AdminRole(ctx, both.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleSuperAdmin, role)
	isStudent, err = repo.IsStudent(ctx, both.ID)
	require.NoError(t, err)
	assert.True(t, isStudent)

	gate := access.NewGate(nil, repo)
	role, err = gate.ResolveRole(ctx, both.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleSuperAdmin, role, "admins table wins")

	require.NoError(t, repo.AssignRole(ctx, both.ID, access.RoleStudent))
	role, err = gate.ResolveRole(ctx, both.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleStudent, role)

	assert.Error(t, repo.AssignRole(ctx, both.ID, access.RoleUnauthenticated))
}

func TestCertificateRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	roles := sqlxrepos.NewRoleRepository(db)
	repo := sqlxrepos.NewCertificateRepository(db)

	admin := testutil.CreateUser(t, usrRepo, roles, "Admin", "admin@test.cd", "", access.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, roles, "Hero", "hero@test.cd", "", access.RoleStudent, true)

	cert := certificate.Certificate{
		ID:          "0b1e7d2a-4d9e-4b8e-8f3c-2a1d9b7c6e5f",
		Code:        certificate.NewCode(),
		StudentID:   student.ID,
		CourseTitle: "Go 101",
		IssuedBy:    admin.ID,
		IssuedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := repo.CreateCertificate(ctx, cert)
	require.NoError(t, err)

	got, err := repo.GetCertificateByCode(ctx, cert.Code)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, got.ID)
	assert.True(t, cert.IssuedAt.Equal(got.IssuedAt))

	dup := cert
	dup.ID = "1c2f8e3b-5e0f-4c9f-9a4d-3b2e0c8d7f60"
	_, err = repo.CreateCertificate(ctx, dup)
	assert.Equal(t, certificate.ErrCodeExists, errors.Cause(err))

	_, err = repo.GetCertificateByCode(ctx, "ACD-000000000000")
	assert.Equal(t, certificate.ErrNotFound, errors.Cause(err))
}
