package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/tests"
)

type fixture struct {
	svc     *user.Service
	repo    user.Repository
	roles   access.RoleWriter
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) fixture {
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	repo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, new(testutil.Logger))
	return fixture{
		svc:     user.NewService(repo, mailSvc, conf),
		repo:    repo,
		roles:   inmemdb.NewRoleRepository(db),
		mailSvc: mailSvc,
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %T: %v", err, err)
	flds := make(map[string]string, len(vErr.Fields))
	for _, f := range vErr.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	usr, err := f.svc.Create(ctx, user.NewUser{Name: "Hero", Email: "hero@test.cd", Password: "LolC@t123"})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.False(t, usr.EmailVerified)
	assert.NoError(t, usr.CheckPassword("LolC@t123"))

	_, err = f.svc.Create(ctx, user.NewUser{Name: "Other", Email: "hero@test.cd", Password: "LolC@t123"})
	assert.Equal(t, map[string]string{"email": user.ErrEmailExists.Error()}, fieldErrors(t, err))
}

func TestService_Authenticate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	active := testutil.CreateUser(t, f.repo, f.roles, "Hero", "hero@test.cd", "LolC@t123", access.RoleStudent, true)
	testutil.CreateUser(t, f.repo, f.roles, "N Dog", "ndog@test.cd", "LolC@t123", access.RoleStudent, false)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "lol@test.cd", pwd: "LolC@t123", wantErr: user.ErrAuthenticationFailed},
		{name: "wrong password", email: "hero@test.cd", pwd: "lol", wantErr: user.ErrAuthenticationFailed},
		{name: "deactivated", email: "ndog@test.cd", pwd: "LolC@t123", wantErr: user.ErrAccountDeactivated},
		{name: "valid (case insensitive)", email: " HERO@test.cd ", pwd: "LolC@t123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := f.svc.Authenticate(ctx, tt.email, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, usr.ID)
			require.NotNil(t, usr.LastLogin)
			assert.WithinDuration(t, time.Now(), *usr.LastLogin, time.Minute)
		})
	}
}

func TestService_RequestPasswordReset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, f.repo, f.roles, "Hero", "hero@test.cd", "LolC@t123", access.RoleStudent, true)
	testutil.CreateUser(t, f.repo, f.roles, "N Dog", "ndog@test.cd", "LolC@t123", access.RoleStudent, false)

	assert.Equal(t, user.ErrNotFound, errors.Cause(f.svc.RequestPasswordReset(ctx, "lol@test.cd")))
	assert.Equal(t, user.ErrAccountDeactivated, errors.Cause(f.svc.RequestPasswordReset(ctx, "ndog@test.cd")))
	assert.Empty(t, f.mailSvc.SentMessages())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, student.Email))
	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, student.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "/reset-password?uid="+user.EncodeUID(student)+"&token=")
}

func TestService_ResetPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, f.repo, f.roles, "Hero", "hero@test.cd", "LolC@t123", access.RoleStudent, true)
	validUID := user.EncodeUID(student)
	validToken, err := f.svc.MakePasswordResetToken(student)
	require.NoError(t, err)
	verifyToken, err := f.svc.MakeEmailVerificationToken(student)
	require.NoError(t, err)

	// generate an expired token
	dayLate := testutil.NewConfig().PasswordResetTimeoutDelta + (24 * time.Hour)
	user.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := f.svc.MakePasswordResetToken(student)
	require.NoError(t, err)
	user.NowFunc = time.Now // reset

	newPwd := "N3w-Secret!"
	tests := []struct {
		name       string
		data       user.ResetUserPassword
		wantFields map[string]string
	}{
		{name: "invalid uid", data: user.ResetUserPassword{UID: "%%%", Token: validToken, Password: newPwd}, wantFields: map[string]string{"uid": "invalid value"}},
		{name: "not a uuid", data: user.ResetUserPassword{UID: "bG9s", Token: validToken, Password: newPwd}, wantFields: map[string]string{"uid": "invalid value"}},
		{name: "user not found", data: user.ResetUserPassword{UID: "ZmZmZmZmZmYtZmZmZi00ZmZmLWJmZmYtZmZmZmZmZmZmZmZm", Token: validToken, Password: newPwd}, wantFields: map[string]string{"uid": "invalid value"}},
		{name: "invalid token", data: user.ResetUserPassword{UID: validUID, Token: "HE4TS-sigsig-sig", Password: newPwd}, wantFields: map[string]string{"token": "invalid value"}},
		{name: "wrong purpose token", data: user.ResetUserPassword{UID: validUID, Token: verifyToken, Password: newPwd}, wantFields: map[string]string{"token": "invalid value"}},
		{name: "expired token", data: user.ResetUserPassword{UID: validUID, Token: expiredToken, Password: newPwd}, wantFields: map[string]string{"token": "invalid value"}},
		{name: "password similar to email", data: user.ResetUserPassword{UID: validUID, Token: validToken, Password: "Hero@test1"}, wantFields: map[string]string{"password": "password cannot be similar to user attributes"}},
		{name: "valid token", data: user.ResetUserPassword{UID: validUID, Token: validToken, Password: newPwd}},
		{name: "token is single use", data: user.ResetUserPassword{UID: validUID, Token: validToken, Password: "An0ther-One!"}, wantFields: map[string]string{"token": "invalid value"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.ResetPassword(ctx, tt.data)
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, fieldErrors(t, err))
				return
			}
			require.NoError(t, err)
			refreshed, err := f.repo.GetUserByID(ctx, student.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(newPwd))
		})
	}
}

func TestService_EmailVerification(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, f.repo, f.roles, "Hero", "hero@test.cd", "LolC@t123", access.RoleStudent, true)

	require.NoError(t, f.svc.RequestEmailVerification(ctx, student.Email))
	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTMLContent, "/verify-email?uid=")

	token, err := f.svc.MakeEmailVerificationToken(student)
	require.NoError(t, err)
	data := user.VerifyUserEmail{UID: user.EncodeUID(student), Token: token}

	usr, err := f.svc.VerifyEmail(ctx, data)
	require.NoError(t, err)
	assert.True(t, usr.EmailVerified)

	_, err = f.svc.VerifyEmail(ctx, data)
	assert.Equal(t, map[string]string{"token": "invalid value"}, fieldErrors(t, err), "token is single use")

	f.mailSvc.Reset()
	require.NoError(t, f.svc.RequestEmailVerification(ctx, student.Email))
	assert.Empty(t, f.mailSvc.SentMessages(), "already verified")
}

func TestService_SetPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, f.repo, f.roles, "Hero", "hero@test.cd", "LolC@t123", access.RoleStudent, true)

	_, err := f.svc.SetPassword(ctx, student, "12345678")
	assert.Equal(t, map[string]string{"password": "password cannot be entirely numeric"}, fieldErrors(t, err))

	usr, err := f.svc.SetPassword(ctx, student, "N3w-Secret!")
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w-Secret!"))
}
