package certificate_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/storage/database/inmem"
	"github.com/trezcool/academia/tests"
)

type collidingRepo struct {
	certificate.Repository
	collisions int
}

func (r *collidingRepo) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	if r.collisions > 0 {
		r.collisions--
		return certificate.Certificate{}, certificate.ErrCodeExists
	}
	return r.Repository.CreateCertificate(ctx, cert)
}

func TestService_IssueVerify(t *testing.T) {
	ctx := context.Background()
	conf := testutil.NewConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	roles := inmemdb.NewRoleRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf, new(testutil.Logger)), conf)
	repo := &collidingRepo{Repository: inmemdb.NewCertificateRepository(db)}
	svc := certificate.NewService(repo, usrSvc)

	admin := testutil.CreateUser(t, usrRepo, roles, "Admin", "admin@test.cd", "", access.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, roles, "Hero", "hero@test.cd", "", access.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, roles, "N Dog", "ndog@test.cd", "", access.RoleStudent, false)

	issuedAt := time.Date(2021, time.June, 30, 12, 0, 0, 0, time.UTC)
	certificate.NowFunc = func() time.Time { return issuedAt }
	defer func() { certificate.NowFunc = time.Now }()

	t.Run("unknown student", func(t *testing.T) {
		_, err := svc.Issue(ctx, admin.ID, certificate.NewCertificate{StudentEmail: "lol@test.cd", CourseTitle: "Go"})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "student_email", vErr.Fields[0].Field)
	})

	t.Run("deactivated student", func(t *testing.T) {
		_, err := svc.Issue(ctx, admin.ID, certificate.NewCertificate{StudentEmail: "ndog@test.cd", CourseTitle: "Go"})
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})

	var cert certificate.Certificate
	t.Run("issue (retries on code collision)", func(t *testing.T) {
		repo.collisions = 2
		var err error
		cert, err = svc.Issue(ctx, admin.ID, certificate.NewCertificate{StudentEmail: student.Email, CourseTitle: "Go 101"})
		require.NoError(t, err)
		assert.Regexp(t, `^ACD-[0-9A-F]{12}$`, cert.Code)
		assert.Equal(t, student.ID, cert.StudentID)
		assert.Equal(t, admin.ID, cert.IssuedBy)
		assert.Equal(t, issuedAt, cert.IssuedAt)
	})

	t.Run("too many collisions", func(t *testing.T) {
		repo.collisions = 3
		_, err := svc.Issue(ctx, admin.ID, certificate.NewCertificate{StudentEmail: student.Email, CourseTitle: "Go 102"})
		assert.Equal(t, certificate.ErrCodeExists, errors.Cause(err))
	})

	t.Run("verify", func(t *testing.T) {
		v, err := svc.Verify(ctx, " "+cert.Code+" ")
		require.NoError(t, err)
		assert.Equal(t, certificate.Verification{
			Code:        cert.Code,
			Valid:       true,
			StudentName: "Hero",
			CourseTitle: "Go 101",
			IssuedAt:    issuedAt,
		}, v)
	})

	t.Run("verify lowercase", func(t *testing.T) {
		v, err := svc.Verify(ctx, "acd-"+cert.Code[4:])
		require.NoError(t, err)
		assert.Equal(t, cert.Code, v.Code)
	})

	t.Run("verify unknown", func(t *testing.T) {
		for _, code := range []string{"", "lol", "ACD-000000000000"} {
			_, err := svc.Verify(ctx, code)
			assert.Equal(t, certificate.ErrNotFound, errors.Cause(err), code)
		}
	})
}

func TestNewCertificate_Validate(t *testing.T) {
	validate, _ := core.NewValidator()

	nc := certificate.NewCertificate{StudentEmail: " HERO@test.cd ", CourseTitle: "  Go 101 "}
	require.NoError(t, nc.Validate(validate))
	assert.Equal(t, "hero@test.cd", nc.StudentEmail)
	assert.Equal(t, "Go 101", nc.CourseTitle)

	nc = certificate.NewCertificate{StudentEmail: "lol"}
	assert.Error(t, nc.Validate(validate))
}
