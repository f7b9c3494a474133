package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/storage/database"
)

type certificateRepository struct {
	exec core.DBExecutor
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(exec core.DBExecutor) certificate.Repository {
	return &certificateRepository{exec: exec}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	q := `INSERT INTO certificates (id, code, student_id, course_title, issued_by, issued_at)
		VALUES (:id, :code, :student_id, :course_title, :issued_by, :issued_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.exec, q, cert); err != nil {
		if database.IsUniqueViolation(err, "certificates_code_key") {
			return certificate.Certificate{}, certificate.ErrCodeExists
		}
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return cert, nil
}

func (repo *certificateRepository) GetCertificateByCode(ctx context.Context, code string) (certificate.Certificate, error) {
	var cert certificate.Certificate
	q := repo.exec.Rebind("SELECT id, code, student_id, course_title, issued_by, issued_at FROM certificates WHERE code = ?")
	if err := repo.exec.GetContext(ctx, &cert, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, errors.Wrap(err, "selecting certificate")
	}
	return cert, nil
}
