package inmemdb

import (
	"context"

	"github.com/trezcool/academia/core/certificate"
)

type certificateRepository struct {
	db *certificateTable
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db.certificate}
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[cert.Code]; ok {
		return certificate.Certificate{}, certificate.ErrCodeExists
	}
	repo.db.table[cert.Code] = &cert
	return cert, nil
}

func (repo *certificateRepository) GetCertificateByCode(_ context.Context, code string) (certificate.Certificate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cert, ok := repo.db.table[code]; ok {
		return *cert, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}
