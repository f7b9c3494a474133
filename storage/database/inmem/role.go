package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/access"
)

type roleRepository struct {
	db *roleTable
}

var (
	_ access.RoleStore  = (*roleRepository)(nil)
	_ access.RoleWriter = (*roleRepository)(nil)
)

func NewRoleRepository(db *DB) *roleRepository {
	return &roleRepository{db: db.role}
}

func (repo *roleRepository) AdminRole(_ context.Context, userID string) (access.Role, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if role, ok := repo.db.admins[userID]; ok {
		return role, nil
	}
	return "", access.ErrNoRoleRecord
}

func (repo *roleRepository) IsStudent(_ context.Context, userID string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.students[userID], nil
}

func (repo *roleRepository) AssignRole(_ context.Context, userID string, role access.Role) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	switch role {
	case access.RoleAdmin, access.RoleSuperAdmin:
		repo.db.admins[userID] = role
	case access.RoleStudent:
		delete(repo.db.admins, userID)
		repo.db.students[userID] = true
	default:
		return errors.Errorf("cannot assign role %q", role)
	}
	return nil
}
