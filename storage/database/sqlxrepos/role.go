package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
)

type roleRepository struct {
	exec core.DBExecutor
}

var (
	_ access.RoleStore  = (*roleRepository)(nil)
	_ access.RoleWriter = (*roleRepository)(nil)
)

func NewRoleRepository(exec core.DBExecutor) *roleRepository {
	return &roleRepository{exec: exec}
}

func (repo *roleRepository) AdminRole(ctx context.Context, userID string) (access.Role, error) {
	var name string
	err := repo.exec.GetContext(ctx, &name, repo.exec.Rebind("SELECT role FROM admins WHERE user_id = ?"), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", access.ErrNoRoleRecord
		}
		return "", errors.Wrap(err, "selecting admin role")
	}
	role, ok := access.ParseRole(name)
	if !ok {
		return "", errors.Errorf("invalid admin role %q", name)
	}
	return role, nil
}

func (repo *roleRepository) IsStudent(ctx context.Context, userID string) (bool, error) {
	var exists bool
	q := repo.exec.Rebind("SELECT EXISTS (SELECT 1 FROM students WHERE user_id = ?)")
	if err := repo.exec.GetContext(ctx, &exists, q, userID); err != nil {
		return false, errors.Wrap(err, "selecting student")
	}
	return exists, nil
}

// AssignRole upserts the role record. Callers wanting atomicity pass a *sqlx.Tx as executor.
func (repo *roleRepository) AssignRole(ctx context.Context, userID string, role access.Role) error {
	switch role {
	case access.RoleAdmin, access.RoleSuperAdmin:
		q := repo.exec.Rebind(`INSERT INTO admins (user_id, role) VALUES (?, ?)
			ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`)
		if _, err := repo.exec.ExecContext(ctx, q, userID, string(role)); err != nil {
			return errors.Wrap(err, "upserting admin")
		}
	case access.RoleStudent:
		if _, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM admins WHERE user_id = ?"), userID); err != nil {
			return errors.Wrap(err, "deleting admin")
		}
		q := repo.exec.Rebind("INSERT INTO students (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING")
		if _, err := repo.exec.ExecContext(ctx, q, userID); err != nil {
			return errors.Wrap(err, "inserting student")
		}
	default:
		return errors.Errorf("cannot assign role %q", role)
	}
	return nil
}
