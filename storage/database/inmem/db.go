// Package inmemdb keeps the application tables in memory. It backs the dev server when no database is
// configured, and the tests.
package inmemdb

import (
	"sync"

	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		user        *userTable
		role        *roleTable
		certificate *certificateTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	roleTable struct {
		sync.RWMutex
		admins   map[string]access.Role
		students map[string]bool
	}

	certificateTable struct {
		sync.RWMutex
		table map[string]*certificate.Certificate // by code
	}
)

func Open() *DB {
	return &DB{
		user:        &userTable{table: make(map[string]*user.User)},
		role:        &roleTable{admins: make(map[string]access.Role), students: make(map[string]bool)},
		certificate: &certificateTable{table: make(map[string]*certificate.Certificate)},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.certificate.Lock()
	db.certificate.table = make(map[string]*certificate.Certificate)
	db.certificate.Unlock()

	db.role.Lock()
	db.role.admins = make(map[string]access.Role)
	db.role.students = make(map[string]bool)
	db.role.Unlock()

	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()
}
