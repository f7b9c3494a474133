package database

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func TestOpen(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{
		Engine: "postgres", Host: "localhost", Port: 5432, Name: "academia",
		User: "academia", Password: "p@ss", DisableTLS: true,
	}}

	db, err := Open(conf)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "postgres", db.DriverName())
}

func TestRunMigrations_arguments(t *testing.T) {
	tests := []struct {
		command string
		args    []string
		wantErr string
	}{
		{command: "lol", wantErr: `"lol": no such command`},
		{command: "up-to", wantErr: "up-to must be of form: migrate up-to VERSION"},
		{command: "up-to", args: []string{"lol"}, wantErr: "version must be a number (got 'lol')"},
		{command: "down-to", wantErr: "down-to must be of form: migrate down-to VERSION"},
		{command: "down-to", args: []string{"lol"}, wantErr: "version must be a number (got 'lol')"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			assert.EqualError(t, RunMigrations(nil, tt.command, tt.args...), tt.wantErr)
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := errors.Wrap(&pq.Error{Code: "23505", Constraint: "users_email_key"}, "creating user")
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(err, "users_email_key"))
	assert.False(t, IsUniqueViolation(err, "certificates_code_key"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("lol")))
}
