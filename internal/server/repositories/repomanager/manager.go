// Package repomanager aggregates repository constructors over a shared
// database handle, so services can run several repositories inside one
// transaction by passing the same dbx.DBTX to each.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/sbelyakov/authkeeper/internal/dbx"
	"github.com/sbelyakov/authkeeper/internal/server/repositories/challenges"
	"github.com/sbelyakov/authkeeper/internal/server/repositories/credentials"
	"github.com/sbelyakov/authkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	Challenges(db dbx.DBTX) challenges.Repository
}
