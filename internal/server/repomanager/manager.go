package repomanager

import (
	"context"
	"database/sql"

	"github.com/chatvault/chatvault/internal/dbx"
	"github.com/chatvault/chatvault/internal/server/keys"
	"github.com/chatvault/chatvault/internal/server/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Keys(db dbx.DBTX) keys.Repository
}
