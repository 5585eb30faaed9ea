package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/passport/internal/dbx"
	"github.com/dmitrijs2005/passport/internal/server/repositories/apikeys"
	"github.com/dmitrijs2005/passport/internal/server/repositories/audit"
	"github.com/dmitrijs2005/passport/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/passport/internal/server/repositories/emergency"
	"github.com/dmitrijs2005/passport/internal/server/repositories/history"
	"github.com/dmitrijs2005/passport/internal/server/repositories/passwords"
	"github.com/dmitrijs2005/passport/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/passport/internal/server/repositories/shares"
	"github.com/dmitrijs2005/passport/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so services can use
// the same code with *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Passwords(db dbx.DBTX) passwords.Repository
	History(db dbx.DBTX) history.Repository
	Shares(db dbx.DBTX) shares.Repository
	Emergency(db dbx.DBTX) emergency.Repository
	APIKeys(db dbx.DBTX) apikeys.Repository
	Audit(db dbx.DBTX) audit.Repository
	Blobs(db dbx.DBTX) blobs.Repository
}
