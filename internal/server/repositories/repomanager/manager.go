package repomanager

import (
	"context"
	"database/sql"

	"github.com/mkuzmins/homeboard/internal/dbx"
	"github.com/mkuzmins/homeboard/internal/server/repositories/noteaccess"
	"github.com/mkuzmins/homeboard/internal/server/repositories/notes"
	"github.com/mkuzmins/homeboard/internal/server/repositories/tags"
	"github.com/mkuzmins/homeboard/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Notes(db dbx.DBTX) notes.Repository
	NoteAccess(db dbx.DBTX) noteaccess.Repository
	Tags(db dbx.DBTX) tags.Repository
}
