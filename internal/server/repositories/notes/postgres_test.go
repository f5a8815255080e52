package notes

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var noteRowColumns = []string{
	"id", "owner_id", "display_name", "content", "private", "pinned",
	"trashed_at", "trashed_by", "version", "created_at", "updated_at",
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(noteRowColumns).
		AddRow("n1", "u1", "Alice", "milk", false, true, nil, nil, int64(3), now, now)

	mock.ExpectQuery(`SELECT .* FROM notes n JOIN users u ON u\.id = n\.owner_id\s+WHERE n\.id = \$1`).
		WithArgs("n1").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "n1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "n1" || got.OwnerName != "Alice" || got.Version != 3 || !got.Pinned {
		t.Fatalf("unexpected note: %+v", got)
	}
	if got.Trashed() {
		t.Fatalf("note should not be trashed")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM notes n JOIN users u`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestTrash_SuccessRowsAffected1(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE notes SET trashed_at = \$3, trashed_by = \$2 WHERE id = \$1 AND trashed_at IS NULL`).
		WithArgs("n1", "u1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Trash(context.Background(), "n1", "u1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTrash_AlreadyTrashedRowsAffected0(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE notes SET trashed_at = \$3, trashed_by = \$2 WHERE id = \$1 AND trashed_at IS NULL`).
		WithArgs("n1", "u1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Trash(context.Background(), "n1", "u1", at)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDelete_DBExecError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM notes WHERE id = \$1`).
		WithArgs("n1").
		WillReturnError(errors.New("db is down"))

	err := repo.Delete(context.Background(), "n1")
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListAccessible_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(noteRowColumns).
		AddRow("n1", "u1", "Alice", "pinned note", false, true, nil, nil, int64(1), now, now).
		AddRow("n2", "u2", "Bob", "shared note", false, false, nil, nil, int64(4), now, now)

	mock.ExpectQuery(`SELECT .* FROM notes n\s+JOIN users u ON u\.id = n\.owner_id\s+JOIN note_access a ON a\.note_id = n\.id\s+WHERE a\.user_id = \$1 AND n\.trashed_at IS NULL`).
		WithArgs("u1").
		WillReturnRows(rows)

	got, err := repo.ListAccessible(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if got[0].ID != "n1" || !got[0].Pinned {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if got[1].OwnerName != "Bob" {
		t.Fatalf("unexpected second row: %+v", got[1])
	}
}

func TestListAccessible_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM notes n`).
		WithArgs("u1").
		WillReturnError(errors.New("db err"))

	_, err := repo.ListAccessible(context.Background(), "u1")
	if err == nil || !regexp.MustCompile(`failed to select notes: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped select error, got %v", err)
	}
}

func TestListTrashed_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	trashed := now.Add(-time.Hour)
	rows := sqlmock.NewRows(noteRowColumns).
		AddRow("n1", "u1", "Alice", "old", false, false, trashed, "u1", int64(1), now, now).
		AddRow("n2", "u1", "Alice", "older", false, false, trashed, "u1", int64(1), now, now).
		RowError(1, errors.New("row-err"))

	mock.ExpectQuery(`SELECT .* WHERE n\.owner_id = \$1 AND n\.trashed_at IS NOT NULL`).
		WithArgs("u1").
		WillReturnRows(rows)

	_, err := repo.ListTrashed(context.Background(), "u1")
	if err == nil || err.Error() != "row-err" {
		t.Fatalf("expected rows.Err 'row-err', got %v", err)
	}
}

func TestCreate_ReturnsServerFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO notes \(owner_id, content, private, pinned\)`).
		WithArgs("u1", "hello", false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "created_at", "updated_at"}).
			AddRow("n9", int64(1), now, now))

	note, err := repo.Create(context.Background(), &models.Note{OwnerID: "u1", Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note.ID != "n9" || note.Version != 1 {
		t.Fatalf("unexpected note: %+v", note)
	}
}
