// Package sqlite implements the repository interfaces on an embedded SQLite
// database.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds without a C
// toolchain. The driver registers itself with database/sql as "sqlite".
//
// sqlx sits on top of database/sql only for scanning: GetContext and
// SelectContext fill the row structs below by their `db` tags. Row structs
// are converted to model types before they leave this package.
//
// The schema is owned by golang-migrate (see migrate.go); New applies any
// pending migrations before returning.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps the connection pool and implements every repository interface.
type DB struct {
	conn *sqlx.DB
}

// New opens the database at dbPath, configures it and runs migrations.
//
// dbPath examples:
//   - "data/indie_arcade.db" → file-based database (persistent)
//   - ":memory:"             → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite serialises writers anyway. One connection also keeps ":memory:"
	// databases from splitting into one private database per connection.
	raw.SetMaxOpenConns(1)

	if err := raw.Ping(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := raw.Exec("PRAGMA journal_mode=WAL"); err != nil {
		raw.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default. posts.username and post_likes rely
	// on them (including ON DELETE CASCADE for likes).
	if _, err := raw.Exec("PRAGMA foreign_keys=ON"); err != nil {
		raw.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if err := migrateUp(raw); err != nil {
		raw.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	// "sqlite3" only selects sqlx's '?' bind style; the connection itself
	// is the modernc driver opened above.
	return &DB{conn: sqlx.NewDb(raw, "sqlite3")}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY failure.
func isForeignKeyViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "FOREIGN KEY")
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
