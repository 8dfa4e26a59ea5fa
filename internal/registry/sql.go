package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"
)

// schemaSQL defines the tables backing a SQL registry.
// Tables:
//   - registry_classes: every known class, including classes with no entries
//   - registry_entries: class/stable id -> semantic id bindings
//   - registry_meta: bookkeeping; a saved_at row marks the registry as existing
const schemaSQL = `
CREATE TABLE IF NOT EXISTS registry_classes (
    class TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS registry_entries (
    class TEXT NOT NULL,
    stable_id TEXT NOT NULL,
    semantic_id TEXT NOT NULL,
    PRIMARY KEY (class, stable_id)
);

CREATE TABLE IF NOT EXISTS registry_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_registry_entries_semantic ON registry_entries(class, semantic_id);
`

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	driver      string
	numbered    bool // $1 placeholders instead of ?
	description string
}

var (
	sqliteDialect   = dialect{driver: "sqlite", description: "sqlite"}
	postgresDialect = dialect{driver: "pgx", numbered: true, description: "postgres"}
)

// rebind rewrites ? placeholders for dialects with numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLBackend stores the registry in a SQL database.
type SQLBackend struct {
	db       *sql.DB
	dialect  dialect
	location string
}

// OpenSQLite opens or creates a SQLite registry database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	return newSQLBackend(ctx, db, sqliteDialect, path)
}

// OpenPostgres connects to a PostgreSQL registry database.
func OpenPostgres(ctx context.Context, dsn string) (*SQLBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect registry db: %w", err)
	}
	return newSQLBackend(ctx, db, postgresDialect, redactDSN(dsn))
}

func newSQLBackend(ctx context.Context, db *sql.DB, d dialect, location string) (*SQLBackend, error) {
	b := &SQLBackend{db: db, dialect: d, location: location}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return b, nil
}

func (b *SQLBackend) Name() string {
	return b.dialect.description + ":" + b.location
}

// Close closes the database connection.
func (b *SQLBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// DB returns the underlying database connection.
func (b *SQLBackend) DB() *sql.DB {
	return b.db
}

func (b *SQLBackend) Load(ctx context.Context) (map[string]map[string]string, error) {
	var savedAt string
	err := b.db.QueryRowContext(ctx, b.dialect.rebind("SELECT value FROM registry_meta WHERE key = ?"), "saved_at").Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("read registry meta: %w", err)
	}

	m := make(map[string]map[string]string)

	rows, err := b.db.QueryContext(ctx, "SELECT class FROM registry_classes")
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan class: %w", err)
		}
		m[class] = make(map[string]string)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = b.db.QueryContext(ctx, "SELECT class, stable_id, semantic_id FROM registry_entries")
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var class, stable, semantic string
		if err := rows.Scan(&class, &stable, &semantic); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if m[class] == nil {
			m[class] = make(map[string]string)
		}
		m[class][stable] = semantic
	}
	return m, rows.Err()
}

// Save replaces every stored row in a single transaction.
func (b *SQLBackend) Save(ctx context.Context, m map[string]map[string]string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM registry_entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM registry_classes"); err != nil {
		return fmt.Errorf("clear classes: %w", err)
	}

	classStmt, err := tx.PrepareContext(ctx, b.dialect.rebind("INSERT INTO registry_classes (class) VALUES (?)"))
	if err != nil {
		return fmt.Errorf("prepare class insert: %w", err)
	}
	defer classStmt.Close()

	entryStmt, err := tx.PrepareContext(ctx, b.dialect.rebind(
		"INSERT INTO registry_entries (class, stable_id, semantic_id) VALUES (?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer entryStmt.Close()

	r := FromMap(m)
	for _, class := range r.Classes() {
		if _, err := classStmt.ExecContext(ctx, class); err != nil {
			return fmt.Errorf("insert class %s: %w", class, err)
		}
		for _, e := range r.Entries(class) {
			if _, err := entryStmt.ExecContext(ctx, e.Class, e.StableID, e.SemanticID); err != nil {
				return fmt.Errorf("insert entry %s/%s: %w", e.Class, e.StableID, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, b.dialect.rebind(`
		INSERT INTO registry_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		"saved_at", time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("update registry meta: %w", err)
	}

	return tx.Commit()
}

// redactDSN strips credentials from a connection string used in diagnostics.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
