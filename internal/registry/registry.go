// Package registry is a database/sql-backed store of previously
// published (uid, label, image-hash) triples (SPEC_FULL §11), written
// and listed by the `svm registry` subcommands. `svm link` does not
// consult it: imports resolve only against the object files passed on
// the current command line.
//
// Open's driver-name mapping and the RWMutex-guarded single connection
// are the direct descendants of sentra/internal/database.DBManager,
// generalized from ad hoc user queries to the registry's fixed
// statements (publish an export, look one up by uid, list all). The default
// backend is the pure-Go modernc.org/sqlite, the same preference the
// teacher's manager gives it over the cgo mattn/go-sqlite3 driver;
// MySQL, Postgres, and SQL Server are reachable via DSN scheme for
// teams running a shared registry server.
package registry

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/google/uuid"
)

// Entry is one published export: the symbol a later build's Import can
// resolve against, plus the image it was last seen in.
type Entry struct {
	UID       uuid.UUID
	Label     string
	ImageHash string // hex-encoded, from internal/hash
	Published time.Time
}

// Registry wraps a single *sql.DB connection, opened against one of the
// supported backends.
type Registry struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open connects to dbType ("sqlite", "postgres", "mysql", "sqlserver")
// at dsn and ensures the registry's single table exists. An empty dsn
// with dbType "sqlite" opens an in-memory registry, convenient for
// single-command `svm link` invocations that never share state across
// processes.
func Open(dbType, dsn string) (*Registry, error) {
	var driverName string
	switch dbType {
	case "sqlite", "sqlite3", "":
		driverName = "sqlite"
		if dsn == "" {
			dsn = ":memory:"
		}
	case "postgres", "postgresql":
		driverName = "postgres"
	case "mysql":
		driverName = "mysql"
	case "sqlserver", "mssql":
		driverName = "sqlserver"
	default:
		return nil, fmt.Errorf("registry: unsupported database type %q", dbType)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to connect: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: failed to ping: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS svm_exports (
		uid TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		image_hash TEXT NOT NULL,
		published_at TIMESTAMP NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: failed to create schema: %w", err)
	}

	return &Registry{db: db}, nil
}

// Publish records (or overwrites) one exported symbol's location.
func (r *Registry) Publish(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO svm_exports (uid, label, image_hash, published_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET label=excluded.label, image_hash=excluded.image_hash, published_at=excluded.published_at`,
		e.UID.String(), e.Label, e.ImageHash, e.Published)
	if err != nil {
		return fmt.Errorf("registry: publish failed: %w", err)
	}
	return nil
}

// Lookup finds a previously published export by its 128-bit symbol uid.
// ok is false if nothing has ever been published under that uid.
func (r *Registry) Lookup(uid uuid.UUID) (Entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRow(`SELECT uid, label, image_hash, published_at FROM svm_exports WHERE uid = ?`, uid.String())

	var e Entry
	var uidStr string
	if err := row.Scan(&uidStr, &e.Label, &e.ImageHash, &e.Published); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("registry: lookup failed: %w", err)
	}
	parsed, err := uuid.Parse(uidStr)
	if err != nil {
		return Entry{}, false, fmt.Errorf("registry: corrupt uid %q: %w", uidStr, err)
	}
	e.UID = parsed
	return e, true, nil
}

// List returns every published export, most recently published first.
func (r *Registry) List() ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query(`SELECT uid, label, image_hash, published_at FROM svm_exports ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("registry: list failed: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var uidStr string
		if err := rows.Scan(&uidStr, &e.Label, &e.ImageHash, &e.Published); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(uidStr)
		if err != nil {
			return nil, fmt.Errorf("registry: corrupt uid %q: %w", uidStr, err)
		}
		e.UID = parsed
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}
