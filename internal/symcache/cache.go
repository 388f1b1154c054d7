// Package symcache implements component C5, the Symbol Cache: a
// content-hash-keyed, disk-persisted store of per-file hierarchical symbol
// trees (spec.md §4.5). It follows the schema-version-table +
// ordered-migrations-slice pattern of
// apps/cli/internal/corridor/schema.go and global.go's sql.Open("sqlite",
// path+"?_pragma=...") wiring, generalized from corridor's
// learnings/links tables to a single symbols table keyed by
// (relative_path, language), each row's content hash compared on lookup.
package symcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/koksalmehmet/symbex/internal/symbol"
)

// schemaVersion is bumped whenever the on-disk row shape changes. A
// mismatch between a loaded entry's stored version and this constant
// drops that entry rather than attempting to interpret it, per spec.md
// §4.5 ("schema mismatch drops the file").
const schemaVersion = 1

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

var migrations = []func(*sql.Tx) error{
	migrateV0,
}

func migrateV0(tx *sql.Tx) error {
	schema := `
CREATE TABLE IF NOT EXISTS symbols (
    relative_path TEXT NOT NULL,
    content_hash  TEXT NOT NULL,
    language      TEXT NOT NULL,
    schema_version INTEGER NOT NULL,
    tree_json     TEXT NOT NULL,
    overview_json TEXT NOT NULL DEFAULT '',
    updated_at    TEXT NOT NULL,
    PRIMARY KEY (relative_path, language)
);
`
	_, err := tx.ExecContext(context.Background(), schema)
	return err
}

func initDB(db *sql.DB) error {
	if _, err := db.ExecContext(context.Background(), schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}
	var current int
	row := db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for i := current + 1; i < len(migrations); i++ {
		if err := runMigration(db, i); err != nil {
			return fmt.Errorf("run migration %d: %w", i, err)
		}
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := migrations[version](tx); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(context.Background(), "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// Cache is a project-local, content-hash-keyed symbol store. One Cache is
// shared by every task operating on a project; per spec.md §7 access is
// read-mostly and writers must never block readers of other entries --
// sqlite's own row-level contention plus a short busy_timeout gives us
// that without an additional in-process lock.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database under
// projectDir/.symbex/cache/symbols.db, applying any pending migrations.
func Open(projectDir string) (*Cache, error) {
	dir := filepath.Join(projectDir, ".symbex", "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dbPath := filepath.Join(dir, "symbols.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open symbol cache db: %w", err)
	}
	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// OpenMemory opens an in-memory cache, for tests and for adapters that
// opt out of disk persistence.
func OpenMemory() (*Cache, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory symbol cache: %w", err)
	}
	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// HashContent computes the content hash a cache entry is keyed by.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}

// Lookup returns the cached symbol tree for relativePath under the given
// language, provided its stored content hash matches currentHash and its
// stored schema version matches the running schema version. A mismatch
// on either is reported as a miss, never as an error -- callers fall
// through to the LSP query path.
func (c *Cache) Lookup(ctx context.Context, relativePath, language, currentHash string) ([]symbol.Symbol, bool, error) {
	var storedHash, treeJSON string
	var storedVersion int
	row := c.db.QueryRowContext(ctx,
		`SELECT content_hash, schema_version, tree_json FROM symbols WHERE relative_path = ? AND language = ?`,
		relativePath, language)
	switch err := row.Scan(&storedHash, &storedVersion, &treeJSON); err {
	case sql.ErrNoRows:
		return nil, false, nil
	case nil:
		// fall through
	default:
		return nil, false, fmt.Errorf("query symbol cache: %w", err)
	}
	if storedVersion != schemaVersion || storedHash != currentHash {
		return nil, false, nil
	}
	var tree []symbol.Symbol
	if err := json.Unmarshal([]byte(treeJSON), &tree); err != nil {
		// A corrupt row is treated the same as a schema mismatch: drop
		// and report a miss rather than erroring the caller's request.
		return nil, false, nil
	}
	return tree, true, nil
}

// Store writes (or overwrites) relativePath's symbol tree under
// contentHash, keyed per language so the same file can carry independent
// entries for a primary adapter and a hybrid companion server.
func (c *Cache) Store(ctx context.Context, relativePath, language, contentHash string, tree []symbol.Symbol) error {
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal symbol tree: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
INSERT INTO symbols (relative_path, content_hash, language, schema_version, tree_json, overview_json, updated_at)
VALUES (?, ?, ?, ?, ?, '', ?)
ON CONFLICT(relative_path, language) DO UPDATE SET
    content_hash = excluded.content_hash,
    schema_version = excluded.schema_version,
    tree_json = excluded.tree_json,
    updated_at = excluded.updated_at
`, relativePath, contentHash, language, schemaVersion, string(treeJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store symbol tree: %w", err)
	}
	return nil
}

// Invalidate removes relativePath's entry for language, e.g. after an
// edit changes the file's content hash (spec.md §8's rename/edit flow
// requires the stale entry be gone before any subsequent read, not
// merely superseded on next write).
func (c *Cache) Invalidate(ctx context.Context, relativePath, language string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM symbols WHERE relative_path = ? AND language = ?`, relativePath, language)
	if err != nil {
		return fmt.Errorf("invalidate symbol cache entry: %w", err)
	}
	return nil
}

// InvalidateFile removes every language's entry for relativePath, used
// when a file is deleted or moved.
func (c *Cache) InvalidateFile(ctx context.Context, relativePath string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM symbols WHERE relative_path = ?`, relativePath)
	if err != nil {
		return fmt.Errorf("invalidate symbol cache file: %w", err)
	}
	return nil
}
