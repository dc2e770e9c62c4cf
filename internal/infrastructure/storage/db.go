package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB stores the lineage graph (nodes, edges) and the semantic document
// store (documents, vectors) in a single SQLite database. One DB is
// shared by all concurrent queries; reads need no locking and writes
// are serialized by the single connection.
type DB struct {
	db *sql.DB
}

// NewDB opens (or creates) the database at path and initializes the
// schema. Pass ":memory:" for an ephemeral store.
func NewDB(ctx context.Context, path string) (*DB, error) {
	// WAL mode allows concurrent readers while a write is in flight.
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{db: db}
	if err := d.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// initSchema creates the tables if they don't exist.
func (d *DB) initSchema(ctx context.Context) error {
	schema := `
	-- Lineage graph nodes (tables, dashboards, queries, ...)
	CREATE TABLE IF NOT EXISTS nodes (
		id          TEXT PRIMARY KEY,
		node_type   TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		metadata    TEXT NOT NULL DEFAULT '{}',
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Directed relationships between nodes
	CREATE TABLE IF NOT EXISTS edges (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id  TEXT NOT NULL,
		target_id  TEXT NOT NULL,
		edge_type  TEXT NOT NULL,
		strength   REAL NOT NULL DEFAULT 1.0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES nodes(id),
		FOREIGN KEY (target_id) REFERENCES nodes(id)
	);

	-- Semantic document store
	CREATE TABLE IF NOT EXISTS documents (
		id           TEXT PRIMARY KEY,
		text         TEXT NOT NULL,
		table_name   TEXT NOT NULL,
		column_names TEXT,
		source_type  TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Embedding vectors, float32 little-endian blobs
	CREATE TABLE IF NOT EXISTS vectors (
		id        TEXT PRIMARY KEY,
		embedding BLOB NOT NULL,
		dimension INTEGER NOT NULL,
		FOREIGN KEY (id) REFERENCES documents(id)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_type   ON nodes(node_type);
	CREATE INDEX IF NOT EXISTS idx_nodes_name   ON nodes(name);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_edges_unique ON edges(source_id, target_id, edge_type);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Counts returns the number of stored nodes, edges and documents, for
// health reporting.
func (d *DB) Counts(ctx context.Context) (nodes, edges, documents int, err error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM nodes),
			(SELECT COUNT(*) FROM edges),
			(SELECT COUNT(*) FROM documents)
	`)
	if err := row.Scan(&nodes, &edges, &documents); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return nodes, edges, documents, nil
}
