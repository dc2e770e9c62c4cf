package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mshogin/lineage/internal/domain/models"
	"github.com/mshogin/lineage/internal/domain/services"
)

// EdgeFeedsInto is the relationship the upstream traversal follows.
const EdgeFeedsInto = "FEEDS_INTO"

// AddNode inserts a node, updating the description if the ID already
// exists.
func (d *DB) AddNode(ctx context.Context, id, nodeType, name, description string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO nodes (id, node_type, name, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET description = excluded.description
	`, id, nodeType, name, description)
	if err != nil {
		return fmt.Errorf("failed to add node %s: %w", id, err)
	}
	return nil
}

// AddEdge inserts a directed relationship between two nodes, updating
// the strength if the edge already exists.
func (d *DB) AddEdge(ctx context.Context, sourceID, targetID, edgeType string, strength float64) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO edges (source_id, target_id, edge_type, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_id, target_id, edge_type) DO UPDATE SET strength = excluded.strength
	`, sourceID, targetID, edgeType, strength)
	if err != nil {
		return fmt.Errorf("failed to add edge %s -> %s: %w", sourceID, targetID, err)
	}
	return nil
}

// Dependencies walks upstream from nodeID across FEEDS_INTO edges,
// bounded by depth, and reports every node that feeds into it ordered
// by increasing depth. Direct dependencies have depth 0.
func (d *DB) Dependencies(ctx context.Context, nodeID string, depth int) (*models.DependencyReport, error) {
	rows, err := d.db.QueryContext(ctx, `
		WITH RECURSIVE upstream(id, depth) AS (
			SELECT source_id, 0
			FROM edges
			WHERE target_id = ? AND edge_type = ?

			UNION ALL

			SELECT e.source_id, u.depth + 1
			FROM edges e
			JOIN upstream u ON e.target_id = u.id
			WHERE u.depth < ?
		)
		SELECT DISTINCT n.id, n.name, n.node_type, u.depth
		FROM upstream u
		JOIN nodes n ON u.id = n.id
		ORDER BY u.depth
	`, nodeID, EdgeFeedsInto, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies of %s: %w", nodeID, err)
	}
	defer rows.Close()

	report := &models.DependencyReport{
		Root:         nodeID,
		Dependencies: []models.DependencyNode{},
	}
	for rows.Next() {
		var dep models.DependencyNode
		if err := rows.Scan(&dep.ID, &dep.Name, &dep.Type, &dep.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan dependency row: %w", err)
		}
		report.Dependencies = append(report.Dependencies, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dependencies: %w", err)
	}
	return report, nil
}

// Node fetches a single node with its metadata.
func (d *DB) Node(ctx context.Context, nodeID string) (*models.Node, error) {
	var (
		node     models.Node
		metadata string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, node_type, description, metadata, created_at
		FROM nodes WHERE id = ?
	`, nodeID).Scan(&node.ID, &node.Name, &node.Type, &node.Description, &metadata, &node.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch node %s: %w", nodeID, err)
	}

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &node.Metadata); err != nil {
			node.Metadata = map[string]any{}
		}
	}
	return &node, nil
}

// NodeCreatedAt returns the node's creation timestamp.
func (d *DB) NodeCreatedAt(ctx context.Context, nodeID string) (time.Time, error) {
	var raw string
	err := d.db.QueryRowContext(ctx, `
		SELECT created_at FROM nodes WHERE id = ?
	`, nodeID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch created_at for %s: %w", nodeID, err)
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", time.DateOnly} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse created_at %q for %s", raw, nodeID)
}

var _ services.GraphReader = (*DB)(nil)
