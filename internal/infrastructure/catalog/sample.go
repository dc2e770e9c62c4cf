package catalog

import "github.com/mshogin/lineage/internal/domain/models"

// SampleNode is one node of the built-in sample lineage.
type SampleNode struct {
	ID          string
	Type        string
	Name        string
	Description string
}

// SampleEdge is one directed edge of the built-in sample lineage.
type SampleEdge struct {
	SourceID string
	TargetID string
	Type     string
}

// SampleLineageNodes returns the built-in demo lineage: a small
// e-commerce pipeline from raw source tables up to a revenue dashboard.
func SampleLineageNodes() []SampleNode {
	return []SampleNode{
		{ID: "table_users", Type: "Table", Name: "users", Description: "User master data"},
		{ID: "table_orders", Type: "Table", Name: "orders", Description: "Raw orders"},
		{ID: "table_order_clean", Type: "Table", Name: "order_clean", Description: "Cleaned orders"},
		{ID: "table_revenue_daily", Type: "Table", Name: "revenue_daily", Description: "Daily revenue"},
		{ID: "dashboard_revenue", Type: "Dashboard", Name: "revenue_dashboard", Description: "Revenue dashboard"},
	}
}

// SampleLineageEdges returns the FEEDS_INTO edges of the demo lineage.
func SampleLineageEdges() []SampleEdge {
	return []SampleEdge{
		{SourceID: "table_orders", TargetID: "table_order_clean", Type: "FEEDS_INTO"},
		{SourceID: "table_order_clean", TargetID: "table_revenue_daily", Type: "FEEDS_INTO"},
		{SourceID: "table_users", TargetID: "table_revenue_daily", Type: "FEEDS_INTO"},
		{SourceID: "table_revenue_daily", TargetID: "dashboard_revenue", Type: "FEEDS_INTO"},
	}
}

// SampleLineageDocuments returns the semantic description of each demo
// node, one document per node.
func SampleLineageDocuments() []models.Document {
	return []models.Document{
		{
			ID:         "table_users",
			Text:       "Users table contains user_id, email, name, created_at. Source system: production_db",
			TableName:  "users",
			SourceType: "source",
		},
		{
			ID:         "table_orders",
			Text:       "Orders table contains order_id, user_id, amount, order_date. Source system: production_db",
			TableName:  "orders",
			SourceType: "source",
		},
		{
			ID:         "table_order_clean",
			Text:       "Cleaned orders data with validation, deduplication. Transforms: order_raw -> order_clean",
			TableName:  "order_clean",
			SourceType: "transform",
		},
		{
			ID:         "table_revenue_daily",
			Text:       "Daily revenue aggregated by date. Depends on: order_clean, users. Aggregates to revenue per day",
			TableName:  "revenue_daily",
			SourceType: "transform",
		},
		{
			ID:         "dashboard_revenue",
			Text:       "Revenue dashboard displays daily revenue trends. Depends on: revenue_daily",
			TableName:  "revenue_dashboard",
			SourceType: "dashboard",
		},
	}
}
