// Package workflow defines interfaces for the migration workflow.
package workflow

import (
	"context"

	"github.com/codebypatrickleung/lakeshift-cli/internal/databricks"
)

// DashboardClient is the remote surface the orchestrator drives for one
// workspace. Implemented by databricks.Client; faked in tests.
type DashboardClient interface {
	// ListLegacyDashboards enumerates all legacy SQL dashboards.
	ListLegacyDashboards(ctx context.Context) ([]databricks.LegacyDashboard, error)

	// ListLakeviewDashboards enumerates all Lakeview dashboards with their
	// published status populated.
	ListLakeviewDashboards(ctx context.Context) ([]databricks.LakeviewDashboard, error)

	// Migrate converts one legacy dashboard into a Lakeview dashboard.
	Migrate(ctx context.Context, dashboardID, displayName string) (*databricks.MigrateResponse, error)

	// Publish publishes a Lakeview dashboard.
	Publish(ctx context.Context, dashboardID, warehouseID string, embedCredentials bool) error

	// DeleteLegacy deletes (moves to trash) a legacy dashboard.
	DeleteLegacy(ctx context.Context, dashboardID string) error
}
