package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebypatrickleung/lakeshift-cli/internal/config"
	"github.com/codebypatrickleung/lakeshift-cli/internal/databricks"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
	"github.com/codebypatrickleung/lakeshift-cli/internal/miglog"
)

// fakeClient implements DashboardClient with overridable behavior and call
// tracking for each operation.
type fakeClient struct {
	legacy   []databricks.LegacyDashboard
	lakeview []databricks.LakeviewDashboard

	migrateFn func(dashboardID string) (*databricks.MigrateResponse, error)
	publishFn func(dashboardID string) error
	deleteFn  func(dashboardID string) error

	migrateCalls []string
	publishCalls []string
	deleteCalls  []string
}

func (f *fakeClient) ListLegacyDashboards(ctx context.Context) ([]databricks.LegacyDashboard, error) {
	return f.legacy, nil
}

func (f *fakeClient) ListLakeviewDashboards(ctx context.Context) ([]databricks.LakeviewDashboard, error) {
	return f.lakeview, nil
}

func (f *fakeClient) Migrate(ctx context.Context, dashboardID, displayName string) (*databricks.MigrateResponse, error) {
	f.migrateCalls = append(f.migrateCalls, dashboardID)
	if f.migrateFn != nil {
		return f.migrateFn(dashboardID)
	}
	id := databricks.FlexID("new-" + dashboardID)
	return &databricks.MigrateResponse{DashboardID: id}, nil
}

func (f *fakeClient) Publish(ctx context.Context, dashboardID, warehouseID string, embedCredentials bool) error {
	f.publishCalls = append(f.publishCalls, dashboardID)
	if f.publishFn != nil {
		return f.publishFn(dashboardID)
	}
	return nil
}

func (f *fakeClient) DeleteLegacy(ctx context.Context, dashboardID string) error {
	f.deleteCalls = append(f.deleteCalls, dashboardID)
	if f.deleteFn != nil {
		return f.deleteFn(dashboardID)
	}
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Host:       "https://test.cloud.databricks.com",
		Token:      "dapi-test",
		LogFile:    filepath.Join(t.TempDir(), "log.csv"),
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}
}

func newTestManager(cfg *config.Config, client *fakeClient) *Manager {
	mgr := NewManager(cfg, logger.New(false), "test")
	mgr.newClient = func(host, token string) DashboardClient { return client }
	return mgr
}

func recordByLegacyID(records []miglog.Record, id string) *miglog.Record {
	for i := range records {
		if records[i].LegacyID == id {
			return &records[i]
		}
	}
	return nil
}

func TestRunMigratesPublishesAndDeletes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish = true
	cfg.DeleteLegacy = true

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{
			{ID: "A", Name: "Dashboard A", Owner: "alice@example.com"},
			{ID: "B", Name: "Dashboard B", Owner: "bob@example.com"},
		},
		migrateFn: func(id string) (*databricks.MigrateResponse, error) {
			if id == "B" {
				return nil, errors.New("HTTP 500: internal error")
			}
			return &databricks.MigrateResponse{DashboardID: databricks.FlexID("new-" + id)}, nil
		},
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	a := recordByLegacyID(records, "A")
	if a == nil {
		t.Fatal("Expected a record for dashboard A")
	}
	if !a.Migrated || a.LakeviewID != "new-A" {
		t.Errorf("Expected A migrated to 'new-A', got %+v", a)
	}
	if !a.Published || a.PublishDatetime == "" {
		t.Errorf("Expected A published with timestamp, got %+v", a)
	}
	if !a.DeletedLegacy {
		t.Errorf("Expected A's legacy dashboard deleted, got %+v", a)
	}
	if a.Error != "" {
		t.Errorf("Expected A to carry no error, got %q", a.Error)
	}
	if a.MigrationDatetime == "" {
		t.Error("Expected A to carry a migration timestamp")
	}

	b := recordByLegacyID(records, "B")
	if b == nil {
		t.Fatal("Expected a record for dashboard B")
	}
	if b.Migrated || b.Published || b.DeletedLegacy {
		t.Errorf("Expected B fully failed, got %+v", b)
	}
	if b.MigrationDatetime != "" {
		t.Errorf("Expected B's migration timestamp cleared on failure, got %q", b.MigrationDatetime)
	}
	if !strings.HasPrefix(b.Error, "migrate_error: ") || strings.Contains(b.Error, ";") {
		t.Errorf("Expected a single migrate error entry, got %q", b.Error)
	}

	// B failed all 3 attempts; A took one.
	migrateB := 0
	for _, id := range client.migrateCalls {
		if id == "B" {
			migrateB++
		}
	}
	if migrateB != 3 {
		t.Errorf("Expected 3 migrate attempts for B, got %d", migrateB)
	}

	// Publish and delete never touch the failed dashboard.
	for _, id := range client.publishCalls {
		if id != "new-A" {
			t.Errorf("Unexpected publish call for %q", id)
		}
	}
	for _, id := range client.deleteCalls {
		if id != "A" {
			t.Errorf("Unexpected delete call for %q", id)
		}
	}
}

func TestRunWithoutOptionalSteps(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{{ID: "A", Name: "Dashboard A"}},
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(client.publishCalls) != 0 {
		t.Errorf("Expected no publish calls, got %v", client.publishCalls)
	}
	if len(client.deleteCalls) != 0 {
		t.Errorf("Expected no delete calls, got %v", client.deleteCalls)
	}
	a := recordByLegacyID(records, "A")
	if a == nil || !a.Migrated || a.Published || a.DeletedLegacy {
		t.Errorf("Expected migrated-only record, got %+v", a)
	}
}

func TestRunDeleteRequiresLakeviewID(t *testing.T) {
	cfg := testConfig(t)
	cfg.DeleteLegacy = true
	cfg.MaxRetries = 1

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{{ID: "A", Name: "Dashboard A"}},
		migrateFn: func(id string) (*databricks.MigrateResponse, error) {
			return nil, errors.New("HTTP 500: internal error")
		},
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(client.deleteCalls) != 0 {
		t.Errorf("Expected no delete calls for an unmigrated dashboard, got %v", client.deleteCalls)
	}
	a := recordByLegacyID(records, "A")
	if a == nil || a.DeletedLegacy {
		t.Errorf("Expected A not deleted, got %+v", a)
	}
}

func TestRunPublishFailureKeepsMigratedFlag(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish = true
	cfg.MaxRetries = 1

	client := &fakeClient{
		legacy:    []databricks.LegacyDashboard{{ID: "A", Name: "Dashboard A"}},
		publishFn: func(id string) error { return errors.New("HTTP 403: permission denied") },
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	a := recordByLegacyID(records, "A")
	if a == nil {
		t.Fatal("Expected a record for dashboard A")
	}
	if !a.Migrated {
		t.Error("Expected migrated flag to survive a publish failure")
	}
	if a.Published {
		t.Error("Expected published to be false")
	}
	if !strings.Contains(a.Error, "publish_error: ") {
		t.Errorf("Expected publish error entry, got %q", a.Error)
	}
}

func TestRunResumeSkipsMigrated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resume = true
	cfg.WorkspaceName = "prod"

	prior := miglog.Record{
		Workspace:         "prod",
		LegacyID:          "A",
		LegacyName:        "Dashboard A",
		LakeviewID:        "new-A",
		Migrated:          true,
		MigrationDatetime: "2024-05-01T00:00:00Z",
		DashboardType:     miglog.TypeLegacy,
		Name:              "Dashboard A",
	}
	if err := miglog.WriteCSV(cfg.LogFile, []miglog.Record{prior}); err != nil {
		t.Fatalf("Failed to seed prior log: %v", err)
	}

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{
			{ID: "A", Name: "Dashboard A"},
			{ID: "B", Name: "Dashboard B"},
		},
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, id := range client.migrateCalls {
		if id == "A" {
			t.Error("Expected resume to skip the already-migrated dashboard")
		}
	}

	a := recordByLegacyID(records, "A")
	if a == nil {
		t.Fatal("Expected resumed record for A")
	}
	if a.MigrationDatetime != prior.MigrationDatetime || a.LakeviewID != prior.LakeviewID {
		t.Errorf("Expected prior record carried over verbatim, got %+v", a)
	}

	b := recordByLegacyID(records, "B")
	if b == nil || !b.Migrated {
		t.Errorf("Expected B migrated fresh, got %+v", b)
	}
}

func TestRunMergesLakeviewWithoutDuplicates(t *testing.T) {
	cfg := testConfig(t)

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{{ID: "A", Name: "Dashboard A"}},
		lakeview: []databricks.LakeviewDashboard{
			// Created by this run's migration of A: must not duplicate.
			{DashboardID: "new-A", DisplayName: "Dashboard A"},
			{DashboardID: "existing-1", DisplayName: "Pre-existing", IsPublished: true, PublishedAt: "2024-04-01T00:00:00Z"},
		},
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected migration record plus one informational record, got %d", len(records))
	}

	var info *miglog.Record
	for i := range records {
		if records[i].DashboardType == miglog.TypeLakeview {
			if info != nil {
				t.Fatal("Expected exactly one informational record")
			}
			info = &records[i]
		}
	}
	if info == nil {
		t.Fatal("Expected an informational Lakeview record")
	}
	if info.LakeviewID != "existing-1" || !info.Published || info.PublishedDate != "2024-04-01T00:00:00Z" {
		t.Errorf("Unexpected informational record: %+v", info)
	}
	if info.LegacyID != "" {
		t.Errorf("Expected informational record without a legacy ID, got %q", info.LegacyID)
	}
}

func TestRunIDSelection(t *testing.T) {
	cfg := testConfig(t)
	cfg.DashboardIDs = "B"

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{
			{ID: "A", Name: "Dashboard A"},
			{ID: "B", Name: "Dashboard B"},
		},
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(client.migrateCalls) != 1 || client.migrateCalls[0] != "B" {
		t.Errorf("Expected only B migrated, got %v", client.migrateCalls)
	}
	if recordByLegacyID(records, "A") != nil {
		t.Error("Expected no record for the unselected dashboard")
	}
}

func TestRunInvalidFilterIsConfigError(t *testing.T) {
	cfg := testConfig(t)
	cfg.FilterName = "[invalid"

	client := &fakeClient{}
	if _, err := newTestManager(cfg, client).Run(context.Background()); err == nil {
		t.Error("Expected error for invalid filter pattern")
	}
}

func TestRunNoWorkspaces(t *testing.T) {
	cfg := &config.Config{MaxRetries: 1, RetryDelay: time.Millisecond}
	client := &fakeClient{}
	if _, err := newTestManager(cfg, client).Run(context.Background()); err == nil {
		t.Error("Expected error when no workspace is configured")
	}
}

func TestRunInvalidHostSkipsWorkspace(t *testing.T) {
	cfg := testConfig(t)
	cfg.Host = "not-a-url"

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{{ID: "A", Name: "Dashboard A"}},
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Expected invalid host to be non-fatal, got: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records from the skipped workspace, got %d", len(records))
	}
	if len(client.migrateCalls) != 0 {
		t.Errorf("Expected no migrate calls, got %v", client.migrateCalls)
	}
}

func TestRunFailureErrorsCarryErrorClass(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish = true
	cfg.MaxRetries = 1

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{
			{ID: "A", Name: "Dashboard A"},
			{ID: "B", Name: "Dashboard B"},
		},
		migrateFn: func(id string) (*databricks.MigrateResponse, error) {
			if id == "B" {
				return nil, &databricks.APIError{StatusCode: 500, Message: "internal error"}
			}
			return &databricks.MigrateResponse{DashboardID: databricks.FlexID("new-" + id)}, nil
		},
		publishFn: func(id string) error { return errors.New("connection reset") },
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	b := recordByLegacyID(records, "B")
	if b == nil {
		t.Fatal("Expected a record for dashboard B")
	}
	if !strings.HasPrefix(b.Error, "migrate_error: APIError: ") {
		t.Errorf("Expected API failure labeled with its class, got %q", b.Error)
	}

	a := recordByLegacyID(records, "A")
	if a == nil {
		t.Fatal("Expected a record for dashboard A")
	}
	if !strings.HasPrefix(a.Error, "publish_error: Error: connection reset") {
		t.Errorf("Expected generic failure labeled with its class, got %q", a.Error)
	}
}

func TestRunLogsSuccessesToRunLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish = true
	cfg.DeleteLegacy = true

	logPath := filepath.Join(t.TempDir(), "run.log")
	log, err := logger.NewWithFile(false, logPath)
	if err != nil {
		t.Fatalf("Failed to create run log: %v", err)
	}

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{{ID: "A", Name: "Dashboard A"}},
	}
	mgr := NewManager(cfg, log, "test")
	mgr.newClient = func(host, token string) DashboardClient { return client }

	if _, err := mgr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	log.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read run log: %v", err)
	}
	out := string(content)
	for _, line := range []string{
		"[DONE] ",
		"Migrated legacy 'Dashboard A'",
		"Published AI/BI dashboard new-A",
		"Deleted legacy dashboard 'Dashboard A'",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("Expected run log to contain %q", line)
		}
	}
}

func TestRunDryRun(t *testing.T) {
	// Uses the real client so the dry-run short-circuit is exercised: only
	// the read-only listing endpoints may be hit.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Dry-run made a mutating call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/api/2.0/preview/sql/dashboards":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]string{{"id": "A", "name": "Dashboard A"}},
			})
		case "/api/2.0/lakeview/dashboards":
			json.NewEncoder(w).Encode(map[string]interface{}{"dashboards": []interface{}{}})
		default:
			t.Errorf("Unexpected dry-run call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.Host = server.URL
	cfg.DryRun = true
	cfg.Publish = true
	cfg.DeleteLegacy = true

	mgr := NewManager(cfg, logger.New(false), "test")
	records, err := mgr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	a := records[0]
	if !a.Migrated || a.LakeviewID != "dry-run-A" {
		t.Errorf("Expected synthesized dry-run ID with migrated=true, got %+v", a)
	}
	if !a.Published || !a.DeletedLegacy {
		t.Errorf("Expected simulated publish and delete to be recorded, got %+v", a)
	}
	if a.Error != "" {
		t.Errorf("Expected no errors in dry run, got %q", a.Error)
	}
}

func TestRunMultipleWorkspaces(t *testing.T) {
	cfg := testConfig(t)
	cfg.WorkspaceEntries = []config.Workspace{
		{Name: "east", Host: "https://east.cloud.databricks.com", Token: "t1"},
		{Name: "west", Host: "https://west.cloud.databricks.com", Token: "t2"},
	}

	client := &fakeClient{
		legacy: []databricks.LegacyDashboard{{ID: "A", Name: "Dashboard A"}},
	}

	records, err := newTestManager(cfg, client).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected one record per workspace, got %d", len(records))
	}
	workspaces := map[string]bool{}
	for _, r := range records {
		workspaces[r.Workspace] = true
	}
	if !workspaces["east"] || !workspaces["west"] {
		t.Errorf("Expected records tagged with both workspace names, got %v", workspaces)
	}
}
