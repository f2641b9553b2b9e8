// Package workflow orchestrates the dashboard migration workflow.
package workflow

import (
	"context"
	"fmt"

	"github.com/codebypatrickleung/lakeshift-cli/internal/config"
	"github.com/codebypatrickleung/lakeshift-cli/internal/databricks"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
	"github.com/codebypatrickleung/lakeshift-cli/internal/miglog"
	"github.com/codebypatrickleung/lakeshift-cli/internal/retry"
	"github.com/codebypatrickleung/lakeshift-cli/internal/selection"
)

// Manager drives the migration across all configured workspaces and
// concatenates their migration logs.
type Manager struct {
	config  *config.Config
	logger  *logger.Logger
	version string

	// newClient is the client constructor, replaceable in tests.
	newClient func(host, token string) DashboardClient
}

// NewManager creates a new workflow manager.
func NewManager(cfg *config.Config, log *logger.Logger, version string) *Manager {
	return &Manager{
		config:  cfg,
		logger:  log,
		version: version,
		newClient: func(host, token string) DashboardClient {
			return databricks.NewClient(host, token, cfg.SleepBetweenCalls, cfg.DryRun, log)
		},
	}
}

// Run processes every configured workspace in order. Workspaces are
// independent: a failure in one is logged and excluded from the combined log
// without stopping the others. The returned error is reserved for
// configuration-level problems.
func (m *Manager) Run(ctx context.Context) ([]miglog.Record, error) {
	filters, err := selection.Compile(m.config.FilterPath, m.config.FilterOwner, m.config.FilterName)
	if err != nil {
		return nil, err
	}

	workspaces, skipped := m.config.Workspaces()
	for _, name := range skipped {
		m.logger.Warningf("Skipping workspace %s: missing host or token", name)
	}
	if len(workspaces) == 0 {
		return nil, fmt.Errorf("no workspace configured")
	}

	m.logger.Banner(fmt.Sprintf("Lakeshift - Dashboard Migration Tool v%s", m.version))
	if m.config.DryRun {
		m.logger.Warning("DRY RUN MODE: No API calls will be made")
	}
	m.logger.Infof("Processing %d workspace(s)", len(workspaces))

	selectedIDs := selection.Load(m.config.DashboardIDs, m.config.DashboardCSV, m.logger)

	var combined []miglog.Record
	for _, ws := range workspaces {
		m.logger.Banner(fmt.Sprintf("Processing workspace: %s (%s)", ws.Name, ws.Host))

		host, err := config.NormalizeHost(ws.Host)
		if err != nil {
			m.logger.Errorf("[%s] Invalid host URL: %v", ws.Name, err)
			continue
		}

		mig := &migrator{
			config:      m.config,
			logger:      m.logger,
			client:      m.newClient(host, ws.Token),
			workspace:   ws.Name,
			selectedIDs: selectedIDs,
			filters:     filters,
			policy: retry.Policy{
				MaxAttempts: m.config.MaxRetries,
				Delay:       m.config.RetryDelay,
			},
		}
		records, err := mig.run(ctx)
		if err != nil {
			m.logger.Errorf("[%s] Failed to process workspace: %v", ws.Name, err)
			continue
		}
		combined = append(combined, records...)
	}

	return combined, nil
}
