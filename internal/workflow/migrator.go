package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/codebypatrickleung/lakeshift-cli/internal/config"
	"github.com/codebypatrickleung/lakeshift-cli/internal/databricks"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
	"github.com/codebypatrickleung/lakeshift-cli/internal/miglog"
	"github.com/codebypatrickleung/lakeshift-cli/internal/retry"
	"github.com/codebypatrickleung/lakeshift-cli/internal/selection"
)

// migrator runs the fixed per-workspace sequence: discover, filter,
// migrate, optionally publish, optionally delete originals, then merge the
// already-migrated dashboards into the log for reporting.
type migrator struct {
	config      *config.Config
	logger      *logger.Logger
	client      DashboardClient
	workspace   string
	selectedIDs []string
	filters     selection.Filters
	policy      retry.Policy
}

func (mg *migrator) run(ctx context.Context) ([]miglog.Record, error) {
	resumeIndex := map[string]miglog.Record{}
	if mg.config.Resume {
		resumeIndex = miglog.LoadResumeIndex(mg.config.LogFile, mg.logger)
	}

	mg.logger.Infof("[%s] Fetching list of legacy dashboards...", mg.workspace)
	legacy, err := mg.client.ListLegacyDashboards(ctx)
	if err != nil {
		return nil, fmt.Errorf("legacy dashboard discovery failed: %w", err)
	}
	mg.logger.Infof("[%s] Found %d legacy dashboards", mg.workspace, len(legacy))

	mg.logger.Infof("[%s] Fetching list of Lakeview dashboards...", mg.workspace)
	lakeview, err := mg.client.ListLakeviewDashboards(ctx)
	if err != nil {
		return nil, fmt.Errorf("lakeview dashboard discovery failed: %w", err)
	}
	mg.logger.Infof("[%s] Found %d Lakeview dashboards", mg.workspace, len(lakeview))

	targets := selection.Apply(legacy, mg.selectedIDs, mg.filters, mg.logger)
	mg.logger.Infof("[%s] Found %d legacy dashboards (after filtering) for migration", mg.workspace, len(targets))

	records := mg.migrateAll(ctx, targets, resumeIndex)

	if mg.config.Publish {
		mg.publishAll(ctx, records)
	}
	if mg.config.DeleteLegacy {
		mg.deleteAll(ctx, records)
	}

	return mg.mergeLakeview(records, lakeview), nil
}

// migrateAll drives the migrate step for each selected dashboard. A single
// dashboard's failure is recorded and never aborts the batch.
func (mg *migrator) migrateAll(ctx context.Context, targets []databricks.LegacyDashboard, resumeIndex map[string]miglog.Record) []miglog.Record {
	records := make([]miglog.Record, 0, len(targets))
	skipped := 0

	for i := range targets {
		d := &targets[i]
		legacyID := string(d.ID)
		mg.logger.Infof("[%s] [%d/%d] Processing '%s' (%s)...", mg.workspace, i+1, len(targets), d.EffectiveName(), legacyID)

		if mg.config.Resume {
			if prior, ok := resumeIndex[miglog.ResumeKey(mg.workspace, legacyID)]; ok {
				mg.logger.Infof("[%s] Skipping '%s' - already migrated (resume mode)", mg.workspace, d.EffectiveName())
				records = append(records, prior)
				skipped++
				continue
			}
		}

		rec := mg.newLegacyRecord(d)
		mg.migrateOne(ctx, d, &rec)
		records = append(records, rec)
		mg.pause()
	}

	if skipped > 0 {
		mg.logger.Infof("Skipped %d already-migrated dashboards (resume mode)", skipped)
	}
	return records
}

func (mg *migrator) migrateOne(ctx context.Context, d *databricks.LegacyDashboard, rec *miglog.Record) {
	// Timestamp is taken before the call and cleared again on failure.
	rec.MigrationDatetime = miglog.UTCTimestamp()

	var result *databricks.MigrateResponse
	err := mg.policy.Do(ctx, "Migration", mg.logger, func() error {
		var opErr error
		result, opErr = mg.client.Migrate(ctx, rec.LegacyID, d.Name)
		return opErr
	})
	if err != nil {
		rec.MigrationDatetime = ""
		rec.AppendError("migrate", failureDetail(err))
		mg.logger.Errorf("[%s] Failed to migrate '%s' (%s): %v", mg.workspace, rec.LegacyName, rec.LegacyID, err)
		return
	}

	rec.LakeviewID = result.EffectiveID()
	rec.Migrated = true
	mg.logger.Successf("[%s] Migrated legacy '%s' (%s) -> AI/BI %s", mg.workspace, rec.LegacyName, rec.LegacyID, rec.LakeviewID)
}

// publishAll publishes every record that gained a Lakeview ID, including
// rows carried over by resume. A publish failure never reverts the migrated
// flag.
func (mg *migrator) publishAll(ctx context.Context, records []miglog.Record) {
	mg.logger.Infof("[%s] Publishing migrated dashboards...", mg.workspace)
	for i := range records {
		rec := &records[i]
		if rec.LakeviewID == "" {
			continue
		}
		err := mg.policy.Do(ctx, "Publish", mg.logger, func() error {
			return mg.client.Publish(ctx, rec.LakeviewID, mg.config.WarehouseID, true)
		})
		if err != nil {
			rec.AppendError("publish", failureDetail(err))
			mg.logger.Errorf("[%s] Failed to publish AI/BI %s: %v", mg.workspace, rec.LakeviewID, err)
		} else {
			rec.Published = true
			now := miglog.UTCTimestamp()
			rec.PublishDatetime = now
			rec.PublishedDate = now
			mg.logger.Successf("[%s] Published AI/BI dashboard %s for legacy %s", mg.workspace, rec.LakeviewID, rec.LegacyID)
		}
		mg.pause()
	}
}

// deleteAll deletes legacy dashboards, but only those confirmed migrated: a
// record without a Lakeview ID is never deleted regardless of flags.
func (mg *migrator) deleteAll(ctx context.Context, records []miglog.Record) {
	mg.logger.Infof("[%s] Deleting legacy dashboards...", mg.workspace)
	for i := range records {
		rec := &records[i]
		if rec.LakeviewID == "" || rec.LegacyID == "" {
			continue
		}
		err := mg.policy.Do(ctx, "Delete", mg.logger, func() error {
			return mg.client.DeleteLegacy(ctx, rec.LegacyID)
		})
		if err != nil {
			rec.AppendError("delete", failureDetail(err))
			mg.logger.Errorf("[%s] Failed to delete legacy '%s' (%s): %v", mg.workspace, rec.LegacyName, rec.LegacyID, err)
		} else {
			rec.DeletedLegacy = true
			mg.logger.Successf("[%s] Deleted legacy dashboard '%s' (%s)", mg.workspace, rec.LegacyName, rec.LegacyID)
		}
		mg.pause()
	}
}

// mergeLakeview appends the discovered Lakeview dashboards as informational
// records so the log reflects the workspace's end state. Dashboards whose ID
// already belongs to one of this run's records are not duplicated.
func (mg *migrator) mergeLakeview(records []miglog.Record, lakeview []databricks.LakeviewDashboard) []miglog.Record {
	owned := make(map[string]bool, len(records))
	for i := range records {
		if records[i].LakeviewID != "" {
			owned[records[i].LakeviewID] = true
		}
	}

	added := 0
	for i := range lakeview {
		d := &lakeview[i]
		id := d.EffectiveID()
		if id != "" && owned[id] {
			continue
		}
		records = append(records, mg.newLakeviewRecord(d))
		added++
	}
	mg.logger.Infof("[%s] Adding %d Lakeview dashboards to log output...", mg.workspace, added)
	return records
}

func (mg *migrator) newLegacyRecord(d *databricks.LegacyDashboard) miglog.Record {
	return miglog.Record{
		Workspace:       mg.workspace,
		LegacyID:        string(d.ID),
		LegacyName:      d.EffectiveName(),
		LegacyPath:      d.EffectivePath(),
		LegacyCreatedAt: d.EffectiveCreatedAt(),
		DashboardType:   miglog.TypeLegacy,
		Name:            d.EffectiveName(),
		Path:            d.EffectivePath(),
		CreatedDate:     d.EffectiveCreatedAt(),
		Owner:           d.EffectiveOwner(),
		UpdatedAt:       d.EffectiveUpdatedAt(),
		Description:     d.EffectiveDescription(),
	}
}

func (mg *migrator) newLakeviewRecord(d *databricks.LakeviewDashboard) miglog.Record {
	return miglog.Record{
		Workspace:       mg.workspace,
		LakeviewID:      d.EffectiveID(),
		Migrated:        true,
		Published:       d.IsPublished,
		PublishDatetime: d.PublishedAt,
		DashboardType:   miglog.TypeLakeview,
		Name:            d.EffectiveName(),
		Path:            d.EffectivePath(),
		CreatedDate:     d.EffectiveCreatedAt(),
		PublishedDate:   d.PublishedAt,
		Owner:           d.EffectiveOwner(),
		UpdatedAt:       d.EffectiveUpdatedAt(),
		Description:     d.EffectiveDescription(),
	}
}

// failureDetail labels a step failure with its error class ahead of the
// details, so log rows read "{step}_error: {class}: {details}" the same way
// earlier log generations recorded exception names.
func failureDetail(err error) string {
	var apiErr *databricks.APIError
	if errors.As(err, &apiErr) {
		return "APIError: " + err.Error()
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "RequestError: " + err.Error()
	}
	return "Error: " + err.Error()
}

func (mg *migrator) pause() {
	if !mg.config.DryRun && mg.config.SleepBetweenCalls > 0 {
		time.Sleep(mg.config.SleepBetweenCalls)
	}
}
