// Package miglog models the migration log: one record per dashboard per run,
// persisted as a fixed-column CSV that later runs can resume from.
package miglog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codebypatrickleung/lakeshift-cli/internal/common"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
)

// Dashboard type values for the dashboard_type column.
const (
	TypeLegacy   = "legacy"
	TypeLakeview = "lakeview"
)

// Record is one row of the migration log.
type Record struct {
	Workspace         string
	LegacyID          string
	LegacyName        string
	LegacyPath        string
	LegacyCreatedAt   string
	LakeviewID        string
	Migrated          bool
	MigrationDatetime string
	Published         bool
	PublishDatetime   string
	DeletedLegacy     bool
	Error             string
	DashboardType     string
	Name              string
	Path              string
	CreatedDate       string
	PublishedDate     string
	Owner             string
	UpdatedAt         string
	Description       string
}

// columns is the fixed CSV column set, in order. Every run writes all of
// them regardless of which optional steps ran.
var columns = []string{
	"workspace",
	"legacy_id",
	"legacy_name",
	"legacy_path",
	"legacy_created_at",
	"lakeview_id",
	"migrated",
	"migration_datetime",
	"published",
	"publish_datetime",
	"deleted_legacy",
	"error",
	"dashboard_type",
	"name",
	"path",
	"created_date",
	"published_date",
	"owner",
	"updated_at",
	"description",
}

// Columns returns the fixed column set of the persisted log.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// AppendError adds a step failure to the record's error field. Entries
// accumulate with a "; " separator; earlier entries are never overwritten.
func (r *Record) AppendError(step, msg string) {
	entry := fmt.Sprintf("%s_error: %s", step, msg)
	if r.Error != "" {
		r.Error += "; " + entry
	} else {
		r.Error = entry
	}
}

// UTCTimestamp returns the current time as an ISO-8601 UTC timestamp with
// second precision.
func UTCTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

func (r *Record) row() []string {
	return []string{
		r.Workspace,
		r.LegacyID,
		r.LegacyName,
		r.LegacyPath,
		r.LegacyCreatedAt,
		r.LakeviewID,
		strconv.FormatBool(r.Migrated),
		r.MigrationDatetime,
		strconv.FormatBool(r.Published),
		r.PublishDatetime,
		strconv.FormatBool(r.DeletedLegacy),
		r.Error,
		r.DashboardType,
		r.Name,
		r.Path,
		r.CreatedDate,
		r.PublishedDate,
		r.Owner,
		r.UpdatedAt,
		r.Description,
	}
}

// WriteCSV persists the records to path, creating parent directories as
// needed. The header row and the full column set are always present.
func WriteCSV(path string, records []Record) error {
	if err := common.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("failed to write log header: %w", err)
	}
	for i := range records {
		if err := w.Write(records[i].row()); err != nil {
			return fmt.Errorf("failed to write log row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush log: %w", err)
	}
	return nil
}

// LoadResumeIndex reads a prior run's log and returns the resume index:
// "{workspace}:{legacy_id}" mapped to the full prior record, restricted to
// rows that migrated successfully with a non-empty lakeview_id. A missing,
// malformed, or column-deficient file soft-fails to an empty index.
func LoadResumeIndex(path string, log *logger.Logger) map[string]Record {
	index := make(map[string]Record)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return index
	}

	f, err := os.Open(path)
	if err != nil {
		log.Warningf("Could not load existing log file %s: %v", path, err)
		return index
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		log.Warningf("Could not load existing log file %s: %v", path, err)
		return index
	}
	if len(rows) < 1 {
		return index
	}

	colIdx := make(map[string]int, len(rows[0]))
	for i, col := range rows[0] {
		colIdx[strings.TrimSpace(col)] = i
	}
	for _, required := range []string{"legacy_id", "migrated", "lakeview_id"} {
		if _, ok := colIdx[required]; !ok {
			log.Warningf("Could not load existing log file %s: missing column %q", path, required)
			return index
		}
	}

	field := func(row []string, col string) string {
		idx, ok := colIdx[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	for _, row := range rows[1:] {
		if !parseBool(field(row, "migrated")) || field(row, "lakeview_id") == "" {
			continue
		}
		workspace := field(row, "workspace")
		if workspace == "" {
			workspace = "default"
		}
		record := Record{
			Workspace:         workspace,
			LegacyID:          field(row, "legacy_id"),
			LegacyName:        field(row, "legacy_name"),
			LegacyPath:        field(row, "legacy_path"),
			LegacyCreatedAt:   field(row, "legacy_created_at"),
			LakeviewID:        field(row, "lakeview_id"),
			Migrated:          true,
			MigrationDatetime: field(row, "migration_datetime"),
			Published:         parseBool(field(row, "published")),
			PublishDatetime:   field(row, "publish_datetime"),
			DeletedLegacy:     parseBool(field(row, "deleted_legacy")),
			Error:             field(row, "error"),
			DashboardType:     field(row, "dashboard_type"),
			Name:              field(row, "name"),
			Path:              field(row, "path"),
			CreatedDate:       field(row, "created_date"),
			PublishedDate:     field(row, "published_date"),
			Owner:             field(row, "owner"),
			UpdatedAt:         field(row, "updated_at"),
			Description:       field(row, "description"),
		}
		index[ResumeKey(workspace, record.LegacyID)] = record
	}

	if len(index) > 0 {
		log.Infof("Loaded %d previously migrated dashboards from %s", len(index), path)
	}
	return index
}

// ResumeKey builds the resume index key for a workspace and legacy ID.
func ResumeKey(workspace, legacyID string) string {
	return workspace + ":" + legacyID
}

// parseBool tolerates both Go-style "true" and the "True" spelling a prior
// tooling generation wrote.
func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
