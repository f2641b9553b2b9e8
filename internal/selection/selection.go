// Package selection reduces the discovered dashboard set to the migration
// targets, by explicit IDs, a CSV-sourced ID list, or regex filters.
package selection

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/codebypatrickleung/lakeshift-cli/internal/common"
	"github.com/codebypatrickleung/lakeshift-cli/internal/databricks"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
)

// idColumnSynonyms are the recognized CSV column names for dashboard IDs.
var idColumnSynonyms = []string{"legacy_id", "id", "dashboard_id", "dashboardId"}

// Load gathers the dashboard IDs selected for migration from a
// comma-separated list and/or a CSV file. Duplicates are removed preserving
// first-seen order. Returns nil when no selection was requested, which is
// distinct from a requested selection that matched nothing.
func Load(idsFlag, csvPath string, log *logger.Logger) []string {
	var selected []string

	if ids := common.SplitAndTrim(idsFlag); len(ids) > 0 {
		selected = append(selected, ids...)
		log.Infof("Loaded %d dashboard IDs from --dashboard-ids", len(ids))
	}

	if csvPath != "" {
		csvIDs, err := loadIDsFromCSV(csvPath)
		if err != nil {
			log.Errorf("Failed to load dashboard IDs from CSV %s: %v", csvPath, err)
		} else if csvIDs == nil {
			log.Warningf("CSV file %s does not contain a recognized ID column. Expected one of: %s",
				csvPath, strings.Join(idColumnSynonyms, ", "))
		} else {
			selected = append(selected, csvIDs...)
			log.Infof("Loaded %d dashboard IDs from CSV file %s", len(csvIDs), csvPath)
		}
	}

	if len(selected) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(selected))
	unique := make([]string, 0, len(selected))
	for _, id := range selected {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique
}

// loadIDsFromCSV reads IDs from the first recognized ID column. A nil, nil
// return means the file was readable but carried no recognized column.
func loadIDsFromCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	colIdx := -1
	for _, synonym := range idColumnSynonyms {
		for i, col := range header {
			if strings.TrimSpace(col) == synonym {
				colIdx = i
				break
			}
		}
		if colIdx >= 0 {
			break
		}
	}
	if colIdx < 0 {
		return nil, nil
	}

	ids := []string{}
	for _, row := range rows[1:] {
		if colIdx >= len(row) {
			continue
		}
		if id := strings.TrimSpace(row[colIdx]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Filters holds the compiled pattern filters. A nil pattern means no
// constraint from that filter.
type Filters struct {
	Path  *regexp.Regexp
	Owner *regexp.Regexp
	Name  *regexp.Regexp
}

// Compile builds case-insensitive search patterns from the filter arguments.
// An invalid pattern is a configuration error.
func Compile(pathPattern, ownerPattern, namePattern string) (Filters, error) {
	var f Filters
	var err error
	if f.Path, err = compilePattern(pathPattern); err != nil {
		return Filters{}, fmt.Errorf("invalid --filter-path pattern: %w", err)
	}
	if f.Owner, err = compilePattern(ownerPattern); err != nil {
		return Filters{}, fmt.Errorf("invalid --filter-owner pattern: %w", err)
	}
	if f.Name, err = compilePattern(namePattern); err != nil {
		return Filters{}, fmt.Errorf("invalid --filter-name pattern: %w", err)
	}
	return f, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + pattern)
}

// Apply filters the dashboard set. An explicit ID selection is applied first
// and is exclusive: when it matches nothing the result is empty regardless of
// pattern filters. Pattern filters then apply with AND semantics in the order
// path, owner, name.
func Apply(dashboards []databricks.LegacyDashboard, selectedIDs []string, f Filters, log *logger.Logger) []databricks.LegacyDashboard {
	filtered := dashboards

	if selectedIDs != nil {
		idSet := make(map[string]bool, len(selectedIDs))
		for _, id := range selectedIDs {
			idSet[id] = true
		}
		filtered = keep(filtered, func(d *databricks.LegacyDashboard) bool {
			return idSet[string(d.ID)]
		})
		log.Infof("Filtered by selected IDs: %d dashboards", len(filtered))
		if len(filtered) == 0 {
			log.Warning("No dashboards found matching the provided IDs. Check that IDs are correct.")
			return filtered
		}
	}

	if f.Path != nil {
		before := len(filtered)
		filtered = keep(filtered, func(d *databricks.LegacyDashboard) bool {
			return f.Path.MatchString(d.EffectivePath())
		})
		log.Infof("Filtered by path pattern %q: %d dashboards (from %d)", f.Path.String(), len(filtered), before)
	}

	if f.Owner != nil {
		before := len(filtered)
		filtered = keep(filtered, func(d *databricks.LegacyDashboard) bool {
			return f.Owner.MatchString(ownerSearchText(d))
		})
		log.Infof("Filtered by owner pattern %q: %d dashboards (from %d)", f.Owner.String(), len(filtered), before)
	}

	if f.Name != nil {
		before := len(filtered)
		filtered = keep(filtered, func(d *databricks.LegacyDashboard) bool {
			return f.Name.MatchString(d.Name)
		})
		log.Infof("Filtered by name pattern %q: %d dashboards (from %d)", f.Name.String(), len(filtered), before)
	}

	return filtered
}

// ownerSearchText returns the text an owner pattern is matched against,
// falling back to the nested user ID when no owner name is present.
func ownerSearchText(d *databricks.LegacyDashboard) string {
	if owner := d.EffectiveOwner(); owner != "" {
		return owner
	}
	if d.User != nil && d.User.ID != nil {
		return string(*d.User.ID)
	}
	return ""
}

func keep(dashboards []databricks.LegacyDashboard, pred func(*databricks.LegacyDashboard) bool) []databricks.LegacyDashboard {
	result := make([]databricks.LegacyDashboard, 0, len(dashboards))
	for i := range dashboards {
		if pred(&dashboards[i]) {
			result = append(result, dashboards[i])
		}
	}
	return result
}
