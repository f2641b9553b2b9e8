// Package report renders the consolidated migration log: the persisted CSV
// artifact, the console summary, and the optional email notification.
package report

import (
	"github.com/codebypatrickleung/lakeshift-cli/internal/config"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
	"github.com/codebypatrickleung/lakeshift-cli/internal/miglog"
)

// WriteLog persists the combined migration log to the CSV artifact. This
// happens before and independently of any notification.
func WriteLog(path string, records []miglog.Record, log *logger.Logger) error {
	if err := miglog.WriteCSV(path, records); err != nil {
		return err
	}
	log.Infof("Wrote log CSV to: %s", path)
	return nil
}

// stats aggregates the counters the summary and the email share.
type stats struct {
	Total     int
	Migrated  int
	Failed    int
	Published int
	Deleted   int
}

func computeStats(records []miglog.Record) stats {
	s := stats{Total: len(records)}
	for i := range records {
		r := &records[i]
		if r.Migrated {
			s.Migrated++
		} else {
			s.Failed++
		}
		if r.Published {
			s.Published++
		}
		if r.DeletedLegacy {
			s.Deleted++
		}
	}
	return s
}

// LogSummary logs the overall migration summary plus a per-workspace
// breakdown. Published and deleted counts only appear when those passes were
// enabled.
func LogSummary(log *logger.Logger, records []miglog.Record, cfg *config.Config) {
	log.Banner("Overall Migration Summary")
	s := computeStats(records)
	log.Infof("Total dashboards found: %d", s.Total)
	if s.Total == 0 {
		return
	}
	log.Infof("Successfully migrated: %d", s.Migrated)
	log.Infof("Failed migrations: %d", s.Failed)
	if cfg.Publish {
		log.Infof("Published: %d", s.Published)
	}
	if cfg.DeleteLegacy {
		log.Infof("Deleted legacy: %d", s.Deleted)
	}

	var order []string
	byWorkspace := map[string][]miglog.Record{}
	for _, r := range records {
		if _, ok := byWorkspace[r.Workspace]; !ok {
			order = append(order, r.Workspace)
		}
		byWorkspace[r.Workspace] = append(byWorkspace[r.Workspace], r)
	}
	if len(order) > 1 {
		log.Info("=== Summary by Workspace ===")
		for _, ws := range order {
			wsStats := computeStats(byWorkspace[ws])
			log.Infof("%s: %d dashboards, %d migrated, %d failed", ws, wsStats.Total, wsStats.Migrated, wsStats.Failed)
		}
	}
}
