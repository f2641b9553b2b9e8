package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codebypatrickleung/lakeshift-cli/internal/config"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
	"github.com/codebypatrickleung/lakeshift-cli/internal/miglog"
)

func testRecords() []miglog.Record {
	return []miglog.Record{
		{Workspace: "prod", LegacyID: "1", Name: "Sales", LakeviewID: "new-1", Migrated: true, Published: true, DeletedLegacy: true},
		{Workspace: "prod", LegacyID: "2", Name: "Ops", Error: "migrate_error: HTTP 500: boom"},
		{Workspace: "staging", LegacyID: "3", Name: "Finance", LakeviewID: "new-3", Migrated: true},
	}
}

func TestComputeStats(t *testing.T) {
	s := computeStats(testRecords())
	if s.Total != 3 {
		t.Errorf("Expected Total 3, got %d", s.Total)
	}
	if s.Migrated != 2 {
		t.Errorf("Expected Migrated 2, got %d", s.Migrated)
	}
	if s.Failed != 1 {
		t.Errorf("Expected Failed 1, got %d", s.Failed)
	}
	if s.Published != 1 {
		t.Errorf("Expected Published 1, got %d", s.Published)
	}
	if s.Deleted != 1 {
		t.Errorf("Expected Deleted 1, got %d", s.Deleted)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := computeStats(nil)
	if s.Total != 0 || s.Migrated != 0 || s.Failed != 0 {
		t.Errorf("Expected zero stats, got %+v", s)
	}
}

func TestWriteLog(t *testing.T) {
	log := logger.New(false)
	path := filepath.Join(t.TempDir(), "data", "log.csv")

	if err := WriteLog(path, testRecords(), log); err != nil {
		t.Fatalf("WriteLog failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read written log: %v", err)
	}
	if !strings.Contains(string(content), "new-1") {
		t.Error("Expected log content to contain migrated dashboard ID")
	}
}

func TestLogSummary(t *testing.T) {
	log := logger.New(false)
	LogSummary(log, testRecords(), &config.Config{Publish: true, DeleteLegacy: true})
	LogSummary(log, nil, &config.Config{})
}

func TestRenderTextBody(t *testing.T) {
	data := emailData{
		Stats:       stats{Total: 3, Migrated: 2, Failed: 1, Published: 1, Deleted: 1},
		ShowPublish: true,
		ShowDelete:  false,
		LogFile:     "data/log.csv",
	}
	body := renderTextBody(data)
	if !strings.Contains(body, "Total Dashboards: 3") {
		t.Error("Expected total count in text body")
	}
	if !strings.Contains(body, "Successfully Migrated: 2") {
		t.Error("Expected migrated count in text body")
	}
	if !strings.Contains(body, "Published: 1") {
		t.Error("Expected published count when publish was enabled")
	}
	if strings.Contains(body, "Deleted Legacy") {
		t.Error("Expected deleted count to be omitted when delete was disabled")
	}
	if !strings.Contains(body, "data/log.csv") {
		t.Error("Expected log file path in text body")
	}
}

func TestRenderHTMLBody(t *testing.T) {
	data := emailData{
		Stats:      stats{Total: 2, Migrated: 1, Failed: 1},
		ShowDelete: true,
		Rows: []emailRow{
			{LegacyID: "1", Name: "Sales", Path: "/Shared", LakeviewID: "new-1", Migrated: true},
			{LegacyID: "2", Name: "Ops", Error: "migrate_error: boom"},
		},
		LogFile: "data/log.csv",
	}
	body, err := renderHTMLBody(data)
	if err != nil {
		t.Fatalf("renderHTMLBody failed: %v", err)
	}
	if !strings.Contains(body, "<td>new-1</td>") {
		t.Error("Expected Lakeview ID cell in HTML body")
	}
	if !strings.Contains(body, `<td class="success">Migrated</td>`) {
		t.Error("Expected success status cell")
	}
	if !strings.Contains(body, `<td class="error">Failed</td>`) {
		t.Error("Expected failure status cell")
	}
	if !strings.Contains(body, "Deleted Legacy") {
		t.Error("Expected deleted stat when delete was enabled")
	}
	if strings.Contains(body, "Published:") {
		t.Error("Expected published stat to be omitted when publish was disabled")
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage(
		"from@example.com",
		[]string{"a@example.com", "b@example.com"},
		"Dashboard Migration Summary - 2/3 migrated",
		"plain text body",
		"<html>html body</html>",
	))

	if !strings.Contains(msg, "From: from@example.com") {
		t.Error("Expected From header")
	}
	if !strings.Contains(msg, "To: a@example.com, b@example.com") {
		t.Error("Expected To header with both recipients")
	}
	if !strings.Contains(msg, "Subject: Dashboard Migration Summary - 2/3 migrated") {
		t.Error("Expected Subject header")
	}
	if !strings.Contains(msg, "multipart/alternative") {
		t.Error("Expected multipart/alternative content type")
	}
	if !strings.Contains(msg, "text/plain; charset=UTF-8") || !strings.Contains(msg, "plain text body") {
		t.Error("Expected plain-text part")
	}
	if !strings.Contains(msg, "text/html; charset=UTF-8") || !strings.Contains(msg, "<html>html body</html>") {
		t.Error("Expected HTML part")
	}

	// The declared boundary actually separates the parts.
	start := strings.Index(msg, `boundary="`) + len(`boundary="`)
	end := strings.Index(msg[start:], `"`)
	boundary := msg[start : start+end]
	if !strings.Contains(msg, "--"+boundary) {
		t.Error("Expected boundary markers in message body")
	}
}

func TestSendSummarySkipPaths(t *testing.T) {
	log := logger.New(false)

	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"missing recipients", &config.Config{}},
		{"missing credentials", &config.Config{EmailTo: "a@example.com"}},
		{"missing from address", &config.Config{
			EmailTo: "a@example.com", SMTPUsername: "u", SMTPPassword: "p",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMailer(tt.cfg, log)
			if err := m.SendSummary(testRecords()); err != nil {
				t.Errorf("Expected skip to return nil, got: %v", err)
			}
		})
	}
}

func TestSendSummaryNoRecords(t *testing.T) {
	log := logger.New(false)
	m := NewMailer(&config.Config{EmailTo: "a@example.com"}, log)
	if err := m.SendSummary(nil); err != nil {
		t.Errorf("Expected empty record set to be a logged skip, got: %v", err)
	}
}
