// Package main provides the entry point for the Lakeshift CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/codebypatrickleung/lakeshift-cli/internal/config"
	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
	"github.com/codebypatrickleung/lakeshift-cli/internal/report"
	"github.com/codebypatrickleung/lakeshift-cli/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	version = "0.2.1"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "lakeshift",
	Short:   "Lakeshift - Dashboard Migration Tool",
	Long:    `Lakeshift is a Go-based CLI tool that migrates legacy Databricks SQL dashboards to AI/BI (Lakeview).`,
	Version: version,
	RunE:    run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON)")

	flags := []struct {
		name, shorthand, usage, defaultValue string
	}{
		{"host", "", "Databricks workspace URL, e.g. https://abc-123.cloud.databricks.com", ""},
		{"token", "", "Databricks PAT (or use DATABRICKS_TOKEN env var)", ""},
		{"workspace-name", "", "Logical name for the single configured workspace", ""},
		{"log-file", "", "Path to the CSV log file to write", ""},
		{"warehouse-id", "", "Optional warehouse ID to use when publishing dashboards", ""},
		{"filter-path", "", "Only migrate dashboards matching this path pattern (regex)", ""},
		{"filter-owner", "", "Only migrate dashboards owned by users matching this pattern (regex)", ""},
		{"filter-name", "", "Only migrate dashboards with names matching this pattern (regex)", ""},
		{"dashboard-ids", "", "Comma-separated list of specific dashboard IDs to migrate", ""},
		{"dashboard-csv", "", "Path to CSV file with dashboard IDs (column: legacy_id, id, dashboard_id, or dashboardId)", ""},
		{"sleep-between-calls", "", "Seconds to sleep between API calls", ""},
		{"max-retries", "", "Maximum retry attempts for failed API calls", ""},
		{"retry-delay", "", "Initial delay between retries in seconds", ""},
		{"email-to", "", "Comma-separated list of email recipients", ""},
		{"email-from", "", "Sender email address (or set EMAIL_FROM env var)", ""},
		{"smtp-server", "", "SMTP server hostname (or set SMTP_SERVER env var)", ""},
		{"smtp-port", "", "SMTP server port (or set SMTP_PORT env var)", ""},
		{"smtp-username", "", "SMTP username (or set SMTP_USERNAME env var)", ""},
		{"smtp-password", "", "SMTP password (or set SMTP_PASSWORD env var)", ""},
	}
	for _, f := range flags {
		rootCmd.Flags().String(f.name, f.defaultValue, f.usage)
	}

	boolFlags := []struct {
		name, usage string
	}{
		{"publish", "Publish all migrated AI/BI dashboards"},
		{"delete-legacy", "After successful migration, delete legacy dashboards (move to trash)"},
		{"dry-run", "Simulate migration without making API calls"},
		{"resume", "Resume from existing log file, skipping already-migrated dashboards"},
		{"send-email", "Send email summary after migration completes"},
		{"debug", "Enable debug logging"},
	}
	for _, f := range boolFlags {
		rootCmd.Flags().Bool(f.name, false, f.usage)
	}

	bindings := map[string]string{
		"HOST":                "host",
		"TOKEN":               "token",
		"WORKSPACE_NAME":      "workspace-name",
		"LOG_FILE":            "log-file",
		"WAREHOUSE_ID":        "warehouse-id",
		"FILTER_PATH":         "filter-path",
		"FILTER_OWNER":        "filter-owner",
		"FILTER_NAME":         "filter-name",
		"DASHBOARD_IDS":       "dashboard-ids",
		"DASHBOARD_CSV":       "dashboard-csv",
		"SLEEP_BETWEEN_CALLS": "sleep-between-calls",
		"MAX_RETRIES":         "max-retries",
		"RETRY_DELAY":         "retry-delay",
		"EMAIL_TO":            "email-to",
		"EMAIL_FROM":          "email-from",
		"SMTP_SERVER":         "smtp-server",
		"SMTP_PORT":           "smtp-port",
		"SMTP_USERNAME":       "smtp-username",
		"SMTP_PASSWORD":       "smtp-password",
		"PUBLISH":             "publish",
		"DELETE_LEGACY":       "delete-legacy",
		"DRY_RUN":             "dry-run",
		"RESUME":              "resume",
		"SEND_EMAIL":          "send-email",
		"DEBUG":               "debug",
	}
	for env, flag := range bindings {
		if err := viper.BindPFlag(env, rootCmd.Flags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to bind flag %s to env %s: %v\n", flag, env, err)
		}
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logFileName := cfg.RunLogName(logger.GetTimestamp())
	log, err := logger.NewWithFile(cfg.Debug, logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	log.Infof("Lakeshift version %s", version)
	log.Infof("Log file: %s", logFileName)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx := context.Background()
	mgr := workflow.NewManager(cfg, log, version)
	records, err := mgr.Run(ctx)
	if err != nil {
		return err
	}

	report.LogSummary(log, records, cfg)

	if err := report.WriteLog(cfg.LogFile, records, log); err != nil {
		return err
	}

	if cfg.SendEmail {
		if err := report.NewMailer(cfg, log).SendSummary(records); err != nil {
			log.Errorf("Failed to send email summary: %v", err)
		}
	}

	return nil
}
