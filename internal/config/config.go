// Package config handles configuration loading from files, environment variables, and flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codebypatrickleung/lakeshift-cli/internal/common"
	"github.com/spf13/viper"
)

const (
	defaultLogFile           = "data/dashboard_migration_log.csv"
	defaultSMTPServer        = "smtp.gmail.com"
	defaultSMTPPort          = 587
	defaultSleepBetweenCalls = 0.2
	defaultMaxRetries        = 3
	defaultRetryDelay        = 1.0
	minWarehouseIDLength     = 8
)

// Workspace describes one Databricks workspace connection.
type Workspace struct {
	Name  string `mapstructure:"name"`
	Alias string `mapstructure:"workspace"`
	Host  string `mapstructure:"host"`
	Token string `mapstructure:"token"`
}

// Config holds all configuration for the Lakeshift CLI.
type Config struct {
	Host              string
	Token             string
	WorkspaceName     string
	WorkspaceEntries  []Workspace
	LogFile           string
	Publish           bool
	WarehouseID       string
	DeleteLegacy      bool
	DryRun            bool
	Resume            bool
	FilterPath        string
	FilterOwner       string
	FilterName        string
	DashboardIDs      string
	DashboardCSV      string
	SleepBetweenCalls time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	SendEmail         bool
	EmailTo           string
	EmailFrom         string
	SMTPServer        string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	Debug             bool
}

// Load initializes configuration from file, environment variables, and flags.
// CLI flags bound through viper take precedence over config file values,
// which take precedence over defaults.
func Load(configFile string) (*Config, error) {
	viper.SetDefault("log_file", defaultLogFile)
	viper.SetDefault("sleep_between_calls", defaultSleepBetweenCalls)
	viper.SetDefault("max_retries", defaultMaxRetries)
	viper.SetDefault("retry_delay", defaultRetryDelay)
	viper.SetDefault("smtp_server", defaultSMTPServer)
	viper.SetDefault("smtp_port", defaultSMTPPort)

	viper.AutomaticEnv()

	// The conventional Databricks env vars work alongside the flag-shaped ones.
	_ = viper.BindEnv("host", "HOST", "DATABRICKS_HOST")
	_ = viper.BindEnv("token", "TOKEN", "DATABRICKS_TOKEN")

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file not found: %s", configFile)
		}
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Host:              viper.GetString("host"),
		Token:             viper.GetString("token"),
		WorkspaceName:     viper.GetString("workspace_name"),
		LogFile:           viper.GetString("log_file"),
		Publish:           viper.GetBool("publish"),
		WarehouseID:       viper.GetString("warehouse_id"),
		DeleteLegacy:      viper.GetBool("delete_legacy"),
		DryRun:            viper.GetBool("dry_run"),
		Resume:            viper.GetBool("resume"),
		FilterPath:        viper.GetString("filter_path"),
		FilterOwner:       viper.GetString("filter_owner"),
		FilterName:        viper.GetString("filter_name"),
		DashboardIDs:      viper.GetString("dashboard_ids"),
		DashboardCSV:      viper.GetString("dashboard_csv"),
		SleepBetweenCalls: secondsToDuration(viper.GetFloat64("sleep_between_calls")),
		MaxRetries:        viper.GetInt("max_retries"),
		RetryDelay:        secondsToDuration(viper.GetFloat64("retry_delay")),
		SendEmail:         viper.GetBool("send_email"),
		EmailTo:           viper.GetString("email_to"),
		EmailFrom:         viper.GetString("email_from"),
		SMTPServer:        viper.GetString("smtp_server"),
		SMTPPort:          viper.GetInt("smtp_port"),
		SMTPUsername:      viper.GetString("smtp_username"),
		SMTPPassword:      viper.GetString("smtp_password"),
		Debug:             viper.GetBool("debug"),
	}

	if viper.IsSet("workspaces") {
		if err := viper.UnmarshalKey("workspaces", &cfg.WorkspaceEntries); err != nil {
			return nil, fmt.Errorf("failed to parse workspaces list: %w", err)
		}
	}

	return cfg, nil
}

// Workspaces resolves the configured workspace list. A workspaces list in the
// config file wins; otherwise a single host/token pair is used. Entries
// missing host or token are dropped; the caller decides how to surface that.
func (c *Config) Workspaces() ([]Workspace, []string) {
	var workspaces []Workspace
	var skipped []string

	if len(c.WorkspaceEntries) > 0 {
		for idx, ws := range c.WorkspaceEntries {
			name := ws.Name
			if name == "" {
				name = ws.Alias
			}
			if name == "" {
				name = fmt.Sprintf("workspace_%d", idx+1)
			}
			if ws.Host == "" || ws.Token == "" {
				skipped = append(skipped, name)
				continue
			}
			workspaces = append(workspaces, Workspace{Name: name, Host: ws.Host, Token: ws.Token})
		}
		return workspaces, skipped
	}

	if c.Host != "" && c.Token != "" {
		name := c.WorkspaceName
		if name == "" {
			name = "default"
		}
		workspaces = append(workspaces, Workspace{Name: name, Host: c.Host, Token: c.Token})
	}
	return workspaces, skipped
}

// RunLogName derives the console run-log filename for this invocation. A
// configured workspace name is folded in, sanitized for filesystem use.
func (c *Config) RunLogName(timestamp string) string {
	if c.WorkspaceName != "" {
		return fmt.Sprintf("lakeshift-%s-%s.log", common.SanitizeName(c.WorkspaceName), timestamp)
	}
	return fmt.Sprintf("lakeshift-%s.log", timestamp)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	workspaces, _ := c.Workspaces()
	if len(workspaces) == 0 {
		return fmt.Errorf(
			"no workspace configured: provide --host and --token, set DATABRICKS_HOST / DATABRICKS_TOKEN, " +
				"or configure workspaces in a config file")
	}
	if err := ValidateWarehouseID(c.WarehouseID); err != nil {
		return err
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	return nil
}

// NormalizeHost normalizes a workspace URL by removing the trailing slash and
// validating the scheme.
func NormalizeHost(host string) (string, error) {
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return "", fmt.Errorf("host must start with http:// or https://: %s", host)
	}
	return host, nil
}

// ValidateWarehouseID validates the warehouse ID format. Databricks warehouse
// IDs are alphanumeric with optional hyphens and underscores.
func ValidateWarehouseID(warehouseID string) error {
	if warehouseID == "" {
		return nil
	}
	cleaned := strings.NewReplacer("-", "", "_", "").Replace(warehouseID)
	if len(warehouseID) < minWarehouseIDLength || !isAlphanumeric(cleaned) {
		return fmt.Errorf(
			"invalid warehouse ID format: %s (expected alphanumeric string with optional hyphens/underscores)",
			warehouseID)
	}
	return nil
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
