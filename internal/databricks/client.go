// Package databricks provides a typed client for the Databricks dashboard APIs.
package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codebypatrickleung/lakeshift-cli/internal/logger"
)

const (
	pageSize       = 100
	requestTimeout = 30 * time.Second

	legacyDashboardsPath   = "/api/2.0/preview/sql/dashboards"
	lakeviewDashboardsPath = "/api/2.0/lakeview/dashboards"
)

// APIError is a non-2xx response from the Databricks API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client issues authenticated requests against a single workspace.
type Client struct {
	host       string
	token      string
	httpClient *http.Client
	sleep      time.Duration
	dryRun     bool
	logger     *logger.Logger
}

// NewClient creates a client for the given workspace host. The sleep interval
// paces successive API calls; in dry-run mode the mutating operations are
// simulated and no pacing occurs.
func NewClient(host, token string, sleep time.Duration, dryRun bool, log *logger.Logger) *Client {
	return &Client{
		host:       host,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		sleep:      sleep,
		dryRun:     dryRun,
		logger:     log,
	}
}

// ListLegacyDashboards returns all legacy dashboards from the preview SQL
// dashboards API, following the page token until exhausted.
func (c *Client) ListLegacyDashboards(ctx context.Context) ([]LegacyDashboard, error) {
	var all []LegacyDashboard
	pageToken := ""
	for {
		params := url.Values{"page_size": {strconv.Itoa(pageSize)}}
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}
		var page struct {
			Results       []LegacyDashboard `json:"results"`
			NextPageToken string            `json:"next_page_token"`
		}
		if err := c.doJSON(ctx, http.MethodGet, c.host+legacyDashboardsPath, params, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list legacy dashboards: %w", err)
		}
		all = append(all, page.Results...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
		c.pause()
	}
}

// ListLakeviewDashboards returns all Lakeview dashboards. The list endpoint
// only returns a summary, so each dashboard gets a detail fetch plus a
// published-status probe; failures on those supplementary calls are logged
// and never abort the listing.
func (c *Client) ListLakeviewDashboards(ctx context.Context) ([]LakeviewDashboard, error) {
	var all []LakeviewDashboard
	pageToken := ""
	for {
		params := url.Values{"page_size": {strconv.Itoa(pageSize)}}
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}
		var page struct {
			Dashboards    []LakeviewDashboard `json:"dashboards"`
			Results       []LakeviewDashboard `json:"results"`
			NextPageToken string              `json:"next_page_token"`
		}
		if err := c.doJSON(ctx, http.MethodGet, c.host+lakeviewDashboardsPath, params, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list Lakeview dashboards: %w", err)
		}
		dashboards := page.Dashboards
		if len(dashboards) == 0 {
			dashboards = page.Results
		}
		for i := range dashboards {
			c.enrichLakeviewDashboard(ctx, &dashboards[i])
		}
		all = append(all, dashboards...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
		c.pause()
	}
}

// enrichLakeviewDashboard merges the full dashboard details over the listing
// summary and probes the published endpoint. 200 means published, 404 means
// not published; anything else is treated as not published without failing.
func (c *Client) enrichLakeviewDashboard(ctx context.Context, d *LakeviewDashboard) {
	id := d.EffectiveID()
	if id == "" {
		return
	}
	detailURL := c.host + lakeviewDashboardsPath + "/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, detailURL, nil, nil, d); err != nil {
		c.logger.Debugf("Could not fetch full details for dashboard %s: %v", id, err)
	}
	if d.DashboardID == "" {
		d.DashboardID = FlexID(id)
	}
	c.pause()

	var pub publishedInfo
	if err := c.doJSON(ctx, http.MethodGet, detailURL+"/published", nil, nil, &pub); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			c.logger.Debugf("Could not check published status for dashboard %s: %v", id, err)
		}
		d.IsPublished = false
		d.PublishedAt = ""
	} else {
		d.IsPublished = true
		d.PublishedAt = pub.effectiveTime()
	}
	c.pause()
}

// Migrate converts one legacy dashboard into a Lakeview dashboard. In dry-run
// mode no call is made and a deterministic placeholder ID is synthesized so
// downstream steps can run against it.
func (c *Client) Migrate(ctx context.Context, dashboardID, displayName string) (*MigrateResponse, error) {
	if c.dryRun {
		c.logger.Infof("[DRY RUN] Would migrate dashboard '%s' (%s)", displayName, dashboardID)
		placeholder := FlexID("dry-run-" + dashboardID)
		return &MigrateResponse{ID: placeholder, DashboardID: placeholder}, nil
	}
	body := map[string]string{
		"source_dashboard_id": dashboardID,
		"display_name":        displayName,
	}
	var result MigrateResponse
	if err := c.doJSON(ctx, http.MethodPost, c.host+lakeviewDashboardsPath+"/migrate", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Publish publishes a Lakeview dashboard, optionally pinning it to a
// warehouse. Credentials are embedded unless disabled.
func (c *Client) Publish(ctx context.Context, dashboardID, warehouseID string, embedCredentials bool) error {
	if c.dryRun {
		c.logger.Infof("[DRY RUN] Would publish dashboard %s", dashboardID)
		return nil
	}
	body := map[string]interface{}{"embed_credentials": embedCredentials}
	if warehouseID != "" {
		body["warehouse_id"] = warehouseID
	}
	publishURL := c.host + lakeviewDashboardsPath + "/" + url.PathEscape(dashboardID) + "/published"
	return c.doJSON(ctx, http.MethodPost, publishURL, nil, body, nil)
}

// DeleteLegacy deletes (moves to trash) a legacy dashboard.
func (c *Client) DeleteLegacy(ctx context.Context, dashboardID string) error {
	if c.dryRun {
		c.logger.Infof("[DRY RUN] Would delete legacy dashboard %s", dashboardID)
		return nil
	}
	deleteURL := c.host + legacyDashboardsPath + "/" + url.PathEscape(dashboardID)
	return c.doJSON(ctx, http.MethodDelete, deleteURL, nil, nil, nil)
}

// doJSON issues one request with auth headers and decodes the JSON response
// into out when given. Non-2xx responses become *APIError with a best-effort
// extracted message.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, params url.Values, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: extractErrorMessage(respBody)}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// extractErrorMessage pulls a human-readable message out of an error
// response, checking the common locations in order: nested error.message,
// top-level message, top-level error, then the raw body.
func extractErrorMessage(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	if errObj, ok := payload["error"].(map[string]interface{}); ok {
		if msg, ok := errObj["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := payload["message"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := payload["error"].(string); ok && msg != "" {
		return msg
	}
	return string(body)
}

// pause sleeps the configured rate-limit interval between API calls.
func (c *Client) pause() {
	if !c.dryRun && c.sleep > 0 {
		time.Sleep(c.sleep)
	}
}
