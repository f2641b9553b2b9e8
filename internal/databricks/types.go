package databricks

import (
	"encoding/json"
	"strings"
)

// FlexID is a dashboard identifier that the API may return as either a JSON
// string or a JSON number.
type FlexID string

// UnmarshalJSON accepts both string and numeric identifiers.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// UserRef is a nested user object as returned by the dashboards APIs.
type UserRef struct {
	UserName string  `json:"user_name"`
	ID       *FlexID `json:"id"`
}

// LegacyDashboard is a dashboard in the deprecated preview SQL format.
type LegacyDashboard struct {
	ID            FlexID   `json:"id"`
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	DashboardPath string   `json:"dashboard_path"`
	CreatedAt     string   `json:"created_at"`
	CreateTime    string   `json:"create_time"`
	UpdatedAt     string   `json:"updated_at"`
	UpdateTime    string   `json:"update_time"`
	ModifiedAt    string   `json:"modified_at"`
	Description   string   `json:"description"`
	Summary       string   `json:"summary"`
	Owner         string   `json:"owner"`
	UserName      string   `json:"user_name"`
	User          *UserRef `json:"user"`
}

// EffectiveName returns the dashboard name, defaulting to "Unknown".
func (d *LegacyDashboard) EffectiveName() string {
	if d.Name != "" {
		return d.Name
	}
	return "Unknown"
}

// EffectivePath returns the dashboard path, preferring the flat path field.
func (d *LegacyDashboard) EffectivePath() string {
	return firstNonEmpty(d.Path, d.DashboardPath)
}

// EffectiveCreatedAt returns the creation timestamp under either field name.
func (d *LegacyDashboard) EffectiveCreatedAt() string {
	return firstNonEmpty(d.CreatedAt, d.CreateTime)
}

// EffectiveUpdatedAt returns the last-modified timestamp under any field name.
func (d *LegacyDashboard) EffectiveUpdatedAt() string {
	return firstNonEmpty(d.UpdatedAt, d.UpdateTime, d.ModifiedAt)
}

// EffectiveDescription returns the description under either field name.
func (d *LegacyDashboard) EffectiveDescription() string {
	return firstNonEmpty(d.Description, d.Summary)
}

// EffectiveOwner returns the owner: the flat owner field, then the nested
// user object, then the flat user_name field.
func (d *LegacyDashboard) EffectiveOwner() string {
	if d.Owner != "" {
		return d.Owner
	}
	if d.User != nil && d.User.UserName != "" {
		return d.User.UserName
	}
	return d.UserName
}

// LakeviewDashboard is a dashboard in the AI/BI (Lakeview) format. Published
// state is populated by the listing's published-status probe, not by the
// dashboard payload itself.
type LakeviewDashboard struct {
	ID                 FlexID   `json:"id"`
	DashboardID        FlexID   `json:"dashboard_id"`
	ObjectID           FlexID   `json:"object_id"`
	DisplayName        string   `json:"display_name"`
	Name               string   `json:"name"`
	Path               string   `json:"path"`
	ParentPath         string   `json:"parent_path"`
	PathName           string   `json:"path_name"`
	CreatedAt          string   `json:"created_at"`
	CreateTime         string   `json:"create_time"`
	CreatedTime        string   `json:"created_time"`
	UpdatedAt          string   `json:"updated_at"`
	UpdateTime         string   `json:"update_time"`
	ModifiedAt         string   `json:"modified_at"`
	LastModified       string   `json:"last_modified"`
	Description        string   `json:"description"`
	Summary            string   `json:"summary"`
	DisplayDescription string   `json:"display_description"`
	Owner              string   `json:"owner"`
	UserName           string   `json:"user_name"`
	CreatedBy          string   `json:"created_by"`
	User               *UserRef `json:"user"`
	Creator            *UserRef `json:"creator"`

	IsPublished bool   `json:"-"`
	PublishedAt string `json:"-"`
}

// EffectiveID returns the dashboard identifier under any of its field names.
func (d *LakeviewDashboard) EffectiveID() string {
	return firstNonEmpty(string(d.ID), string(d.DashboardID), string(d.ObjectID))
}

// EffectiveName returns the dashboard name, defaulting to "Unknown".
func (d *LakeviewDashboard) EffectiveName() string {
	if name := firstNonEmpty(d.Name, d.DisplayName); name != "" {
		return name
	}
	return "Unknown"
}

// lvdashExtension is the filename suffix the workspace file API appends to
// Lakeview dashboard paths.
const lvdashExtension = ".lvdash.json"

// EffectivePath returns the directory the dashboard lives in. The API returns
// path as a full file path with a .lvdash.json suffix; the parent_path field,
// when present, is preferred over stripping the filename ourselves.
func (d *LakeviewDashboard) EffectivePath() string {
	if d.Path != "" {
		if strings.Contains(d.Path, lvdashExtension) {
			if d.ParentPath != "" {
				return d.ParentPath
			}
			withoutExt := strings.ReplaceAll(d.Path, lvdashExtension, "")
			if idx := strings.LastIndex(withoutExt, "/"); idx >= 0 {
				return withoutExt[:idx]
			}
			return withoutExt
		}
		if d.ParentPath != "" {
			return d.ParentPath
		}
		return d.Path
	}
	return firstNonEmpty(d.ParentPath, d.PathName)
}

// EffectiveOwner returns the owner, trying each known location in order:
// owner, the nested user object, the flat user_name, the nested creator
// object, then created_by. First non-empty wins.
func (d *LakeviewDashboard) EffectiveOwner() string {
	if d.Owner != "" {
		return d.Owner
	}
	if d.User != nil && d.User.UserName != "" {
		return d.User.UserName
	}
	if d.UserName != "" {
		return d.UserName
	}
	if d.Creator != nil && d.Creator.UserName != "" {
		return d.Creator.UserName
	}
	return d.CreatedBy
}

// EffectiveCreatedAt returns the creation timestamp under any field name.
func (d *LakeviewDashboard) EffectiveCreatedAt() string {
	return firstNonEmpty(d.CreatedAt, d.CreateTime, d.CreatedTime)
}

// EffectiveUpdatedAt returns the last-modified timestamp under any field name.
func (d *LakeviewDashboard) EffectiveUpdatedAt() string {
	return firstNonEmpty(d.UpdatedAt, d.UpdateTime, d.ModifiedAt, d.LastModified)
}

// EffectiveDescription returns the description under any field name.
func (d *LakeviewDashboard) EffectiveDescription() string {
	return firstNonEmpty(d.Description, d.Summary, d.DisplayDescription)
}

// MigrateResponse is the result of a migrate call.
type MigrateResponse struct {
	ID          FlexID `json:"id"`
	DashboardID FlexID `json:"dashboard_id"`
}

// EffectiveID returns the new dashboard's identifier under either field name.
func (r *MigrateResponse) EffectiveID() string {
	return firstNonEmpty(string(r.ID), string(r.DashboardID))
}

// publishedInfo is the published-status probe response. The revision creation
// time is when the dashboard was published.
type publishedInfo struct {
	RevisionCreateTime string `json:"revision_create_time"`
	PublishedAt        string `json:"published_at"`
	PublishTime        string `json:"publish_time"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

func (p *publishedInfo) effectiveTime() string {
	return firstNonEmpty(p.RevisionCreateTime, p.PublishedAt, p.PublishTime, p.CreatedAt, p.UpdatedAt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
