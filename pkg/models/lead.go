package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead sources identify the channel that produced a lead.
const (
	SourceContactForm   = "contact_form"
	SourceLandingPage   = "landing_page"
	SourceNewsletter    = "newsletter"
	SourceReferral      = "referral"
	SourceChat          = "chat"
	SourceManual        = "manual"
	SourceAPI           = "api"
	SourceHubSpotImport = "hubspot_import"
	SourceFacebook      = "facebook"
)

var leadSources = map[string]bool{
	SourceContactForm:   true,
	SourceLandingPage:   true,
	SourceNewsletter:    true,
	SourceReferral:      true,
	SourceChat:          true,
	SourceManual:        true,
	SourceAPI:           true,
	SourceHubSpotImport: true,
	SourceFacebook:      true,
}

// ValidSource returns true if the source is a recognized lead channel.
func ValidSource(source string) bool {
	return leadSources[source]
}

// Lead statuses.
const (
	StatusNew         = "new"
	StatusContacted   = "contacted"
	StatusQualified   = "qualified"
	StatusUnqualified = "unqualified"
	StatusArchived    = "archived"
)

var leadStatuses = map[string]bool{
	StatusNew:         true,
	StatusContacted:   true,
	StatusQualified:   true,
	StatusUnqualified: true,
	StatusArchived:    true,
}

// ValidStatus returns true if the status is a recognized lead status.
func ValidStatus(status string) bool {
	return leadStatuses[status]
}

// Lead is a prospect or converted client. Exactly one lead exists per
// normalized email address. UTM and provenance fields are first-touch: they
// are stamped on creation and preserved across later submissions.
// Stored in crm_leads.
type Lead struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name,omitempty"`
	Phone    string    `json:"phone,omitempty"`
	Company  string    `json:"company,omitempty"`
	Website  string    `json:"website,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	Stage    string    `json:"stage"`
	Source   string    `json:"source"`
	Status   string    `json:"status"`
	IsClient bool      `json:"is_client"`

	Score          int            `json:"score"`
	ScoreBreakdown map[string]any `json:"score_breakdown,omitempty"`

	// First-touch attribution
	UTMSource      string `json:"utm_source,omitempty"`
	UTMMedium      string `json:"utm_medium,omitempty"`
	UTMCampaign    string `json:"utm_campaign,omitempty"`
	UTMTerm        string `json:"utm_term,omitempty"`
	UTMContent     string `json:"utm_content,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
	ConversionPage string `json:"conversion_page,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StageChangedAt  time.Time  `json:"stage_changed_at"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
}

// LeadSubmission is an inbound form or API submission. Email and Source are
// required; everything else is optional and only merged into an existing
// lead when provided.
type LeadSubmission struct {
	Email   string `json:"email"`
	Source  string `json:"source"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Website string `json:"website,omitempty"`
	Notes   string `json:"notes,omitempty"`

	UTMSource      string `json:"utm_source,omitempty"`
	UTMMedium      string `json:"utm_medium,omitempty"`
	UTMCampaign    string `json:"utm_campaign,omitempty"`
	UTMTerm        string `json:"utm_term,omitempty"`
	UTMContent     string `json:"utm_content,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
	ConversionPage string `json:"conversion_page,omitempty"`
}

// LeadUpdate is the allow-list of fields that PATCH may change. Nil fields
// are left untouched.
type LeadUpdate struct {
	Name           *string         `json:"name,omitempty"`
	Phone          *string         `json:"phone,omitempty"`
	Company        *string         `json:"company,omitempty"`
	Website        *string         `json:"website,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	Status         *string         `json:"status,omitempty"`
	Score          *int            `json:"score,omitempty"`
	ScoreBreakdown *map[string]any `json:"score_breakdown,omitempty"`
	IsClient       *bool           `json:"is_client,omitempty"`
}

// Empty returns true if the update would change nothing.
func (u *LeadUpdate) Empty() bool {
	return u.Name == nil && u.Phone == nil && u.Company == nil &&
		u.Website == nil && u.Notes == nil && u.Status == nil &&
		u.Score == nil && u.ScoreBreakdown == nil && u.IsClient == nil
}

// LeadFilters narrows and pages lead listings.
type LeadFilters struct {
	Stage     string
	Source    string
	Status    string
	Search    string
	MinScore  *int
	MaxScore  *int
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// UpsertResult is the outcome of submitting a lead: the stored lead and
// whether the submission created it or merged into an existing record.
type UpsertResult struct {
	Lead  *Lead
	IsNew bool
}

// LeadDetail is a lead with its activity log and stage history, as served
// by the single-lead endpoint.
type LeadDetail struct {
	Lead         *Lead                `json:"lead"`
	Activities   []*Activity          `json:"activities"`
	StageHistory []*StageHistoryEntry `json:"stage_history"`
}
