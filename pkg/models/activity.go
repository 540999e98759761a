package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity types.
const (
	ActivityNote           = "note"
	ActivityEmailSent      = "email_sent"
	ActivityEmailReceived  = "email_received"
	ActivityCall           = "call"
	ActivityMeeting        = "meeting"
	ActivityVisit          = "visit"
	ActivityTask           = "task"
	ActivityStageChange    = "stage_change"
	ActivityFormSubmission = "form_submission"
	ActivityAuditCompleted = "audit_completed"
	ActivityHubSpotSync    = "hubspot_sync"
	ActivitySystem         = "system"
)

var activityTypes = map[string]bool{
	ActivityNote:           true,
	ActivityEmailSent:      true,
	ActivityEmailReceived:  true,
	ActivityCall:           true,
	ActivityMeeting:        true,
	ActivityVisit:          true,
	ActivityTask:           true,
	ActivityStageChange:    true,
	ActivityFormSubmission: true,
	ActivityAuditCompleted: true,
	ActivityHubSpotSync:    true,
	ActivitySystem:         true,
}

// ValidActivityType returns true if the type is in the fixed activity set.
func ValidActivityType(activityType string) bool {
	return activityTypes[activityType]
}

// MarksContact returns true for activity types that count as reaching out to
// the lead. Recording one updates the lead's last_contacted_at.
func MarksContact(activityType string) bool {
	return activityType == ActivityEmailSent || activityType == ActivityCall
}

// Actor types for activities.
const (
	ActorUser   = "user"
	ActorSystem = "system"
)

// Activity is an append-only event tied to a lead. Activities are never
// mutated after creation and only removed when their lead is permanently
// deleted. Stored in crm_activities.
type Activity struct {
	ID          uuid.UUID      `json:"id"`
	LeadID      uuid.UUID      `json:"lead_id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	ActorType   string         `json:"actor_type"`
	ActorName   string         `json:"actor_name,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ActivityFilters narrows and pages activity listings. Types empty means
// all types.
type ActivityFilters struct {
	Types []string
	Page  int
	Limit int
}
