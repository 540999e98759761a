package models

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline stages for a lead. The order here is the display order of the
// sales pipeline; it does not restrict transitions. Any stage may move to
// any other stage so that closed deals can be reopened.
const (
	StageNew       = "new"
	StageContacted = "contacted"
	StageQualified = "qualified"
	StageProposal  = "proposal"
	StageWon       = "won"
	StageLost      = "lost"
)

// PipelineStages lists all stages in pipeline order.
var PipelineStages = []string{
	StageNew,
	StageContacted,
	StageQualified,
	StageProposal,
	StageWon,
	StageLost,
}

// StageLabels maps stage values to display labels.
var StageLabels = map[string]string{
	StageNew:       "New",
	StageContacted: "Contacted",
	StageQualified: "Qualified",
	StageProposal:  "Proposal Sent",
	StageWon:       "Won",
	StageLost:      "Lost",
}

// ValidStage returns true if the stage is a known pipeline stage.
func ValidStage(stage string) bool {
	_, ok := StageLabels[stage]
	return ok
}

// TerminalStage returns true for stages that end the pipeline. Terminal
// stages are excluded from stale-lead detection; they do not block further
// transitions.
func TerminalStage(stage string) bool {
	return stage == StageWon || stage == StageLost
}

// StageHistoryEntry records a single stage transition. Entries are
// append-only: they are never updated and only removed when their lead is
// permanently deleted.
type StageHistoryEntry struct {
	ID        int64     `json:"id"`
	LeadID    uuid.UUID `json:"lead_id"`
	FromStage string    `json:"from_stage"`
	ToStage   string    `json:"to_stage"`
	EnteredAt time.Time `json:"entered_at"`
}
