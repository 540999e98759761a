package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/northfork-studio/crm-engine/pkg/database"
	"github.com/northfork-studio/crm-engine/pkg/models"
)

// StageHistoryRepository reads the stage transition history of a lead.
// Entries are written by LeadRepository.ChangeStage inside the transition
// transaction, so this interface is read-only.
type StageHistoryRepository interface {
	// ListByLead returns the transitions in the order they happened.
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]*models.StageHistoryEntry, error)
}

type stageHistoryRepository struct {
	db *database.DB
}

// NewStageHistoryRepository creates a new stage history repository.
func NewStageHistoryRepository(db *database.DB) StageHistoryRepository {
	return &stageHistoryRepository{db: db}
}

func (r *stageHistoryRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]*models.StageHistoryEntry, error) {
	query := `
		SELECT id, lead_id, from_stage, to_stage, entered_at
		FROM crm_stage_history
		WHERE lead_id = $1
		ORDER BY entered_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage history: %w", err)
	}
	defer rows.Close()

	var entries []*models.StageHistoryEntry
	for rows.Next() {
		var e models.StageHistoryEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.FromStage, &e.ToStage, &e.EnteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage history entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stage history: %w", err)
	}

	return entries, nil
}

var _ StageHistoryRepository = (*stageHistoryRepository)(nil)
