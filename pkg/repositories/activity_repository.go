package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/northfork-studio/crm-engine/pkg/apperrors"
	"github.com/northfork-studio/crm-engine/pkg/database"
	"github.com/northfork-studio/crm-engine/pkg/models"
)

// ActivityRepository defines the interface for activity log data access.
// The log is append-only: there are no update or delete operations.
type ActivityRepository interface {
	// Create appends an activity and bumps the parent lead's activity
	// timestamps in the same transaction. Returns ErrNotFound when the lead
	// does not exist.
	Create(ctx context.Context, activity *models.Activity) error
	ListByLead(ctx context.Context, leadID uuid.UUID, filters models.ActivityFilters) ([]*models.Activity, int, error)
}

type activityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *database.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	if activity.ActorType == "" {
		activity.ActorType = models.ActorSystem
	}

	var metadata []byte
	if activity.Metadata != nil {
		var err error
		metadata, err = json.Marshal(activity.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO crm_activities (id, lead_id, type, title, description, metadata, actor_type, actor_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err = tx.QueryRow(ctx, query,
		activity.ID,
		activity.LeadID,
		activity.Type,
		activity.Title,
		activity.Description,
		metadata,
		activity.ActorType,
		activity.ActorName,
	).Scan(&activity.CreatedAt)
	if err != nil {
		// Foreign key violation (PostgreSQL error code 23503) means the lead
		// does not exist.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to create activity: %w", err)
	}

	touch := `UPDATE crm_leads SET last_activity_at = now(), updated_at = now() WHERE id = $1`
	if models.MarksContact(activity.Type) {
		touch = `UPDATE crm_leads SET last_activity_at = now(), last_contacted_at = now(), updated_at = now() WHERE id = $1`
	}
	if _, err := tx.Exec(ctx, touch, activity.LeadID); err != nil {
		return fmt.Errorf("failed to touch lead timestamps: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByLead returns activities for a lead ordered newest first, optionally
// filtered by type, plus the total match count.
func (r *activityRepository) ListByLead(ctx context.Context, leadID uuid.UUID, filters models.ActivityFilters) ([]*models.Activity, int, error) {
	where := "WHERE lead_id = $1"
	args := []any{leadID}

	if len(filters.Types) > 0 {
		args = append(args, filters.Types)
		where += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM crm_activities "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count activities: %w", err)
	}

	args = append(args, filters.Limit)
	limitArg := len(args)
	args = append(args, (filters.Page-1)*filters.Limit)
	offsetArg := len(args)

	query := fmt.Sprintf(`
		SELECT id, lead_id, type, title, description, metadata, actor_type, actor_name, created_at
		FROM crm_activities
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, limitArg, offsetArg)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		var a models.Activity
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Type, &a.Title, &a.Description,
			&metadata, &a.ActorType, &a.ActorName, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read activities: %w", err)
	}

	return activities, total, nil
}

var _ ActivityRepository = (*activityRepository)(nil)
