package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/northfork-studio/crm-engine/pkg/apperrors"
	"github.com/northfork-studio/crm-engine/pkg/database"
	"github.com/northfork-studio/crm-engine/pkg/models"
)

// LeadRepository defines the interface for lead data access.
type LeadRepository interface {
	// Upsert atomically creates a lead for the submission's email or merges
	// the submission into the existing lead. The returned bool is true when
	// a new lead was created.
	Upsert(ctx context.Context, sub *models.LeadSubmission) (*models.Lead, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	List(ctx context.Context, filters models.LeadFilters) ([]*models.Lead, int, error)
	Update(ctx context.Context, id uuid.UUID, upd *models.LeadUpdate) (*models.Lead, error)
	// ChangeStage transitions the lead to the requested stage and records a
	// stage history entry in the same transaction. Returns the updated lead,
	// the stage it moved from, and whether anything changed (same-stage
	// requests are a no-op).
	ChangeStage(ctx context.Context, id uuid.UUID, toStage string) (*models.Lead, string, bool, error)
	Archive(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// leadRepository implements LeadRepository using PostgreSQL.
type leadRepository struct {
	db *database.DB
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(db *database.DB) LeadRepository {
	return &leadRepository{db: db}
}

const leadColumns = `
	id, email, name, phone, company, website, notes,
	stage, source, status, is_client, score, score_breakdown,
	COALESCE(utm_source, ''), COALESCE(utm_medium, ''), COALESCE(utm_campaign, ''),
	COALESCE(utm_term, ''), COALESCE(utm_content, ''), COALESCE(referrer, ''),
	COALESCE(source_url, ''), COALESCE(conversion_page, ''),
	created_at, updated_at, stage_changed_at, last_activity_at, last_contacted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner, extra ...any) (*models.Lead, error) {
	var lead models.Lead
	var breakdown []byte

	dest := []any{
		&lead.ID, &lead.Email, &lead.Name, &lead.Phone, &lead.Company,
		&lead.Website, &lead.Notes, &lead.Stage, &lead.Source, &lead.Status,
		&lead.IsClient, &lead.Score, &breakdown,
		&lead.UTMSource, &lead.UTMMedium, &lead.UTMCampaign,
		&lead.UTMTerm, &lead.UTMContent, &lead.Referrer,
		&lead.SourceURL, &lead.ConversionPage,
		&lead.CreatedAt, &lead.UpdatedAt, &lead.StageChangedAt,
		&lead.LastActivityAt, &lead.LastContactedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &lead.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score breakdown: %w", err)
		}
	}

	return &lead, nil
}

// Upsert inserts a new lead or merges the submission into the existing one
// in a single statement. Merge rules: provided contact fields win over stored
// values, absent fields never blank anything out, and attribution columns
// keep their first-touch values. The xmax check distinguishes a fresh insert
// from a conflict update.
func (r *leadRepository) Upsert(ctx context.Context, sub *models.LeadSubmission) (*models.Lead, bool, error) {
	query := `
		INSERT INTO crm_leads (
			email, name, phone, company, website, notes, source,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content,
			referrer, source_url, conversion_page
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
			NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, '')
		)
		ON CONFLICT (email) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE crm_leads.name END,
			phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE crm_leads.phone END,
			company = CASE WHEN EXCLUDED.company <> '' THEN EXCLUDED.company ELSE crm_leads.company END,
			website = CASE WHEN EXCLUDED.website <> '' THEN EXCLUDED.website ELSE crm_leads.website END,
			notes = CASE WHEN EXCLUDED.notes <> '' THEN EXCLUDED.notes ELSE crm_leads.notes END,
			utm_source = COALESCE(crm_leads.utm_source, EXCLUDED.utm_source),
			utm_medium = COALESCE(crm_leads.utm_medium, EXCLUDED.utm_medium),
			utm_campaign = COALESCE(crm_leads.utm_campaign, EXCLUDED.utm_campaign),
			utm_term = COALESCE(crm_leads.utm_term, EXCLUDED.utm_term),
			utm_content = COALESCE(crm_leads.utm_content, EXCLUDED.utm_content),
			referrer = COALESCE(crm_leads.referrer, EXCLUDED.referrer),
			source_url = COALESCE(crm_leads.source_url, EXCLUDED.source_url),
			conversion_page = COALESCE(crm_leads.conversion_page, EXCLUDED.conversion_page),
			last_activity_at = now(),
			updated_at = now()
		RETURNING ` + leadColumns + `, (xmax = 0)`

	var isNew bool
	lead, err := scanLead(r.db.QueryRow(ctx, query,
		sub.Email, sub.Name, sub.Phone, sub.Company, sub.Website, sub.Notes, sub.Source,
		sub.UTMSource, sub.UTMMedium, sub.UTMCampaign, sub.UTMTerm, sub.UTMContent,
		sub.Referrer, sub.SourceURL, sub.ConversionPage,
	), &isNew)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, false, apperrors.ErrConflict
		}
		return nil, false, fmt.Errorf("failed to upsert lead: %w", err)
	}

	return lead, isNew, nil
}

// GetByID retrieves a lead by ID.
func (r *leadRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM crm_leads WHERE id = $1`

	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return lead, nil
}

// leadSortColumns is the whitelist of sortable columns for List.
var leadSortColumns = map[string]string{
	"created_at":       "created_at",
	"updated_at":       "updated_at",
	"last_activity_at": "last_activity_at",
	"score":            "score",
	"email":            "email",
	"name":             "name",
}

// List returns leads matching the filters plus the total match count.
// Archived leads are excluded unless the status filter asks for them.
func (r *leadRepository) List(ctx context.Context, filters models.LeadFilters) ([]*models.Lead, int, error) {
	var conditions []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Status != "" {
		conditions = append(conditions, "status = "+arg(filters.Status))
	} else {
		conditions = append(conditions, "status <> "+arg(models.StatusArchived))
	}
	if filters.Stage != "" {
		conditions = append(conditions, "stage = "+arg(filters.Stage))
	}
	if filters.Source != "" {
		conditions = append(conditions, "source = "+arg(filters.Source))
	}
	if filters.Search != "" {
		p := arg("%" + filters.Search + "%")
		conditions = append(conditions, fmt.Sprintf("(email ILIKE %s OR name ILIKE %s OR company ILIKE %s)", p, p, p))
	}
	if filters.MinScore != nil {
		conditions = append(conditions, "score >= "+arg(*filters.MinScore))
	}
	if filters.MaxScore != nil {
		conditions = append(conditions, "score <= "+arg(*filters.MaxScore))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM crm_leads "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	sortCol, ok := leadSortColumns[filters.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filters.SortOrder, "asc") {
		order = "ASC"
	}

	query := fmt.Sprintf("SELECT %s FROM crm_leads %s ORDER BY %s %s LIMIT %s OFFSET %s",
		leadColumns, where, sortCol, order,
		arg(filters.Limit), arg((filters.Page-1)*filters.Limit))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read leads: %w", err)
	}

	return leads, total, nil
}

// Update applies the non-nil fields of the update to the lead.
func (r *leadRepository) Update(ctx context.Context, id uuid.UUID, upd *models.LeadUpdate) (*models.Lead, error) {
	var sets []string
	args := []any{id}

	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Phone != nil {
		set("phone", *upd.Phone)
	}
	if upd.Company != nil {
		set("company", *upd.Company)
	}
	if upd.Website != nil {
		set("website", *upd.Website)
	}
	if upd.Notes != nil {
		set("notes", *upd.Notes)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.Score != nil {
		set("score", *upd.Score)
	}
	if upd.ScoreBreakdown != nil {
		breakdown, err := json.Marshal(*upd.ScoreBreakdown)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal score breakdown: %w", err)
		}
		set("score_breakdown", breakdown)
	}
	if upd.IsClient != nil {
		set("is_client", *upd.IsClient)
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf("UPDATE crm_leads SET %s WHERE id = $1 RETURNING %s",
		strings.Join(sets, ", "), leadColumns)

	lead, err := scanLead(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	return lead, nil
}

// ChangeStage moves the lead to the requested stage and appends the stage
// history entry in one transaction. Requesting the current stage changes
// nothing and writes no history.
func (r *leadRepository) ChangeStage(ctx context.Context, id uuid.UUID, toStage string) (*models.Lead, string, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var fromStage string
	err = tx.QueryRow(ctx, `SELECT stage FROM crm_leads WHERE id = $1 FOR UPDATE`, id).Scan(&fromStage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", false, apperrors.ErrNotFound
		}
		return nil, "", false, fmt.Errorf("failed to lock lead: %w", err)
	}

	if fromStage == toStage {
		lead, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM crm_leads WHERE id = $1`, id))
		if err != nil {
			return nil, "", false, fmt.Errorf("failed to get lead: %w", err)
		}
		return lead, fromStage, false, nil
	}

	query := `
		UPDATE crm_leads
		SET stage = $2, stage_changed_at = now(), last_activity_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING ` + leadColumns

	lead, err := scanLead(tx.QueryRow(ctx, query, id, toStage))
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to update stage: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO crm_stage_history (lead_id, from_stage, to_stage)
		VALUES ($1, $2, $3)`, id, fromStage, toStage)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to record stage history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return lead, fromStage, true, nil
}

// Archive soft-deletes a lead by marking its status archived.
func (r *leadRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `
		UPDATE crm_leads SET status = $2, updated_at = now() WHERE id = $1`,
		id, models.StatusArchived)
	if err != nil {
		return fmt.Errorf("failed to archive lead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete permanently removes a lead. Activities and stage history rows go
// with it via ON DELETE CASCADE.
func (r *leadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM crm_leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Ensure leadRepository implements LeadRepository at compile time.
var _ LeadRepository = (*leadRepository)(nil)
