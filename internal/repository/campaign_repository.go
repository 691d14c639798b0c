package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// CampaignRepository defines the interface for campaign data access
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	ListStale(ctx context.Context, idleSince time.Time) ([]*models.Campaign, error)
	StartRun(ctx context.Context, id uuid.UUID, startedAt time.Time, recipients []models.Recipient) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress models.CampaignProgress) error
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, progress models.CampaignProgress) error
	MarkFailed(ctx context.Context, id uuid.UUID, completedAt time.Time, progress models.CampaignProgress) error
}

// campaignRepository implements CampaignRepository using PostgreSQL
type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *sql.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

const campaignColumns = `
	id, instance_id, name, description, COALESCE(message_content, ''),
	COALESCE(message_type, 'text'), media_url, media_mimetype, target_contacts, status, scheduled_at,
	started_at, completed_at, COALESCE(total_recipients, 0), COALESCE(sent_count, 0),
	COALESCE(delivered_count, 0), COALESCE(read_count, 0), COALESCE(failed_count, 0),
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	campaign := &models.Campaign{}
	var targets pq.StringArray

	err := row.Scan(
		&campaign.ID,
		&campaign.InstanceID,
		&campaign.Name,
		&campaign.Description,
		&campaign.MessageContent,
		&campaign.MessageKind,
		&campaign.MediaURL,
		&campaign.MediaMimeType,
		&targets,
		&campaign.Status,
		&campaign.ScheduledAt,
		&campaign.StartedAt,
		&campaign.CompletedAt,
		&campaign.TotalRecipients,
		&campaign.SentCount,
		&campaign.DeliveredCount,
		&campaign.ReadCount,
		&campaign.FailedCount,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	campaign.TargetContacts, err = parseUUIDs(targets)
	if err != nil {
		return nil, fmt.Errorf("invalid target contact id: %w", err)
	}

	return campaign, nil
}

// Create inserts a new campaign
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	query := `
		INSERT INTO campaigns (instance_id, name, description, message_content, message_type,
			media_url, media_mimetype, target_contacts, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		campaign.InstanceID,
		campaign.Name,
		campaign.Description,
		campaign.MessageContent,
		campaign.MessageKind,
		campaign.MediaURL,
		campaign.MediaMimeType,
		pq.Array(uuidStrings(campaign.TargetContacts)),
		campaign.Status,
		campaign.ScheduledAt,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	campaign, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg("Campaign not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}

// List retrieves campaigns with pagination, optionally narrowed to one
// instance or status
func (r *campaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	filter = filter.Normalized()

	where := " WHERE 1=1"
	args := []any{}
	argPos := 1

	if filter.InstanceID != nil {
		where += fmt.Sprintf(" AND instance_id = $%d", argPos)
		args = append(args, *filter.InstanceID)
		argPos++
	}

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, filter.Offset())

	campaigns, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return campaigns, totalCount, nil
}

// ListDue returns scheduled campaigns whose scheduled time has arrived
func (r *campaignRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC, id ASC`

	return r.list(ctx, query, models.CampaignStatusScheduled, now)
}

// ListStale returns sending campaigns with no progress write since idleSince.
// Every recipient of a run bumps updated_at, so long healthy runs never qualify.
func (r *campaignRepository) ListStale(ctx context.Context, idleSince time.Time) ([]*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC, id ASC`

	return r.list(ctx, query, models.CampaignStatusSending, idleSince)
}

func (r *campaignRepository) list(ctx context.Context, query string, args ...any) ([]*models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

// StartRun flips a draft or scheduled campaign to sending and creates one
// pending log per recipient in a single transaction. The status guard in the
// UPDATE makes concurrent starts of the same campaign lose with INVALID_STATE.
func (r *campaignRepository) StartRun(ctx context.Context, id uuid.UUID, startedAt time.Time, recipients []models.Recipient) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, started_at = $2, total_recipients = $3,
			sent_count = 0, failed_count = 0, updated_at = now()
		WHERE id = $4 AND status IN ($5, $6)`,
		models.CampaignStatusSending,
		startedAt,
		len(recipients),
		id,
		models.CampaignStatusDraft,
		models.CampaignStatusScheduled,
	)
	if err != nil {
		return fmt.Errorf("failed to mark campaign sending: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &models.AppError{
			Code:    models.CodeInvalidState,
			Message: "Campaign cannot be started. It is no longer in draft or scheduled status",
			Err:     models.ErrInvalidState,
		}
	}

	contactIDs := make([]uuid.UUID, 0, len(recipients))
	for _, recipient := range recipients {
		contactIDs = append(contactIDs, recipient.ContactID)
	}

	// One statement for the whole batch; a contact already logged for this
	// campaign keeps its existing row
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO campaign_logs (campaign_id, contact_id, status)
		SELECT $1, contact_id, $2
		FROM unnest($3::uuid[]) AS t(contact_id)
		ON CONFLICT (campaign_id, contact_id) DO NOTHING`,
		id,
		models.LogStatusPending,
		pq.Array(uuidStrings(contactIDs)),
	); err != nil {
		return fmt.Errorf("failed to insert campaign logs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateProgress persists the running counters of a sending campaign.
// Counters never decrease. A campaign that is no longer sending is left
// untouched and a CONFLICT error is returned.
func (r *campaignRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress models.CampaignProgress) error {
	query := `
		UPDATE campaigns
		SET sent_count = GREATEST(sent_count, $1),
			failed_count = GREATEST(failed_count, $2),
			updated_at = now()
		WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, progress.SentCount, progress.FailedCount, id, models.CampaignStatusSending)
	if err != nil {
		return fmt.Errorf("failed to update campaign progress: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrConflictWithMsg(fmt.Sprintf("campaign %s is not sending", id))
	}

	return nil
}

// Complete transitions a sending campaign to completed with its final counters
func (r *campaignRepository) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, progress models.CampaignProgress) error {
	return r.finish(ctx, id, models.CampaignStatusCompleted, completedAt, progress)
}

// MarkFailed transitions a sending campaign to failed with its final counters
func (r *campaignRepository) MarkFailed(ctx context.Context, id uuid.UUID, completedAt time.Time, progress models.CampaignProgress) error {
	return r.finish(ctx, id, models.CampaignStatusFailed, completedAt, progress)
}

func (r *campaignRepository) finish(ctx context.Context, id uuid.UUID, status models.CampaignStatus, completedAt time.Time, progress models.CampaignProgress) error {
	query := `
		UPDATE campaigns
		SET status = $1, completed_at = $2, sent_count = $3, failed_count = $4, updated_at = now()
		WHERE id = $5 AND status = $6`

	result, err := r.db.ExecContext(
		ctx,
		query,
		status,
		completedAt,
		progress.SentCount,
		progress.FailedCount,
		id,
		models.CampaignStatusSending,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrConflictWithMsg(fmt.Sprintf("campaign %s is not sending", id))
	}

	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
