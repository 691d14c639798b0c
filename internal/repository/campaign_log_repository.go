package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// CampaignLogRepository defines the interface for per-recipient log access
type CampaignLogRepository interface {
	MarkSent(ctx context.Context, campaignID, contactID uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, campaignID, contactID uuid.UUID, errorMessage string) error
	FailPending(ctx context.Context, campaignID uuid.UUID, errorMessage string) (int64, error)
	CountByStatus(ctx context.Context, campaignID uuid.UUID) (models.LogStatusCounts, error)
	List(ctx context.Context, filter models.CampaignLogFilter) ([]*models.CampaignLog, int64, error)
}

// campaignLogRepository implements CampaignLogRepository using PostgreSQL
type campaignLogRepository struct {
	db *sql.DB
}

// NewCampaignLogRepository creates a new campaign log repository
func NewCampaignLogRepository(db *sql.DB) CampaignLogRepository {
	return &campaignLogRepository{db: db}
}

// MarkSent moves a pending log to sent
func (r *campaignLogRepository) MarkSent(ctx context.Context, campaignID, contactID uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE campaign_logs
		SET status = $1, sent_at = $2
		WHERE campaign_id = $3 AND contact_id = $4 AND status = $5`

	return r.transition(ctx, query, models.LogStatusSent, sentAt, campaignID, contactID, models.LogStatusPending)
}

// MarkFailed moves a pending log to failed with the gateway's reason
func (r *campaignLogRepository) MarkFailed(ctx context.Context, campaignID, contactID uuid.UUID, errorMessage string) error {
	query := `
		UPDATE campaign_logs
		SET status = $1, error_message = $2
		WHERE campaign_id = $3 AND contact_id = $4 AND status = $5`

	return r.transition(ctx, query, models.LogStatusFailed, errorMessage, campaignID, contactID, models.LogStatusPending)
}

func (r *campaignLogRepository) transition(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update campaign log status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("pending log for campaign %v contact %v not found", args[2], args[3]))
	}

	return nil
}

// FailPending marks every still-pending log of a campaign as failed
func (r *campaignLogRepository) FailPending(ctx context.Context, campaignID uuid.UUID, errorMessage string) (int64, error) {
	query := `
		UPDATE campaign_logs
		SET status = $1, error_message = $2
		WHERE campaign_id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, models.LogStatusFailed, errorMessage, campaignID, models.LogStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to fail pending logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// CountByStatus aggregates a campaign's logs. Delivered and read logs were sent
// first, so they count toward Sent.
func (r *campaignLogRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID) (models.LogStatusCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status IN ('sent', 'delivered', 'read')),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status NOT IN ('pending', 'sent', 'delivered', 'read', 'failed'))
		FROM campaign_logs
		WHERE campaign_id = $1`

	var counts models.LogStatusCounts
	err := r.db.QueryRowContext(ctx, query, campaignID).Scan(
		&counts.Pending,
		&counts.Sent,
		&counts.Failed,
		&counts.Other,
	)
	if err != nil {
		return models.LogStatusCounts{}, fmt.Errorf("failed to count campaign logs: %w", err)
	}

	return counts, nil
}

// List retrieves campaign logs with pagination and filtering
func (r *campaignLogRepository) List(ctx context.Context, filter models.CampaignLogFilter) ([]*models.CampaignLog, int64, error) {
	filter = filter.Normalized()

	query := `
		SELECT id, campaign_id, contact_id, status, sent_at, delivered_at, read_at,
			error_message, button_clicked, created_at
		FROM campaign_logs
		WHERE campaign_id = $1`
	countQuery := `SELECT COUNT(*) FROM campaign_logs WHERE campaign_id = $1`
	args := []any{filter.CampaignID}
	argPos := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		countQuery += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaign logs: %w", err)
	}

	offset := filter.Offset()
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaign logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.CampaignLog{}
	for rows.Next() {
		log := &models.CampaignLog{}
		err := rows.Scan(
			&log.ID,
			&log.CampaignID,
			&log.ContactID,
			&log.Status,
			&log.SentAt,
			&log.DeliveredAt,
			&log.ReadAt,
			&log.ErrorMessage,
			&log.ButtonClicked,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign log: %w", err)
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating campaign logs: %w", err)
	}

	return logs, totalCount, nil
}
