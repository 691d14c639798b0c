package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// ContactRepository resolves campaign targets against WhatsApp contacts
type ContactRepository interface {
	ListEligible(ctx context.Context, ids []uuid.UUID) ([]models.Recipient, error)
}

// contactRepository implements ContactRepository using PostgreSQL
type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new contact repository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

// ListEligible returns the opted-in, non-group contacts among ids, ordered as
// they appear in ids. Unknown ids and duplicates are dropped.
func (r *contactRepository) ListEligible(ctx context.Context, ids []uuid.UUID) ([]models.Recipient, error) {
	if len(ids) == 0 {
		return []models.Recipient{}, nil
	}

	query := `
		SELECT id, phone_number, COALESCE(name, '')
		FROM whatsapp_contacts
		WHERE id = ANY($1::uuid[]) AND opt_in = true AND is_group = false
		ORDER BY array_position($1::uuid[], id), id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible contacts: %w", err)
	}
	defer rows.Close()

	recipients := []models.Recipient{}
	for rows.Next() {
		var recipient models.Recipient
		if err := rows.Scan(&recipient.ContactID, &recipient.PhoneNumber, &recipient.Name); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		recipients = append(recipients, recipient)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return recipients, nil
}
