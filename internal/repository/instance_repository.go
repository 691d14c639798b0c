package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// InstanceRepository reads messaging instances and their gateway secrets
type InstanceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Instance, error)
	GetSecrets(ctx context.Context, instanceID uuid.UUID) (*models.InstanceSecrets, error)
}

type instanceRepository struct {
	db *sql.DB
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB) InstanceRepository {
	return &instanceRepository{db: db}
}

func (r *instanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Instance, error) {
	query := `
		SELECT id, instance_name, COALESCE(provider_type, ''), instance_id_external
		FROM whatsapp_instances
		WHERE id = $1`

	instance := &models.Instance{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&instance.ID,
		&instance.InstanceName,
		&instance.ProviderType,
		&instance.InstanceIDExternal,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrInstanceNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	instance.ProviderType = instance.ProviderType.Normalize()
	return instance, nil
}

func (r *instanceRepository) GetSecrets(ctx context.Context, instanceID uuid.UUID) (*models.InstanceSecrets, error) {
	query := `
		SELECT instance_id, api_url, api_key
		FROM whatsapp_instance_secrets
		WHERE instance_id = $1`

	secrets := &models.InstanceSecrets{}
	err := r.db.QueryRowContext(ctx, query, instanceID).Scan(
		&secrets.InstanceID,
		&secrets.APIURL,
		&secrets.APIKey,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrSecretsNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance secrets: %w", err)
	}

	return secrets, nil
}
