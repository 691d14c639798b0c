package service

import (
	"context"
	"log/slog"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/repository"
)

// RecipientResolver filters a campaign's raw target list down to the contacts
// that may be messaged
type RecipientResolver interface {
	// Resolve returns the opted-in, non-group contacts among the campaign's
	// targets in target-list order. An empty result is not an error.
	Resolve(ctx context.Context, campaign *models.Campaign) ([]models.Recipient, error)
}

type recipientResolver struct {
	contactRepo repository.ContactRepository
	logger      *slog.Logger
}

// NewRecipientResolver creates a resolver backed by the contact repository
func NewRecipientResolver(contactRepo repository.ContactRepository, logger *slog.Logger) RecipientResolver {
	return &recipientResolver{
		contactRepo: contactRepo,
		logger:      logger,
	}
}

func (r *recipientResolver) Resolve(ctx context.Context, campaign *models.Campaign) ([]models.Recipient, error) {
	recipients, err := r.contactRepo.ListEligible(ctx, campaign.TargetContacts)
	if err != nil {
		r.logger.Error("failed to resolve recipients",
			slog.String("campaign_id", campaign.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, models.ErrResolutionFailed(err)
	}

	r.logger.Debug("recipients resolved",
		slog.String("campaign_id", campaign.ID.String()),
		slog.Int("targets", len(campaign.TargetContacts)),
		slog.Int("eligible", len(recipients)),
	)

	return recipients, nil
}
