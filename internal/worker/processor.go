package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/gateway"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/repository"
)

// CampaignProcessor turns queued dispatch jobs into campaign runs
type CampaignProcessor struct {
	instanceRepo repository.InstanceRepository
	providers    gateway.Providers
	dispatcher   *Dispatcher
	logger       *slog.Logger
}

// NewCampaignProcessor creates a new campaign processor
func NewCampaignProcessor(
	instanceRepo repository.InstanceRepository,
	providers gateway.Providers,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *CampaignProcessor {
	return &CampaignProcessor{
		instanceRepo: instanceRepo,
		providers:    providers,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

// Process handles one dispatch job. Jobs for campaigns that are no longer
// sending are dropped. Instance credentials are read once here and reused
// for every recipient of the run.
func (p *CampaignProcessor) Process(ctx context.Context, job *models.DispatchJob) error {
	status, err := p.dispatcher.Status(ctx, job.CampaignID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			p.logger.Warn("dropping job for unknown campaign", slog.String("campaign_id", job.CampaignID.String()))
			return nil
		}
		return fmt.Errorf("campaign %s: %w", job.CampaignID, err)
	}
	if status != models.CampaignStatusSending {
		p.logger.Warn("dropping job for campaign that is not sending",
			slog.String("campaign_id", job.CampaignID.String()),
			slog.String("status", string(status)),
		)
		return nil
	}

	target, err := p.resolveTarget(ctx, job)
	if err != nil {
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			// Transient lookup failure; the stale run reaper settles the campaign
			return err
		}

		p.logger.Error("campaign instance unavailable",
			slog.String("campaign_id", job.CampaignID.String()),
			slog.String("instance_id", job.InstanceID.String()),
			slog.String("error", err.Error()),
		)
		if abortErr := p.dispatcher.Abort(ctx, job, appErr.Message); abortErr != nil {
			return abortErr
		}
		return nil
	}

	progress, err := p.dispatcher.Run(ctx, target, job)
	if errors.Is(err, models.ErrConflict) {
		// Settled elsewhere mid-run, usually by the stale run reaper
		p.logger.Warn("campaign run superseded",
			slog.String("campaign_id", job.CampaignID.String()),
			slog.Int("sent", progress.SentCount),
			slog.Int("failed", progress.FailedCount),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("campaign %s: %w", job.CampaignID, err)
	}

	p.logger.Info("campaign dispatched",
		slog.String("campaign_id", job.CampaignID.String()),
		slog.Int("total", len(job.Recipients)),
		slog.Int("sent", progress.SentCount),
		slog.Int("failed", progress.FailedCount),
	)

	return nil
}

func (p *CampaignProcessor) resolveTarget(ctx context.Context, job *models.DispatchJob) (gateway.Target, error) {
	secrets, err := p.instanceRepo.GetSecrets(ctx, job.InstanceID)
	if err != nil {
		return gateway.Target{}, err
	}

	instance, err := p.instanceRepo.GetByID(ctx, job.InstanceID)
	if err != nil {
		return gateway.Target{}, err
	}

	return gateway.NewTarget(p.providers, instance, secrets), nil
}
