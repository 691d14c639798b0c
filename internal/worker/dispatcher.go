package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/gateway"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/repository"
)

// Finisher records the end of a campaign run
type Finisher interface {
	Finish(ctx context.Context, id uuid.UUID, progress models.CampaignProgress) error
}

// Dispatcher runs the per-recipient send loop of one campaign
type Dispatcher struct {
	sender       gateway.Sender
	campaignRepo repository.CampaignRepository
	logRepo      repository.CampaignLogRepository
	finisher     Finisher
	pacer        Pacer
	now          func() time.Time
	logger       *slog.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	sender gateway.Sender,
	campaignRepo repository.CampaignRepository,
	logRepo repository.CampaignLogRepository,
	finisher Finisher,
	pacer Pacer,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		sender:       sender,
		campaignRepo: campaignRepo,
		logRepo:      logRepo,
		finisher:     finisher,
		pacer:        pacer,
		now:          time.Now,
		logger:       logger,
	}
}

// Run sends the job's message to every recipient in order, one at a time.
// A failed send is recorded and the loop moves on; nothing is retried.
// Counters are persisted after every recipient so pollers see progress.
// Run returns early when ctx is cancelled, leaving the campaign sending, or
// with a CONFLICT error once the campaign has left sending under it.
func (d *Dispatcher) Run(ctx context.Context, target gateway.Target, job *models.DispatchJob) (models.CampaignProgress, error) {
	var progress models.CampaignProgress

	d.logger.Info("dispatch started",
		slog.String("campaign_id", job.CampaignID.String()),
		slog.Int("recipients", len(job.Recipients)),
		slog.String("kind", string(job.Message.Kind.Normalize())),
	)

	for i, recipient := range job.Recipients {
		if i > 0 {
			if err := d.pacer.Wait(ctx); err != nil {
				d.logger.Warn("dispatch interrupted",
					slog.String("campaign_id", job.CampaignID.String()),
					slog.Int("processed", progress.Processed()),
					slog.Int("total", len(job.Recipients)),
				)
				return progress, fmt.Errorf("dispatch interrupted: %w", err)
			}
		}

		outcome := d.sender.Send(ctx, target, recipient.PhoneNumber, job.Message)
		d.record(ctx, job.CampaignID, recipient, outcome, &progress)

		if err := d.campaignRepo.UpdateProgress(ctx, job.CampaignID, progress); err != nil {
			if errors.Is(err, models.ErrConflict) {
				d.logger.Warn("campaign left sending, stopping dispatch",
					slog.String("campaign_id", job.CampaignID.String()),
					slog.Int("processed", progress.Processed()),
					slog.Int("total", len(job.Recipients)),
				)
				return progress, fmt.Errorf("dispatch stopped: %w", err)
			}
			d.logger.Error("failed to persist campaign progress",
				slog.String("campaign_id", job.CampaignID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := d.finisher.Finish(ctx, job.CampaignID, progress); err != nil {
		return progress, err
	}

	return progress, nil
}

// Status returns the current status of a campaign
func (d *Dispatcher) Status(ctx context.Context, id uuid.UUID) (models.CampaignStatus, error) {
	campaign, err := d.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return campaign.Status, nil
}

// record stores the outcome on the recipient's log and bumps the counters.
// The counters follow the gateway outcome even when the log write fails.
func (d *Dispatcher) record(ctx context.Context, campaignID uuid.UUID, recipient models.Recipient, outcome gateway.Outcome, progress *models.CampaignProgress) {
	var err error

	if outcome.OK {
		progress.SentCount++
		err = d.logRepo.MarkSent(ctx, campaignID, recipient.ContactID, d.now().UTC())
		d.logger.Debug("message sent",
			slog.String("campaign_id", campaignID.String()),
			slog.String("contact_id", recipient.ContactID.String()),
			slog.String("provider_message_id", outcome.ProviderMessageID),
		)
	} else {
		progress.FailedCount++
		err = d.logRepo.MarkFailed(ctx, campaignID, recipient.ContactID, outcome.Reason)
		d.logger.Warn("message send failed",
			slog.String("campaign_id", campaignID.String()),
			slog.String("contact_id", recipient.ContactID.String()),
			slog.String("reason", outcome.Reason),
		)
	}

	if err != nil {
		d.logger.Error("failed to update campaign log",
			slog.String("campaign_id", campaignID.String()),
			slog.String("contact_id", recipient.ContactID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Abort settles a run that cannot send at all: every pending log fails with
// reason and the campaign is marked failed
func (d *Dispatcher) Abort(ctx context.Context, job *models.DispatchJob, reason string) error {
	failed, err := d.logRepo.FailPending(ctx, job.CampaignID, reason)
	if err != nil {
		return fmt.Errorf("failed to fail pending logs: %w", err)
	}

	counts, err := d.logRepo.CountByStatus(ctx, job.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to count campaign logs: %w", err)
	}

	progress := models.CampaignProgress{SentCount: counts.Sent, FailedCount: counts.Failed}
	if err := d.campaignRepo.MarkFailed(ctx, job.CampaignID, d.now().UTC(), progress); err != nil {
		return fmt.Errorf("failed to mark campaign failed: %w", err)
	}

	d.logger.Error("dispatch aborted",
		slog.String("campaign_id", job.CampaignID.String()),
		slog.String("reason", reason),
		slog.Int64("failed_logs", failed),
	)

	return nil
}
