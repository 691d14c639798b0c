package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/repository"
)

const interruptedReason = "dispatch interrupted"

// SchedulerService promotes due scheduled campaigns into sending and settles
// runs that stopped making progress
type SchedulerService interface {
	// Sweep starts every scheduled campaign whose time has come. One failing
	// campaign never prevents the others from starting.
	Sweep(ctx context.Context) (*SweepResult, error)
	// ReapStale fails sending campaigns idle for longer than the stale threshold
	// and returns how many were settled
	ReapStale(ctx context.Context) (int, error)
}

type schedulerService struct {
	campaignRepo repository.CampaignRepository
	logRepo      repository.CampaignLogRepository
	campaigns    CampaignService
	staleAfter   time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewSchedulerService creates a scheduler that starts campaigns through the
// same entry point as manual starts. staleAfter <= 0 disables reaping.
func NewSchedulerService(
	campaignRepo repository.CampaignRepository,
	logRepo repository.CampaignLogRepository,
	campaigns CampaignService,
	staleAfter time.Duration,
	logger *slog.Logger,
) SchedulerService {
	return &schedulerService{
		campaignRepo: campaignRepo,
		logRepo:      logRepo,
		campaigns:    campaigns,
		staleAfter:   staleAfter,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *schedulerService) Sweep(ctx context.Context) (*SweepResult, error) {
	reaped, err := s.ReapStale(ctx)
	if err != nil {
		// Reaping is housekeeping; due campaigns still get started
		s.logger.Error("failed to reap stale campaigns", slog.String("error", err.Error()))
	}

	due, err := s.campaignRepo.ListDue(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to list due campaigns", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	if len(due) == 0 {
		return &SweepResult{
			Processed: 0,
			Message:   "No campaigns to process",
			Reaped:    reaped,
		}, nil
	}

	s.logger.Info("processing scheduled campaigns", slog.Int("due", len(due)))

	result := &SweepResult{Total: len(due), Reaped: reaped}
	for _, campaign := range due {
		if _, err := s.campaigns.Start(ctx, campaign.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Campaign %s: %s", campaign.ID, errorMessage(err)))
			s.logger.Warn("scheduled campaign not started",
				slog.String("campaign_id", campaign.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Processed++
	}

	s.logger.Info("scheduler sweep finished",
		slog.Int("processed", result.Processed),
		slog.Int("total", result.Total),
		slog.Int("errors", len(result.Errors)),
	)

	return result, nil
}

func (s *schedulerService) ReapStale(ctx context.Context) (int, error) {
	if s.staleAfter <= 0 {
		return 0, nil
	}

	now := s.now().UTC()
	stale, err := s.campaignRepo.ListStale(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale campaigns: %w", err)
	}

	reaped := 0
	for _, campaign := range stale {
		if err := s.reap(ctx, campaign, now); err != nil {
			s.logger.Error("failed to reap stale campaign",
				slog.String("campaign_id", campaign.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		reaped++
	}

	return reaped, nil
}

// reap fails the remaining pending logs and derives the final counters from
// the logs so that sent + failed covers every recipient
func (s *schedulerService) reap(ctx context.Context, campaign *models.Campaign, now time.Time) error {
	interrupted, err := s.logRepo.FailPending(ctx, campaign.ID, interruptedReason)
	if err != nil {
		return err
	}

	counts, err := s.logRepo.CountByStatus(ctx, campaign.ID)
	if err != nil {
		return err
	}

	progress := models.CampaignProgress{
		SentCount:   counts.Sent,
		FailedCount: counts.Failed,
	}

	// Every recipient was processed and only the final write was lost
	if interrupted == 0 && counts.Pending == 0 {
		if err := s.campaignRepo.Complete(ctx, campaign.ID, now, progress); err != nil && !errors.Is(err, models.ErrConflict) {
			return err
		}
		s.logger.Warn("stale campaign marked completed",
			slog.String("campaign_id", campaign.ID.String()),
			slog.Int("sent", progress.SentCount),
			slog.Int("failed", progress.FailedCount),
		)
		return nil
	}

	if err := s.campaignRepo.MarkFailed(ctx, campaign.ID, now, progress); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Finished on its own in the meantime
			return nil
		}
		return err
	}

	s.logger.Warn("stale campaign marked failed",
		slog.String("campaign_id", campaign.ID.String()),
		slog.Int64("interrupted", interrupted),
		slog.Int("sent", progress.SentCount),
		slog.Int("failed", progress.FailedCount),
	)

	return nil
}

// errorMessage returns the client-facing text of err
func errorMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
