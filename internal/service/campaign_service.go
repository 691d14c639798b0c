package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/queue"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/repository"
)

// CampaignService owns the campaign status lifecycle
type CampaignService interface {
	Create(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, filter models.CampaignFilter) (*CampaignListResult, error)
	ListLogs(ctx context.Context, filter models.CampaignLogFilter) (*CampaignLogListResult, error)
	// Start moves a draft or scheduled campaign to sending and hands the run
	// to the dispatcher. It returns before any message is sent.
	Start(ctx context.Context, id uuid.UUID) (*StartResult, error)
	// Finish records the end of a run with its final counters
	Finish(ctx context.Context, id uuid.UUID, progress models.CampaignProgress) error
}

type campaignService struct {
	campaignRepo repository.CampaignRepository
	instanceRepo repository.InstanceRepository
	logRepo      repository.CampaignLogRepository
	resolver     RecipientResolver
	queueClient  queue.Client
	now          func() time.Time
	logger       *slog.Logger
}

// NewCampaignService creates a new campaign service
func NewCampaignService(
	campaignRepo repository.CampaignRepository,
	instanceRepo repository.InstanceRepository,
	logRepo repository.CampaignLogRepository,
	resolver RecipientResolver,
	queueClient queue.Client,
	logger *slog.Logger,
) CampaignService {
	return &campaignService{
		campaignRepo: campaignRepo,
		instanceRepo: instanceRepo,
		logRepo:      logRepo,
		resolver:     resolver,
		queueClient:  queueClient,
		now:          time.Now,
		logger:       logger,
	}
}

// Create validates and stores a new draft or scheduled campaign
func (s *campaignService) Create(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error) {
	campaign := req.Campaign()
	if err := campaign.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.instanceRepo.GetByID(ctx, campaign.InstanceID); err != nil {
		return nil, err
	}

	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		s.logger.Error("failed to create campaign",
			slog.String("error", err.Error()),
			slog.String("name", campaign.Name),
		)
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("campaign created",
		slog.String("campaign_id", campaign.ID.String()),
		slog.String("name", campaign.Name),
		slog.String("status", string(campaign.Status)),
	)

	return campaign, nil
}

// GetByID retrieves a campaign with its current counters
func (s *campaignService) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.campaignRepo.GetByID(ctx, id)
}

// List returns a page of campaigns, newest first
func (s *campaignService) List(ctx context.Context, filter models.CampaignFilter) (*CampaignListResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.ErrInvalidInput(fmt.Sprintf("invalid status: %s", filter.Status))
	}

	filter = filter.Normalized()
	campaigns, totalCount, err := s.campaignRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	return &CampaignListResult{
		Data:       campaigns,
		Pagination: models.NewPagination(filter.Page, filter.PageSize, totalCount),
	}, nil
}

// ListLogs returns a page of per-recipient logs for a campaign
func (s *campaignService) ListLogs(ctx context.Context, filter models.CampaignLogFilter) (*CampaignLogListResult, error) {
	if filter.Status != "" && !models.IsValidLogStatus(filter.Status) {
		return nil, models.ErrInvalidInput(fmt.Sprintf("invalid status: %s", filter.Status))
	}

	if _, err := s.campaignRepo.GetByID(ctx, filter.CampaignID); err != nil {
		return nil, err
	}

	filter = filter.Normalized()
	logs, totalCount, err := s.logRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign logs: %w", err)
	}

	return &CampaignLogListResult{
		Data:       logs,
		Pagination: models.NewPagination(filter.Page, filter.PageSize, totalCount),
	}, nil
}

// Start checks the preconditions in order and fails without side effects
// when any of them does not hold
func (s *campaignService) Start(ctx context.Context, id uuid.UUID) (*StartResult, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !campaign.Status.CanStart() {
		return nil, models.ErrInvalidStateWithStatus(campaign.Status)
	}

	if _, err := s.instanceRepo.GetSecrets(ctx, campaign.InstanceID); err != nil {
		return nil, err
	}

	if _, err := s.instanceRepo.GetByID(ctx, campaign.InstanceID); err != nil {
		return nil, err
	}

	if len(campaign.TargetContacts) == 0 {
		return nil, models.ErrNoTargetsSpecified()
	}

	recipients, err := s.resolver.Resolve(ctx, campaign)
	if err != nil {
		return nil, err
	}

	if len(recipients) == 0 {
		return nil, models.ErrNoEligibleRecipients()
	}

	startedAt := s.now().UTC()
	if err := s.campaignRepo.StartRun(ctx, campaign.ID, startedAt, recipients); err != nil {
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			s.logger.Error("failed to start campaign run",
				slog.String("campaign_id", campaign.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	job := &models.DispatchJob{
		CampaignID: campaign.ID,
		InstanceID: campaign.InstanceID,
		Message:    campaign.Message(),
		Recipients: recipients,
	}

	// The run is committed at this point. If the handoff fails the campaign
	// stays sending until the stale run reaper fails it.
	if err := s.queueClient.Publish(ctx, job); err != nil {
		s.logger.Error("failed to queue campaign dispatch",
			slog.String("campaign_id", campaign.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, &models.AppError{
			Code:    models.CodeDispatchFailed,
			Message: "Failed to queue campaign dispatch",
			Err:     err,
		}
	}

	s.logger.Info("campaign started",
		slog.String("campaign_id", campaign.ID.String()),
		slog.Int("targets", len(campaign.TargetContacts)),
		slog.Int("total_recipients", len(recipients)),
	)

	return &StartResult{
		Success:         true,
		Message:         "Campaign started",
		TotalRecipients: len(recipients),
	}, nil
}

// Finish marks a sending campaign completed
func (s *campaignService) Finish(ctx context.Context, id uuid.UUID, progress models.CampaignProgress) error {
	if err := s.campaignRepo.Complete(ctx, id, s.now().UTC(), progress); err != nil {
		return fmt.Errorf("failed to complete campaign: %w", err)
	}

	s.logger.Info("campaign completed",
		slog.String("campaign_id", id.String()),
		slog.Int("sent", progress.SentCount),
		slog.Int("failed", progress.FailedCount),
	)

	return nil
}
