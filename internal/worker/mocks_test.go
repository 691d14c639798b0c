package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/gateway"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runStore holds one sending campaign and its logs
type runStore struct {
	mu              sync.Mutex
	campaign        *models.Campaign
	logs            map[uuid.UUID]*models.CampaignLog
	progressUpdates []models.CampaignProgress
	markErr         error
}

func newRunStore(recipients []models.Recipient) *runStore {
	s := &runStore{
		campaign: &models.Campaign{
			ID:              uuid.New(),
			InstanceID:      uuid.New(),
			Status:          models.CampaignStatusSending,
			TotalRecipients: len(recipients),
		},
		logs: map[uuid.UUID]*models.CampaignLog{},
	}
	for _, r := range recipients {
		contactID := r.ContactID
		s.logs[contactID] = &models.CampaignLog{
			ID:         uuid.New(),
			CampaignID: s.campaign.ID,
			ContactID:  &contactID,
			Status:     models.LogStatusPending,
		}
	}
	return s
}

func (s *runStore) log(contactID uuid.UUID) *models.CampaignLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs[contactID]
}

type mockCampaignRepo struct {
	*runStore
}

func (m *mockCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error { return nil }

func (m *mockCampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *m.campaign
	return &c, nil
}

func (m *mockCampaignRepo) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	return nil, 0, nil
}

// setStatus moves the campaign the way another process would
func (s *runStore) setStatus(status models.CampaignStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaign.Status = status
}

func (m *mockCampaignRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	return nil, nil
}

func (m *mockCampaignRepo) ListStale(ctx context.Context, idleSince time.Time) ([]*models.Campaign, error) {
	return nil, nil
}

func (m *mockCampaignRepo) StartRun(ctx context.Context, id uuid.UUID, startedAt time.Time, recipients []models.Recipient) error {
	return nil
}

func (m *mockCampaignRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress models.CampaignProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progressUpdates = append(m.progressUpdates, progress)
	if m.campaign.Status != models.CampaignStatusSending {
		return models.ErrConflictWithMsg("campaign is not sending")
	}
	m.campaign.SentCount = progress.SentCount
	m.campaign.FailedCount = progress.FailedCount
	return nil
}

func (m *mockCampaignRepo) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, progress models.CampaignProgress) error {
	return m.finish(models.CampaignStatusCompleted, completedAt, progress)
}

func (m *mockCampaignRepo) MarkFailed(ctx context.Context, id uuid.UUID, completedAt time.Time, progress models.CampaignProgress) error {
	return m.finish(models.CampaignStatusFailed, completedAt, progress)
}

func (m *mockCampaignRepo) finish(status models.CampaignStatus, at time.Time, progress models.CampaignProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.campaign.Status != models.CampaignStatusSending {
		return models.ErrConflictWithMsg("campaign is not sending")
	}
	m.campaign.Status = status
	m.campaign.CompletedAt = &at
	m.campaign.SentCount = progress.SentCount
	m.campaign.FailedCount = progress.FailedCount
	return nil
}

type mockLogRepo struct {
	*runStore
}

func (m *mockLogRepo) MarkSent(ctx context.Context, campaignID, contactID uuid.UUID, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	l := m.logs[contactID]
	if l == nil || l.Status != models.LogStatusPending {
		return models.ErrNotFoundWithMsg("pending log not found")
	}
	l.Status = models.LogStatusSent
	l.SentAt = &sentAt
	return nil
}

func (m *mockLogRepo) MarkFailed(ctx context.Context, campaignID, contactID uuid.UUID, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	l := m.logs[contactID]
	if l == nil || l.Status != models.LogStatusPending {
		return models.ErrNotFoundWithMsg("pending log not found")
	}
	l.Status = models.LogStatusFailed
	l.ErrorMessage = &errorMessage
	return nil
}

func (m *mockLogRepo) FailPending(ctx context.Context, campaignID uuid.UUID, errorMessage string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.logs {
		if l.Status == models.LogStatusPending {
			msg := errorMessage
			l.Status = models.LogStatusFailed
			l.ErrorMessage = &msg
			n++
		}
	}
	return n, nil
}

func (m *mockLogRepo) CountByStatus(ctx context.Context, campaignID uuid.UUID) (models.LogStatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var counts models.LogStatusCounts
	for _, l := range m.logs {
		switch l.Status {
		case models.LogStatusPending:
			counts.Pending++
		case models.LogStatusFailed:
			counts.Failed++
		default:
			counts.Sent++
		}
	}
	return counts, nil
}

func (m *mockLogRepo) List(ctx context.Context, filter models.CampaignLogFilter) ([]*models.CampaignLog, int64, error) {
	return nil, 0, nil
}

type mockInstanceRepo struct {
	instance *models.Instance
	secrets  *models.InstanceSecrets
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Instance, error) {
	if m.instance == nil {
		return nil, models.ErrInstanceNotFound()
	}
	return m.instance, nil
}

func (m *mockInstanceRepo) GetSecrets(ctx context.Context, instanceID uuid.UUID) (*models.InstanceSecrets, error) {
	if m.secrets == nil {
		return nil, models.ErrSecretsNotFound()
	}
	return m.secrets, nil
}

// repoFinisher completes the run the way the campaign service does
type repoFinisher struct {
	repo *mockCampaignRepo
}

func (f repoFinisher) Finish(ctx context.Context, id uuid.UUID, progress models.CampaignProgress) error {
	return f.repo.Complete(ctx, id, time.Now(), progress)
}

// scriptedSender answers from a per-phone outcome table and records call order
type scriptedSender struct {
	mu       sync.Mutex
	outcomes map[string]gateway.Outcome
	phones   []string
	onSend   func(phone string)
}

func (s *scriptedSender) Send(ctx context.Context, target gateway.Target, phone string, msg models.Message) gateway.Outcome {
	s.mu.Lock()
	s.phones = append(s.phones, phone)
	s.mu.Unlock()
	if s.onSend != nil {
		s.onSend(phone)
	}
	if o, ok := s.outcomes[phone]; ok {
		return o
	}
	return gateway.Outcome{OK: true, ProviderMessageID: "id-" + phone}
}

// countingPacer records how often it was asked to wait
type countingPacer struct {
	waits int
	err   error
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return p.err
}

func recipients(phones ...string) []models.Recipient {
	out := make([]models.Recipient, 0, len(phones))
	for _, phone := range phones {
		out = append(out, models.Recipient{ContactID: uuid.New(), PhoneNumber: phone})
	}
	return out
}
