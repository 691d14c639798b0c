package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// store is an in-memory stand-in for the campaign tables
type store struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*models.Campaign
	logs      []*models.CampaignLog
	contacts  map[uuid.UUID]*models.Contact
	instances map[uuid.UUID]*models.Instance
	secrets   map[uuid.UUID]*models.InstanceSecrets
}

func newStore() *store {
	return &store{
		campaigns: map[uuid.UUID]*models.Campaign{},
		contacts:  map[uuid.UUID]*models.Contact{},
		instances: map[uuid.UUID]*models.Instance{},
		secrets:   map[uuid.UUID]*models.InstanceSecrets{},
	}
}

func (s *store) addInstance() uuid.UUID {
	id := uuid.New()
	s.instances[id] = &models.Instance{ID: id, InstanceName: "sales", ProviderType: models.ProviderSelfHosted}
	s.secrets[id] = &models.InstanceSecrets{InstanceID: id, APIURL: "https://gw.example.com", APIKey: "k"}
	return id
}

func (s *store) addContact(phone string, optIn, isGroup bool) uuid.UUID {
	id := uuid.New()
	s.contacts[id] = &models.Contact{ID: id, PhoneNumber: phone, OptIn: optIn, IsGroup: isGroup}
	return id
}

func (s *store) addCampaign(instanceID uuid.UUID, status models.CampaignStatus, targets ...uuid.UUID) *models.Campaign {
	c := &models.Campaign{
		ID:             uuid.New(),
		InstanceID:     instanceID,
		Name:           "promo",
		MessageContent: "hello",
		MessageKind:    models.MessageKindText,
		TargetContacts: targets,
		Status:         status,
		UpdatedAt:      time.Now(),
	}
	s.campaigns[c.ID] = c
	return c
}

func (s *store) logsFor(campaignID uuid.UUID) []*models.CampaignLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*models.CampaignLog{}
	for _, l := range s.logs {
		if l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	return out
}

type mockCampaignRepository struct {
	*store
	listDueErr error
}

func (m *mockCampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	campaign.ID = uuid.New()
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = campaign.CreatedAt
	m.campaigns[campaign.ID] = campaign
	return nil
}

func (m *mockCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg("Campaign not found")
	}
	copied := *c
	return &copied, nil
}

func (m *mockCampaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []*models.Campaign{}
	for _, c := range m.campaigns {
		if filter.InstanceID != nil && c.InstanceID != *filter.InstanceID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	filter = filter.Normalized()
	start := min(filter.Offset(), len(matched))
	end := min(start+filter.PageSize, len(matched))
	return matched[start:end], int64(len(matched)), nil
}

func (m *mockCampaignRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	if m.listDueErr != nil {
		return nil, m.listDueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Campaign{}
	for _, c := range m.campaigns {
		if c.Status == models.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCampaignRepository) ListStale(ctx context.Context, idleSince time.Time) ([]*models.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Campaign{}
	for _, c := range m.campaigns {
		if c.Status == models.CampaignStatusSending && c.UpdatedAt.Before(idleSince) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCampaignRepository) StartRun(ctx context.Context, id uuid.UUID, startedAt time.Time, recipients []models.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	if c == nil || !c.Status.CanStart() {
		return &models.AppError{Code: models.CodeInvalidState, Message: "not startable", Err: models.ErrInvalidState}
	}
	c.Status = models.CampaignStatusSending
	c.StartedAt = &startedAt
	c.TotalRecipients = len(recipients)
	c.UpdatedAt = startedAt
	for _, r := range recipients {
		contactID := r.ContactID
		m.logs = append(m.logs, &models.CampaignLog{
			ID:         uuid.New(),
			CampaignID: id,
			ContactID:  &contactID,
			Status:     models.LogStatusPending,
		})
	}
	return nil
}

func (m *mockCampaignRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress models.CampaignProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	if c == nil || c.Status != models.CampaignStatusSending {
		return models.ErrConflictWithMsg("campaign is not sending")
	}
	c.SentCount = max(c.SentCount, progress.SentCount)
	c.FailedCount = max(c.FailedCount, progress.FailedCount)
	return nil
}

func (m *mockCampaignRepository) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, progress models.CampaignProgress) error {
	return m.finish(id, models.CampaignStatusCompleted, completedAt, progress)
}

func (m *mockCampaignRepository) MarkFailed(ctx context.Context, id uuid.UUID, completedAt time.Time, progress models.CampaignProgress) error {
	return m.finish(id, models.CampaignStatusFailed, completedAt, progress)
}

func (m *mockCampaignRepository) finish(id uuid.UUID, status models.CampaignStatus, at time.Time, progress models.CampaignProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	if c == nil || c.Status != models.CampaignStatusSending {
		return models.ErrConflictWithMsg("campaign is not sending")
	}
	c.Status = status
	c.CompletedAt = &at
	c.SentCount = progress.SentCount
	c.FailedCount = progress.FailedCount
	return nil
}

type mockLogRepository struct {
	*store
}

func (m *mockLogRepository) MarkSent(ctx context.Context, campaignID, contactID uuid.UUID, sentAt time.Time) error {
	return m.transition(campaignID, contactID, func(l *models.CampaignLog) {
		l.Status = models.LogStatusSent
		l.SentAt = &sentAt
	})
}

func (m *mockLogRepository) MarkFailed(ctx context.Context, campaignID, contactID uuid.UUID, errorMessage string) error {
	return m.transition(campaignID, contactID, func(l *models.CampaignLog) {
		l.Status = models.LogStatusFailed
		l.ErrorMessage = &errorMessage
	})
}

func (m *mockLogRepository) transition(campaignID, contactID uuid.UUID, apply func(*models.CampaignLog)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if l.CampaignID == campaignID && l.ContactID != nil && *l.ContactID == contactID && l.Status == models.LogStatusPending {
			apply(l)
			return nil
		}
	}
	return models.ErrNotFoundWithMsg("pending log not found")
}

func (m *mockLogRepository) FailPending(ctx context.Context, campaignID uuid.UUID, errorMessage string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.logs {
		if l.CampaignID == campaignID && l.Status == models.LogStatusPending {
			msg := errorMessage
			l.Status = models.LogStatusFailed
			l.ErrorMessage = &msg
			n++
		}
	}
	return n, nil
}

func (m *mockLogRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID) (models.LogStatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var counts models.LogStatusCounts
	for _, l := range m.logs {
		if l.CampaignID != campaignID {
			continue
		}
		switch l.Status {
		case models.LogStatusPending:
			counts.Pending++
		case models.LogStatusSent, models.LogStatusDelivered, models.LogStatusRead:
			counts.Sent++
		case models.LogStatusFailed:
			counts.Failed++
		default:
			counts.Other++
		}
	}
	return counts, nil
}

func (m *mockLogRepository) List(ctx context.Context, filter models.CampaignLogFilter) ([]*models.CampaignLog, int64, error) {
	filter = filter.Normalized()

	filtered := []*models.CampaignLog{}
	for _, l := range m.logsFor(filter.CampaignID) {
		if filter.Status != "" && string(l.Status) != filter.Status {
			continue
		}
		filtered = append(filtered, l)
	}

	start := min(filter.Offset(), len(filtered))
	end := min(start+filter.PageSize, len(filtered))
	return filtered[start:end], int64(len(filtered)), nil
}

type mockContactRepository struct {
	*store
	err error
}

func (m *mockContactRepository) ListEligible(ctx context.Context, ids []uuid.UUID) ([]models.Recipient, error) {
	if m.err != nil {
		return nil, m.err
	}
	seen := map[uuid.UUID]bool{}
	out := []models.Recipient{}
	for _, id := range ids {
		c, ok := m.contacts[id]
		if !ok || seen[id] || !c.Eligible() {
			continue
		}
		seen[id] = true
		out = append(out, models.Recipient{ContactID: c.ID, PhoneNumber: c.PhoneNumber, Name: c.Name})
	}
	return out, nil
}

type mockInstanceRepository struct {
	*store
}

func (m *mockInstanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Instance, error) {
	if i, ok := m.instances[id]; ok {
		return i, nil
	}
	return nil, models.ErrInstanceNotFound()
}

func (m *mockInstanceRepository) GetSecrets(ctx context.Context, instanceID uuid.UUID) (*models.InstanceSecrets, error) {
	if s, ok := m.secrets[instanceID]; ok {
		return s, nil
	}
	return nil, models.ErrSecretsNotFound()
}

type mockQueue struct {
	mu   sync.Mutex
	jobs []*models.DispatchJob
	err  error
}

func (q *mockQueue) Publish(ctx context.Context, job *models.DispatchJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *mockQueue) Consume(ctx context.Context, handler queue.JobHandler, concurrency int) error {
	return nil
}

func (q *mockQueue) Close() error { return nil }

func (q *mockQueue) Health(ctx context.Context) error { return nil }

func (q *mockQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

type fixture struct {
	store     *store
	campaigns *mockCampaignRepository
	logs      *mockLogRepository
	contacts  *mockContactRepository
	instances *mockInstanceRepository
	queue     *mockQueue
	service   CampaignService
}

func newFixture() *fixture {
	s := newStore()
	f := &fixture{
		store:     s,
		campaigns: &mockCampaignRepository{store: s},
		logs:      &mockLogRepository{store: s},
		contacts:  &mockContactRepository{store: s},
		instances: &mockInstanceRepository{store: s},
		queue:     &mockQueue{},
	}
	f.service = NewCampaignService(
		f.campaigns,
		f.instances,
		f.logs,
		NewRecipientResolver(f.contacts, testLogger()),
		f.queue,
		testLogger(),
	)
	return f
}
