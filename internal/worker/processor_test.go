package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/gateway"
	"github.com/Raymond9734/whatsapp-campaign-dispatcher/internal/models"
)

// targetRecordingSender captures the target of every send
type targetRecordingSender struct {
	targets []gateway.Target
}

func (s *targetRecordingSender) Send(ctx context.Context, target gateway.Target, phone string, msg models.Message) gateway.Outcome {
	s.targets = append(s.targets, target)
	return gateway.Outcome{OK: true}
}

func TestCampaignProcessor_Process_UsesInstanceCredentials(t *testing.T) {
	list := recipients("1", "2")
	store := newRunStore(list)
	external := "ext-7"
	instances := &mockInstanceRepo{
		instance: &models.Instance{ID: store.campaign.InstanceID, InstanceName: "sales", ProviderType: models.ProviderCloud, InstanceIDExternal: &external},
		secrets:  &models.InstanceSecrets{APIURL: "https://gw.example.com/", APIKey: "secret"},
	}
	sender := &targetRecordingSender{}
	d, _ := newTestDispatcher(store, sender, NewIntervalPacer(0))
	p := NewCampaignProcessor(instances, gateway.DefaultProviders(), d, testLogger())

	job := &models.DispatchJob{CampaignID: store.campaign.ID, InstanceID: store.campaign.InstanceID, Recipients: list}
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(sender.targets) != 2 {
		t.Fatalf("sends = %d, want 2", len(sender.targets))
	}
	for _, target := range sender.targets {
		if target.APIURL != "https://gw.example.com" || target.APIKey != "secret" || target.Instance != "ext-7" {
			t.Errorf("target = %+v", target)
		}
		if target.Provider.Type() != models.ProviderCloud {
			t.Errorf("provider = %s, want cloud", target.Provider.Type())
		}
	}
	if store.campaign.Status != models.CampaignStatusCompleted {
		t.Errorf("status = %s, want completed", store.campaign.Status)
	}
}

func TestCampaignProcessor_Process_AbortsWithoutSecrets(t *testing.T) {
	list := recipients("1", "2")
	store := newRunStore(list)
	instances := &mockInstanceRepo{instance: &models.Instance{InstanceName: "sales"}}
	sender := &scriptedSender{}
	d, _ := newTestDispatcher(store, sender, NewIntervalPacer(0))
	p := NewCampaignProcessor(instances, gateway.DefaultProviders(), d, testLogger())

	job := &models.DispatchJob{CampaignID: store.campaign.ID, InstanceID: uuid.New(), Recipients: list}
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(sender.phones) != 0 {
		t.Errorf("sends = %d, want 0", len(sender.phones))
	}
	c := store.campaign
	if c.Status != models.CampaignStatusFailed || c.FailedCount != 2 || c.SentCount != 0 {
		t.Errorf("campaign = status %s sent %d failed %d", c.Status, c.SentCount, c.FailedCount)
	}
	for _, l := range store.logs {
		if l.Status != models.LogStatusFailed || l.ErrorMessage == nil || *l.ErrorMessage != "Instance secrets not found" {
			t.Errorf("log = %+v", l)
		}
	}
}

// failingInstanceRepo simulates a transient database error
type failingInstanceRepo struct{}

func (failingInstanceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Instance, error) {
	return nil, errors.New("connection refused")
}

func (failingInstanceRepo) GetSecrets(ctx context.Context, instanceID uuid.UUID) (*models.InstanceSecrets, error) {
	return nil, errors.New("connection refused")
}

func TestCampaignProcessor_Process_TransientLookupError(t *testing.T) {
	list := recipients("1")
	store := newRunStore(list)
	d, _ := newTestDispatcher(store, &scriptedSender{}, NewIntervalPacer(0))
	p := NewCampaignProcessor(failingInstanceRepo{}, gateway.DefaultProviders(), d, testLogger())

	err := p.Process(context.Background(), &models.DispatchJob{CampaignID: store.campaign.ID, Recipients: list})
	if err == nil {
		t.Fatal("Process() error = nil, want error")
	}
	if store.campaign.Status != models.CampaignStatusSending {
		t.Errorf("status = %s, want sending", store.campaign.Status)
	}
}

func TestCampaignProcessor_Process_DropsJobForSettledCampaign(t *testing.T) {
	tests := []struct {
		name   string
		status models.CampaignStatus
	}{
		{name: "failed by reaper", status: models.CampaignStatusFailed},
		{name: "completed", status: models.CampaignStatusCompleted},
		{name: "draft", status: models.CampaignStatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := recipients("1", "2")
			store := newRunStore(list)
			store.setStatus(tt.status)
			reason := "dispatch interrupted"
			for _, l := range store.logs {
				l.Status = models.LogStatusFailed
				l.ErrorMessage = &reason
			}

			instances := &mockInstanceRepo{
				instance: &models.Instance{InstanceName: "sales"},
				secrets:  &models.InstanceSecrets{APIURL: "https://gw.example.com", APIKey: "k"},
			}
			sender := &scriptedSender{}
			d, repo := newTestDispatcher(store, sender, NewIntervalPacer(0))
			p := NewCampaignProcessor(instances, gateway.DefaultProviders(), d, testLogger())

			job := &models.DispatchJob{CampaignID: store.campaign.ID, InstanceID: store.campaign.InstanceID, Recipients: list}
			if err := p.Process(context.Background(), job); err != nil {
				t.Fatalf("Process() error = %v", err)
			}

			if len(sender.phones) != 0 {
				t.Errorf("sends = %d, want 0", len(sender.phones))
			}
			if len(repo.progressUpdates) != 0 {
				t.Errorf("progress updates = %d, want 0", len(repo.progressUpdates))
			}
			if store.campaign.Status != tt.status {
				t.Errorf("status = %s, want %s", store.campaign.Status, tt.status)
			}
			for _, l := range store.logs {
				if l.Status != models.LogStatusFailed || *l.ErrorMessage != reason {
					t.Errorf("log = %+v, want untouched", l)
				}
			}
		})
	}
}

func TestCampaignProcessor_Process_SupersededRunIsNotAnError(t *testing.T) {
	list := recipients("1", "2", "3")
	store := newRunStore(list)
	instances := &mockInstanceRepo{
		instance: &models.Instance{InstanceName: "sales"},
		secrets:  &models.InstanceSecrets{APIURL: "https://gw.example.com", APIKey: "k"},
	}
	sender := &scriptedSender{onSend: func(phone string) {
		store.setStatus(models.CampaignStatusFailed)
	}}
	d, _ := newTestDispatcher(store, sender, NewIntervalPacer(0))
	p := NewCampaignProcessor(instances, gateway.DefaultProviders(), d, testLogger())

	job := &models.DispatchJob{CampaignID: store.campaign.ID, InstanceID: store.campaign.InstanceID, Recipients: list}
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(sender.phones) != 1 {
		t.Errorf("sends = %d, want 1", len(sender.phones))
	}
}
