package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/pixelmuse/PixelMuse/app/models"
	"gorm.io/gorm"
)

type fakeRepo struct {
	events   map[string]*models.WebhookEvent
	balances map[string]int64
	subs     map[string]*models.UserSubscription

	failIncrement bool
	failUpsert    bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		events:   map[string]*models.WebhookEvent{},
		balances: map[string]int64{},
		subs:     map[string]*models.UserSubscription{},
	}
}

func (f *fakeRepo) Transaction(fn func(Repository) error) error {
	// Snapshot-and-restore stands in for a DB rollback.
	events := make(map[string]*models.WebhookEvent, len(f.events))
	for k, v := range f.events {
		ev := *v
		events[k] = &ev
	}
	balances := make(map[string]int64, len(f.balances))
	for k, v := range f.balances {
		balances[k] = v
	}
	subs := make(map[string]*models.UserSubscription, len(f.subs))
	for k, v := range f.subs {
		sub := *v
		subs[k] = &sub
	}

	if err := fn(f); err != nil {
		f.events = events
		f.balances = balances
		f.subs = subs
		return err
	}
	return nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if _, ok := f.events[key]; ok {
		return false, nil
	}
	stored := *event
	f.events[key] = &stored
	return true, nil
}

func (f *fakeRepo) IncrementCreditBalance(userID string, delta int64) error {
	if f.failIncrement {
		return errors.New("storage unavailable")
	}
	f.balances[userID] += delta
	return nil
}

func (f *fakeRepo) GetCreditBalance(userID string) (int64, error) {
	return f.balances[userID], nil
}

func (f *fakeRepo) UpsertSubscription(sub *models.UserSubscription) error {
	if f.failUpsert {
		return errors.New("storage unavailable")
	}
	stored := *sub
	f.subs[sub.UserID] = &stored
	return nil
}

func (f *fakeRepo) UpdateSubscriptionStatus(userID, status string) (bool, error) {
	sub, ok := f.subs[userID]
	if !ok {
		return false, nil
	}
	sub.Status = status
	return true, nil
}

func (f *fakeRepo) GetSubscription(userID string) (*models.UserSubscription, error) {
	sub, ok := f.subs[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *sub
	return &copied, nil
}

func mustDecode(t *testing.T, raw string) *Event {
	t.Helper()
	ev, err := DecodeEvent([]byte(raw))
	if err != nil {
		t.Fatalf("decode fixture failed: %v", err)
	}
	return ev
}

func TestProcessEvent_CreditTopUp(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	raw := `{"event":"checkout.completed","data":{"metadata":{"userId":"u1","credits":"500"}}}`

	outcome, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %v", outcome)
	}
	if repo.balances["u1"] != 500 {
		t.Fatalf("expected balance 500, got %d", repo.balances["u1"])
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(repo.events))
	}
	for _, ev := range repo.events {
		if ev.ProcessedAt == nil {
			t.Fatalf("expected processed_at to be set")
		}
	}
}

func TestProcessEvent_DuplicateDelivery(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	raw := `{"id":"evt_dup","event":"checkout.completed","data":{"metadata":{"userId":"u1","credits":"500"}}}`
	ev := mustDecode(t, raw)

	if _, err := svc.ProcessEvent(context.Background(), ev, []byte(raw)); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	outcome, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw))
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %v", outcome)
	}
	if repo.balances["u1"] != 500 {
		t.Fatalf("expected balance 500 after replay, got %d", repo.balances["u1"])
	}
}

func TestProcessEvent_AdditiveTopUps(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	bodies := []string{
		`{"id":"evt_a","event":"checkout.completed","data":{"metadata":{"userId":"u1","credits":"1000"}}}`,
		`{"id":"evt_b","event":"checkout.completed","data":{"metadata":{"userId":"u1","credits":"5000"}}}`,
		`{"id":"evt_c","event":"checkout.completed","data":{"metadata":{"userId":"u1","credits":"250"}}}`,
	}
	for _, raw := range bodies {
		if _, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw)); err != nil {
			t.Fatalf("delivery failed: %v", err)
		}
	}
	if repo.balances["u1"] != 6250 {
		t.Fatalf("expected balance 6250, got %d", repo.balances["u1"])
	}
}

func TestProcessEvent_CheckoutWithoutCredits(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	raw := `{"id":"evt_receipt","event":"checkout.completed","data":{"metadata":{"userId":"u1"}}}`

	outcome, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %v", outcome)
	}
	if len(repo.balances) != 0 {
		t.Fatalf("expected no balance rows for pure payment receipt")
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected receipt to be recorded for idempotency")
	}
}

func TestProcessEvent_ActivationSetsPeriod(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	raw := `{"id":"evt_act","event":"subscription.active","data":{"subscription_id":"sub_1","metadata":{"userId":"u1","planName":"Pro","billingCycle":"yearly"}}}`

	if _, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := repo.subs["u1"]
	if sub == nil {
		t.Fatalf("expected subscription row")
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %q", sub.Status)
	}
	if sub.PlanName != "pro" || sub.BillingCycle != "yearly" {
		t.Fatalf("unexpected plan/cycle: %q/%q", sub.PlanName, sub.BillingCycle)
	}
	if sub.ProviderSubscriptionID != "sub_1" {
		t.Fatalf("unexpected provider subscription id %q", sub.ProviderSubscriptionID)
	}
	if sub.CurrentPeriodStart == nil || sub.CurrentPeriodEnd == nil {
		t.Fatalf("expected period bounds to be set")
	}
	want := PeriodEnd(*sub.CurrentPeriodStart, "yearly")
	if !sub.CurrentPeriodEnd.Equal(want) {
		t.Fatalf("period end = %v, want %v", sub.CurrentPeriodEnd, want)
	}
}

func TestProcessEvent_ReActivationRefreshesPeriod(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	first := `{"id":"evt_act1","event":"subscription.active","data":{"subscription_id":"sub_1","metadata":{"userId":"u1","planName":"Basic","billingCycle":"monthly"}}}`
	second := `{"id":"evt_act2","event":"subscription.active","data":{"subscription_id":"sub_2","metadata":{"userId":"u1","planName":"Max","billingCycle":"yearly"}}}`

	for _, raw := range []string{first, second} {
		if _, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw)); err != nil {
			t.Fatalf("delivery failed: %v", err)
		}
	}

	sub := repo.subs["u1"]
	if sub == nil {
		t.Fatalf("expected subscription row")
	}
	// One live row per user, last writer wins.
	if sub.PlanName != "max" || sub.BillingCycle != "yearly" || sub.ProviderSubscriptionID != "sub_2" {
		t.Fatalf("re-activation did not overwrite: plan=%q cycle=%q sub=%q", sub.PlanName, sub.BillingCycle, sub.ProviderSubscriptionID)
	}
}

func TestProcessEvent_CancelThenReplayActivation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	activate := `{"id":"evt_act","event":"subscription.active","data":{"subscription_id":"sub_1","metadata":{"userId":"u1","planName":"Pro","billingCycle":"monthly"}}}`
	cancel := `{"id":"evt_cancel","event":"subscription.canceled","data":{"subscription_id":"sub_1","metadata":{"userId":"u1"}}}`

	if _, err := svc.ProcessEvent(context.Background(), mustDecode(t, activate), []byte(activate)); err != nil {
		t.Fatalf("activation failed: %v", err)
	}
	if _, err := svc.ProcessEvent(context.Background(), mustDecode(t, cancel), []byte(cancel)); err != nil {
		t.Fatalf("cancellation failed: %v", err)
	}
	if repo.subs["u1"].Status != models.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %q", repo.subs["u1"].Status)
	}

	// A replay of the already-processed activation must not revert the status.
	outcome, err := svc.ProcessEvent(context.Background(), mustDecode(t, activate), []byte(activate))
	if err != nil {
		t.Fatalf("replayed activation failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %v", outcome)
	}
	if repo.subs["u1"].Status != models.SubscriptionStatusCanceled {
		t.Fatalf("replay reverted status to %q", repo.subs["u1"].Status)
	}
}

func TestProcessEvent_ExpiredStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	activate := `{"id":"evt_act","event":"subscription.active","data":{"metadata":{"userId":"u1","planName":"Pro","billingCycle":"monthly"}}}`
	expire := `{"id":"evt_exp","event":"subscription.expired","data":{"metadata":{"userId":"u1"}}}`

	for _, raw := range []string{activate, expire} {
		if _, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw)); err != nil {
			t.Fatalf("delivery failed: %v", err)
		}
	}
	if repo.subs["u1"].Status != models.SubscriptionStatusExpired {
		t.Fatalf("expected expired status, got %q", repo.subs["u1"].Status)
	}
}

func TestProcessEvent_DeactivationWithoutRow(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	raw := `{"id":"evt_cancel","event":"subscription.canceled","data":{"metadata":{"userId":"u1"}}}`

	outcome, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied, got %v", outcome)
	}
	if len(repo.subs) != 0 {
		t.Fatalf("deactivation must not create a subscription row")
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected event to be recorded")
	}
}

func TestProcessEvent_UnhandledType(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	raw := `{"id":"evt_pay","event":"payment.succeeded","data":{"amount":4200}}`

	outcome, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %v", outcome)
	}
	if len(repo.balances) != 0 || len(repo.subs) != 0 {
		t.Fatalf("unhandled event must not mutate entitlement state")
	}

	// Replays of unhandled types dedupe like everything else.
	outcome, err = svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw))
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate on replay, got %v", outcome)
	}
}

func TestProcessEvent_StorageFailureRollsBack(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	raw := `{"id":"evt_retry","event":"checkout.completed","data":{"metadata":{"userId":"u1","credits":"500"}}}`

	repo.failIncrement = true
	if _, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw)); err == nil {
		t.Fatalf("expected storage failure to propagate")
	}
	if len(repo.events) != 0 {
		t.Fatalf("failed event must not be marked processed")
	}
	if repo.balances["u1"] != 0 {
		t.Fatalf("failed event must not mutate balance")
	}

	// Redelivery after the outage applies the full effect exactly once.
	repo.failIncrement = false
	outcome, err := svc.ProcessEvent(context.Background(), mustDecode(t, raw), []byte(raw))
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("expected applied on redelivery, got %v", outcome)
	}
	if repo.balances["u1"] != 500 {
		t.Fatalf("expected balance 500, got %d", repo.balances["u1"])
	}
}

func TestGetUserEntitlement(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	ent, err := svc.GetUserEntitlement(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ent.CreditBalance != 0 || ent.Subscription != nil {
		t.Fatalf("expected empty entitlement for fresh user")
	}

	repo.balances["u1"] = 1500
	repo.subs["u1"] = &models.UserSubscription{UserID: "u1", Status: models.SubscriptionStatusActive}

	ent, err = svc.GetUserEntitlement(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ent.CreditBalance != 1500 {
		t.Fatalf("expected balance 1500, got %d", ent.CreditBalance)
	}
	if ent.Subscription == nil || ent.Subscription.Status != models.SubscriptionStatusActive {
		t.Fatalf("expected active subscription in entitlement view")
	}
}
