package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"campaign_workflow/models"
	"campaign_workflow/services/versionstore"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIdempotencyKeyRejectsReplays(t *testing.T) {
	f := newFixture(t, WithIdempotencyGuard(NewMemoryIdempotencyGuard(time.Hour)))
	c := f.create(t)
	f.strategy(t, c.ID, strategyV("instagram"))

	ctx := WithIdempotencyKey(context.Background(), "approve-strategy-1")
	if _, err := f.svc.ApproveSection(ctx, tenant, c.ID, models.SectionStrategy, lead, ""); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.ApproveSection(ctx, tenant, c.ID, models.SectionStrategy, lead, "")
	if !errors.Is(err, models.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
	if got := f.load(t, c.ID); got.Revision != 3 {
		t.Fatalf("duplicate request appended a revision: head is %d", got.Revision)
	}
	if n := testutil.ToFloat64(f.metrics.DuplicateRequests.WithLabelValues(OpApproveSection)); n != 1 {
		t.Fatalf("expected 1 duplicate recorded, got %v", n)
	}

	// The same key is independent per operation and per campaign.
	if _, err := f.svc.CreateContentVersion(ctx, tenant, c.ID, textContent("hello"), editor); err != nil {
		t.Fatalf("same key on another operation: %v", err)
	}
	other := f.create(t)
	f.strategy(t, other.ID, strategyV("instagram"))
	if _, err := f.svc.ApproveSection(ctx, tenant, other.ID, models.SectionStrategy, lead, ""); err != nil {
		t.Fatalf("same key on another campaign: %v", err)
	}
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	f := newFixture(t, WithIdempotencyGuard(NewMemoryIdempotencyGuard(time.Hour)))
	c := f.create(t)
	ctx := WithIdempotencyKey(context.Background(), "approve-content")

	if _, err := f.svc.ApproveSection(ctx, tenant, c.ID, models.SectionContent, lead, ""); !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition without content, got %v", err)
	}
	f.strategy(t, c.ID, strategyV("instagram"))
	f.content(t, c.ID, textContent("hello"))
	if _, err := f.svc.ApproveSection(ctx, tenant, c.ID, models.SectionContent, lead, ""); err != nil {
		t.Fatalf("retry with the released key failed: %v", err)
	}
}

func TestCreateCampaignIdempotency(t *testing.T) {
	f := newFixture(t, WithIdempotencyGuard(NewMemoryIdempotencyGuard(time.Hour)))
	ctx := WithIdempotencyKey(context.Background(), "create-1")
	if _, err := f.svc.CreateCampaign(ctx, tenant, editor, models.CreateCampaignPayload{Name: "once"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateCampaign(ctx, tenant, editor, models.CreateCampaignPayload{Name: "once"}); !errors.Is(err, models.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
	page, err := f.svc.ListCampaigns(context.Background(), tenant, 1, 10, versionstore.ListFilter{})
	if err != nil || page.Total != 1 {
		t.Fatalf("expected exactly one campaign, got %v %v", page, err)
	}
}

func TestMemoryIdempotencyGuardExpiry(t *testing.T) {
	g := NewMemoryIdempotencyGuard(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := g.Reserve(ctx, "k"); !ok {
		t.Fatal("first reservation refused")
	}
	if ok, _ := g.Reserve(ctx, "k"); ok {
		t.Fatal("second reservation accepted")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := g.Reserve(ctx, "k"); !ok {
		t.Fatal("expired key still held")
	}
	if err := g.Release(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := g.Reserve(ctx, "k"); !ok {
		t.Fatal("released key still held")
	}
}

func TestIdempotencyScope(t *testing.T) {
	if got := idempotencyScope("t1", "", OpCreateCampaign, "k"); got != "idem:t1:-:create_campaign:k" {
		t.Fatalf("unexpected scope %q", got)
	}
	if got := idempotencyScope("t1", "c1", OpRollback, "k"); got != "idem:t1:c1:rollback:k" {
		t.Fatalf("unexpected scope %q", got)
	}
	if IdempotencyKeyFrom(WithIdempotencyKey(context.Background(), "  ")) != "" {
		t.Fatal("blank key should not be attached")
	}
}

// unavailableGuard simulates a guard whose backend is down.
type unavailableGuard struct{}

func (unavailableGuard) Reserve(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (unavailableGuard) Release(context.Context, string) error { return nil }

func TestIdempotencyGuardFailsOpen(t *testing.T) {
	f := newFixture(t, WithIdempotencyGuard(unavailableGuard{}))
	ctx := WithIdempotencyKey(context.Background(), "k")
	if _, err := f.svc.CreateCampaign(ctx, tenant, editor, models.CreateCampaignPayload{Name: "still works"}); err != nil {
		t.Fatalf("guard outage should not block writes: %v", err)
	}
}
