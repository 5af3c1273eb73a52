package ledger

import (
	"errors"
	"testing"
	"time"

	"campaign_workflow/models"
	"campaign_workflow/services/versionstore"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// testFold understands creation, strategy versions and approvals, which is
// enough to observe replay and rollback.
func testFold(state *models.Campaign, entry models.RevisionEntry) error {
	switch entry.Change.Kind {
	case models.ChangeCampaignCreated:
		state.Name = entry.Change.Created.Name
		state.ApprovalStates = models.NewApprovalStates()
	case models.ChangeStrategyVersionCreated:
		_, _, err := versionstore.AppendStrategyVersion(state, *entry.Change.Strategy, entry.ChangedBy, entry.ChangedAt)
		return err
	case models.ChangeSectionApproved:
		state.ApprovalStates[entry.Change.Approval.Section] = models.ApprovalStatus{Status: models.ApprovalApproved, ApprovedBy: entry.ChangedBy}
	case models.ChangeRolledBack:
	default:
		return errors.New("unsupported change " + entry.Change.Kind)
	}
	return nil
}

func testSeed() *models.Campaign {
	return &models.Campaign{ID: "c1", TenantID: "t1"}
}

func strategyChange(platform string) models.Change {
	return models.Change{
		Kind:     models.ChangeStrategyVersionCreated,
		Strategy: &models.StrategyPayload{Platforms: []string{platform}, DurationDays: 7},
	}
}

// liveCampaign applies changes the way the service does and returns the
// resulting aggregate.
func liveCampaign(t *testing.T, changes ...models.Change) *models.Campaign {
	t.Helper()
	c := testSeed()
	for i, change := range changes {
		at := t0.Add(time.Duration(i) * time.Minute)
		entry := models.RevisionEntry{Revision: c.HeadRevision() + 1, ChangedBy: "u1", ChangedAt: at, Change: change}
		if err := testFold(c, entry); err != nil {
			t.Fatalf("apply %s: %v", change.Kind, err)
		}
		Append(c, change, "u1", "", at)
	}
	return c
}

func TestAppendAssignsConsecutiveRevisions(t *testing.T) {
	c := testSeed()
	for want := 1; want <= 4; want++ {
		at := t0.Add(time.Duration(want) * time.Second)
		entry := Append(c, models.Change{Kind: models.ChangeSectionApproved}, "u1", "note", at)
		if entry.Revision != want {
			t.Fatalf("expected revision %d, got %d", want, entry.Revision)
		}
		if c.Revision != want || !c.UpdatedAt.Equal(at) {
			t.Fatalf("campaign head not moved: revision=%d updated=%v", c.Revision, c.UpdatedAt)
		}
	}
	for i, e := range c.RevisionHistory {
		if e.Revision != i+1 {
			t.Fatalf("history[%d] has revision %d", i, e.Revision)
		}
	}
}

func TestReplay(t *testing.T) {
	c := liveCampaign(t,
		models.Change{Kind: models.ChangeCampaignCreated, Created: &models.CampaignCreatedChange{Name: "Spring"}},
		strategyChange("instagram"),
		strategyChange("tiktok"),
	)

	state, err := Replay(c.RevisionHistory, 2, testSeed, testFold)
	if err != nil {
		t.Fatal(err)
	}
	if state.Name != "Spring" || len(state.StrategyVersions) != 1 || state.Revision != 2 || len(state.RevisionHistory) != 2 {
		t.Fatalf("unexpected replayed state %#v", state)
	}
	if state.ActiveStrategy().Platforms[0] != "instagram" {
		t.Fatalf("expected instagram strategy active at revision 2")
	}

	head, err := Replay(c.RevisionHistory, 3, testSeed, testFold)
	if err != nil {
		t.Fatal(err)
	}
	if len(head.StrategyVersions) != 2 || !head.StrategyVersion(1).Invalidated {
		t.Fatalf("replay to head does not match live state %#v", head.StrategyVersions)
	}
}

func TestReplayRejectsBadTargets(t *testing.T) {
	c := liveCampaign(t, models.Change{Kind: models.ChangeCampaignCreated, Created: &models.CampaignCreatedChange{Name: "x"}})
	for _, target := range []int{0, -1, 2} {
		if _, err := Replay(c.RevisionHistory, target, testSeed, testFold); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("target %d: expected ErrNotFound, got %v", target, err)
		}
	}
}

func TestReplayDetectsGaps(t *testing.T) {
	history := []models.RevisionEntry{
		{Revision: 1, Change: models.Change{Kind: models.ChangeCampaignCreated, Created: &models.CampaignCreatedChange{Name: "x"}}},
		{Revision: 3, Change: models.Change{Kind: models.ChangeRolledBack}},
	}
	if _, err := Replay(history, 3, testSeed, testFold); !errors.Is(err, models.ErrInternal) {
		t.Fatalf("expected ErrInternal for a gap, got %v", err)
	}
}

func TestRollback(t *testing.T) {
	c := liveCampaign(t,
		models.Change{Kind: models.ChangeCampaignCreated, Created: &models.CampaignCreatedChange{Name: "Spring"}},
		strategyChange("instagram"),
		models.Change{Kind: models.ChangeSectionApproved, Approval: &models.ApprovalChange{Section: models.SectionStrategy}},
		strategyChange("tiktok"),
	)
	c.ApprovalStates[models.SectionStrategy] = models.ApprovalStatus{Status: models.ApprovalNeedsReview}
	c.WriteCounter = 7
	before := c.Clone()

	rolled, entry, err := Rollback(c, 3, "u2", "undo", t0.Add(time.Hour), testSeed, testFold)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Revision != 5 || entry.Change.Kind != models.ChangeRolledBack || entry.Change.Rollback.TargetRevision != 3 {
		t.Fatalf("unexpected rollback entry %#v", entry)
	}
	if len(rolled.RevisionHistory) != 5 || rolled.Revision != 5 {
		t.Fatalf("history truncated or head not moved: %d entries, revision %d", len(rolled.RevisionHistory), rolled.Revision)
	}
	if len(rolled.StrategyVersions) != 1 || rolled.ActiveStrategy().Version != 1 {
		t.Fatalf("expected strategy v1 active after rollback, got %#v", rolled.StrategyVersions)
	}
	if rolled.ApprovalStates.Get(models.SectionStrategy).Status != models.ApprovalApproved {
		t.Fatalf("approval states not restored")
	}
	if rolled.WriteCounter != 7 {
		t.Fatalf("write counter must be carried over, got %d", rolled.WriteCounter)
	}
	if len(entry.Change.Transitions) != 1 || entry.Change.Transitions[0].Cause != models.CauseRollback {
		t.Fatalf("expected one rollback transition, got %#v", entry.Change.Transitions)
	}

	if len(c.RevisionHistory) != len(before.RevisionHistory) || len(c.StrategyVersions) != 2 {
		t.Fatal("rollback modified the input aggregate")
	}
}

func TestRollbackOutOfRange(t *testing.T) {
	c := liveCampaign(t, models.Change{Kind: models.ChangeCampaignCreated, Created: &models.CampaignCreatedChange{Name: "x"}})
	for _, target := range []int{0, 2, 99} {
		_, _, err := Rollback(c, target, "u1", "", t0, testSeed, testFold)
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("target %d: expected ErrNotFound, got %v", target, err)
		}
	}
	if len(c.RevisionHistory) != 1 {
		t.Fatal("failed rollback appended to the ledger")
	}
}

func TestReplayThroughNestedRollbacks(t *testing.T) {
	c := liveCampaign(t,
		models.Change{Kind: models.ChangeCampaignCreated, Created: &models.CampaignCreatedChange{Name: "Spring"}},
		strategyChange("instagram"),
		strategyChange("tiktok"),
	)
	// 4: back to 2 (instagram only)
	c, _, err := Rollback(c, 2, "u1", "", t0.Add(time.Hour), testSeed, testFold)
	if err != nil {
		t.Fatal(err)
	}
	// 5: a new strategy on top of the restored state
	at := t0.Add(2 * time.Hour)
	change := strategyChange("youtube")
	if err := testFold(c, models.RevisionEntry{Revision: 5, ChangedBy: "u1", ChangedAt: at, Change: change}); err != nil {
		t.Fatal(err)
	}
	Append(c, change, "u1", "", at)
	// 6: back to 3 (instagram then tiktok)
	c, _, err = Rollback(c, 3, "u1", "", t0.Add(3*time.Hour), testSeed, testFold)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		revision     int
		wantVersions int
		wantActive   string
	}{
		{3, 2, "tiktok"},
		{4, 1, "instagram"},
		{5, 2, "youtube"},
		{6, 2, "tiktok"},
	}
	for _, tt := range tests {
		state, err := Replay(c.RevisionHistory, tt.revision, testSeed, testFold)
		if err != nil {
			t.Fatalf("replay %d: %v", tt.revision, err)
		}
		if len(state.StrategyVersions) != tt.wantVersions {
			t.Fatalf("revision %d: expected %d strategy versions, got %d", tt.revision, tt.wantVersions, len(state.StrategyVersions))
		}
		if got := state.ActiveStrategy().Platforms[0]; got != tt.wantActive {
			t.Fatalf("revision %d: expected %s active, got %s", tt.revision, tt.wantActive, got)
		}
	}
	if len(c.StrategyVersions) != 2 || c.ActiveStrategy().Platforms[0] != "tiktok" {
		t.Fatalf("live state after nested rollback does not match replay: %#v", c.StrategyVersions)
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	c := liveCampaign(t, models.Change{Kind: models.ChangeCampaignCreated, Created: &models.CampaignCreatedChange{Name: "x"}})
	entries := Entries(c)
	entries[0].Change.Created.Name = "changed"
	if c.RevisionHistory[0].Change.Created.Name != "x" {
		t.Fatal("Entries exposed the aggregate's history")
	}
}
