package approval

import (
	"errors"
	"testing"
	"time"

	"campaign_workflow/models"
)

var testTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func statesWith(section models.Section, status string) models.ApprovalStates {
	states := models.NewApprovalStates()
	states[section] = models.ApprovalStatus{Status: status}
	return states
}

func TestApproveTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		wantErr error
	}{
		{"from pending", models.ApprovalPending, nil},
		{"from needs review", models.ApprovalNeedsReview, nil},
		{"already approved", models.ApprovalApproved, models.ErrIllegalTransition},
		{"from rejected", models.ApprovalRejected, models.ErrIllegalTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := statesWith(models.SectionContent, tt.from)
			next, tr, err := Approve(states, models.SectionContent, "u1", " looks good ", testTime)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				var te *models.TransitionError
				if !errors.As(err, &te) || te.Section != models.SectionContent || te.From != tt.from {
					t.Fatalf("expected TransitionError naming section and state, got %#v", err)
				}
				if states[models.SectionContent].Status != tt.from {
					t.Fatalf("input states were modified")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := next[models.SectionContent]
			if got.Status != models.ApprovalApproved || got.ApprovedBy != "u1" || got.Note != "looks good" {
				t.Fatalf("unexpected approval status %#v", got)
			}
			if got.ApprovedAt == nil || !got.ApprovedAt.Equal(testTime) {
				t.Fatalf("expected approved_at %v, got %v", testTime, got.ApprovedAt)
			}
			if tr.From != tt.from || tr.To != models.ApprovalApproved || tr.Cause != models.CauseApprove {
				t.Fatalf("unexpected transition %#v", tr)
			}
			if states[models.SectionContent].Status != tt.from {
				t.Fatalf("input states were modified")
			}
		})
	}
}

func TestRejectRequiresReason(t *testing.T) {
	states := models.NewApprovalStates()
	for _, reason := range []string{"", "   "} {
		next, _, err := Reject(states, models.SectionStrategy, "u1", reason, testTime)
		if !errors.Is(err, models.ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload for %q, got %v", reason, err)
		}
		if next[models.SectionStrategy].Status != models.ApprovalPending {
			t.Fatalf("state changed on rejected reject: %#v", next[models.SectionStrategy])
		}
	}
}

func TestRejectTransitions(t *testing.T) {
	tests := []struct {
		from    string
		wantErr bool
	}{
		{models.ApprovalPending, false},
		{models.ApprovalNeedsReview, false},
		{models.ApprovalApproved, true},
		{models.ApprovalRejected, true},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			next, tr, err := Reject(statesWith(models.SectionSchedule, tt.from), models.SectionSchedule, "u2", "wrong dates", testTime)
			if tt.wantErr {
				if !errors.Is(err, models.ErrIllegalTransition) {
					t.Fatalf("expected ErrIllegalTransition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := next[models.SectionSchedule]
			if got.Status != models.ApprovalRejected || got.RejectionReason != "wrong dates" || got.RejectedBy != "u2" {
				t.Fatalf("unexpected status %#v", got)
			}
			if tr.Cause != models.CauseReject || tr.Reason != "wrong dates" {
				t.Fatalf("unexpected transition %#v", tr)
			}
		})
	}
}

func TestApproveValidatesInput(t *testing.T) {
	if _, _, err := Approve(models.NewApprovalStates(), "budget", "u1", "", testTime); !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for unknown section, got %v", err)
	}
	if _, _, err := Approve(models.NewApprovalStates(), models.SectionAds, " ", "", testTime); !errors.Is(err, models.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for blank user, got %v", err)
	}
}

func TestCascadeInvalidateOnlyMovesApproved(t *testing.T) {
	for _, from := range []string{models.ApprovalPending, models.ApprovalNeedsReview, models.ApprovalRejected} {
		states := statesWith(models.SectionStrategy, from)
		next, tr := CascadeInvalidate(states, models.SectionStrategy, "new version", testTime)
		if tr != nil {
			t.Fatalf("%s: expected no transition, got %#v", from, tr)
		}
		if next[models.SectionStrategy].Status != from {
			t.Fatalf("%s: state moved to %s", from, next[models.SectionStrategy].Status)
		}
	}

	approvedAt := testTime.Add(-time.Hour)
	states := models.NewApprovalStates()
	states[models.SectionStrategy] = models.ApprovalStatus{Status: models.ApprovalApproved, ApprovedBy: "u1", ApprovedAt: &approvedAt}
	next, tr := CascadeInvalidate(states, models.SectionStrategy, "new version", testTime)
	if tr == nil || tr.To != models.ApprovalNeedsReview || tr.Cause != models.CauseCascade {
		t.Fatalf("unexpected transition %#v", tr)
	}
	got := next[models.SectionStrategy]
	if got.InvalidationReason != "new version" || got.ApprovedBy != "u1" {
		t.Fatalf("unexpected status %#v", got)
	}
	if states[models.SectionStrategy].Status != models.ApprovalApproved {
		t.Fatalf("input states were modified")
	}
}

func TestResubmitOnlyMovesRejected(t *testing.T) {
	next, tr := Resubmit(statesWith(models.SectionContent, models.ApprovalRejected), models.SectionContent, "content version 2 created")
	if tr == nil || tr.From != models.ApprovalRejected || tr.To != models.ApprovalPending {
		t.Fatalf("unexpected transition %#v", tr)
	}
	if next[models.SectionContent].Status != models.ApprovalPending {
		t.Fatalf("expected pending, got %s", next[models.SectionContent].Status)
	}

	if _, tr := Resubmit(statesWith(models.SectionContent, models.ApprovalApproved), models.SectionContent, ""); tr != nil {
		t.Fatalf("expected no transition for approved section, got %#v", tr)
	}
}

func TestRollbackTransitions(t *testing.T) {
	before := models.NewApprovalStates()
	before[models.SectionStrategy] = models.ApprovalStatus{Status: models.ApprovalNeedsReview}
	before[models.SectionContent] = models.ApprovalStatus{Status: models.ApprovalApproved}
	after := models.NewApprovalStates()
	after[models.SectionStrategy] = models.ApprovalStatus{Status: models.ApprovalApproved}
	after[models.SectionContent] = models.ApprovalStatus{Status: models.ApprovalApproved}

	got := RollbackTransitions(before, after, 3)
	if len(got) != 1 {
		t.Fatalf("expected 1 transition, got %d: %#v", len(got), got)
	}
	if got[0].Section != models.SectionStrategy || got[0].From != models.ApprovalNeedsReview ||
		got[0].To != models.ApprovalApproved || got[0].Cause != models.CauseRollback {
		t.Fatalf("unexpected transition %#v", got[0])
	}
}

func TestAllApproved(t *testing.T) {
	states := models.NewApprovalStates()
	required := []models.Section{models.SectionStrategy, models.SectionContent}
	if AllApproved(states, required) {
		t.Fatal("pending sections reported as approved")
	}
	states[models.SectionStrategy] = models.ApprovalStatus{Status: models.ApprovalApproved}
	states[models.SectionContent] = models.ApprovalStatus{Status: models.ApprovalApproved}
	if !AllApproved(states, required) {
		t.Fatal("expected all required sections approved")
	}
	if AllApproved(states, models.AllSections) {
		t.Fatal("schedule and ads are still pending")
	}
}
