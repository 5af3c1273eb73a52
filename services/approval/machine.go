// Package approval holds the per-section approval state machine. Every function
// is pure: it takes the current states and returns new ones without touching
// the input map or any storage.
package approval

import (
	"fmt"
	"strings"
	"time"

	"campaign_workflow/models"
)

// Approve moves a section to approved. Legal from pending and needs_review.
func Approve(states models.ApprovalStates, section models.Section, userID, note string, at time.Time) (models.ApprovalStates, models.Transition, error) {
	if err := checkActor(section, userID); err != nil {
		return states, models.Transition{}, err
	}
	current := states.Get(section)
	switch current.Status {
	case models.ApprovalPending, models.ApprovalNeedsReview:
	case models.ApprovalApproved:
		return states, models.Transition{}, &models.TransitionError{
			Section: section, From: current.Status, Action: "approve",
			Rule: "section is already approved",
		}
	case models.ApprovalRejected:
		return states, models.Transition{}, &models.TransitionError{
			Section: section, From: current.Status, Action: "approve",
			Rule: "section was rejected; create a new version to resubmit it",
		}
	default:
		return states, models.Transition{}, unknownState(section, current.Status, "approve")
	}

	next := states.Clone()
	if next == nil {
		next = models.NewApprovalStates()
	}
	approvedAt := at
	next[section] = models.ApprovalStatus{
		Status:     models.ApprovalApproved,
		ApprovedBy: userID,
		ApprovedAt: &approvedAt,
		Note:       strings.TrimSpace(note),
	}
	return next, models.Transition{
		Section: section,
		From:    current.Status,
		To:      models.ApprovalApproved,
		Cause:   models.CauseApprove,
		Reason:  strings.TrimSpace(note),
	}, nil
}

// Reject moves a section to rejected. Legal from pending and needs_review and
// requires a non-blank reason.
func Reject(states models.ApprovalStates, section models.Section, userID, reason string, at time.Time) (models.ApprovalStates, models.Transition, error) {
	if err := checkActor(section, userID); err != nil {
		return states, models.Transition{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return states, models.Transition{}, models.InvalidPayloadf("a reason is required to reject the %s section", section)
	}
	current := states.Get(section)
	switch current.Status {
	case models.ApprovalPending, models.ApprovalNeedsReview:
	case models.ApprovalApproved:
		return states, models.Transition{}, &models.TransitionError{
			Section: section, From: current.Status, Action: "reject",
			Rule: "approved sections only return to review when a new version invalidates them",
		}
	case models.ApprovalRejected:
		return states, models.Transition{}, &models.TransitionError{
			Section: section, From: current.Status, Action: "reject",
			Rule: "section is already rejected",
		}
	default:
		return states, models.Transition{}, unknownState(section, current.Status, "reject")
	}

	next := states.Clone()
	if next == nil {
		next = models.NewApprovalStates()
	}
	rejectedAt := at
	next[section] = models.ApprovalStatus{
		Status:          models.ApprovalRejected,
		RejectedBy:      userID,
		RejectedAt:      &rejectedAt,
		RejectionReason: reason,
	}
	return next, models.Transition{
		Section: section,
		From:    current.Status,
		To:      models.ApprovalRejected,
		Cause:   models.CauseReject,
		Reason:  reason,
	}, nil
}

// CascadeInvalidate moves an approved section to needs_review. It is a no-op,
// returning a nil transition, for any other state.
func CascadeInvalidate(states models.ApprovalStates, section models.Section, reason string, at time.Time) (models.ApprovalStates, *models.Transition) {
	current := states.Get(section)
	if current.Status != models.ApprovalApproved {
		return states, nil
	}
	next := states.Clone()
	invalidatedAt := at
	next[section] = models.ApprovalStatus{
		Status:             models.ApprovalNeedsReview,
		ApprovedBy:         current.ApprovedBy,
		ApprovedAt:         current.ApprovedAt,
		InvalidationReason: reason,
		InvalidatedAt:      &invalidatedAt,
	}
	return next, &models.Transition{
		Section: section,
		From:    models.ApprovalApproved,
		To:      models.ApprovalNeedsReview,
		Cause:   models.CauseCascade,
		Reason:  reason,
	}
}

// Resubmit moves a rejected section back to pending because a new version was
// created for it. A no-op for any other state.
func Resubmit(states models.ApprovalStates, section models.Section, reason string) (models.ApprovalStates, *models.Transition) {
	current := states.Get(section)
	if current.Status != models.ApprovalRejected {
		return states, nil
	}
	next := states.Clone()
	next[section] = models.ApprovalStatus{Status: models.ApprovalPending}
	return next, &models.Transition{
		Section: section,
		From:    models.ApprovalRejected,
		To:      models.ApprovalPending,
		Cause:   models.CauseResubmit,
		Reason:  reason,
	}
}

// RollbackTransitions lists the per-section differences between the state
// before a rollback and the restored state.
func RollbackTransitions(before, after models.ApprovalStates, targetRevision int) []models.Transition {
	var out []models.Transition
	for _, section := range models.AllSections {
		from := before.Get(section).Status
		to := after.Get(section).Status
		if from == to {
			continue
		}
		out = append(out, models.Transition{
			Section: section,
			From:    from,
			To:      to,
			Cause:   models.CauseRollback,
			Reason:  fmt.Sprintf("rolled back to revision %d", targetRevision),
		})
	}
	return out
}

// AllApproved reports whether every listed section is approved.
func AllApproved(states models.ApprovalStates, sections []models.Section) bool {
	for _, s := range sections {
		if states.Get(s).Status != models.ApprovalApproved {
			return false
		}
	}
	return true
}

func checkActor(section models.Section, userID string) error {
	if !section.Valid() {
		return models.InvalidPayloadf("unknown section %q", section)
	}
	if strings.TrimSpace(userID) == "" {
		return models.InvalidPayloadf("user id is required")
	}
	return nil
}

func unknownState(section models.Section, status, action string) error {
	return &models.TransitionError{
		Section: section, From: status, Action: action,
		Rule: "section is in an unknown state",
	}
}
