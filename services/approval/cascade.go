package approval

import (
	"fmt"
	"time"

	"campaign_workflow/models"
)

// EventKind identifies a mutation that may invalidate approvals downstream.
type EventKind string

const (
	EventStrategyVersionCreated EventKind = "strategy_version_created"
	EventContentVersionCreated  EventKind = "content_version_created"
	EventScheduleReplaced       EventKind = "schedule_replaced"
	EventAssetReplaced          EventKind = "asset_replaced"
)

// Event describes what changed. The caller reports facts about the aggregate
// (which version was superseded, whether dependents were touched); the cascade
// table below decides which sections move.
type Event struct {
	Kind EventKind

	// Version is the newly created strategy or content version.
	Version int
	// Superseded is the previously active version, 0 when there was none.
	Superseded int

	// ContentAffected is set when the active content version depends on the
	// superseded strategy or uses the replaced asset.
	ContentAffected bool
	// ScheduleAffected is set when schedule slots publish a superseded or
	// affected content version.
	ScheduleAffected bool

	OldURL string
	NewURL string
}

// Cascade applies the invalidation and resubmission rules for ev and returns
// the new states together with one transition per section that moved.
//
//	strategy version created : resubmit strategy+ads; if superseding, cascade
//	                           strategy+ads, and content when it depended on it
//	content version created  : resubmit content; if superseding, cascade content,
//	                           and schedule when slots referenced it
//	schedule replaced        : resubmit or cascade schedule
//	asset replaced           : cascade content and schedule when affected
func Cascade(states models.ApprovalStates, ev Event, at time.Time) (models.ApprovalStates, []models.Transition) {
	var transitions []models.Transition
	resubmit := func(section models.Section, reason string) {
		var t *models.Transition
		states, t = Resubmit(states, section, reason)
		if t != nil {
			transitions = append(transitions, *t)
		}
	}
	invalidate := func(section models.Section, reason string) {
		var t *models.Transition
		states, t = CascadeInvalidate(states, section, reason, at)
		if t != nil {
			transitions = append(transitions, *t)
		}
	}

	switch ev.Kind {
	case EventStrategyVersionCreated:
		reason := fmt.Sprintf("strategy version %d created", ev.Version)
		resubmit(models.SectionStrategy, reason)
		resubmit(models.SectionAds, reason)
		if ev.Superseded > 0 {
			reason = fmt.Sprintf("strategy version %d superseded by version %d", ev.Superseded, ev.Version)
			invalidate(models.SectionStrategy, reason)
			invalidate(models.SectionAds, reason)
			if ev.ContentAffected {
				invalidate(models.SectionContent, fmt.Sprintf("content was generated against invalidated strategy version %d", ev.Superseded))
			}
		}
	case EventContentVersionCreated:
		resubmit(models.SectionContent, fmt.Sprintf("content version %d created", ev.Version))
		if ev.Superseded > 0 {
			invalidate(models.SectionContent, fmt.Sprintf("content version %d superseded by version %d", ev.Superseded, ev.Version))
			if ev.ScheduleAffected {
				invalidate(models.SectionSchedule, fmt.Sprintf("scheduled content version %d was invalidated", ev.Superseded))
			}
		}
	case EventScheduleReplaced:
		resubmit(models.SectionSchedule, "schedule updated")
		invalidate(models.SectionSchedule, "schedule updated")
	case EventAssetReplaced:
		if ev.ContentAffected {
			invalidate(models.SectionContent, fmt.Sprintf("asset %s replaced by %s", ev.OldURL, ev.NewURL))
		}
		if ev.ScheduleAffected {
			invalidate(models.SectionSchedule, fmt.Sprintf("scheduled content regenerated after asset %s was replaced", ev.OldURL))
		}
	}
	return states, transitions
}
