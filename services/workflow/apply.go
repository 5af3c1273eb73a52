package workflow

import (
	"fmt"
	"time"

	"campaign_workflow/models"
	"campaign_workflow/services/approval"
	"campaign_workflow/services/ledger"
	"campaign_workflow/services/versionstore"
)

// apply runs one change against the aggregate. The live path and ledger
// replay both go through here, so a replayed entry lands on exactly the state
// the live call produced. It records the outcome (new version number, approval
// transitions) on change.
func apply(c *models.Campaign, change *models.Change, revision int, userID string, at time.Time) error {
	change.Transitions = nil

	switch change.Kind {
	case models.ChangeCampaignCreated:
		if change.Created == nil {
			return missingPayload(change.Kind)
		}
		c.Name = change.Created.Name
		c.Description = change.Created.Description
		c.CreatedBy = userID
		c.CreatedAt = at
		c.ApprovalStates = models.NewApprovalStates()

	case models.ChangeStrategyVersionCreated:
		if change.Strategy == nil {
			return missingPayload(change.Kind)
		}
		sv, impact, err := versionstore.AppendStrategyVersion(c, *change.Strategy, userID, at)
		if err != nil {
			return err
		}
		change.Version = sv.Version
		cascade(c, change, approval.Event{
			Kind:            approval.EventStrategyVersionCreated,
			Version:         sv.Version,
			Superseded:      impact.Superseded,
			ContentAffected: impact.ContentAffected,
		}, at)

	case models.ChangeContentVersionCreated:
		if change.Content == nil {
			return missingPayload(change.Kind)
		}
		cv, impact, err := versionstore.AppendContentVersion(c, *change.Content, userID, at)
		if err != nil {
			return err
		}
		change.Version = cv.Version
		cascade(c, change, approval.Event{
			Kind:             approval.EventContentVersionCreated,
			Version:          cv.Version,
			Superseded:       impact.Superseded,
			ScheduleAffected: impact.ScheduleAffected,
		}, at)

	case models.ChangeScheduleUpdated:
		if change.Schedule == nil {
			return missingPayload(change.Kind)
		}
		if _, err := versionstore.ReplaceSchedule(c, *change.Schedule, revision); err != nil {
			return err
		}
		cascade(c, change, approval.Event{Kind: approval.EventScheduleReplaced}, at)

	case models.ChangeSectionApproved:
		if change.Approval == nil {
			return missingPayload(change.Kind)
		}
		section := change.Approval.Section
		states, t, err := approval.Approve(c.ApprovalStates, section, userID, change.Approval.Note, at)
		if err != nil {
			return err
		}
		if err := checkApprovable(c, section); err != nil {
			return err
		}
		c.ApprovalStates = states
		if section == models.SectionContent {
			if cv := c.ActiveContent(); cv != nil {
				cv.NeedsReview = false
			}
		}
		change.Transitions = []models.Transition{t}

	case models.ChangeSectionRejected:
		if change.Approval == nil {
			return missingPayload(change.Kind)
		}
		states, t, err := approval.Reject(c.ApprovalStates, change.Approval.Section, userID, change.Approval.Reason, at)
		if err != nil {
			return err
		}
		c.ApprovalStates = states
		change.Transitions = []models.Transition{t}

	case models.ChangeAssetReplaced:
		if change.Asset == nil {
			return missingPayload(change.Kind)
		}
		a := *change.Asset
		change.Asset = &a
		_, impact, err := versionstore.ReplaceAsset(c, a.OldURL, a.NewURL, userID, a.SkipApprovalInvalidation, at)
		if err != nil {
			return err
		}
		a.Revived = impact.Revived
		cascade(c, change, approval.Event{
			Kind:             approval.EventAssetReplaced,
			ContentAffected:  impact.ContentAffected,
			ScheduleAffected: impact.ScheduleAffected,
			OldURL:           a.OldURL,
			NewURL:           a.NewURL,
		}, at)

	case models.ChangeCampaignPublished:
		if err := checkPublishable(c); err != nil {
			return err
		}
		publishedAt := at
		c.PublishedAt = &publishedAt
		c.PublishedBy = userID

	case models.ChangeRolledBack:
		// The ledger swaps in the restored state before folding this entry.

	default:
		return models.InvalidPayloadf("unknown change kind %q", change.Kind)
	}
	return nil
}

// fold is the ledger.Fold the service replays with. Transitions recomputed on
// replay are discarded; the persisted entry keeps the ones the live call saw.
func fold(state *models.Campaign, entry models.RevisionEntry) error {
	change := entry.Change
	if err := apply(state, &change, entry.Revision, entry.ChangedBy, entry.ChangedAt); err != nil {
		return err
	}
	recordStatus(state, entry.Revision, entry.ChangedBy, entry.ChangedAt)
	return nil
}

func seedFor(c *models.Campaign) ledger.Seed {
	id, tenantID := c.ID, c.TenantID
	return func() *models.Campaign {
		return &models.Campaign{ID: id, TenantID: tenantID}
	}
}

func cascade(c *models.Campaign, change *models.Change, ev approval.Event, at time.Time) {
	states, transitions := approval.Cascade(c.ApprovalStates, ev, at)
	c.ApprovalStates = states
	change.Transitions = append(change.Transitions, transitions...)
}

// checkApprovable enforces what must exist before a section can be approved.
func checkApprovable(c *models.Campaign, section models.Section) error {
	from := c.ApprovalStates.Get(section).Status
	rule := ""
	switch section {
	case models.SectionStrategy:
		if c.ActiveStrategy() == nil {
			rule = "there is no active strategy version to approve"
		}
	case models.SectionContent:
		if c.ActiveContent() == nil {
			rule = "there is no active content version to approve"
		}
	case models.SectionSchedule:
		if len(c.Schedule) == 0 {
			rule = "the schedule has no slots"
		} else if n := versionstore.ScheduleConflicts(c); n > 0 {
			rule = fmt.Sprintf("%d schedule slot(s) are in conflict; update the schedule first", n)
		}
	case models.SectionAds:
		if s := c.ActiveStrategy(); s == nil || !s.AdsEnabled {
			rule = "the active strategy does not enable ads"
		}
	}
	if rule == "" {
		return nil
	}
	return &models.TransitionError{Section: section, From: from, Action: "approve", Rule: rule}
}

// checkPublishable requires every required section to be approved.
func checkPublishable(c *models.Campaign) error {
	if c.Status == models.CampaignStatusPublished {
		return fmt.Errorf("%w: campaign is already published", models.ErrIllegalTransition)
	}
	for _, section := range c.RequiredSections() {
		st := c.ApprovalStates.Get(section).Status
		if st != models.ApprovalApproved {
			return &models.TransitionError{
				Section: section, From: st, Action: "publish",
				Rule: "every required section must be approved before publishing",
			}
		}
	}
	return nil
}

// deriveStatus computes the campaign status from its approval states and
// publication.
func deriveStatus(c *models.Campaign) string {
	required := c.RequiredSections()
	allApproved := true
	for _, section := range required {
		switch c.ApprovalStates.Get(section).Status {
		case models.ApprovalNeedsReview:
			return models.CampaignStatusNeedsReview
		case models.ApprovalApproved:
		default:
			allApproved = false
		}
	}
	switch {
	case c.PublishedAt != nil && !allApproved:
		return models.CampaignStatusNeedsReview
	case c.PublishedAt != nil:
		return models.CampaignStatusPublished
	case allApproved:
		return models.CampaignStatusApproved
	case len(c.StrategyVersions) > 0:
		return models.CampaignStatusReview
	default:
		return models.CampaignStatusDraft
	}
}

// recordStatus re-derives the status and appends to the status trail when it
// moved.
func recordStatus(c *models.Campaign, revision int, userID string, at time.Time) {
	next := deriveStatus(c)
	if next == c.Status && len(c.StatusHistory) > 0 {
		return
	}
	c.StatusHistory = append(c.StatusHistory, models.StatusChange{
		From:      c.Status,
		To:        next,
		Revision:  revision,
		ChangedAt: at,
		ChangedBy: userID,
	})
	c.Status = next
}

func missingPayload(kind string) error {
	return models.InvalidPayloadf("%s change carries no payload", kind)
}
