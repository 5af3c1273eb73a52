package models

import "time"

// Change kinds recorded in the revision ledger
const (
	ChangeCampaignCreated        = "campaign_created"
	ChangeStrategyVersionCreated = "strategy_version_created"
	ChangeContentVersionCreated  = "content_version_created"
	ChangeScheduleUpdated        = "schedule_updated"
	ChangeSectionApproved        = "section_approved"
	ChangeSectionRejected        = "section_rejected"
	ChangeAssetReplaced          = "asset_replaced"
	ChangeCampaignPublished      = "campaign_published"
	ChangeRolledBack             = "rolled_back"
)

// Transition causes
const (
	CauseApprove  = "approve"
	CauseReject   = "reject"
	CauseCascade  = "cascade"
	CauseResubmit = "resubmit"
	CauseRollback = "rollback"
)

// Transition records one approval-state change and what caused it.
type Transition struct {
	Section Section `json:"section" bson:"section"`
	From    string  `json:"from" bson:"from"`
	To      string  `json:"to" bson:"to"`
	Cause   string  `json:"cause" bson:"cause"`
	Reason  string  `json:"reason,omitempty" bson:"reason,omitempty"`
}

type CampaignCreatedChange struct {
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

type ApprovalChange struct {
	Section Section `json:"section" bson:"section"`
	Note    string  `json:"note,omitempty" bson:"note,omitempty"`
	Reason  string  `json:"reason,omitempty" bson:"reason,omitempty"`
}

type AssetReplacedChange struct {
	OldURL                   string `json:"old_url" bson:"old_url"`
	NewURL                   string `json:"new_url" bson:"new_url"`
	SkipApprovalInvalidation bool   `json:"skip_approval_invalidation" bson:"skip_approval_invalidation"`
	// Revived is an outcome: the new url had been replaced before and is live again.
	Revived bool `json:"revived,omitempty" bson:"revived,omitempty"`
}

type RollbackChange struct {
	TargetRevision int `json:"target_revision" bson:"target_revision"`
}

// Change is the structured payload of a ledger entry. Exactly one of the typed
// payloads is set, selected by Kind; it carries everything needed to re-apply
// the mutation during replay.
type Change struct {
	Kind string `json:"kind" bson:"kind"`

	Created  *CampaignCreatedChange `json:"created,omitempty" bson:"created,omitempty"`
	Strategy *StrategyPayload       `json:"strategy,omitempty" bson:"strategy,omitempty"`
	Content  *ContentPayload        `json:"content,omitempty" bson:"content,omitempty"`
	Schedule *SchedulePayload       `json:"schedule,omitempty" bson:"schedule,omitempty"`
	Approval *ApprovalChange        `json:"approval,omitempty" bson:"approval,omitempty"`
	Asset    *AssetReplacedChange   `json:"asset,omitempty" bson:"asset,omitempty"`
	Rollback *RollbackChange        `json:"rollback,omitempty" bson:"rollback,omitempty"`

	// Outcome of the mutation, filled in by the live path for auditing.
	// Replay recomputes it and does not read it.
	Version     int          `json:"version,omitempty" bson:"version,omitempty"`
	Transitions []Transition `json:"transitions,omitempty" bson:"transitions,omitempty"`
}

// RevisionEntry is one immutable ledger record.
type RevisionEntry struct {
	Revision  int       `json:"revision" bson:"revision"`
	ChangedAt time.Time `json:"changed_at" bson:"changed_at"`
	ChangedBy string    `json:"changed_by" bson:"changed_by"`
	Change    Change    `json:"change" bson:"change"`
	Note      string    `json:"note,omitempty" bson:"note,omitempty"`
}
