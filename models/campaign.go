package models

import "time"

// =====================================================================================
// CAMPAIGN AGGREGATE
// =====================================================================================
// One document per campaign. Every versioned sub-record is embedded so that a single
// document write persists the whole aggregate atomically.
// =====================================================================================

// Campaign status types (derived, never set by clients after creation)
const (
	CampaignStatusDraft       = "draft"
	CampaignStatusReview      = "review"
	CampaignStatusApproved    = "approved"
	CampaignStatusPublished   = "published"
	CampaignStatusNeedsReview = "needs_review"
)

// Section is one of the independently approved parts of a campaign.
type Section string

// Approval sections
const (
	SectionStrategy Section = "strategy"
	SectionContent  Section = "content"
	SectionSchedule Section = "schedule"
	SectionAds      Section = "ads"
)

// AllSections lists the sections in their canonical order.
var AllSections = []Section{SectionStrategy, SectionContent, SectionSchedule, SectionAds}

// Valid reports whether s names a known section.
func (s Section) Valid() bool {
	switch s {
	case SectionStrategy, SectionContent, SectionSchedule, SectionAds:
		return true
	}
	return false
}

// Approval status values
const (
	ApprovalPending     = "pending"
	ApprovalApproved    = "approved"
	ApprovalNeedsReview = "needs_review"
	ApprovalRejected    = "rejected"
)

// Content generation modes
const (
	ContentModeAI     = "ai"
	ContentModeManual = "manual"
	ContentModeHybrid = "hybrid"
)

// Asset types
const (
	AssetTypeText  = "text"
	AssetTypeImage = "image"
	AssetTypeVideo = "video"
)

type StrategyVersion struct {
	Version            int        `json:"version" bson:"version"`
	CreatedAt          time.Time  `json:"created_at" bson:"created_at"`
	CreatedBy          string     `json:"created_by" bson:"created_by"`
	Platforms          []string   `json:"platforms" bson:"platforms"`
	Goals              []string   `json:"goals" bson:"goals"`
	TargetAudience     string     `json:"target_audience,omitempty" bson:"target_audience,omitempty"`
	Cadence            string     `json:"cadence,omitempty" bson:"cadence,omitempty"`
	BrandTone          string     `json:"brand_tone,omitempty" bson:"brand_tone,omitempty"`
	DurationDays       int        `json:"duration_days,omitempty" bson:"duration_days,omitempty"`
	Budget             float64    `json:"budget,omitempty" bson:"budget,omitempty"`
	AdsEnabled         bool       `json:"ads_enabled" bson:"ads_enabled"`
	ReferenceAssetURLs []string   `json:"reference_asset_urls,omitempty" bson:"reference_asset_urls,omitempty"`
	Invalidated        bool       `json:"invalidated" bson:"invalidated"`
	InvalidatedAt      *time.Time `json:"invalidated_at,omitempty" bson:"invalidated_at,omitempty"`
	InvalidatedBy      string     `json:"invalidated_by,omitempty" bson:"invalidated_by,omitempty"`
}

type ContentVersion struct {
	Version         int        `json:"version" bson:"version"`
	StrategyVersion int        `json:"strategy_version" bson:"strategy_version"`
	Mode            string     `json:"mode" bson:"mode"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	CreatedBy       string     `json:"created_by" bson:"created_by"`
	Texts           []string   `json:"texts" bson:"texts"`
	ImageURLs       []string   `json:"image_urls" bson:"image_urls"`
	VideoURLs       []string   `json:"video_urls" bson:"video_urls"`
	NeedsReview     bool       `json:"needs_review" bson:"needs_review"`
	Invalidated     bool       `json:"invalidated" bson:"invalidated"`
	InvalidatedAt   *time.Time `json:"invalidated_at,omitempty" bson:"invalidated_at,omitempty"`
	InvalidatedBy   string     `json:"invalidated_by,omitempty" bson:"invalidated_by,omitempty"`
}

// UsesAsset reports whether the version references url in any of its media lists.
func (cv *ContentVersion) UsesAsset(url string) bool {
	for _, list := range [][]string{cv.ImageURLs, cv.VideoURLs} {
		for _, u := range list {
			if u == url {
				return true
			}
		}
	}
	return false
}

// AssetRef tracks an opaque blob-store URL and the versions using it.
// ReplacedBy is a weak pointer to the superseding asset's URL.
type AssetRef struct {
	URL              string     `json:"url" bson:"url"`
	Type             string     `json:"type" bson:"type"`
	UploadedBy       string     `json:"uploaded_by" bson:"uploaded_by"`
	UploadedAt       time.Time  `json:"uploaded_at" bson:"uploaded_at"`
	ContentVersions  []int      `json:"content_versions,omitempty" bson:"content_versions,omitempty"`
	StrategyVersions []int      `json:"strategy_versions,omitempty" bson:"strategy_versions,omitempty"`
	ReplacedBy       string     `json:"replaced_by,omitempty" bson:"replaced_by,omitempty"`
	ReplacedAt       *time.Time `json:"replaced_at,omitempty" bson:"replaced_at,omitempty"`
}

type ScheduleSlot struct {
	SlotID         string    `json:"slot_id" bson:"slot_id"`
	ScheduledAt    time.Time `json:"scheduled_at" bson:"scheduled_at"`
	Platform       string    `json:"platform" bson:"platform"`
	ContentVersion int       `json:"content_version" bson:"content_version"`
	Locked         bool      `json:"locked" bson:"locked"`
	Conflict       bool      `json:"conflict" bson:"conflict"`
	ConflictReason string    `json:"conflict_reason,omitempty" bson:"conflict_reason,omitempty"`
	Regenerated    bool      `json:"regenerated" bson:"regenerated"`
}

type ApprovalStatus struct {
	Status             string     `json:"status" bson:"status"`
	ApprovedBy         string     `json:"approved_by,omitempty" bson:"approved_by,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty" bson:"approved_at,omitempty"`
	RejectedBy         string     `json:"rejected_by,omitempty" bson:"rejected_by,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty" bson:"rejected_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	InvalidationReason string     `json:"invalidation_reason,omitempty" bson:"invalidation_reason,omitempty"`
	InvalidatedAt      *time.Time `json:"invalidated_at,omitempty" bson:"invalidated_at,omitempty"`
	Note               string     `json:"note,omitempty" bson:"note,omitempty"`
}

// ApprovalStates maps each section to its approval status.
type ApprovalStates map[Section]ApprovalStatus

// NewApprovalStates returns every section in the pending state.
func NewApprovalStates() ApprovalStates {
	states := make(ApprovalStates, len(AllSections))
	for _, s := range AllSections {
		states[s] = ApprovalStatus{Status: ApprovalPending}
	}
	return states
}

// Get returns the status for a section, treating a missing entry as pending.
func (a ApprovalStates) Get(s Section) ApprovalStatus {
	if st, ok := a[s]; ok && st.Status != "" {
		return st
	}
	return ApprovalStatus{Status: ApprovalPending}
}

type StatusChange struct {
	From      string    `json:"from" bson:"from"`
	To        string    `json:"to" bson:"to"`
	Revision  int       `json:"revision" bson:"revision"`
	ChangedAt time.Time `json:"changed_at" bson:"changed_at"`
	ChangedBy string    `json:"changed_by" bson:"changed_by"`
}

type Campaign struct {
	ID          string `json:"id" bson:"_id"`
	TenantID    string `json:"tenant_id" bson:"tenant_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Status      string `json:"status" bson:"status"`
	// Revision mirrors the head of RevisionHistory so listings can show it
	// without loading the ledger.
	Revision int `json:"revision" bson:"revision"`

	StrategyVersions []StrategyVersion `json:"strategy_versions" bson:"strategy_versions"`
	ContentVersions  []ContentVersion  `json:"content_versions" bson:"content_versions"`
	AssetRefs        []AssetRef        `json:"asset_refs" bson:"asset_refs"`
	Schedule         []ScheduleSlot    `json:"schedule" bson:"schedule"`
	ApprovalStates   ApprovalStates    `json:"approval_states" bson:"approval_states"`
	RevisionHistory  []RevisionEntry   `json:"revision_history" bson:"revision_history"`
	StatusHistory    []StatusChange    `json:"status_history" bson:"status_history"`

	PublishedAt *time.Time `json:"published_at,omitempty" bson:"published_at,omitempty"`
	PublishedBy string     `json:"published_by,omitempty" bson:"published_by,omitempty"`

	CreatedBy string    `json:"created_by" bson:"created_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`

	// WriteCounter is the optimistic-concurrency token. It is bumped by every
	// successful persist and is never exposed to API callers.
	WriteCounter int64 `json:"-" bson:"write_counter"`
}

// HeadRevision returns the latest ledger revision number, 0 for an empty ledger.
func (c *Campaign) HeadRevision() int {
	if len(c.RevisionHistory) == 0 {
		return 0
	}
	return c.RevisionHistory[len(c.RevisionHistory)-1].Revision
}

// ActiveStrategy returns the non-invalidated strategy version, if any.
func (c *Campaign) ActiveStrategy() *StrategyVersion {
	for i := len(c.StrategyVersions) - 1; i >= 0; i-- {
		if !c.StrategyVersions[i].Invalidated {
			return &c.StrategyVersions[i]
		}
	}
	return nil
}

// ActiveContent returns the non-invalidated content version, if any.
func (c *Campaign) ActiveContent() *ContentVersion {
	for i := len(c.ContentVersions) - 1; i >= 0; i-- {
		if !c.ContentVersions[i].Invalidated {
			return &c.ContentVersions[i]
		}
	}
	return nil
}

func (c *Campaign) StrategyVersion(version int) *StrategyVersion {
	for i := range c.StrategyVersions {
		if c.StrategyVersions[i].Version == version {
			return &c.StrategyVersions[i]
		}
	}
	return nil
}

func (c *Campaign) ContentVersion(version int) *ContentVersion {
	for i := range c.ContentVersions {
		if c.ContentVersions[i].Version == version {
			return &c.ContentVersions[i]
		}
	}
	return nil
}

func (c *Campaign) Asset(url string) *AssetRef {
	for i := range c.AssetRefs {
		if c.AssetRefs[i].URL == url {
			return &c.AssetRefs[i]
		}
	}
	return nil
}

// RequiredSections returns the sections that must be approved before publishing.
// Ads are only required when the active strategy enables them.
func (c *Campaign) RequiredSections() []Section {
	required := []Section{SectionStrategy, SectionContent, SectionSchedule}
	if s := c.ActiveStrategy(); s != nil && s.AdsEnabled {
		required = append(required, SectionAds)
	}
	return required
}
