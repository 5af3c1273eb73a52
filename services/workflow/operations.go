package workflow

import (
	"context"
	"strings"
	"time"

	"campaign_workflow/models"
	"campaign_workflow/services/ledger"
	"campaign_workflow/services/versionstore"
)

// CreateCampaign creates a draft campaign at revision 1 with every section
// pending.
func (s *Service) CreateCampaign(ctx context.Context, tenantID, userID string, p models.CreateCampaignPayload) (*models.Campaign, error) {
	start := time.Now()
	tenantID = strings.TrimSpace(tenantID)
	logger := s.opLogger(OpCreateCampaign, tenantID, "")

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, s.finish(OpCreateCampaign, start, logger, err)
	}
	if tenantID == "" {
		return nil, s.finish(OpCreateCampaign, start, logger, models.InvalidPayloadf("tenant id is required"))
	}
	if err := checkUser(userID); err != nil {
		return nil, s.finish(OpCreateCampaign, start, logger, err)
	}
	release, err := s.reserve(ctx, OpCreateCampaign, tenantID, "")
	if err != nil {
		return nil, s.finish(OpCreateCampaign, start, logger, err)
	}

	at := s.clock()
	c := &models.Campaign{ID: s.newID(), TenantID: tenantID}
	change := models.Change{
		Kind:    models.ChangeCampaignCreated,
		Created: &models.CampaignCreatedChange{Name: p.Name, Description: p.Description},
	}
	if err := apply(c, &change, 1, userID, at); err != nil {
		release()
		return nil, s.finish(OpCreateCampaign, start, logger, err)
	}
	entry := ledger.Append(c, change, userID, "", at)
	recordStatus(c, entry.Revision, userID, at)

	if err := s.store.Create(ctx, c); err != nil {
		release()
		return nil, s.finish(OpCreateCampaign, start, logger, err)
	}

	logger = logger.With().Str("campaign_id", c.ID).Logger()
	s.afterCommit(ctx, logger, c, entry)
	logger.Info().Int("revision", entry.Revision).Msg("campaign created")
	return c, s.finish(OpCreateCampaign, start, logger, nil)
}

// GetCampaign loads the tenant's campaign.
func (s *Service) GetCampaign(ctx context.Context, tenantID, campaignID string) (*models.Campaign, error) {
	start := time.Now()
	c, err := s.store.Load(ctx, tenantID, campaignID)
	if err != nil {
		return nil, s.finish(OpGetCampaign, start, s.opLogger(OpGetCampaign, tenantID, campaignID), err)
	}
	return c, s.finish(OpGetCampaign, start, s.log, nil)
}

// ListCampaigns returns one page of the tenant's campaigns, newest first.
func (s *Service) ListCampaigns(ctx context.Context, tenantID string, page, pageSize int, filter versionstore.ListFilter) (*versionstore.Page, error) {
	start := time.Now()
	result, err := s.store.List(ctx, tenantID, page, pageSize, filter)
	if err != nil {
		return nil, s.finish(OpListCampaigns, start, s.opLogger(OpListCampaigns, tenantID, ""), err)
	}
	return result, s.finish(OpListCampaigns, start, s.log, nil)
}

// CreateStrategyVersion appends a strategy version. A previously active
// version is invalidated and its approvals cascade to needs_review.
func (s *Service) CreateStrategyVersion(ctx context.Context, tenantID, campaignID string, p models.StrategyPayload, userID string) (models.StrategyVersion, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return models.StrategyVersion{}, s.reject(OpCreateStrategyVersion, tenantID, campaignID, err)
	}
	c, entry, err := s.mutate(ctx, OpCreateStrategyVersion, tenantID, campaignID, userID, "", models.Change{
		Kind:     models.ChangeStrategyVersionCreated,
		Strategy: &p,
	})
	if err != nil {
		return models.StrategyVersion{}, err
	}
	return *c.StrategyVersion(entry.Change.Version), nil
}

// CreateContentVersion appends a content version generated against an
// existing strategy version (the active one when StrategyVersion is 0).
func (s *Service) CreateContentVersion(ctx context.Context, tenantID, campaignID string, p models.ContentPayload, userID string) (models.ContentVersion, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return models.ContentVersion{}, s.reject(OpCreateContentVersion, tenantID, campaignID, err)
	}
	c, entry, err := s.mutate(ctx, OpCreateContentVersion, tenantID, campaignID, userID, "", models.Change{
		Kind:    models.ChangeContentVersionCreated,
		Content: &p,
	})
	if err != nil {
		return models.ContentVersion{}, err
	}
	return *c.ContentVersion(entry.Change.Version), nil
}

// UpdateSchedule replaces the unlocked schedule slots.
func (s *Service) UpdateSchedule(ctx context.Context, tenantID, campaignID string, p models.SchedulePayload, userID string) ([]models.ScheduleSlot, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, s.reject(OpUpdateSchedule, tenantID, campaignID, err)
	}
	c, _, err := s.mutate(ctx, OpUpdateSchedule, tenantID, campaignID, userID, "", models.Change{
		Kind:     models.ChangeScheduleUpdated,
		Schedule: &p,
	})
	if err != nil {
		return nil, err
	}
	return append([]models.ScheduleSlot(nil), c.Schedule...), nil
}

// ApproveSection approves a pending or needs_review section.
func (s *Service) ApproveSection(ctx context.Context, tenantID, campaignID string, section models.Section, userID, note string) (models.ApprovalStatus, error) {
	note = strings.TrimSpace(note)
	c, _, err := s.mutate(ctx, OpApproveSection, tenantID, campaignID, userID, note, models.Change{
		Kind:     models.ChangeSectionApproved,
		Approval: &models.ApprovalChange{Section: section, Note: note},
	})
	if err != nil {
		return models.ApprovalStatus{}, err
	}
	return c.ApprovalStates.Get(section), nil
}

// RejectSection rejects a pending or needs_review section. A reason is
// required.
func (s *Service) RejectSection(ctx context.Context, tenantID, campaignID string, section models.Section, userID, reason string) (models.ApprovalStatus, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.ApprovalStatus{}, s.reject(OpRejectSection, tenantID, campaignID,
			models.InvalidPayloadf("a reason is required to reject the %s section", section))
	}
	c, _, err := s.mutate(ctx, OpRejectSection, tenantID, campaignID, userID, reason, models.Change{
		Kind:     models.ChangeSectionRejected,
		Approval: &models.ApprovalChange{Section: section, Reason: reason},
	})
	if err != nil {
		return models.ApprovalStatus{}, err
	}
	return c.ApprovalStates.Get(section), nil
}

// ReplaceAsset supersedes oldURL with newURL. Unless opts skip it, every
// content version using the old asset is flagged for review.
func (s *Service) ReplaceAsset(ctx context.Context, tenantID, campaignID, oldURL, newURL, userID string, opts models.ReplaceAssetOptions) (models.AssetRef, error) {
	oldURL = strings.TrimSpace(oldURL)
	newURL = strings.TrimSpace(newURL)
	c, _, err := s.mutate(ctx, OpReplaceAsset, tenantID, campaignID, userID, opts.Note, models.Change{
		Kind: models.ChangeAssetReplaced,
		Asset: &models.AssetReplacedChange{
			OldURL:                   oldURL,
			NewURL:                   newURL,
			SkipApprovalInvalidation: opts.SkipApprovalInvalidation,
		},
	})
	if err != nil {
		return models.AssetRef{}, err
	}
	return *c.Asset(newURL), nil
}

// Rollback restores the state right after targetRevision and records it as a
// new revision. History is never truncated.
func (s *Service) Rollback(ctx context.Context, tenantID, campaignID string, targetRevision int, userID, note string) (*models.Campaign, error) {
	c, _, err := s.mutate(ctx, OpRollback, tenantID, campaignID, userID, note, models.Change{
		Kind:     models.ChangeRolledBack,
		Rollback: &models.RollbackChange{TargetRevision: targetRevision},
	})
	return c, err
}

// PublishCampaign publishes a campaign whose required sections are approved.
func (s *Service) PublishCampaign(ctx context.Context, tenantID, campaignID, userID string) (*models.Campaign, error) {
	c, _, err := s.mutate(ctx, OpPublishCampaign, tenantID, campaignID, userID, "", models.Change{
		Kind: models.ChangeCampaignPublished,
	})
	return c, err
}

// ListRevisions returns the campaign's ledger, oldest first.
func (s *Service) ListRevisions(ctx context.Context, tenantID, campaignID string) ([]models.RevisionEntry, error) {
	start := time.Now()
	c, err := s.store.Load(ctx, tenantID, campaignID)
	if err != nil {
		return nil, s.finish(OpListRevisions, start, s.opLogger(OpListRevisions, tenantID, campaignID), err)
	}
	return ledger.Entries(c), s.finish(OpListRevisions, start, s.log, nil)
}

// GetCampaignAtRevision replays the ledger up to revision without changing
// anything.
func (s *Service) GetCampaignAtRevision(ctx context.Context, tenantID, campaignID string, revision int) (*models.Campaign, error) {
	start := time.Now()
	logger := s.opLogger(OpGetCampaignAtRevision, tenantID, campaignID)
	c, err := s.store.Load(ctx, tenantID, campaignID)
	if err != nil {
		return nil, s.finish(OpGetCampaignAtRevision, start, logger, err)
	}
	state, err := ledger.Replay(c.RevisionHistory, revision, seedFor(c), fold)
	if err != nil {
		return nil, s.finish(OpGetCampaignAtRevision, start, logger, err)
	}
	return state, s.finish(OpGetCampaignAtRevision, start, logger, nil)
}

// GetStatistics counts the tenant's campaigns by status. Read only.
func (s *Service) GetStatistics(ctx context.Context, tenantID string) (*versionstore.Statistics, error) {
	start := time.Now()
	if stats, ok := s.stats.Get(ctx, tenantID); ok {
		return stats, s.finish(OpGetStatistics, start, s.log, nil)
	}
	generation := s.stats.Generation(tenantID)
	stats, err := s.store.Statistics(ctx, tenantID)
	if err != nil {
		return nil, s.finish(OpGetStatistics, start, s.opLogger(OpGetStatistics, tenantID, ""), err)
	}
	s.stats.Set(ctx, tenantID, generation, stats)
	return stats, s.finish(OpGetStatistics, start, s.log, nil)
}

// reject finishes an operation refused before anything was loaded.
func (s *Service) reject(op, tenantID, campaignID string, err error) error {
	return s.finish(op, time.Now(), s.opLogger(op, tenantID, campaignID), err)
}
