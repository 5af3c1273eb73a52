// Package versionstore loads and persists campaign aggregates and owns the
// append operations for their versioned sub-records.
package versionstore

import (
	"context"
	"strings"
	"time"

	"campaign_workflow/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListFilter narrows a tenant's campaign listing.
type ListFilter struct {
	Status string
	Search string
}

// CampaignSummary is the listing projection of a campaign; it leaves out the
// embedded ledger and version payloads.
type CampaignSummary struct {
	ID                    string                `json:"id" bson:"_id"`
	Name                  string                `json:"name" bson:"name"`
	Status                string                `json:"status" bson:"status"`
	Revision              int                   `json:"revision" bson:"revision"`
	ActiveStrategyVersion int                   `json:"active_strategy_version"`
	ActiveContentVersion  int                   `json:"active_content_version"`
	ApprovalStates        models.ApprovalStates `json:"approval_states" bson:"approval_states"`
	CreatedAt             time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at" bson:"updated_at"`
}

// Page is the pagination contract for listings. Page is 1-based.
type Page struct {
	Items    []CampaignSummary `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// Statistics aggregates a tenant's campaigns by coarse status.
type Statistics struct {
	Total     int64            `json:"total"`
	Active    int64            `json:"active"`
	Published int64            `json:"published"`
	ByStatus  map[string]int64 `json:"by_status"`
}

// Repository is the durable home of campaign aggregates. Implementations must
// make Save a single atomic compare-and-swap on WriteCounter.
type Repository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	Load(ctx context.Context, tenantID, campaignID string) (*models.Campaign, error)
	Save(ctx context.Context, campaign *models.Campaign) error
	List(ctx context.Context, tenantID string, filter ListFilter, page, pageSize int) ([]CampaignSummary, int64, error)
	CountByStatus(ctx context.Context, tenantID string) (map[string]int64, error)
}

// Store is the VersionStore: it wraps a Repository with tenant scoping,
// pagination clamping and statistics shaping.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// Create inserts a new aggregate. The aggregate's write counter starts at 1.
func (s *Store) Create(ctx context.Context, campaign *models.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.repo.Create(ctx, campaign)
}

// Load returns the tenant's campaign. A campaign owned by another tenant is
// reported exactly like a missing one.
func (s *Store) Load(ctx context.Context, tenantID, campaignID string) (*models.Campaign, error) {
	tenantID = strings.TrimSpace(tenantID)
	campaignID = strings.TrimSpace(campaignID)
	if tenantID == "" || campaignID == "" {
		return nil, models.NotFoundf("campaign %q", campaignID)
	}
	return s.repo.Load(ctx, tenantID, campaignID)
}

// Persist writes the whole aggregate if nobody else persisted since it was
// loaded and returns the head revision. On ErrVersionConflict the caller must
// reload and retry.
func (s *Store) Persist(ctx context.Context, campaign *models.Campaign) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.repo.Save(ctx, campaign); err != nil {
		return 0, err
	}
	return campaign.HeadRevision(), nil
}

// List returns one page of the tenant's campaigns.
func (s *Store) List(ctx context.Context, tenantID string, page, pageSize int, filter ListFilter) (*Page, error) {
	page, pageSize = ClampPage(page, pageSize)
	filter.Status = strings.TrimSpace(filter.Status)
	filter.Search = strings.TrimSpace(filter.Search)
	items, total, err := s.repo.List(ctx, tenantID, filter, page, pageSize)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []CampaignSummary{}
	}
	return &Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Statistics counts the tenant's campaigns. Active covers every campaign that
// is past draft and not yet published.
func (s *Store) Statistics(ctx context.Context, tenantID string) (*Statistics, error) {
	byStatus, err := s.repo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{ByStatus: make(map[string]int64, len(byStatus))}
	for status, n := range byStatus {
		stats.ByStatus[status] = n
		stats.Total += n
		switch status {
		case models.CampaignStatusReview, models.CampaignStatusApproved, models.CampaignStatusNeedsReview:
			stats.Active += n
		case models.CampaignStatusPublished:
			stats.Published += n
		}
	}
	return stats, nil
}

// ClampPage normalizes 1-based paging input.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Summarize builds the listing projection of a campaign.
func Summarize(c *models.Campaign) CampaignSummary {
	summary := CampaignSummary{
		ID:             c.ID,
		Name:           c.Name,
		Status:         c.Status,
		Revision:       c.Revision,
		ApprovalStates: c.ApprovalStates.Clone(),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if s := c.ActiveStrategy(); s != nil {
		summary.ActiveStrategyVersion = s.Version
	}
	if cv := c.ActiveContent(); cv != nil {
		summary.ActiveContentVersion = cv.Version
	}
	return summary
}
