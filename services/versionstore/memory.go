package versionstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"campaign_workflow/models"
)

// MemoryRepository keeps aggregates in process memory. It backs local
// development (STORE_DRIVER=memory) and the service tests. Every read and
// write goes through a deep copy, so callers never share state with it.
type MemoryRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{campaigns: make(map[string]*models.Campaign)}
}

func (r *MemoryRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.campaigns[campaign.ID]; exists {
		return models.ErrVersionConflict
	}
	campaign.WriteCounter = 1
	r.campaigns[campaign.ID] = campaign.Clone()
	return nil
}

func (r *MemoryRepository) Load(ctx context.Context, tenantID, campaignID string) (*models.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.campaigns[campaignID]
	if !ok || stored.TenantID != tenantID {
		return nil, models.NotFoundf("campaign %q", campaignID)
	}
	return stored.Clone(), nil
}

func (r *MemoryRepository) Save(ctx context.Context, campaign *models.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.campaigns[campaign.ID]
	if !ok || stored.TenantID != campaign.TenantID {
		return models.NotFoundf("campaign %q", campaign.ID)
	}
	if stored.WriteCounter != campaign.WriteCounter {
		return models.ErrVersionConflict
	}
	campaign.WriteCounter++
	r.campaigns[campaign.ID] = campaign.Clone()
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, tenantID string, filter ListFilter, page, pageSize int) ([]CampaignSummary, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	matched := make([]*models.Campaign, 0)
	for _, c := range r.campaigns {
		if c.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []CampaignSummary{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	items := make([]CampaignSummary, 0, end-start)
	for _, c := range matched[start:end] {
		items = append(items, Summarize(c))
	}
	return items, total, nil
}

func (r *MemoryRepository) CountByStatus(ctx context.Context, tenantID string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, c := range r.campaigns {
		if c.TenantID == tenantID {
			counts[c.Status]++
		}
	}
	return counts, nil
}
