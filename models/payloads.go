package models

import (
	"strings"
	"time"
)

// =================================================================================
// VERSION PAYLOADS
// =================================================================================
// Typed inputs for each versioned sub-record. They are validated at the boundary
// and stored verbatim in the revision ledger, so replay sees exactly what the live
// path applied.
// =================================================================================

type CreateCampaignPayload struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (p *CreateCampaignPayload) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
}

func (p *CreateCampaignPayload) Validate() error {
	if p.Name == "" {
		return InvalidPayloadf("name is required")
	}
	if len(p.Name) > 200 {
		return InvalidPayloadf("name must be at most 200 characters")
	}
	return nil
}

type StrategyPayload struct {
	Platforms          []string `json:"platforms" bson:"platforms"`
	Goals              []string `json:"goals" bson:"goals"`
	TargetAudience     string   `json:"target_audience" bson:"target_audience,omitempty"`
	Cadence            string   `json:"cadence" bson:"cadence,omitempty"`
	BrandTone          string   `json:"brand_tone" bson:"brand_tone,omitempty"`
	DurationDays       int      `json:"duration_days" bson:"duration_days"`
	Budget             float64  `json:"budget" bson:"budget,omitempty"`
	AdsEnabled         bool     `json:"ads_enabled" bson:"ads_enabled"`
	ReferenceAssetURLs []string `json:"reference_asset_urls" bson:"reference_asset_urls,omitempty"`
}

func (p *StrategyPayload) Normalize() {
	p.Platforms = cleanList(p.Platforms, true)
	p.Goals = cleanList(p.Goals, false)
	p.TargetAudience = strings.TrimSpace(p.TargetAudience)
	p.Cadence = strings.TrimSpace(p.Cadence)
	p.BrandTone = strings.TrimSpace(p.BrandTone)
	p.ReferenceAssetURLs = cleanList(p.ReferenceAssetURLs, false)
}

func (p *StrategyPayload) Validate() error {
	if len(p.Platforms) == 0 {
		return InvalidPayloadf("strategy requires at least one platform")
	}
	if p.DurationDays <= 0 {
		return InvalidPayloadf("duration_days must be positive, got %d", p.DurationDays)
	}
	if p.Budget < 0 {
		return InvalidPayloadf("budget must not be negative")
	}
	return nil
}

type ContentPayload struct {
	// StrategyVersion is the strategy the content was generated against.
	// Zero means the active strategy version at creation time.
	StrategyVersion int      `json:"strategy_version" bson:"strategy_version"`
	Mode            string   `json:"mode" bson:"mode"`
	Texts           []string `json:"texts" bson:"texts,omitempty"`
	ImageURLs       []string `json:"image_urls" bson:"image_urls,omitempty"`
	VideoURLs       []string `json:"video_urls" bson:"video_urls,omitempty"`
}

func (p *ContentPayload) Normalize() {
	p.Mode = strings.ToLower(strings.TrimSpace(p.Mode))
	if p.Mode == "" {
		p.Mode = ContentModeAI
	}
	p.Texts = cleanList(p.Texts, false)
	p.ImageURLs = cleanList(p.ImageURLs, false)
	p.VideoURLs = cleanList(p.VideoURLs, false)
}

func (p *ContentPayload) Validate() error {
	switch p.Mode {
	case ContentModeAI, ContentModeManual, ContentModeHybrid:
	default:
		return InvalidPayloadf("content mode must be one of ai, manual, hybrid, got %q", p.Mode)
	}
	if p.StrategyVersion < 0 {
		return InvalidPayloadf("strategy_version must not be negative")
	}
	if len(p.Texts)+len(p.ImageURLs)+len(p.VideoURLs) == 0 {
		return InvalidPayloadf("content requires at least one text, image or video")
	}
	return nil
}

type ScheduleSlotInput struct {
	SlotID         string    `json:"slot_id" bson:"slot_id"`
	ScheduledAt    time.Time `json:"scheduled_at" bson:"scheduled_at"`
	Platform       string    `json:"platform" bson:"platform"`
	ContentVersion int       `json:"content_version" bson:"content_version"`
	Locked         bool      `json:"locked" bson:"locked"`
}

type SchedulePayload struct {
	Slots []ScheduleSlotInput `json:"slots" bson:"slots"`
}

func (p *SchedulePayload) Normalize() {
	for i := range p.Slots {
		p.Slots[i].SlotID = strings.TrimSpace(p.Slots[i].SlotID)
		p.Slots[i].Platform = strings.ToLower(strings.TrimSpace(p.Slots[i].Platform))
		p.Slots[i].ScheduledAt = p.Slots[i].ScheduledAt.UTC()
	}
}

func (p *SchedulePayload) Validate() error {
	if len(p.Slots) == 0 {
		return InvalidPayloadf("schedule requires at least one slot")
	}
	seen := make(map[string]struct{}, len(p.Slots))
	for i, slot := range p.Slots {
		if slot.ScheduledAt.IsZero() {
			return InvalidPayloadf("slot %d: scheduled_at is required", i)
		}
		if slot.Platform == "" {
			return InvalidPayloadf("slot %d: platform is required", i)
		}
		if slot.ContentVersion < 0 {
			return InvalidPayloadf("slot %d: content_version must not be negative", i)
		}
		if slot.SlotID != "" {
			if _, dup := seen[slot.SlotID]; dup {
				return InvalidPayloadf("slot %d: duplicate slot_id %q", i, slot.SlotID)
			}
			seen[slot.SlotID] = struct{}{}
		}
	}
	return nil
}

type ReplaceAssetOptions struct {
	SkipApprovalInvalidation bool
	Note                     string
}

// cleanList trims entries, drops blanks and duplicates, optionally lower-casing.
func cleanList(in []string, lower bool) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
