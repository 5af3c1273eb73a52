package versionstore

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"campaign_workflow/models"
)

// StrategyImpact reports what appending a strategy version touched.
type StrategyImpact struct {
	Superseded      int
	ContentAffected bool
}

// ContentImpact reports what appending a content version touched.
type ContentImpact struct {
	Superseded       int
	ScheduleAffected bool
}

// AssetImpact reports what replacing an asset touched.
type AssetImpact struct {
	FlaggedContentVersions []int
	ContentAffected        bool
	ScheduleAffected       bool
	// Revived is set when newURL named an asset that had itself been replaced,
	// as when a replacement is reverted. Its replacedBy link is cleared.
	Revived bool
}

// AppendStrategyVersion appends version max+1 and invalidates the previously
// active version. When the active content version was generated against the
// superseded strategy it is flagged for review.
func AppendStrategyVersion(c *models.Campaign, p models.StrategyPayload, userID string, at time.Time) (models.StrategyVersion, StrategyImpact, error) {
	if err := p.Validate(); err != nil {
		return models.StrategyVersion{}, StrategyImpact{}, err
	}
	var impact StrategyImpact
	if prev := c.ActiveStrategy(); prev != nil {
		invalidate(&prev.Invalidated, &prev.InvalidatedAt, &prev.InvalidatedBy, userID, at)
		impact.Superseded = prev.Version
		if cv := c.ActiveContent(); cv != nil && cv.StrategyVersion == prev.Version {
			cv.NeedsReview = true
			impact.ContentAffected = true
		}
	}

	sv := models.StrategyVersion{
		Version:            nextStrategyVersion(c),
		CreatedAt:          at,
		CreatedBy:          userID,
		Platforms:          append([]string(nil), p.Platforms...),
		Goals:              append([]string(nil), p.Goals...),
		TargetAudience:     p.TargetAudience,
		Cadence:            p.Cadence,
		BrandTone:          p.BrandTone,
		DurationDays:       p.DurationDays,
		Budget:             p.Budget,
		AdsEnabled:         p.AdsEnabled,
		ReferenceAssetURLs: append([]string(nil), p.ReferenceAssetURLs...),
	}
	c.StrategyVersions = append(c.StrategyVersions, sv)
	for _, url := range sv.ReferenceAssetURLs {
		a := registerAsset(c, url, "", userID, at)
		a.StrategyVersions = appendUnique(a.StrategyVersions, sv.Version)
	}
	return sv, impact, nil
}

// AppendContentVersion appends version max+1 against an existing strategy
// version and invalidates the previously active content version. Schedule
// slots still publishing the superseded version are marked in conflict.
func AppendContentVersion(c *models.Campaign, p models.ContentPayload, userID string, at time.Time) (models.ContentVersion, ContentImpact, error) {
	if err := p.Validate(); err != nil {
		return models.ContentVersion{}, ContentImpact{}, err
	}
	strategyVersion, err := ResolveStrategyVersion(c, p.StrategyVersion)
	if err != nil {
		return models.ContentVersion{}, ContentImpact{}, err
	}

	var impact ContentImpact
	version := nextContentVersion(c)
	if prev := c.ActiveContent(); prev != nil {
		invalidate(&prev.Invalidated, &prev.InvalidatedAt, &prev.InvalidatedBy, userID, at)
		impact.Superseded = prev.Version
		for i := range c.Schedule {
			slot := &c.Schedule[i]
			if slot.ContentVersion == prev.Version {
				slot.Conflict = true
				slot.ConflictReason = fmt.Sprintf("content version %d superseded by version %d", prev.Version, version)
				impact.ScheduleAffected = true
			}
		}
	}

	cv := models.ContentVersion{
		Version:         version,
		StrategyVersion: strategyVersion.Version,
		Mode:            p.Mode,
		CreatedAt:       at,
		CreatedBy:       userID,
		Texts:           append([]string(nil), p.Texts...),
		ImageURLs:       append([]string(nil), p.ImageURLs...),
		VideoURLs:       append([]string(nil), p.VideoURLs...),
		NeedsReview:     strategyVersion.Invalidated,
	}
	c.ContentVersions = append(c.ContentVersions, cv)
	for _, url := range cv.ImageURLs {
		a := registerAsset(c, url, models.AssetTypeImage, userID, at)
		a.ContentVersions = appendUnique(a.ContentVersions, cv.Version)
	}
	for _, url := range cv.VideoURLs {
		a := registerAsset(c, url, models.AssetTypeVideo, userID, at)
		a.ContentVersions = appendUnique(a.ContentVersions, cv.Version)
	}
	return cv, impact, nil
}

// ResolveStrategyVersion returns the referenced strategy version, or the
// active one when version is zero.
func ResolveStrategyVersion(c *models.Campaign, version int) (*models.StrategyVersion, error) {
	if version == 0 {
		if sv := c.ActiveStrategy(); sv != nil {
			return sv, nil
		}
		return nil, models.InvalidPayloadf("a strategy version is required before content can be created")
	}
	sv := c.StrategyVersion(version)
	if sv == nil {
		return nil, models.InvalidPayloadf("strategy version %d does not exist", version)
	}
	return sv, nil
}

// ReplaceAsset points oldURL at newURL and inserts the new asset with the same
// back-references. Unless skipApprovalInvalidation is set, every content
// version using the old asset is flagged for review and the slots publishing
// those versions are marked regenerated. Replacing with a previously replaced
// asset revives it, so a reverted asset can be replaced again later.
func ReplaceAsset(c *models.Campaign, oldURL, newURL, userID string, skipApprovalInvalidation bool, at time.Time) (models.AssetRef, AssetImpact, error) {
	oldURL = strings.TrimSpace(oldURL)
	newURL = strings.TrimSpace(newURL)
	if oldURL == "" || newURL == "" {
		return models.AssetRef{}, AssetImpact{}, models.InvalidPayloadf("both old and new asset urls are required")
	}
	if oldURL == newURL {
		return models.AssetRef{}, AssetImpact{}, models.InvalidPayloadf("new asset url must differ from the old one")
	}
	old := c.Asset(oldURL)
	if old == nil {
		return models.AssetRef{}, AssetImpact{}, models.NotFoundf("asset %s is not referenced by this campaign", oldURL)
	}
	if old.ReplacedBy != "" {
		return models.AssetRef{}, AssetImpact{}, models.InvalidPayloadf("asset %s was already replaced by %s", oldURL, old.ReplacedBy)
	}

	replacedAt := at
	old.ReplacedBy = newURL
	old.ReplacedAt = &replacedAt
	contentRefs := append([]int(nil), old.ContentVersions...)
	strategyRefs := append([]int(nil), old.StrategyVersions...)
	assetType := old.Type

	// registerAsset may grow the slice, so old is not used past this point.
	replacement := registerAsset(c, newURL, assetType, userID, at)
	var impact AssetImpact
	if replacement.ReplacedBy != "" {
		replacement.ReplacedBy = ""
		replacement.ReplacedAt = nil
		impact.Revived = true
	}
	for _, v := range contentRefs {
		replacement.ContentVersions = appendUnique(replacement.ContentVersions, v)
	}
	for _, v := range strategyRefs {
		replacement.StrategyVersions = appendUnique(replacement.StrategyVersions, v)
	}
	result := *replacement

	if skipApprovalInvalidation {
		return result, impact, nil
	}
	flagged := make(map[int]bool)
	active := c.ActiveContent()
	for i := range c.ContentVersions {
		cv := &c.ContentVersions[i]
		if !cv.UsesAsset(oldURL) {
			continue
		}
		cv.NeedsReview = true
		flagged[cv.Version] = true
		impact.FlaggedContentVersions = append(impact.FlaggedContentVersions, cv.Version)
		if active != nil && active.Version == cv.Version {
			impact.ContentAffected = true
		}
	}
	for i := range c.Schedule {
		if flagged[c.Schedule[i].ContentVersion] {
			c.Schedule[i].Regenerated = true
			impact.ScheduleAffected = true
		}
	}
	return result, impact, nil
}

// ReplaceSchedule swaps every unlocked slot for the payload's slots. Locked
// slots are kept; the payload may target a locked slot's id only to resolve a
// conflict on it. Slots without an id get one derived from the revision that
// creates them, skipping ids already used by the payload or a kept slot.
func ReplaceSchedule(c *models.Campaign, p models.SchedulePayload, revision int) ([]models.ScheduleSlot, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	locked := make(map[string]models.ScheduleSlot)
	for _, slot := range c.Schedule {
		if slot.Locked {
			locked[slot.SlotID] = slot
		}
	}
	for i, in := range p.Slots {
		if slot, ok := locked[in.SlotID]; ok && in.SlotID != "" {
			if !slot.Conflict {
				return nil, models.InvalidPayloadf("slot %d: slot %s is locked and cannot be changed", i, in.SlotID)
			}
			delete(locked, in.SlotID)
		}
	}

	var next []models.ScheduleSlot
	taken := make(map[string]bool)
	for _, slot := range c.Schedule {
		if _, ok := locked[slot.SlotID]; ok && slot.Locked {
			next = append(next, slot)
			taken[slot.SlotID] = true
		}
	}
	for _, in := range p.Slots {
		if in.SlotID != "" {
			taken[in.SlotID] = true
		}
	}
	seq := 0
	for i, in := range p.Slots {
		contentVersion := in.ContentVersion
		if contentVersion == 0 {
			active := c.ActiveContent()
			if active == nil {
				return nil, models.InvalidPayloadf("slot %d: no active content version to schedule", i)
			}
			contentVersion = active.Version
		}
		cv := c.ContentVersion(contentVersion)
		if cv == nil {
			return nil, models.InvalidPayloadf("slot %d: content version %d does not exist", i, contentVersion)
		}
		if cv.Invalidated {
			return nil, models.InvalidPayloadf("slot %d: content version %d is invalidated", i, contentVersion)
		}
		id := in.SlotID
		for id == "" || (in.SlotID == "" && taken[id]) {
			seq++
			id = fmt.Sprintf("slot-%d-%d", revision, seq)
		}
		taken[id] = true
		next = append(next, models.ScheduleSlot{
			SlotID:         id,
			ScheduledAt:    in.ScheduledAt,
			Platform:       in.Platform,
			ContentVersion: contentVersion,
			Locked:         in.Locked,
		})
	}
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].ScheduledAt.Before(next[j].ScheduledAt)
	})
	c.Schedule = next
	return append([]models.ScheduleSlot(nil), next...), nil
}

// ScheduleConflicts counts slots currently in conflict.
func ScheduleConflicts(c *models.Campaign) int {
	n := 0
	for _, slot := range c.Schedule {
		if slot.Conflict {
			n++
		}
	}
	return n
}

func nextStrategyVersion(c *models.Campaign) int {
	max := 0
	for _, v := range c.StrategyVersions {
		if v.Version > max {
			max = v.Version
		}
	}
	return max + 1
}

func nextContentVersion(c *models.Campaign) int {
	max := 0
	for _, v := range c.ContentVersions {
		if v.Version > max {
			max = v.Version
		}
	}
	return max + 1
}

func invalidate(flag *bool, when **time.Time, by *string, userID string, at time.Time) {
	t := at
	*flag = true
	*when = &t
	*by = userID
}

// registerAsset returns the asset for url, inserting it when unknown. An empty
// assetType is inferred from the url's extension.
func registerAsset(c *models.Campaign, url, assetType, userID string, at time.Time) *models.AssetRef {
	if a := c.Asset(url); a != nil {
		return a
	}
	if assetType == "" {
		assetType = assetTypeFor(url)
	}
	c.AssetRefs = append(c.AssetRefs, models.AssetRef{
		URL:        url,
		Type:       assetType,
		UploadedBy: userID,
		UploadedAt: at,
	})
	return &c.AssetRefs[len(c.AssetRefs)-1]
}

func assetTypeFor(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	switch strings.ToLower(path.Ext(url)) {
	case ".mp4", ".mov", ".webm", ".m4v", ".avi":
		return models.AssetTypeVideo
	case ".txt", ".md", ".html":
		return models.AssetTypeText
	default:
		return models.AssetTypeImage
	}
}

func appendUnique(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
