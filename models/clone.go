package models

import "time"

// Clone returns a deep copy of the aggregate. Stores hand out clones so that a
// caller mutating its copy can never expose a partial write to other readers.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.PublishedAt = cloneTime(c.PublishedAt)

	if c.StrategyVersions != nil {
		out.StrategyVersions = make([]StrategyVersion, len(c.StrategyVersions))
		for i, v := range c.StrategyVersions {
			v.Platforms = cloneStrings(v.Platforms)
			v.Goals = cloneStrings(v.Goals)
			v.ReferenceAssetURLs = cloneStrings(v.ReferenceAssetURLs)
			v.InvalidatedAt = cloneTime(v.InvalidatedAt)
			out.StrategyVersions[i] = v
		}
	}
	if c.ContentVersions != nil {
		out.ContentVersions = make([]ContentVersion, len(c.ContentVersions))
		for i, v := range c.ContentVersions {
			v.Texts = cloneStrings(v.Texts)
			v.ImageURLs = cloneStrings(v.ImageURLs)
			v.VideoURLs = cloneStrings(v.VideoURLs)
			v.InvalidatedAt = cloneTime(v.InvalidatedAt)
			out.ContentVersions[i] = v
		}
	}
	if c.AssetRefs != nil {
		out.AssetRefs = make([]AssetRef, len(c.AssetRefs))
		for i, a := range c.AssetRefs {
			a.ContentVersions = cloneInts(a.ContentVersions)
			a.StrategyVersions = cloneInts(a.StrategyVersions)
			a.ReplacedAt = cloneTime(a.ReplacedAt)
			out.AssetRefs[i] = a
		}
	}
	if c.Schedule != nil {
		out.Schedule = append([]ScheduleSlot(nil), c.Schedule...)
	}
	out.ApprovalStates = c.ApprovalStates.Clone()
	if c.RevisionHistory != nil {
		out.RevisionHistory = make([]RevisionEntry, len(c.RevisionHistory))
		for i, e := range c.RevisionHistory {
			e.Change = e.Change.clone()
			out.RevisionHistory[i] = e
		}
	}
	if c.StatusHistory != nil {
		out.StatusHistory = append([]StatusChange(nil), c.StatusHistory...)
	}
	return &out
}

// Clone returns an independent copy of the map and its timestamps.
func (a ApprovalStates) Clone() ApprovalStates {
	if a == nil {
		return nil
	}
	out := make(ApprovalStates, len(a))
	for k, v := range a {
		v.ApprovedAt = cloneTime(v.ApprovedAt)
		v.RejectedAt = cloneTime(v.RejectedAt)
		v.InvalidatedAt = cloneTime(v.InvalidatedAt)
		out[k] = v
	}
	return out
}

func (ch Change) clone() Change {
	if ch.Created != nil {
		v := *ch.Created
		ch.Created = &v
	}
	if ch.Strategy != nil {
		v := *ch.Strategy
		v.Platforms = cloneStrings(v.Platforms)
		v.Goals = cloneStrings(v.Goals)
		v.ReferenceAssetURLs = cloneStrings(v.ReferenceAssetURLs)
		ch.Strategy = &v
	}
	if ch.Content != nil {
		v := *ch.Content
		v.Texts = cloneStrings(v.Texts)
		v.ImageURLs = cloneStrings(v.ImageURLs)
		v.VideoURLs = cloneStrings(v.VideoURLs)
		ch.Content = &v
	}
	if ch.Schedule != nil {
		v := SchedulePayload{Slots: append([]ScheduleSlotInput(nil), ch.Schedule.Slots...)}
		ch.Schedule = &v
	}
	if ch.Approval != nil {
		v := *ch.Approval
		ch.Approval = &v
	}
	if ch.Asset != nil {
		v := *ch.Asset
		ch.Asset = &v
	}
	if ch.Rollback != nil {
		v := *ch.Rollback
		ch.Rollback = &v
	}
	if ch.Transitions != nil {
		ch.Transitions = append([]Transition(nil), ch.Transitions...)
	}
	return ch
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	return append([]int(nil), in...)
}
