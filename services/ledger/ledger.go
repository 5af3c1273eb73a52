// Package ledger owns the append-only revision history of a campaign and
// answers "what did the campaign look like after revision N" by replay.
package ledger

import (
	"fmt"
	"time"

	"campaign_workflow/models"
	"campaign_workflow/services/approval"
)

// Fold applies one ledger entry to state. It must be the same mutation code
// the live path runs, driven by the entry's ChangedBy and ChangedAt, so that
// replay reproduces what was persisted.
type Fold func(state *models.Campaign, entry models.RevisionEntry) error

// Seed returns the empty aggregate replay starts from. Only identity fields
// (id and tenant) are expected to be set.
type Seed func() *models.Campaign

// Append records change as revision head+1 and moves the campaign's revision
// and update time with it. It is called once per mutating operation, after the
// mutation is computed and before the aggregate is persisted.
func Append(c *models.Campaign, change models.Change, userID, note string, at time.Time) models.RevisionEntry {
	entry := models.RevisionEntry{
		Revision:  c.HeadRevision() + 1,
		ChangedAt: at,
		ChangedBy: userID,
		Change:    change,
		Note:      note,
	}
	record(c, entry)
	return entry
}

// Replay rebuilds the aggregate as it stood right after revision target by
// folding entries 1..target over seed(). A rolled_back entry resets the state
// to that of its own target and keeps the history accumulated so far.
func Replay(history []models.RevisionEntry, target int, seed Seed, fold Fold) (*models.Campaign, error) {
	if err := checkTarget(history, target); err != nil {
		return nil, err
	}

	// Snapshots are only kept for revisions some later rollback points at.
	wanted := make(map[int]bool)
	for _, entry := range history[:target] {
		if entry.Change.Kind == models.ChangeRolledBack && entry.Change.Rollback != nil {
			wanted[entry.Change.Rollback.TargetRevision] = true
		}
	}
	snapshots := make(map[int]*models.Campaign, len(wanted))

	state := seed()
	for i, entry := range history[:target] {
		if entry.Revision != i+1 {
			return nil, fmt.Errorf("%w: ledger entry %d carries revision %d", models.ErrInternal, i+1, entry.Revision)
		}
		if entry.Change.Kind == models.ChangeRolledBack {
			if entry.Change.Rollback == nil {
				return nil, fmt.Errorf("%w: rollback entry %d has no target", models.ErrInternal, entry.Revision)
			}
			snapshot, ok := snapshots[entry.Change.Rollback.TargetRevision]
			if !ok {
				return nil, fmt.Errorf("%w: rollback entry %d targets unknown revision %d",
					models.ErrInternal, entry.Revision, entry.Change.Rollback.TargetRevision)
			}
			state = Restore(state, snapshot)
		}
		if err := fold(state, entry); err != nil {
			return nil, fmt.Errorf("%w: replaying revision %d (%s): %v", models.ErrInternal, entry.Revision, entry.Change.Kind, err)
		}
		record(state, entry)
		if wanted[entry.Revision] {
			snapshots[entry.Revision] = state.Clone()
		}
	}
	return state, nil
}

// Rollback returns a new aggregate whose versioned state equals the replayed
// state right after target, with the full current history plus one new
// rolled_back entry. The current aggregate is left untouched.
func Rollback(c *models.Campaign, target int, userID, note string, at time.Time, seed Seed, fold Fold) (*models.Campaign, models.RevisionEntry, error) {
	if err := checkTarget(c.RevisionHistory, target); err != nil {
		return nil, models.RevisionEntry{}, err
	}
	snapshot, err := Replay(c.RevisionHistory, target, seed, fold)
	if err != nil {
		return nil, models.RevisionEntry{}, err
	}

	restored := Restore(c.Clone(), snapshot)
	change := models.Change{
		Kind:        models.ChangeRolledBack,
		Rollback:    &models.RollbackChange{TargetRevision: target},
		Transitions: approval.RollbackTransitions(c.ApprovalStates, restored.ApprovalStates, target),
	}
	entry := models.RevisionEntry{
		Revision:  c.HeadRevision() + 1,
		ChangedAt: at,
		ChangedBy: userID,
		Change:    change,
		Note:      note,
	}
	if err := fold(restored, entry); err != nil {
		return nil, models.RevisionEntry{}, err
	}
	record(restored, entry)
	return restored, entry, nil
}

// Restore combines the versioned state of snapshot with the ledger, status
// trail and concurrency token of current. The status stays current's until the
// rollback entry is folded and re-derives it.
func Restore(current, snapshot *models.Campaign) *models.Campaign {
	out := snapshot.Clone()
	out.ID = current.ID
	out.TenantID = current.TenantID
	out.Status = current.Status
	out.RevisionHistory = current.RevisionHistory
	out.StatusHistory = current.StatusHistory
	out.Revision = current.Revision
	out.UpdatedAt = current.UpdatedAt
	out.WriteCounter = current.WriteCounter
	return out
}

// Entries returns a copy of the history, oldest first.
func Entries(c *models.Campaign) []models.RevisionEntry {
	return c.Clone().RevisionHistory
}

func checkTarget(history []models.RevisionEntry, target int) error {
	head := 0
	if len(history) > 0 {
		head = history[len(history)-1].Revision
	}
	if target < 1 || target > head {
		return models.NotFoundf("revision %d does not exist; valid revisions are 1 to %d", target, head)
	}
	return nil
}

func record(c *models.Campaign, entry models.RevisionEntry) {
	c.RevisionHistory = append(c.RevisionHistory, entry)
	c.Revision = entry.Revision
	c.UpdatedAt = entry.ChangedAt
}
