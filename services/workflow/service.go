// Package workflow is the externally callable surface of the campaign engine.
// Every mutating operation runs load, mutate, cascade, ledger append and a
// single guarded persist; nothing is visible to other readers unless the
// persist succeeds.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campaign_workflow/models"
	"campaign_workflow/services/ledger"
	"campaign_workflow/services/versionstore"
	"campaign_workflow/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Operation names used in logs, metrics and idempotency scopes.
const (
	OpCreateCampaign        = "create_campaign"
	OpGetCampaign           = "get_campaign"
	OpListCampaigns         = "list_campaigns"
	OpCreateStrategyVersion = "create_strategy_version"
	OpCreateContentVersion  = "create_content_version"
	OpUpdateSchedule        = "update_schedule"
	OpApproveSection        = "approve_section"
	OpRejectSection         = "reject_section"
	OpReplaceAsset          = "replace_asset"
	OpRollback              = "rollback"
	OpPublishCampaign       = "publish_campaign"
	OpListRevisions         = "list_revisions"
	OpGetCampaignAtRevision = "get_campaign_at_revision"
	OpGetStatistics         = "get_statistics"
)

const publishTimeout = 3 * time.Second

type Service struct {
	store   *versionstore.Store
	log     zerolog.Logger
	metrics *utils.Metrics
	guard   IdempotencyGuard
	events  EventPublisher
	stats   StatsCache
	now     func() time.Time
	newID   func() string
}

type Option func(*Service)

func WithMetrics(m *utils.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithIdempotencyGuard(g IdempotencyGuard) Option {
	return func(s *Service) { s.guard = g }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithStatsCache(c StatsCache) Option {
	return func(s *Service) { s.stats = c }
}

// WithClock replaces the wall clock. Timestamps are truncated to milliseconds,
// the precision the document store keeps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(store *versionstore.Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		log:    log.With().Str("component", "campaign_workflow").Logger(),
		events: noopEvents{},
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = utils.NewMetrics(prometheus.NewRegistry())
	}
	if s.stats == nil {
		s.stats = NewTieredStatsCache(nil, 0, s.metrics, log)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// mutate runs one mutating operation against an existing campaign.
func (s *Service) mutate(ctx context.Context, op, tenantID, campaignID, userID, note string, change models.Change) (*models.Campaign, models.RevisionEntry, error) {
	start := time.Now()
	logger := s.opLogger(op, tenantID, campaignID)

	if err := checkUser(userID); err != nil {
		return nil, models.RevisionEntry{}, s.finish(op, start, logger, err)
	}
	release, err := s.reserve(ctx, op, tenantID, campaignID)
	if err != nil {
		return nil, models.RevisionEntry{}, s.finish(op, start, logger, err)
	}

	c, entry, err := s.commit(ctx, tenantID, campaignID, userID, strings.TrimSpace(note), change)
	if err != nil {
		release()
		return nil, models.RevisionEntry{}, s.finish(op, start, logger, err)
	}

	s.afterCommit(ctx, logger, c, entry)
	logger.Info().
		Int("revision", entry.Revision).
		Str("kind", entry.Change.Kind).
		Str("status", c.Status).
		Int("transitions", len(entry.Change.Transitions)).
		Msg("revision committed")
	return c, entry, s.finish(op, start, logger, nil)
}

func (s *Service) commit(ctx context.Context, tenantID, campaignID, userID, note string, change models.Change) (*models.Campaign, models.RevisionEntry, error) {
	c, err := s.store.Load(ctx, tenantID, campaignID)
	if err != nil {
		return nil, models.RevisionEntry{}, err
	}
	at := s.clock()

	var entry models.RevisionEntry
	if change.Kind == models.ChangeRolledBack {
		c, entry, err = ledger.Rollback(c, change.Rollback.TargetRevision, userID, note, at, seedFor(c), fold)
		if err != nil {
			return nil, models.RevisionEntry{}, err
		}
	} else {
		if err := apply(c, &change, c.HeadRevision()+1, userID, at); err != nil {
			return nil, models.RevisionEntry{}, err
		}
		entry = ledger.Append(c, change, userID, note, at)
		recordStatus(c, entry.Revision, userID, at)
	}

	if _, err := s.store.Persist(ctx, c); err != nil {
		if errors.Is(err, models.ErrVersionConflict) {
			return nil, models.RevisionEntry{}, fmt.Errorf("%w: campaign %s was modified by another request; reload and retry", models.ErrVersionConflict, campaignID)
		}
		return nil, models.RevisionEntry{}, err
	}
	return c, entry, nil
}

// afterCommit runs the side effects of a committed revision. None of them can
// fail the operation.
func (s *Service) afterCommit(ctx context.Context, logger zerolog.Logger, c *models.Campaign, entry models.RevisionEntry) {
	for _, t := range entry.Change.Transitions {
		if t.Cause == models.CauseCascade {
			s.metrics.CascadesTotal.WithLabelValues(string(t.Section)).Inc()
		}
	}
	if entry.Change.Kind == models.ChangeRolledBack {
		s.metrics.RollbacksTotal.Inc()
	}

	s.stats.Invalidate(ctx, c.TenantID)

	ev := RevisionCommitted{
		EventID:     s.newID(),
		TenantID:    c.TenantID,
		CampaignID:  c.ID,
		Revision:    entry.Revision,
		Kind:        entry.Change.Kind,
		ChangedBy:   entry.ChangedBy,
		ChangedAt:   entry.ChangedAt,
		Status:      c.Status,
		Transitions: entry.Change.Transitions,
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.PublishRevision(pubCtx, ev); err != nil {
		s.metrics.EventsPublished.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Int("revision", entry.Revision).Msg("failed to publish revision event")
		return
	}
	s.metrics.EventsPublished.WithLabelValues("ok").Inc()
}

// reserve claims the request's idempotency key, if it carries one. The
// returned func releases the claim and is called when the operation fails so
// the caller can retry with the same key.
func (s *Service) reserve(ctx context.Context, op, tenantID, campaignID string) (func(), error) {
	key := IdempotencyKeyFrom(ctx)
	if key == "" || s.guard == nil {
		return func() {}, nil
	}
	scoped := idempotencyScope(tenantID, campaignID, op, key)
	ok, err := s.guard.Reserve(ctx, scoped)
	if err != nil {
		// Fail open: the optimistic persist still prevents clobbering.
		s.log.Warn().Err(err).Str("operation", op).Msg("idempotency guard unavailable")
		return func() {}, nil
	}
	if !ok {
		s.metrics.DuplicateRequests.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("%w: idempotency key %q was already used for %s", models.ErrDuplicateRequest, key, op)
	}
	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), scoped); err != nil {
			s.log.Warn().Err(err).Str("operation", op).Msg("failed to release idempotency key")
		}
	}, nil
}

func (s *Service) opLogger(op, tenantID, campaignID string) zerolog.Logger {
	return s.log.With().
		Str("operation", op).
		Str("tenant_id", tenantID).
		Str("campaign_id", campaignID).
		Logger()
}

// finish records metrics and maps err for the caller. Expected errors are
// returned as they are; anything else is logged with full context and
// replaced by a generic ErrInternal.
func (s *Service) finish(op string, start time.Time, logger zerolog.Logger, err error) error {
	s.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.metrics.OperationsTotal.WithLabelValues(op, resultOf(err)).Inc()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrInvalidPayload),
		errors.Is(err, models.ErrIllegalTransition),
		errors.Is(err, models.ErrDuplicateRequest):
		logger.Debug().Err(err).Msg("operation rejected")
		return err
	case errors.Is(err, models.ErrVersionConflict):
		s.metrics.VersionConflicts.WithLabelValues(op).Inc()
		logger.Warn().Err(err).Msg("concurrent write lost the race")
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Msg("operation cancelled")
		return err
	default:
		logger.Error().Err(err).Msg("operation failed")
		return fmt.Errorf("%w: %s could not be completed", models.ErrInternal, strings.ReplaceAll(op, "_", " "))
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, models.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, models.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, models.ErrDuplicateRequest):
		return "duplicate"
	default:
		return "error"
	}
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return models.InvalidPayloadf("user id is required")
	}
	return nil
}
