package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/core/port"
	"github.com/arklim/social-platform-revocation/internal/infra/logger"
	"github.com/arklim/social-platform-revocation/internal/infra/security"
)

// Tier names used in logs and metrics.
const (
	tierHot        = "hot"
	tierMembership = "membership"
	tierDurable    = "durable"
)

const auditTimeout = 5 * time.Second

// TierTimeouts bounds individual tier accesses. A timed-out access is treated
// like any other tier failure.
type TierTimeouts struct {
	Hot        time.Duration
	Membership time.Duration
	Durable    time.Duration
}

func (t TierTimeouts) withDefaults() TierTimeouts {
	if t.Hot <= 0 {
		t.Hot = 5 * time.Millisecond
	}
	if t.Membership <= 0 {
		t.Membership = 5 * time.Millisecond
	}
	if t.Durable <= 0 {
		t.Durable = 50 * time.Millisecond
	}
	return t
}

// RevokeOptions configures a single-token revocation.
type RevokeOptions struct {
	Reason   domain.Reason
	TTL      time.Duration
	UserID   string
	Metadata map[string]any
}

// MassRevokeOptions configures a per-user mass revocation.
type MassRevokeOptions struct {
	Reason   domain.Reason
	Metadata map[string]any
}

// Stats is an operational snapshot of the coordinator.
type Stats struct {
	RevocationCount    int64
	Uptime             time.Duration
	MembershipTierSize int
	LastCleanup        time.Time
}

// RevocationServiceDeps wires the coordinator's collaborators.
type RevocationServiceDeps struct {
	Hot        port.Tier
	Membership port.SweepableTier
	Durable    port.Tier
	Identity   *security.IdentityExtractor
	Audit      port.AuditLog          // optional
	Events     port.EventPublisher    // optional
	Metrics    port.RevocationMetrics // optional
	Policy     domain.DegradationPolicy
	DefaultTTL time.Duration
	Timeouts   TierTimeouts
	Logger     *zap.Logger
}

// RevocationService is the single entry point for recording and checking
// credential revocations across the cascading tier chain.
//
// Writes go to the hot tier synchronously and to the slower tiers best-effort;
// only a hot-tier failure surfaces to the caller. Reads cascade fastest-first
// and promote facts found in slower tiers so repeat lookups stay hot.
type RevocationService struct {
	hot        port.Tier
	membership port.SweepableTier
	durable    port.Tier
	identity   *security.IdentityExtractor
	audit      port.AuditLog
	events     port.EventPublisher
	metrics    port.RevocationMetrics
	policy     domain.DegradationPolicy
	defaultTTL time.Duration
	timeouts   TierTimeouts
	logger     *zap.Logger

	// mu serializes mutating calls so counters and audit entries stay ordered.
	// Tier operations themselves are independently keyed and concurrency-safe.
	mu          sync.Mutex
	revocations atomic.Int64
	lastCleanup atomic.Int64 // unix nanos, 0 = never
	startedAt   time.Time
	now         func() time.Time
}

// NewRevocationService constructs a coordinator. Each instance owns no global
// state, so tests can run several side by side with isolated tiers.
func NewRevocationService(deps RevocationServiceDeps) (*RevocationService, error) {
	if deps.Hot == nil || deps.Membership == nil || deps.Durable == nil {
		return nil, fmt.Errorf("revocation service requires hot, membership, and durable tiers")
	}
	if deps.Identity == nil {
		return nil, fmt.Errorf("revocation service requires an identity extractor")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.DefaultTTL <= 0 {
		deps.DefaultTTL = 30 * 24 * time.Hour
	}

	service := &RevocationService{
		hot:        deps.Hot,
		membership: deps.Membership,
		durable:    deps.Durable,
		identity:   deps.Identity,
		audit:      deps.Audit,
		events:     deps.Events,
		metrics:    deps.Metrics,
		policy:     deps.Policy,
		defaultTTL: deps.DefaultTTL,
		timeouts:   deps.Timeouts.withDefaults(),
		logger:     deps.Logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	service.startedAt = service.now()
	return service, nil
}

// WithClock overrides the internal clock for deterministic testing.
func (s *RevocationService) WithClock(clock func() time.Time) *RevocationService {
	if clock != nil {
		s.now = clock
		s.startedAt = clock().UTC()
	}
	return s
}

// Revoke records a revocation for the supplied credential. The identifier is
// derived through the extraction fallback chain, so malformed and expired
// credentials remain revocable.
func (s *RevocationService) Revoke(ctx context.Context, credential string, opts RevokeOptions) error {
	if !opts.Reason.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidReason, opts.Reason)
	}

	identifier := s.identity.Identifier(ctx, credential)
	return s.revokeIdentifier(ctx, identifier, opts)
}

// RevokeByIdentifier records a revocation for an already-known token
// identifier, skipping claims extraction.
func (s *RevocationService) RevokeByIdentifier(ctx context.Context, jti string, opts RevokeOptions) error {
	if !opts.Reason.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidReason, opts.Reason)
	}
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return fmt.Errorf("jti is required")
	}

	return s.revokeIdentifier(ctx, jti, opts)
}

func (s *RevocationService) revokeIdentifier(ctx context.Context, identifier string, opts RevokeOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()
	record := domain.RevocationRecord{
		Identifier: identifier,
		Reason:     opts.Reason,
		RevokedAt:  now,
		UserID:     opts.UserID,
		TTL:        ttl,
		Metadata:   opts.Metadata,
	}

	payload, err := record.Encode()
	if err != nil {
		return err
	}

	// The hot tier is in-process and assumed always available; its failure is
	// the one condition under which the caller learns the revocation did not
	// take effect.
	if err := s.putTier(ctx, s.hot, tierHot, identifier, payload, ttl); err != nil {
		return fmt.Errorf("hot tier write: %w", err)
	}

	if err := s.putTier(ctx, s.membership, tierMembership, identifier, "", ttl); err != nil {
		s.logger.Warn("membership tier write failed",
			zap.String("identifier", logger.MaskToken(identifier)),
			zap.Error(err),
		)
	}
	if err := s.putTier(ctx, s.durable, tierDurable, identifier, payload, ttl); err != nil {
		s.logger.Warn("durable tier write failed",
			zap.String("identifier", logger.MaskToken(identifier)),
			zap.Error(err),
		)
	}

	s.revocations.Add(1)
	if s.metrics != nil {
		s.metrics.IncRevocation("token", string(opts.Reason))
	}

	if s.events != nil {
		event := domain.TokenRevokedEvent{
			EventID:    uuid.NewString(),
			Identifier: identifier,
			UserID:     opts.UserID,
			Reason:     opts.Reason,
			RevokedAt:  now,
			ExpiresAt:  now.Add(ttl),
			Metadata:   opts.Metadata,
		}
		if err := s.events.PublishTokenRevoked(ctx, event); err != nil {
			s.logger.Warn("publish token revoked event failed", zap.Error(err))
		}
	}

	if s.audit != nil && opts.UserID != "" {
		entry := domain.AuditEntry{
			ID:        uuid.NewString(),
			UserID:    opts.UserID,
			Action:    domain.AuditActionTokenRevoked,
			Reason:    opts.Reason,
			Metadata:  opts.Metadata,
			CreatedAt: now,
		}
		go s.appendAudit(entry)
	}

	return nil
}

// RevokeAllForUser invalidates every credential for the user issued before
// now. The membership tier is skipped: it is keyed per token, not per user.
func (s *RevocationService) RevokeAllForUser(ctx context.Context, userID string, opts MassRevokeOptions) error {
	if !opts.Reason.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidReason, opts.Reason)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	marker := domain.UserRevocationMarker{
		UserID:        userID,
		RevokedBefore: now,
		Reason:        opts.Reason,
		TTL:           s.defaultTTL,
		Metadata:      opts.Metadata,
	}

	payload, err := marker.Encode()
	if err != nil {
		return err
	}

	key := domain.UserMarkerKey(userID)
	if err := s.putTier(ctx, s.hot, tierHot, key, payload, s.defaultTTL); err != nil {
		return fmt.Errorf("hot tier write: %w", err)
	}
	if err := s.putTier(ctx, s.durable, tierDurable, key, payload, s.defaultTTL); err != nil {
		s.logger.Warn("durable tier write failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	s.revocations.Add(1)
	if s.metrics != nil {
		s.metrics.IncRevocation("user", string(opts.Reason))
	}

	if s.events != nil {
		event := domain.UserRevokedEvent{
			EventID:       uuid.NewString(),
			UserID:        userID,
			Reason:        opts.Reason,
			RevokedBefore: now,
			Metadata:      opts.Metadata,
		}
		if err := s.events.PublishUserRevoked(ctx, event); err != nil {
			s.logger.Warn("publish user revoked event failed", zap.Error(err))
		}
	}

	// Mass actions are always audited, unlike single-token logout.
	if s.audit != nil {
		entry := domain.AuditEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			Action:    domain.AuditActionUserRevoked,
			Reason:    opts.Reason,
			Metadata:  opts.Metadata,
			CreatedAt: now,
		}
		s.appendAudit(entry)
	}

	return nil
}

// IsRevoked reports whether the credential has been revoked, consulting tiers
// fastest-first and falling back to the user's mass-revocation marker when no
// token-level fact exists and checkUserMarker is set.
func (s *RevocationService) IsRevoked(ctx context.Context, credential string, checkUserMarker bool) bool {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveCheckDuration(s.now().Sub(start))
		}
	}()

	identifier := s.identity.Identifier(ctx, credential)
	revoked, failures := s.lookupIdentifier(ctx, identifier)
	if revoked {
		s.countCheck("revoked")
		return true
	}

	if checkUserMarker {
		if claims, ok := s.identity.Claims(ctx, credential); ok {
			if marker, found := s.lookupUserMarker(ctx, claims.Subject); found && marker.Covers(claims.IssuedAt) {
				s.countCheck("revoked_by_user_marker")
				return true
			}
		}
	}

	if failures == tierCount && s.policy.FailClosed() {
		s.logger.Warn("all tiers unreachable, failing closed",
			zap.String("identifier", logger.MaskToken(identifier)),
		)
		s.countCheck("degraded_revoked")
		return true
	}

	s.countCheck("clear")
	return false
}

// IsRevokedByIdentifier checks a known token identifier. No credential is
// available, so the user-marker fallback does not apply.
func (s *RevocationService) IsRevokedByIdentifier(ctx context.Context, jti string) bool {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveCheckDuration(s.now().Sub(start))
		}
	}()

	revoked, failures := s.lookupIdentifier(ctx, jti)
	if revoked {
		s.countCheck("revoked")
		return true
	}
	if failures == tierCount && s.policy.FailClosed() {
		s.countCheck("degraded_revoked")
		return true
	}
	s.countCheck("clear")
	return false
}

// UserRevokedBefore returns the user's mass-revocation cutoff when a marker exists.
func (s *RevocationService) UserRevokedBefore(ctx context.Context, userID string) (time.Time, bool) {
	marker, found := s.lookupUserMarker(ctx, userID)
	if !found {
		return time.Time{}, false
	}
	return marker.RevokedBefore, true
}

// Stats returns an operational snapshot. Safe for concurrent use.
func (s *RevocationService) Stats() Stats {
	stats := Stats{
		RevocationCount:    s.revocations.Load(),
		Uptime:             s.now().Sub(s.startedAt),
		MembershipTierSize: s.membership.Size(),
	}
	if nanos := s.lastCleanup.Load(); nanos > 0 {
		stats.LastCleanup = time.Unix(0, nanos).UTC()
	}
	return stats
}

// Cleanup sweeps expired entries out of the membership tier. The hot and
// durable tiers expire natively and are never touched.
func (s *RevocationService) Cleanup(ctx context.Context) (int, error) {
	removed, err := s.membership.Sweep(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep membership tier: %w", err)
	}

	s.lastCleanup.Store(s.now().UnixNano())
	if removed > 0 {
		s.logger.Info("membership tier swept", zap.Int("removed", removed))
	}
	return removed, nil
}

const tierCount = 3

type tierRef struct {
	tier    port.Tier
	name    string
	timeout time.Duration
}

func (s *RevocationService) readChain() [tierCount]tierRef {
	return [tierCount]tierRef{
		{tier: s.hot, name: tierHot, timeout: s.timeouts.Hot},
		{tier: s.membership, name: tierMembership, timeout: s.timeouts.Membership},
		{tier: s.durable, name: tierDurable, timeout: s.timeouts.Durable},
	}
}

// lookupIdentifier cascades through the tiers fastest-first. A read failure
// falls through to the next tier; a hit in a slower tier is promoted into all
// faster ones so subsequent lookups stay cheap.
func (s *RevocationService) lookupIdentifier(ctx context.Context, identifier string) (bool, int) {
	chain := s.readChain()
	failures := 0

	for i, ref := range chain {
		entry, err := s.getTier(ctx, ref, identifier)
		if err != nil {
			failures++
			if s.metrics != nil {
				s.metrics.IncTierFailure(ref.name)
			}
			s.logger.Warn("tier read failed",
				zap.String("tier", ref.name),
				zap.String("identifier", logger.MaskToken(identifier)),
				zap.Error(err),
			)
			continue
		}
		if entry == nil {
			continue
		}

		if s.metrics != nil {
			s.metrics.IncTierHit(ref.name)
		}
		s.promote(ctx, chain, i, identifier, entry)
		return true, failures
	}

	return false, failures
}

// promote writes a fact discovered at chain[hitIdx] into every faster tier,
// carrying the remaining TTL so promotion never extends a record's life.
func (s *RevocationService) promote(ctx context.Context, chain [tierCount]tierRef, hitIdx int, key string, entry *port.TierEntry) {
	remaining := s.defaultTTL
	if !entry.ExpiresAt.IsZero() {
		remaining = entry.ExpiresAt.Sub(s.now())
		if remaining <= 0 {
			return
		}
	}

	for i := 0; i < hitIdx; i++ {
		ref := chain[i]
		if err := s.putTier(ctx, ref.tier, ref.name, key, entry.Value, remaining); err != nil {
			s.logger.Warn("tier promotion failed",
				zap.String("tier", ref.name),
				zap.String("identifier", logger.MaskToken(key)),
				zap.Error(err),
			)
		}
	}
}

// lookupUserMarker checks the hot tier then the durable tier. The membership
// tier never holds markers.
func (s *RevocationService) lookupUserMarker(ctx context.Context, userID string) (*domain.UserRevocationMarker, bool) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false
	}
	key := domain.UserMarkerKey(userID)

	hotRef := tierRef{tier: s.hot, name: tierHot, timeout: s.timeouts.Hot}
	if entry, err := s.getTier(ctx, hotRef, key); err == nil && entry != nil {
		if marker, err := domain.DecodeUserRevocationMarker(entry.Value); err == nil {
			return marker, true
		}
	}

	durableRef := tierRef{tier: s.durable, name: tierDurable, timeout: s.timeouts.Durable}
	entry, err := s.getTier(ctx, durableRef, key)
	if err != nil {
		s.logger.Warn("durable marker read failed", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	if entry == nil {
		return nil, false
	}

	marker, err := domain.DecodeUserRevocationMarker(entry.Value)
	if err != nil {
		s.logger.Warn("corrupt user marker payload", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}

	remaining := s.defaultTTL
	if !entry.ExpiresAt.IsZero() {
		remaining = entry.ExpiresAt.Sub(s.now())
	}
	if remaining > 0 {
		if err := s.putTier(ctx, s.hot, tierHot, key, entry.Value, remaining); err != nil {
			s.logger.Warn("marker promotion failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return marker, true
}

func (s *RevocationService) getTier(ctx context.Context, ref tierRef, key string) (*port.TierEntry, error) {
	tctx, cancel := context.WithTimeout(ctx, ref.timeout)
	defer cancel()
	return ref.tier.Get(tctx, key)
}

func (s *RevocationService) putTier(ctx context.Context, tier port.Tier, name string, key, value string, ttl time.Duration) error {
	timeout := s.timeouts.Durable
	switch name {
	case tierHot:
		timeout = s.timeouts.Hot
	case tierMembership:
		timeout = s.timeouts.Membership
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return tier.Put(tctx, key, value, ttl)
}

// appendAudit delivers an audit entry, swallowing failures: the audit sink is
// best-effort and must never fail the originating call.
func (s *RevocationService) appendAudit(entry domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("user_id", entry.UserID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

func (s *RevocationService) countCheck(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCheck(outcome)
	}
}
