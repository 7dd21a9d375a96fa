package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/infra/security"
)

type testEnv struct {
	service    *RevocationService
	hot        *stubTier
	membership *stubTier
	durable    *stubTier
	audit      *stubAuditLog
	events     *stubEventPublisher
	now        time.Time
}

func newTestEnv(t *testing.T, mode domain.DegradationPolicyMode) *testEnv {
	t.Helper()

	env := &testEnv{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }

	env.hot = newStubTier(clock)
	env.membership = newStubTier(clock)
	env.durable = newStubTier(clock)
	env.audit = &stubAuditLog{}
	env.events = &stubEventPublisher{}

	service, err := NewRevocationService(RevocationServiceDeps{
		Hot:        env.hot,
		Membership: env.membership,
		Durable:    env.durable,
		Identity:   security.NewIdentityExtractor(nil),
		Audit:      env.audit,
		Events:     env.events,
		Policy:     domain.NewDegradationPolicy(mode),
		DefaultTTL: 30 * 24 * time.Hour,
		Timeouts: TierTimeouts{
			Hot:        time.Second,
			Membership: time.Second,
			Durable:    time.Second,
		},
	})
	if err != nil {
		t.Fatalf("NewRevocationService returned error: %v", err)
	}

	env.service = service.WithClock(clock)
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func issueToken(t *testing.T, subject string, issuedAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:       subject + "-" + issuedAt.Format("150405"),
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(issuedAt),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestRevokeMakesCredentialRevoked(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	if err := env.service.Revoke(ctx, "tok-a", RevokeOptions{Reason: domain.ReasonLogout}); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	if !env.service.IsRevoked(ctx, "tok-a", false) {
		t.Fatalf("expected tok-a to be revoked")
	}
	if env.service.IsRevoked(ctx, "tok-b", false) {
		t.Fatalf("expected tok-b to remain valid")
	}

	identifier := security.HashToken("tok-a")
	if !env.hot.has(identifier) || !env.membership.has(identifier) || !env.durable.has(identifier) {
		t.Fatalf("expected all three tiers to hold the revocation")
	}

	put, ok := env.membership.lastPut()
	if !ok {
		t.Fatalf("expected a membership tier write")
	}
	if put.value != "" {
		t.Fatalf("membership tier must store presence only, got payload %q", put.value)
	}

	env.events.mu.Lock()
	tokenEvents := len(env.events.tokenEvents)
	env.events.mu.Unlock()
	if tokenEvents != 1 {
		t.Fatalf("expected 1 token revoked event, got %d", tokenEvents)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := env.service.Revoke(ctx, "tok-a", RevokeOptions{Reason: domain.ReasonLogout}); err != nil {
			t.Fatalf("Revoke attempt %d returned error: %v", i+1, err)
		}
	}

	if !env.service.IsRevoked(ctx, "tok-a", false) {
		t.Fatalf("expected tok-a to stay revoked after repeated revocation")
	}
}

func TestRevokeRejectsUnknownReason(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	err := env.service.Revoke(ctx, "tok-a", RevokeOptions{Reason: domain.Reason("banana")})
	if !errors.Is(err, domain.ErrInvalidReason) {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}

	if env.hot.putCount() != 0 || env.membership.putCount() != 0 || env.durable.putCount() != 0 {
		t.Fatalf("expected no tier writes after a rejected revocation")
	}
	if count := env.service.Stats().RevocationCount; count != 0 {
		t.Fatalf("expected revocation count to stay 0, got %d", count)
	}
}

func TestRevokeByIdentifierRequiresJTI(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	if err := env.service.RevokeByIdentifier(ctx, "  ", RevokeOptions{Reason: domain.ReasonLogout}); err == nil {
		t.Fatalf("expected error for blank jti")
	}

	if err := env.service.RevokeByIdentifier(ctx, "jti-1", RevokeOptions{Reason: domain.ReasonSessionRevoked}); err != nil {
		t.Fatalf("RevokeByIdentifier returned error: %v", err)
	}
	if !env.service.IsRevokedByIdentifier(ctx, "jti-1") {
		t.Fatalf("expected jti-1 to be revoked")
	}
}

func TestRevokeSurfacesHotTierWriteFailure(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	env.hot.putErr = errors.New("hot tier full")

	err := env.service.Revoke(context.Background(), "tok-a", RevokeOptions{Reason: domain.ReasonLogout})
	if err == nil {
		t.Fatalf("expected error when the hot tier write fails")
	}

	if env.membership.putCount() != 0 || env.durable.putCount() != 0 {
		t.Fatalf("expected no slower tier writes after a hot tier failure")
	}
	if count := env.service.Stats().RevocationCount; count != 0 {
		t.Fatalf("expected revocation count to stay 0, got %d", count)
	}
}

func TestRevokeAllForUserCoversOlderTokensOnly(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	oldToken := issueToken(t, "user-1", env.now.Add(-10*time.Minute))
	newToken := issueToken(t, "user-1", env.now.Add(10*time.Minute))

	if err := env.service.RevokeAllForUser(ctx, "user-1", MassRevokeOptions{Reason: domain.ReasonPasswordChange}); err != nil {
		t.Fatalf("RevokeAllForUser returned error: %v", err)
	}

	if !env.service.IsRevoked(ctx, oldToken, true) {
		t.Fatalf("expected token issued before the cutoff to be revoked")
	}
	if env.service.IsRevoked(ctx, newToken, true) {
		t.Fatalf("expected token issued after the cutoff to remain valid")
	}

	// Without the marker check the per-token tiers have no fact to report.
	if env.service.IsRevoked(ctx, oldToken, false) {
		t.Fatalf("expected marker to be ignored when the check is disabled")
	}

	// Markers are keyed per user, never per token.
	if env.membership.putCount() != 0 {
		t.Fatalf("expected the membership tier to be skipped for mass revocation")
	}

	if env.audit.count() != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", env.audit.count())
	}

	env.events.mu.Lock()
	userEvents := len(env.events.userEvents)
	env.events.mu.Unlock()
	if userEvents != 1 {
		t.Fatalf("expected 1 user revoked event, got %d", userEvents)
	}
}

func TestUserRevokedBefore(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	if _, found := env.service.UserRevokedBefore(ctx, "user-1"); found {
		t.Fatalf("expected no marker before mass revocation")
	}

	if err := env.service.RevokeAllForUser(ctx, "user-1", MassRevokeOptions{Reason: domain.ReasonAccountDeleted}); err != nil {
		t.Fatalf("RevokeAllForUser returned error: %v", err)
	}

	cutoff, found := env.service.UserRevokedBefore(ctx, "user-1")
	if !found {
		t.Fatalf("expected marker after mass revocation")
	}
	if !cutoff.Equal(env.now) {
		t.Fatalf("expected cutoff %v, got %v", env.now, cutoff)
	}
}

func TestLookupPromotesDurableHitsForward(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	record := domain.RevocationRecord{
		Identifier: "jti-x",
		Reason:     domain.ReasonSecurityBreach,
		RevokedAt:  env.now.Add(-time.Minute),
		TTL:        11 * time.Minute,
	}
	payload, err := record.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	env.durable.seed("jti-x", payload, env.now.Add(10*time.Minute))

	if !env.service.IsRevokedByIdentifier(ctx, "jti-x") {
		t.Fatalf("expected durable fact to be reported")
	}

	if !env.hot.has("jti-x") || !env.membership.has("jti-x") {
		t.Fatalf("expected the fact to be promoted into the faster tiers")
	}

	// Promotion carries the remaining lifetime, never a fresh TTL.
	put, ok := env.hot.lastPut()
	if !ok {
		t.Fatalf("expected a hot tier write from promotion")
	}
	if put.ttl != 10*time.Minute {
		t.Fatalf("expected promoted ttl of 10m, got %v", put.ttl)
	}

	durableReads := env.durable.getCount()
	if !env.service.IsRevokedByIdentifier(ctx, "jti-x") {
		t.Fatalf("expected repeated check to stay revoked")
	}
	if env.durable.getCount() != durableReads {
		t.Fatalf("expected the repeated check to be served by the hot tier")
	}
}

func TestRevocationExpiresWithTTL(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	opts := RevokeOptions{Reason: domain.ReasonTokenRefresh, TTL: time.Minute}
	if err := env.service.Revoke(ctx, "tok-a", opts); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	if !env.service.IsRevoked(ctx, "tok-a", false) {
		t.Fatalf("expected tok-a to be revoked before the ttl elapses")
	}

	env.advance(2 * time.Minute)

	if env.service.IsRevoked(ctx, "tok-a", false) {
		t.Fatalf("expected tok-a to age out after the ttl elapses")
	}
}

func TestDegradedChecksFollowPolicy(t *testing.T) {
	down := errors.New("storage unreachable")

	lenient := newTestEnv(t, domain.DegradationPolicyModeLenient)
	lenient.hot.getErr = down
	lenient.membership.getErr = down
	lenient.durable.getErr = down
	if lenient.service.IsRevokedByIdentifier(context.Background(), "jti-x") {
		t.Fatalf("expected lenient policy to fail open")
	}

	strict := newTestEnv(t, domain.DegradationPolicyModeStrict)
	strict.hot.getErr = down
	strict.membership.getErr = down
	strict.durable.getErr = down
	if !strict.service.IsRevokedByIdentifier(context.Background(), "jti-x") {
		t.Fatalf("expected strict policy to fail closed")
	}
}

func TestPartialTierFailureIsNotDegraded(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeStrict)
	env.durable.getErr = errors.New("redis unreachable")

	// Two of three tiers answered, so strict mode must trust the misses.
	if env.service.IsRevokedByIdentifier(context.Background(), "jti-x") {
		t.Fatalf("expected a partial outage to report not revoked")
	}
}

func TestCleanupSweepsMembershipTier(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	env.membership.seed("expired-jti", "", env.now.Add(-time.Minute))
	env.membership.seed("active-jti", "", env.now.Add(time.Hour))

	if size := env.service.Stats().MembershipTierSize; size != 2 {
		t.Fatalf("expected membership size 2 before cleanup, got %d", size)
	}
	if !env.service.Stats().LastCleanup.IsZero() {
		t.Fatalf("expected last cleanup to be unset before the first run")
	}

	removed, err := env.service.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly 1 removed entry, got %d", removed)
	}

	stats := env.service.Stats()
	if stats.MembershipTierSize != 1 {
		t.Fatalf("expected membership size 1 after cleanup, got %d", stats.MembershipTierSize)
	}
	if !stats.LastCleanup.Equal(env.now) {
		t.Fatalf("expected last cleanup %v, got %v", env.now, stats.LastCleanup)
	}
}

func TestStatsTracksRevocationsAndUptime(t *testing.T) {
	env := newTestEnv(t, domain.DegradationPolicyModeLenient)
	ctx := context.Background()

	if err := env.service.Revoke(ctx, "tok-a", RevokeOptions{Reason: domain.ReasonLogout}); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if err := env.service.RevokeAllForUser(ctx, "user-1", MassRevokeOptions{Reason: domain.ReasonAdminAction}); err != nil {
		t.Fatalf("RevokeAllForUser returned error: %v", err)
	}

	env.advance(time.Hour)

	stats := env.service.Stats()
	if stats.RevocationCount != 2 {
		t.Fatalf("expected revocation count 2, got %d", stats.RevocationCount)
	}
	if stats.Uptime != time.Hour {
		t.Fatalf("expected uptime 1h, got %v", stats.Uptime)
	}
}
