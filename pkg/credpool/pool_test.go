package credpool

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
)

func testPool(t *testing.T) (*Pool, *MemStore) {
	t.Helper()
	cipher, err := NewSecretCipher("test-passphrase")
	require.NoError(t, err)
	store := NewMemStore()
	pool := New(store, cipher, config.CredentialsConfig{
		ErrorCooldownThreshold: 10,
		CooldownMinutes:        30,
	}, logger.NewNopLogger())
	return pool, store
}

// advanceClock makes the pool's notion of now controllable.
func advanceClock(pool *Pool) func(d time.Duration) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pool.clock = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestAcquireEmptyPool(t *testing.T) {
	pool, _ := testPool(t)
	lease, err := pool.AcquireRotating(context.Background(), "instagram")
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestAcquireNilStore(t *testing.T) {
	cipher, err := NewSecretCipher("p")
	require.NoError(t, err)
	pool := New(nil, cipher, config.CredentialsConfig{}, logger.NewNopLogger())

	lease, err := pool.AcquireRotating(context.Background(), "instagram")
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestAcquireDecryptsSecret(t *testing.T) {
	pool, _ := testPool(t)
	ctx := context.Background()

	_, err := pool.Add(ctx, "instagram", "acct-1", "sessionid=abc123")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "sessionid=abc123", lease.Secret())
	assert.Equal(t, "instagram", lease.Platform())
}

func TestAcquireSideEffects(t *testing.T) {
	pool, store := testPool(t)
	ctx := context.Background()
	tick := advanceClock(pool)

	cred, err := pool.Add(ctx, "instagram", "acct-1", "s")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	require.NotNil(t, lease)

	got, err := store.Get(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UseCount)
	require.NotNil(t, got.LastUsedAt)

	tick(time.Minute)
	_, err = pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	got, _ = store.Get(ctx, cred.ID)
	assert.Equal(t, int64(2), got.UseCount)
}

func TestRotationFairness(t *testing.T) {
	pool, _ := testPool(t)
	ctx := context.Background()
	tick := advanceClock(pool)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := pool.Add(ctx, "tiktok", fmt.Sprintf("acct-%d", i), "secret")
		require.NoError(t, err)
	}

	// Two full rounds: no credential may repeat within a round.
	for round := 0; round < 2; round++ {
		seen := make(map[string]bool)
		for i := 0; i < n; i++ {
			lease, err := pool.AcquireRotating(ctx, "tiktok")
			require.NoError(t, err)
			require.NotNil(t, lease)
			assert.False(t, seen[lease.ID()], "credential %s selected twice in round %d", lease.ID(), round)
			seen[lease.ID()] = true
			lease.ReportSuccess(ctx)
			tick(time.Second)
		}
	}
}

func TestCooldownEscalationAtThreshold(t *testing.T) {
	pool, store := testPool(t)
	ctx := context.Background()
	advanceClock(pool)

	cred, err := pool.Add(ctx, "instagram", "acct-1", "s")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)

	// Nine errors: still healthy.
	for i := 0; i < 9; i++ {
		lease.ReportError(ctx, "fetch failed")
	}
	got, _ := store.Get(ctx, cred.ID)
	assert.Equal(t, StatusHealthy, got.Status)
	assert.Equal(t, int64(9), got.ErrorCount)

	// The tenth tips it into cooldown.
	lease.ReportError(ctx, "fetch failed")
	got, _ = store.Get(ctx, cred.ID)
	assert.Equal(t, StatusCooldown, got.Status)
	require.NotNil(t, got.CooldownUntil)
	assert.True(t, got.CooldownUntil.After(pool.clock()))
}

func TestCooldownReclamation(t *testing.T) {
	pool, store := testPool(t)
	ctx := context.Background()
	tick := advanceClock(pool)

	cred, err := pool.Add(ctx, "instagram", "acct-1", "s")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	lease.ReportCooldown(ctx, 30, "rate limited")

	got, _ := store.Get(ctx, cred.ID)
	require.Equal(t, StatusCooldown, got.Status)

	// Before the cooldown lapses the credential is still selectable only
	// as a last resort; after it lapses it is reclaimed to healthy.
	tick(31 * time.Minute)
	lease2, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	require.NotNil(t, lease2)
	assert.Equal(t, cred.ID, lease2.ID())

	got, _ = store.Get(ctx, cred.ID)
	assert.Equal(t, StatusHealthy, got.Status)
	assert.Nil(t, got.CooldownUntil)
}

func TestHealthyPreferredOverCooldown(t *testing.T) {
	pool, _ := testPool(t)
	ctx := context.Background()
	tick := advanceClock(pool)

	_, err := pool.Add(ctx, "instagram", "cooling", "s1")
	require.NoError(t, err)
	healthy, err := pool.Add(ctx, "instagram", "fresh", "s2")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	lease.ReportCooldown(ctx, 60, "throttled")
	tick(time.Minute)

	for i := 0; i < 3; i++ {
		next, err := pool.AcquireRotating(ctx, "instagram")
		require.NoError(t, err)
		assert.Equal(t, healthy.ID, next.ID(), "healthy credential must win while the other cools down")
		next.ReportSuccess(ctx)
		tick(time.Second)
	}
}

func TestLastResortReclaimsUnexpiredCooldown(t *testing.T) {
	pool, store := testPool(t)
	ctx := context.Background()
	tick := advanceClock(pool)

	cred, err := pool.Add(ctx, "instagram", "only", "s")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	lease.ReportCooldown(ctx, 60, "throttled")
	tick(time.Minute) // cooldown far from lapsing

	next, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	require.NotNil(t, next, "sole credential should be reclaimed as last resort")
	assert.Equal(t, cred.ID, next.ID())

	got, _ := store.Get(ctx, cred.ID)
	assert.Equal(t, StatusHealthy, got.Status)
}

func TestExpiredNeverAutoReclaimed(t *testing.T) {
	pool, _ := testPool(t)
	ctx := context.Background()
	advanceClock(pool)

	_, err := pool.Add(ctx, "instagram", "stale", "s")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	lease.ReportExpired(ctx, "platform rejected session")

	next, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	assert.Nil(t, next, "expired credentials require operator replacement")
}

func TestDisabledExcluded(t *testing.T) {
	pool, _ := testPool(t)
	ctx := context.Background()

	cred, err := pool.Add(ctx, "instagram", "off", "s")
	require.NoError(t, err)
	require.NoError(t, pool.SetEnabled(ctx, cred.ID, false))

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestSuccessCounting(t *testing.T) {
	pool, store := testPool(t)
	ctx := context.Background()

	cred, err := pool.Add(ctx, "twitter", "acct", "s")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "twitter")
	require.NoError(t, err)
	lease.ReportSuccess(ctx)

	got, _ := store.Get(ctx, cred.ID)
	assert.Equal(t, int64(1), got.UseCount)
	assert.Equal(t, int64(1), got.SuccessCount)
	assert.Equal(t, int64(0), got.ErrorCount)
}

func TestPlatformIsolation(t *testing.T) {
	pool, _ := testPool(t)
	ctx := context.Background()

	_, err := pool.Add(ctx, "instagram", "ig", "s")
	require.NoError(t, err)

	lease, err := pool.AcquireRotating(ctx, "tiktok")
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestStats(t *testing.T) {
	pool, _ := testPool(t)
	ctx := context.Background()
	advanceClock(pool)

	for i := 0; i < 3; i++ {
		_, err := pool.Add(ctx, "instagram", fmt.Sprintf("a%d", i), "s")
		require.NoError(t, err)
	}

	lease, err := pool.AcquireRotating(ctx, "instagram")
	require.NoError(t, err)
	lease.ReportSuccess(ctx)
	lease.ReportCooldown(ctx, 30, "throttled")

	stats, err := pool.Stats(ctx, "instagram")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus[StatusHealthy])
	assert.Equal(t, int64(1), stats.ByStatus[StatusCooldown])
	assert.Equal(t, int64(1), stats.UseCount)
	assert.Equal(t, int64(1), stats.SuccessCount)
}

func TestHealthTest(t *testing.T) {
	pool, store := testPool(t)
	ctx := context.Background()

	cred, err := pool.Add(ctx, "instagram", "probe-me", "sessionid=xyz")
	require.NoError(t, err)

	var probed string
	err = pool.HealthTest(ctx, cred.ID, func(ctx context.Context, platform, secret string) error {
		probed = secret
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sessionid=xyz", probed)

	got, _ := store.Get(ctx, cred.ID)
	assert.Equal(t, int64(1), got.SuccessCount)

	err = pool.HealthTest(ctx, cred.ID, func(ctx context.Context, platform, secret string) error {
		return fmt.Errorf("401")
	})
	require.Error(t, err)
	got, _ = store.Get(ctx, cred.ID)
	assert.Equal(t, int64(1), got.ErrorCount)
}
