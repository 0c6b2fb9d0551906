package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPerMinuteLimiterDisabled(t *testing.T) {
	require.Nil(t, newPerMinuteLimiter(0, nil), "zero limit disables limiting")
}

func TestPerMinuteLimiterPerKey(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newPerMinuteLimiter(2, func() time.Time { return now })

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"), "third request for a is limited")
	require.True(t, l.Allow("b"), "b has its own bucket")

	now = now.Add(30 * time.Second)
	require.True(t, l.Allow("a"), "one token refilled after 30s")
	require.False(t, l.Allow("a"))
}

func TestPerMinuteLimiterBlankKeysShareBucket(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newPerMinuteLimiter(1, func() time.Time { return now })

	require.True(t, l.Allow(""))
	require.False(t, l.Allow("  "), "blank keys share the anonymous bucket")
}

func TestPerMinuteLimiterPrunesIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newPerMinuteLimiter(1, func() time.Time { return now }).(*tokenBucketLimiter)

	l.Allow("stale")
	now = now.Add(limiterIdleTTL + time.Second)
	l.Allow("fresh")

	require.NotContains(t, l.buckets, "stale")
	require.Len(t, l.buckets, 1)
}
