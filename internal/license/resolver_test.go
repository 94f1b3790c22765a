package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entryAt(status VerificationStatus, storedAt time.Time) *CacheEntry {
	return &CacheEntry{
		Outcome: VerificationOutcome{
			Status:   status,
			Features: FeatureSet{SSO: true, Projects: Quota{Limit: 3}},
		},
		StoredAt: storedAt,
	}
}

func TestResolveFallbackNoLicense(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	result := resolveFallback(resolveInput{hasKey: false, now: now})

	assert.False(t, result.Active)
	assert.Nil(t, result.Features)
	assert.Equal(t, FallbackDefault, result.FallbackLevel)
	assert.Equal(t, ResultNoLicense, result.Status)
}

func TestResolveFallbackLiveActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fresh := entryAt(StatusVerifiedActive, now.Add(-time.Hour))

	result := resolveFallback(resolveInput{hasKey: true, fresh: fresh, now: now})

	assert.True(t, result.Active)
	assert.Equal(t, FallbackLive, result.FallbackLevel)
	assert.Equal(t, ResultActive, result.Status)
	assert.Equal(t, fresh.StoredAt, result.LastChecked)
	assert.False(t, result.IsPendingDowngrade)
	assert.True(t, result.Features.SSO)
}

func TestResolveFallbackLiveExpiredWithinGrace(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fresh := entryAt(StatusVerifiedExpired, now.Add(-time.Hour))

	result := resolveFallback(resolveInput{
		hasKey:       true,
		fresh:        fresh,
		expiredSince: now.Add(-GracePeriod + time.Hour),
		now:          now,
	})

	assert.True(t, result.Active)
	assert.True(t, result.IsPendingDowngrade)
	assert.Equal(t, FallbackLive, result.FallbackLevel)
	assert.Equal(t, ResultExpired, result.Status)
	assert.NotNil(t, result.Features)
}

func TestResolveFallbackLiveExpiredBeyondGrace(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fresh := entryAt(StatusVerifiedExpired, now.Add(-time.Hour))

	result := resolveFallback(resolveInput{
		hasKey:       true,
		fresh:        fresh,
		expiredSince: now.Add(-GracePeriod - time.Minute),
		now:          now,
	})

	assert.False(t, result.Active)
	assert.False(t, result.IsPendingDowngrade)
	assert.Equal(t, ResultExpired, result.Status)
	assert.Nil(t, result.Features)
}

func TestResolveFallbackTierProgression(t *testing.T) {
	storedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	previous := entryAt(StatusVerifiedActive, storedAt)

	tests := []struct {
		name           string
		age            time.Duration
		wantLevel      FallbackLevel
		wantActive     bool
		wantDowngrade  bool
		wantStatus     ResultStatus
		wantNilFeature bool
	}{
		{
			name:       "within previous ttl serves cached",
			age:        PreviousTTL - time.Second,
			wantLevel:  FallbackCached,
			wantActive: true,
			wantStatus: ResultActive,
		},
		{
			name:          "past previous ttl enters grace",
			age:           PreviousTTL + time.Second,
			wantLevel:     FallbackGrace,
			wantActive:    true,
			wantDowngrade: true,
			wantStatus:    ResultActive,
		},
		{
			name:          "last instant of grace still grants",
			age:           PreviousTTL + GracePeriod - time.Second,
			wantLevel:     FallbackGrace,
			wantActive:    true,
			wantDowngrade: true,
			wantStatus:    ResultActive,
		},
		{
			name:           "past grace defaults to unreachable",
			age:            PreviousTTL + GracePeriod + time.Second,
			wantLevel:      FallbackDefault,
			wantActive:     false,
			wantStatus:     ResultUnreachable,
			wantNilFeature: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := resolveFallback(resolveInput{
				hasKey:   true,
				previous: previous,
				now:      storedAt.Add(tt.age),
			})

			assert.Equal(t, tt.wantLevel, result.FallbackLevel)
			assert.Equal(t, tt.wantActive, result.Active)
			assert.Equal(t, tt.wantDowngrade, result.IsPendingDowngrade)
			assert.Equal(t, tt.wantStatus, result.Status)
			if tt.wantNilFeature {
				assert.Nil(t, result.Features)
			} else {
				assert.NotNil(t, result.Features)
			}
			assert.Equal(t, storedAt, result.LastChecked)
		})
	}
}

func TestResolveFallbackNoSignalAtAll(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	result := resolveFallback(resolveInput{hasKey: true, now: now})

	assert.False(t, result.Active)
	assert.Equal(t, FallbackDefault, result.FallbackLevel)
	assert.Equal(t, ResultUnreachable, result.Status)
	assert.True(t, result.LastChecked.IsZero())
}

func TestResolveFallbackCachedExpiredOutcome(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	previous := entryAt(StatusVerifiedExpired, now.Add(-time.Hour))

	result := resolveFallback(resolveInput{hasKey: true, previous: previous, now: now})

	// A cached expired verdict is reused as-is.
	assert.False(t, result.Active)
	assert.Equal(t, FallbackCached, result.FallbackLevel)
	assert.Equal(t, ResultExpired, result.Status)
}

func TestFallbackWindowInvariants(t *testing.T) {
	assert.Greater(t, PreviousTTL, GracePeriod)
	assert.Greater(t, GracePeriod, time.Duration(0))
	assert.GreaterOrEqual(t, PreviousTTL, FetchTTL)
}
