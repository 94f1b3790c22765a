package license

import "time"

// Cache and fallback windows. PreviousTTL > GracePeriod > 0 and
// PreviousTTL >= FetchTTL, so the last-known-good slot always outlives the
// fresh slot and the grace window is strictly contained within the
// retention window. A previously licensed deployment loses entitlement only
// after the authority has been unreachable for PreviousTTL + GracePeriod.
const (
	FetchTTL    = 24 * time.Hour
	PreviousTTL = 4 * 24 * time.Hour
	GracePeriod = 3 * 24 * time.Hour
)

// resolveInput is the freshest available signal for one resolution.
type resolveInput struct {
	// hasKey is false when no license key is configured at all.
	hasKey bool
	// fresh is the entry produced or served within FetchTTL, nil when the
	// authority could not be reached this cycle.
	fresh *CacheEntry
	// previous is the last known good entry regardless of age.
	previous *CacheEntry
	// expiredSince is when an authoritative "expired" verdict was first
	// observed; zero if the last verdict was active.
	expiredSince time.Time
	now          time.Time
}

// resolveFallback turns the freshest available signal into the externally
// visible license result. Pure function: decision order is
// no-license -> live -> cached -> grace -> default.
func resolveFallback(in resolveInput) LicenseResult {
	if !in.hasKey {
		return LicenseResult{
			Active:        false,
			FallbackLevel: FallbackDefault,
			Status:        ResultNoLicense,
		}
	}

	if in.fresh != nil {
		return resolveLive(in)
	}

	if in.previous != nil {
		age := in.previous.Age(in.now)
		if age < PreviousTTL {
			features := in.previous.Outcome.Features
			return LicenseResult{
				Active:        in.previous.Outcome.Status == StatusVerifiedActive,
				Features:      &features,
				LastChecked:   in.previous.StoredAt,
				FallbackLevel: FallbackCached,
				Status:        resultStatus(in.previous.Outcome.Status),
			}
		}
		if age < PreviousTTL+GracePeriod {
			features := in.previous.Outcome.Features
			return LicenseResult{
				Active:             true,
				Features:           &features,
				LastChecked:        in.previous.StoredAt,
				IsPendingDowngrade: true,
				FallbackLevel:      FallbackGrace,
				Status:             resultStatus(in.previous.Outcome.Status),
			}
		}
	}

	result := LicenseResult{
		Active:        false,
		FallbackLevel: FallbackDefault,
		Status:        ResultUnreachable,
	}
	if in.previous != nil {
		result.LastChecked = in.previous.StoredAt
	}
	return result
}

// resolveLive handles a verification outcome obtained within FetchTTL. An
// authoritative "expired" verdict still grants access while the grace
// window, measured from when expiry was first observed, has not elapsed;
// the result is flagged as a pending downgrade.
func resolveLive(in resolveInput) LicenseResult {
	outcome := in.fresh.Outcome
	features := outcome.Features

	result := LicenseResult{
		LastChecked:   in.fresh.StoredAt,
		FallbackLevel: FallbackLive,
		Status:        resultStatus(outcome.Status),
	}

	if outcome.Status == StatusVerifiedActive {
		result.Active = true
		result.Features = &features
		return result
	}

	if !in.expiredSince.IsZero() && in.now.Sub(in.expiredSince) < GracePeriod {
		result.Active = true
		result.Features = &features
		result.IsPendingDowngrade = true
		return result
	}

	result.Active = false
	return result
}

func resultStatus(s VerificationStatus) ResultStatus {
	if s == StatusVerifiedActive {
		return ResultActive
	}
	return ResultExpired
}
