package license

import "time"

// VerificationStatus is the validity verdict returned by the authority.
type VerificationStatus string

const (
	StatusVerifiedActive  VerificationStatus = "active"
	StatusVerifiedExpired VerificationStatus = "expired"
)

// VerificationOutcome is the payload of one successful remote check. It
// carries no timestamp itself; storage time is cache metadata.
type VerificationOutcome struct {
	Status   VerificationStatus `json:"status"`
	Features FeatureSet         `json:"features"`
}

// FallbackLevel identifies which tier of the fallback chain produced a
// LicenseResult.
type FallbackLevel string

const (
	FallbackLive    FallbackLevel = "live"
	FallbackCached  FallbackLevel = "cached"
	FallbackGrace   FallbackLevel = "grace"
	FallbackDefault FallbackLevel = "default"
)

// ResultStatus is the externally visible license state.
type ResultStatus string

const (
	ResultActive      ResultStatus = "active"
	ResultExpired     ResultStatus = "expired"
	ResultUnreachable ResultStatus = "unreachable"
	ResultNoLicense   ResultStatus = "no-license"
)

// LicenseResult is the only license type other application code may depend
// on. It is synthesized fresh on every Resolve call and never cached itself.
type LicenseResult struct {
	Active             bool          `json:"active"`
	Features           *FeatureSet   `json:"features,omitempty"`
	LastChecked        time.Time     `json:"last_checked"`
	IsPendingDowngrade bool          `json:"is_pending_downgrade"`
	FallbackLevel      FallbackLevel `json:"fallback_level"`
	Status             ResultStatus  `json:"status"`
}
