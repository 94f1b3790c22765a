// Package license implements enterprise license resolution for Formlens.
//
// The package verifies the configured license key against the remote license
// authority, caches verified results in memory with a two-tier TTL scheme
// (fresh verification plus a longer-lived last-known-good slot), coalesces
// concurrent verification attempts into a single in-flight request, and
// degrades gracefully when the authority is unreachable:
//
//	live -> cached -> grace -> default
//
// Resolve never fails from the caller's point of view; operational failures
// (timeouts, retryable HTTP statuses, malformed responses) are absorbed into
// the fallback chain and surfaced through LicenseResult.FallbackLevel.
package license
