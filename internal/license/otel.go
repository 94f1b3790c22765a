package license

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName identifies this package's instruments.
const MeterName = "license-resolver"

// Metrics holds the license resolver's OpenTelemetry instruments. A nil
// *Metrics is valid and records nothing, so callers can run unmetered.
type Metrics struct {
	Resolutions       metric.Int64Counter
	AuthorityRequests metric.Int64Counter
	AuthorityFailures metric.Int64Counter
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
}

// NewMetrics creates the resolver instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.Resolutions, err = meter.Int64Counter("license_resolutions_total",
		metric.WithDescription("License resolutions by fallback level and status")); err != nil {
		return nil, err
	}
	if m.AuthorityRequests, err = meter.Int64Counter("license_authority_requests_total",
		metric.WithDescription("Verification requests issued to the license authority")); err != nil {
		return nil, err
	}
	if m.AuthorityFailures, err = meter.Int64Counter("license_authority_failures_total",
		metric.WithDescription("Verification requests that produced no fresh outcome")); err != nil {
		return nil, err
	}
	if m.CacheHits, err = meter.Int64Counter("license_cache_hits_total",
		metric.WithDescription("Resolutions answered from the fresh cache slot")); err != nil {
		return nil, err
	}
	if m.CacheMisses, err = meter.Int64Counter("license_cache_misses_total",
		metric.WithDescription("Resolutions that invoked the fetcher")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) addResolution(ctx context.Context, result LicenseResult) {
	if m == nil || m.Resolutions == nil {
		return
	}
	m.Resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("fallback_level", string(result.FallbackLevel)),
		attribute.String("status", string(result.Status)),
	))
}

func (m *Metrics) addAuthorityRequest(ctx context.Context) {
	if m == nil || m.AuthorityRequests == nil {
		return
	}
	m.AuthorityRequests.Add(ctx, 1)
}

func (m *Metrics) addAuthorityFailure(ctx context.Context) {
	if m == nil || m.AuthorityFailures == nil {
		return
	}
	m.AuthorityFailures.Add(ctx, 1)
}

func (m *Metrics) addCacheHit(ctx context.Context) {
	if m == nil || m.CacheHits == nil {
		return
	}
	m.CacheHits.Add(ctx, 1)
}

func (m *Metrics) addCacheMiss(ctx context.Context) {
	if m == nil || m.CacheMisses == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1)
}
