package license

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ServiceConfig carries everything a Service needs. Collaborators are
// injected explicitly; there are no ambient lookups.
type ServiceConfig struct {
	// LicenseKey is the configured secret. Empty means the deployment runs
	// without a license, which is a valid terminal state, not an error.
	LicenseKey string
	// Endpoint is the authority URL verification requests are POSTed to.
	Endpoint string
	// ProxyURL optionally routes authority traffic through an HTTP proxy.
	ProxyURL string
	// Disabled switches license enforcement off entirely: every feature is
	// granted and the authority is never contacted.
	Disabled bool
	// BuildPhase short-circuits verification during build/provisioning.
	BuildPhase bool

	Usage    UsageProvider
	Instance InstanceProvider
	Logger   *slog.Logger
	Metrics  *Metrics

	// Test overrides; zero values select the production behavior.
	Now            func() time.Time
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	RequestTimeout time.Duration
}

// Service is the license resolution engine exposed to the rest of the
// application. It is safe for concurrent use; regardless of caller fan-in at
// most one verification request is in flight per license key.
type Service struct {
	disabled bool
	hasKey   bool
	cacheKey string

	fetcher *Fetcher
	cache   *resultCache
	group   singleflight.Group
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	mu sync.Mutex
	// expiredSince records when an authoritative "expired" verdict was
	// first observed, anchoring the live grace window.
	expiredSince time.Time
}

// NewService constructs the license service. Construction fails only on
// fatal misconfiguration (an unparseable proxy URL).
func NewService(cfg ServiceConfig) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	fetcher, err := NewFetcher(FetcherConfig{
		Endpoint:       cfg.Endpoint,
		LicenseKey:     cfg.LicenseKey,
		ProxyURL:       cfg.ProxyURL,
		BuildPhase:     cfg.BuildPhase,
		Usage:          cfg.Usage,
		Instance:       cfg.Instance,
		Logger:         logger,
		Metrics:        cfg.Metrics,
		RetryWaitMin:   cfg.RetryWaitMin,
		RetryWaitMax:   cfg.RetryWaitMax,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		disabled: cfg.Disabled,
		hasKey:   cfg.LicenseKey != "",
		cacheKey: cacheIdentity(cfg.LicenseKey),
		fetcher:  fetcher,
		cache:    newResultCache(now),
		logger:   logger.With(slog.String("component", "license_service")),
		metrics:  cfg.Metrics,
		now:      now,
	}, nil
}

// cacheIdentity derives the cache and single-flight key from the license
// key. Only the hash ever leaves the configuration; the key itself is never
// logged or used as a map key.
func cacheIdentity(licenseKey string) string {
	sum := sha256.Sum256([]byte(licenseKey))
	return hex.EncodeToString(sum[:])
}

// Resolve answers whether the deployment holds a valid license and which
// feature set it unlocks. It never fails from the caller's point of view:
// operational failures degrade through the fallback chain and are reported
// via FallbackLevel and Status. Safe for high-concurrency call sites; the
// worst-case latency is bounded by the fetcher's timeout and retry budget.
func (s *Service) Resolve(ctx context.Context) LicenseResult {
	if s.disabled {
		result := LicenseResult{
			Active:        true,
			Features:      allFeaturesEnabled(),
			LastChecked:   s.now(),
			FallbackLevel: FallbackLive,
			Status:        ResultActive,
		}
		s.metrics.addResolution(ctx, result)
		return result
	}

	if !s.hasKey {
		result := resolveFallback(resolveInput{hasKey: false, now: s.now()})
		s.metrics.addResolution(ctx, result)
		return result
	}

	fresh := s.freshEntry(ctx)

	in := resolveInput{
		hasKey:       true,
		fresh:        fresh,
		expiredSince: s.trackExpiry(fresh),
		now:          s.now(),
	}
	if previous, ok := s.cache.Previous(s.cacheKey); ok {
		in.previous = &previous
	}

	result := resolveFallback(in)
	s.metrics.addResolution(ctx, result)
	return result
}

// Features returns the entitlements unlocked by the current license, or nil
// when no feature set is available. Convenience accessor for callers that
// do not need status metadata.
func (s *Service) Features(ctx context.Context) *FeatureSet {
	result := s.Resolve(ctx)
	return result.Features
}

// InvalidateCache drops the fresh verification slot so the next Resolve
// contacts the authority. The last known good slot is kept for fallback.
func (s *Service) InvalidateCache() {
	s.cache.Invalidate(s.cacheKey)
}

// freshEntry returns the fresh-within-TTL cache entry, fetching through the
// single-flight group when the slot is stale. Concurrent callers join the
// in-flight attempt and share its outcome and its abort boundary.
func (s *Service) freshEntry(ctx context.Context) *CacheEntry {
	var fetched bool
	v, err, _ := s.group.Do(s.cacheKey, func() (interface{}, error) {
		return s.cache.WithFresh(s.cacheKey, FetchTTL, func() (*VerificationOutcome, error) {
			fetched = true
			return s.fetcher.fetch(ctx)
		})
	})

	if fetched {
		s.metrics.addCacheMiss(ctx)
	} else {
		s.metrics.addCacheHit(ctx)
	}

	if err != nil {
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			// Contract defect between client and authority; surface loudly
			// but keep answering from fallback.
			s.logger.ErrorContext(ctx, "license authority response failed validation",
				slog.String("error", schemaErr.Error()))
		} else {
			s.logger.ErrorContext(ctx, "license verification failed",
				slog.String("error", err.Error()))
		}
		return nil
	}

	entry, _ := v.(*CacheEntry)
	return entry
}

// trackExpiry anchors the grace window at the instant an expired verdict is
// first observed and clears it as soon as the authority reports active
// again.
func (s *Service) trackExpiry(fresh *CacheEntry) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fresh != nil {
		switch fresh.Outcome.Status {
		case StatusVerifiedActive:
			s.expiredSince = time.Time{}
		case StatusVerifiedExpired:
			if s.expiredSince.IsZero() {
				s.expiredSince = s.now()
			}
		}
	}
	return s.expiredSince
}
