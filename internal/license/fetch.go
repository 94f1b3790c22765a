package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
)

const (
	// Per-attempt bound on the authority request.
	requestTimeout = 5 * time.Second

	// Retry schedule for retryable HTTP statuses: 1s, 2s, 4s.
	maxRetries   = 3
	retryWaitMin = 1 * time.Second
	retryWaitMax = 4 * time.Second

	// Gathering usage context slower than this indicates collaborator
	// slowness and is logged as a warning.
	usageGatherWarnAfter = 1 * time.Second
)

// UsageProvider supplies the usage counter sent to the authority.
type UsageProvider interface {
	// ResponsesThisYear returns the number of survey responses recorded in
	// the current calendar year.
	ResponsesThisYear(ctx context.Context) (int, error)
}

// InstanceProvider supplies the opaque stable identity of this deployment.
// An empty string means no identity is available.
type InstanceProvider interface {
	InstanceID(ctx context.Context) (string, error)
}

// checkRequest is the wire format of a verification request.
type checkRequest struct {
	LicenseKey string     `json:"licenseKey"`
	Usage      checkUsage `json:"usage"`
	InstanceID string     `json:"instanceId,omitempty"`
}

type checkUsage struct {
	ResponseCount int `json:"responseCount"`
}

// FetcherConfig carries the collaborators and knobs for a Fetcher. Optional
// values (proxy, build phase) are explicit here rather than ambient lookups
// so the fetcher is independently testable.
type FetcherConfig struct {
	Endpoint   string
	LicenseKey string
	ProxyURL   string
	BuildPhase bool

	Usage    UsageProvider
	Instance InstanceProvider
	Logger   *slog.Logger
	Metrics  *Metrics

	// Test overrides; zero values select the production constants.
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	RequestTimeout time.Duration
}

// Fetcher performs one verification cycle against the license authority:
// bounded-timeout POST, retry with exponential backoff on retryable
// statuses, response validation. Ordinary operational failures resolve to a
// nil outcome, never an error; only schema violations propagate.
type Fetcher struct {
	endpoint   string
	licenseKey string
	buildPhase bool
	client     *retryablehttp.Client
	usage      UsageProvider
	instance   InstanceProvider
	logger     *slog.Logger
	metrics    *Metrics
}

// NewFetcher constructs a Fetcher. An unparseable proxy URL is fatal
// misconfiguration and aborts construction; everything else is deferred to
// fetch time.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid license proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = requestTimeout
	}
	waitMin := cfg.RetryWaitMin
	if waitMin == 0 {
		waitMin = retryWaitMin
	}
	waitMax := cfg.RetryWaitMax
	if waitMax == 0 {
		waitMax = retryWaitMax
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Timeout: timeout, Transport: transport}
	client.RetryMax = maxRetries
	client.RetryWaitMin = waitMin
	client.RetryWaitMax = waitMax
	client.Backoff = retryablehttp.DefaultBackoff
	client.CheckRetry = checkRetry
	client.Logger = nil

	return &Fetcher{
		endpoint:   cfg.Endpoint,
		licenseKey: cfg.LicenseKey,
		buildPhase: cfg.BuildPhase,
		client:     client,
		usage:      cfg.Usage,
		instance:   cfg.Instance,
		logger:     logger.With(slog.String("component", "license_fetcher")),
		metrics:    cfg.Metrics,
	}, nil
}

// checkRetry retries only the explicitly retryable HTTP statuses. Network
// level failures (DNS, connection reset, timeout) are assumed to persist
// within the same check cycle and are not retried.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, err
	}
	return isRetryableStatus(resp.StatusCode), nil
}

// fetch performs one verification attempt cycle. It returns (nil, nil) when
// no fresh data could be obtained: missing key, build phase, missing
// instance identity, network failure, terminal HTTP status, or retry
// exhaustion. A malformed 2xx body returns a *SchemaError.
func (f *Fetcher) fetch(ctx context.Context) (*VerificationOutcome, error) {
	if f.licenseKey == "" {
		return nil, nil
	}
	if f.buildPhase {
		f.logger.DebugContext(ctx, "skipping license verification during build phase")
		return nil, nil
	}

	responseCount, instanceID := f.gatherUsageContext(ctx)
	if instanceID == "" {
		f.logger.WarnContext(ctx, "license verification skipped",
			slog.String("reason", ErrNoInstanceIdentity.Error()))
		return nil, nil
	}

	payload, err := json.Marshal(checkRequest{
		LicenseKey: f.licenseKey,
		Usage:      checkUsage{ResponseCount: responseCount},
		InstanceID: instanceID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal license check request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build license check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	f.metrics.addAuthorityRequest(ctx)
	resp, err := f.client.Do(req)
	if err != nil {
		// Network failure or retry exhaustion. The caller still gets an
		// answer from the fallback chain.
		f.metrics.addAuthorityFailure(ctx)
		f.logger.WarnContext(ctx, "license authority unreachable",
			slog.String("error", err.Error()))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.metrics.addAuthorityFailure(ctx)
		statusErr := &APIStatusError{StatusCode: resp.StatusCode}
		f.logger.WarnContext(ctx, "license verification rejected",
			slog.Int("status_code", resp.StatusCode),
			slog.Bool("retryable", statusErr.Retryable()))
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.metrics.addAuthorityFailure(ctx)
		f.logger.WarnContext(ctx, "failed to read license authority response",
			slog.String("error", err.Error()))
		return nil, nil
	}

	outcome, err := parseVerificationResponse(body)
	if err != nil {
		f.metrics.addAuthorityFailure(ctx)
		return nil, err
	}

	return outcome, nil
}

// gatherUsageContext fetches the usage counter and the instance identity
// concurrently. Counter failures degrade to zero; identity failures degrade
// to the empty string, which the caller treats as "cannot attribute".
func (f *Fetcher) gatherUsageContext(ctx context.Context) (responseCount int, instanceID string) {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := f.usage.ResponsesThisYear(gctx)
		if err != nil {
			f.logger.WarnContext(gctx, "usage counter unavailable, reporting zero",
				slog.String("error", err.Error()))
			return nil
		}
		responseCount = count
		return nil
	})
	g.Go(func() error {
		id, err := f.instance.InstanceID(gctx)
		if err != nil {
			f.logger.WarnContext(gctx, "instance identity unavailable",
				slog.String("error", err.Error()))
			return nil
		}
		instanceID = id
		return nil
	})
	_ = g.Wait()

	if elapsed := time.Since(start); elapsed > usageGatherWarnAfter {
		f.logger.WarnContext(ctx, "usage context gathering was slow",
			slog.Duration("elapsed", elapsed))
	}

	return responseCount, instanceID
}
