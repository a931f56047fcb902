package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/infrastructure/resilience"
)

// GenerateFunc issues one classification attempt with a single credential.
type GenerateFunc func(ctx context.Context, prompt, credential string) (string, error)

// AttemptFunc observes each credential attempt as (attempt, total).
type AttemptFunc func(attempt, total int)

// RotatorOptions tunes a Rotator. All fields are optional.
type RotatorOptions struct {
	// Executor retries transient transport failures within a single
	// credential attempt. Quota failures are never retried here; the
	// rotation loop owns those.
	Executor *resilience.Executor
	// Limiter paces outbound attempts against the external service.
	Limiter *rate.Limiter
	// OnAttempt is called before every credential attempt.
	OnAttempt AttemptFunc
}

// Rotator walks the credential set starting at the caller-held cursor.
// A quota failure moves on to the next credential; any other failure aborts
// the call, advancing the cursor past the failed credential so the next call
// does not retry it first.
type Rotator struct {
	generate  GenerateFunc
	executor  *resilience.Executor
	limiter   *rate.Limiter
	onAttempt AttemptFunc
}

func NewRotator(generate GenerateFunc, opts RotatorOptions) *Rotator {
	return &Rotator{
		generate:  generate,
		executor:  opts.Executor,
		limiter:   opts.Limiter,
		onAttempt: opts.OnAttempt,
	}
}

func (r *Rotator) Classify(ctx context.Context, prompt string, creds []string, state domain.RotationState) (string, domain.RotationState, error) {
	n := len(creds)
	if n == 0 {
		return "", state, domain.WrapError(domain.ErrInvalidInput, "classify", errors.New("no credentials configured"))
	}
	state = state.Normalize(n)

	var lastQuota error
	for attempt := 1; attempt <= n; attempt++ {
		idx := (state.Cursor + attempt - 1) % n
		if r.onAttempt != nil {
			r.onAttempt(attempt, n)
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", state, err
			}
		}

		raw, err := r.attempt(ctx, prompt, creds[idx])
		if err == nil {
			return raw, domain.RotationState{Cursor: (idx + 1) % n, Size: n}, nil
		}
		if IsQuotaError(err) {
			lastQuota = err
			slog.Warn("credential_quota_exhausted", "credential", idx+1, "total", n, "error", err)
			continue
		}
		next := domain.RotationState{Cursor: (idx + 1) % n, Size: n}
		return "", next, fmt.Errorf("classification attempt %d/%d: %w", attempt, n, err)
	}

	return "", state, domain.WrapError(
		domain.ErrQuotaExhausted,
		"classify",
		fmt.Errorf("all %d credentials exhausted, last quota error: %v", n, lastQuota),
	)
}

func (r *Rotator) attempt(ctx context.Context, prompt, credential string) (string, error) {
	if r.executor == nil {
		return r.generate(ctx, prompt, credential)
	}
	var raw string
	err := r.executor.Do(ctx, "gemini.generate", func(ctx context.Context) error {
		out, err := r.generate(ctx, prompt, credential)
		if err != nil {
			return err
		}
		raw = out
		return nil
	}, classifyGenerateError)
	return raw, err
}

// IsQuotaError reports whether a failure is attributable to rate or usage
// limits: HTTP 429, or an error text mentioning quota, rate limit, or too
// many requests.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

func classifyGenerateError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{}
	}
	// Quota failures belong to the rotation loop, not the inner retry.
	if IsQuotaError(err) {
		return resilience.Verdict{Retry: false, CountAsFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Verdict{Retry: true, CountAsFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Verdict{Retry: true, CountAsFailure: true}
		default:
			return resilience.Verdict{Retry: false, CountAsFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Verdict{Retry: true, CountAsFailure: true}
	}
	return resilience.Verdict{Retry: false, CountAsFailure: true}
}
