package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/loomkit/loom/logging"
	"github.com/loomkit/loom/model"
)

// Options configures retry and timeout behavior for a Dispatcher.
type Options struct {
	// MaxRetries is the number of retries per model after the first attempt
	// (default 2, so 3 total attempts).
	MaxRetries int

	// InitialBackoff is the base delay before the first retry; it doubles
	// each attempt with ±25% symmetric jitter.
	InitialBackoff time.Duration

	// AttemptTimeout bounds each individual provider call.
	AttemptTimeout time.Duration

	Logger logging.Logger

	// Rand supplies jitter; injectable for deterministic tests.
	Rand *rand.Rand

	// Sleep waits for the backoff delay honoring context cancellation.
	// Injectable so tests run without real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Dispatcher routes a generation request through an ordered model fallback
// list. It is stateless aside from its registry and options; safe for
// concurrent use when Rand is nil or the caller serializes access.
type Dispatcher struct {
	registry map[string]model.Model
	opts     Options
}

// New creates a Dispatcher over a registry mapping model identifiers to
// their implementations.
func New(registry map[string]model.Model, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		MaxRetries:     2,
		InitialBackoff: time.Second,
		AttemptTimeout: 30 * time.Second,
		Sleep:          sleepCtx,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Dispatcher{registry: registry, opts: opts}
}

// Call tries each model in order, retrying transient failures with backoff,
// and returns the first successful response. Fatal-request failures skip
// retries entirely. When every model is exhausted the last error is
// propagated; the caller must treat the turn as failed rather than emitting
// partial output.
func (d *Dispatcher) Call(ctx context.Context, stage string, models []string, req model.Request) (*model.Response, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("dispatch %s: no models configured", stage)
	}

	var lastErr error
	for _, name := range models {
		m, ok := d.registry[name]
		if !ok {
			lastErr = fmt.Errorf("dispatch %s: model %q not registered", stage, name)
			d.opts.Logger.Warn("unknown model in fallback list", "stage", stage, "model", name)
			continue
		}

		// The cached context is bound to exactly one model. A mismatch is
		// not an error: strip the binding and inject the context directly.
		attemptReq := req
		if attemptReq.CacheRef != "" && attemptReq.CacheModel != name {
			d.opts.Logger.Debug("cache binding mismatch, using direct injection", "stage", stage, "model", name, "bound_to", attemptReq.CacheModel)
			attemptReq.CacheRef = ""
			attemptReq.CacheModel = ""
		}

		resp, err := d.callWithRetry(ctx, stage, name, m, attemptReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if model.IsFatalRequest(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, model.Classify(name, ctx.Err())
		}
		d.opts.Logger.Warn("model exhausted, trying next fallback", "stage", stage, "model", name, "error", err)
	}
	return nil, fmt.Errorf("dispatch %s: all models failed: %w", stage, lastErr)
}

// callWithRetry runs up to MaxRetries+1 attempts against a single model.
func (d *Dispatcher) callWithRetry(ctx context.Context, stage, name string, m model.Model, req model.Request) (*model.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		start := time.Now()
		resp, err := d.attempt(ctx, m, req)
		if err == nil {
			if attempt > 0 {
				d.opts.Logger.Info("retry succeeded", "stage", stage, "model", name, "attempt", attempt+1)
			}
			resp.Usage.EstimatedCost = model.EstimateCost(name,
				resp.Usage.PromptTokens, resp.Usage.CachedTokens, resp.Usage.CompletionTokens)
			d.opts.Logger.Debug("model call ok", "stage", stage, "model", name, "duration", time.Since(start))
			return resp, nil
		}

		classified := model.Classify(name, err)
		lastErr = classified
		d.opts.Logger.Warn("model call failed", "stage", stage, "model", name,
			"attempt", attempt+1, "kind", string(classified.Kind), "error", err)

		if !classified.Retryable {
			return nil, classified
		}
		if ctx.Err() != nil {
			return nil, classified
		}
		if attempt < d.opts.MaxRetries {
			delay := d.backoff(attempt)
			if err := d.opts.Sleep(ctx, delay); err != nil {
				return nil, model.Classify(name, err)
			}
		}
	}
	return nil, lastErr
}

// attempt executes one provider call under the per-attempt timeout.
func (d *Dispatcher) attempt(ctx context.Context, m model.Model, req model.Request) (*model.Response, error) {
	attemptCtx := ctx
	if d.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.opts.AttemptTimeout)
		defer cancel()
	}
	return m.Generate(attemptCtx, req)
}

// backoff computes the delay before retry attempt+1: InitialBackoff doubled
// per attempt with ±25% symmetric jitter.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	base := float64(d.opts.InitialBackoff) * float64(uint64(1)<<uint(attempt))
	jitter := 0.25 * (d.randFloat()*2 - 1)
	return time.Duration(base * (1 + jitter))
}

func (d *Dispatcher) randFloat() float64 {
	if d.opts.Rand != nil {
		return d.opts.Rand.Float64()
	}
	return rand.Float64()
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
