package copier

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultStep is used when the step of a pair cannot be fetched.
const DefaultStep = 1.0

// StepSource fetches the minimum tradable quantity increment of a pair.
type StepSource interface {
	QuantityStep(ctx context.Context, pair string) (float64, error)
}

// QuantityRounder rounds quantities down to each pair's step. Steps are cached
// until Reset; a failed fetch falls back to DefaultStep without caching it.
type QuantityRounder struct {
	source  StepSource
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	steps map[string]float64
	group singleflight.Group
}

func NewQuantityRounder(source StepSource, timeout time.Duration, logger *zap.Logger) *QuantityRounder {
	return &QuantityRounder{
		source:  source,
		timeout: timeout,
		logger:  logger,
		steps:   make(map[string]float64),
	}
}

// Round returns raw rounded toward zero to a multiple of the pair's step.
// It fails only when ctx ends before the step is known.
func (r *QuantityRounder) Round(ctx context.Context, pair string, raw float64) (float64, error) {
	step, err := r.Step(ctx, pair)
	if err != nil {
		return 0, err
	}
	return RoundToStep(raw, step), nil
}

// Step returns the cached step of pair, fetching it on first use. Concurrent
// callers for the same pair share one fetch, which is detached from any single
// caller's cancellation. A failed fetch yields DefaultStep; the caller's own
// ctx ending yields ctx.Err().
func (r *QuantityRounder) Step(ctx context.Context, pair string) (float64, error) {
	r.mu.RLock()
	step, ok := r.steps[pair]
	r.mu.RUnlock()
	if ok {
		return step, nil
	}

	// fetch on a context no single session owns
	ch := r.group.DoChan(pair, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		step, err := r.source.QuantityStep(callCtx, pair)
		if err != nil || step <= 0 {
			return step, err
		}
		// cache here so a fetch whose callers all left still lands
		r.mu.Lock()
		r.steps[pair] = step
		r.mu.Unlock()
		return step, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		r.logger.Warn("failed to fetch quantity step, using default",
			zap.String("pair", pair), zap.Float64("step", DefaultStep), zap.Error(res.Err))
		return DefaultStep, nil
	}

	step = res.Val.(float64)
	if step <= 0 {
		return DefaultStep, nil
	}
	return step, nil
}

// Reset drops every cached step and returns how many were dropped.
func (r *QuantityRounder) Reset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.steps)
	r.steps = make(map[string]float64)
	return n
}

// Cached returns the number of cached steps.
func (r *QuantityRounder) Cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// RoundToStep computes sign(raw) * floor(|raw| / step) * step in decimal
// arithmetic, so 0.3 with step 0.1 yields 0.3 rather than 0.2.
func RoundToStep(raw, step float64) float64 {
	if raw == 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	if !(step > 0) || math.IsInf(step, 0) {
		step = DefaultStep
	}

	q := decimal.NewFromFloat(raw)
	s := decimal.NewFromFloat(step)
	rounded := q.Abs().Div(s).Floor().Mul(s)
	if q.IsNegative() {
		rounded = rounded.Neg()
	}

	f, _ := rounded.Float64()
	return f
}
