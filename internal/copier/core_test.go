package copier

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"copytrader/internal/memorystore"

	"go.uber.org/zap"
)

// go test -v --run TestScalingFactor
func TestScalingFactor(t *testing.T) {
	tests := []struct {
		name    string
		wallet  float64
		capital float64
		want    float64
		wantErr bool
	}{
		{name: "ratio", wallet: 1000, capital: 100, want: 0.1},
		{name: "capital above wallet", wallet: 50, capital: 200, want: 4},
		{name: "zero wallet", wallet: 0, capital: 100, wantErr: true},
		{name: "negative wallet", wallet: -5, capital: 100, wantErr: true},
		{name: "nan wallet", wallet: math.NaN(), capital: 100, wantErr: true},
		{name: "zero capital", wallet: 1000, capital: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScalingFactor(tt.wallet, tt.capital)
			if tt.wantErr {
				if !errors.Is(err, ErrPrecondition) {
					t.Fatalf("expected ErrPrecondition, got %v", err)
				}
				return
			}
			if err != nil || !approx(got, tt.want) {
				t.Errorf("got %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

// go test -v --run TestRoundToStep
func TestRoundToStep(t *testing.T) {
	tests := []struct {
		raw, step, want float64
	}{
		{7.8, 0.5, 7.5},
		{0.2, 0.5, 0},
		{-7.8, 0.5, -7.5},
		{0.3, 0.1, 0.3},
		{0.30000000000000004, 0.001, 0.3},
		{12.345, 1, 12},
		{3, 0, 3}, // invalid step falls back to 1
		{0, 0.1, 0},
	}
	for _, tt := range tests {
		if got := RoundToStep(tt.raw, tt.step); got != tt.want {
			t.Errorf("RoundToStep(%v, %v) = %v, want %v", tt.raw, tt.step, got, tt.want)
		}
	}
}

// go test -v --run TestQuantityRounderCache
func TestQuantityRounderCache(t *testing.T) {
	ex := newFakeExchange()
	ex.steps["B-BTC_USDT"] = 0.5
	r := NewQuantityRounder(ex, time.Second, zap.NewNop())
	ctx := context.Background()

	if got, err := r.Round(ctx, "B-BTC_USDT", 7.8); err != nil || got != 7.5 {
		t.Errorf("expected 7.5, got %v, %v", got, err)
	}
	_, _ = r.Round(ctx, "B-BTC_USDT", 1)
	if ex.stepCalls != 1 {
		t.Errorf("expected 1 step fetch, got %d", ex.stepCalls)
	}

	if n := r.Reset(); n != 1 {
		t.Errorf("expected 1 cleared step, got %d", n)
	}
	_, _ = r.Round(ctx, "B-BTC_USDT", 1)
	if ex.stepCalls != 2 {
		t.Errorf("expected refetch after reset, got %d calls", ex.stepCalls)
	}
}

// go test -v --run TestQuantityRounderFallback
func TestQuantityRounderFallback(t *testing.T) {
	ex := newFakeExchange()
	ex.stepErr = errors.New("boom")
	r := NewQuantityRounder(ex, time.Second, zap.NewNop())

	if got, err := r.Round(context.Background(), "B-XRP_USDT", 2.7); err != nil || got != 2 {
		t.Errorf("expected default step rounding to 2, got %v, %v", got, err)
	}
	if r.Cached() != 0 {
		t.Error("fallback step must not be cached")
	}
}

// gatedSteps holds every step fetch until release is closed.
type gatedSteps struct {
	step    float64
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newGatedSteps(step float64) *gatedSteps {
	return &gatedSteps{step: step, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSteps) QuantityStep(ctx context.Context, pair string) (float64, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return g.step, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

type roundResult struct {
	qty float64
	err error
}

// go test -v --run TestQuantityRounderSharedFetchSurvivesCancel
func TestQuantityRounderSharedFetchSurvivesCancel(t *testing.T) {
	src := newGatedSteps(0.001)
	r := NewQuantityRounder(src, 5*time.Second, zap.NewNop())

	// stopping session starts the fetch
	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan roundResult, 1)
	go func() {
		q, err := r.Round(ctxA, "B-BTC_USDT", 7.8)
		resA <- roundResult{q, err}
	}()
	<-src.started

	// live session joins the same pair
	resB := make(chan roundResult, 1)
	go func() {
		q, err := r.Round(context.Background(), "B-BTC_USDT", 0.3)
		resB <- roundResult{q, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case res := <-resA:
		if !errors.Is(res.err, context.Canceled) {
			t.Errorf("cancelled caller: got %v, %v; want context.Canceled", res.qty, res.err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(src.release)
	select {
	case res := <-resB:
		if res.err != nil || !approx(res.qty, 0.3) {
			t.Errorf("live caller: got %v, %v; want 0.3", res.qty, res.err)
		}
	case <-time.After(time.Second):
		t.Fatal("live caller did not return")
	}

	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected one shared fetch, got %d", n)
	}
	if r.Cached() != 1 {
		t.Error("fetched step must be cached")
	}
}

// go test -v --run TestOrderExecutorAbortsOnCancelledRound
func TestOrderExecutorAbortsOnCancelledRound(t *testing.T) {
	ex := newFakeExchange()
	src := newGatedSteps(0.5)
	defer close(src.release)
	logs := memorystore.NewOrderLogStore()
	exec := NewOrderExecutor(ex, NewQuantityRounder(src, 5*time.Second, zap.NewNop()), logs, 10, time.Second, zap.NewNop())
	s := &Session{ID: "abcdef", Credentials: Credentials{Key: "abcdef99", Secret: "x"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := exec.Execute(ctx, s, "B-BTC_USDT", memorystore.SideBuy, 7.8)
		done <- err
	}()
	<-src.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after cancel")
	}
	if len(ex.placed()) != 0 || logs.Get("abcdef") != nil {
		t.Error("no order may be placed with an unknown step")
	}
}

// go test -v --run TestDiff
func TestDiff(t *testing.T) {
	const eps = 0.0001
	tests := []struct {
		name       string
		prev, curr Snapshot
		want       []Delta
	}{
		{
			name: "closed pair",
			prev: Snapshot{"BTC": 2},
			curr: Snapshot{},
			want: []Delta{{Pair: "BTC", Qty: -2}},
		},
		{
			name: "opened and changed",
			prev: Snapshot{"BTC": 2, "ETH": 1},
			curr: Snapshot{"BTC": 3, "ETH": 1, "SOL": -4},
			want: []Delta{{Pair: "BTC", Qty: 1}, {Pair: "SOL", Qty: -4}},
		},
		{
			name: "noise ignored",
			prev: Snapshot{"BTC": 1},
			curr: Snapshot{"BTC": 1.00005},
			want: []Delta{},
		},
		{
			name: "initial from nil",
			prev: nil,
			curr: Snapshot{"ETH": -1, "BTC": 0},
			want: []Delta{{Pair: "ETH", Qty: -1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.prev, tt.curr, eps)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Pair != tt.want[i].Pair || !approx(got[i].Qty, tt.want[i].Qty) {
					t.Errorf("delta %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// go test -v --run TestOrderSide
func TestOrderSide(t *testing.T) {
	tests := []struct {
		delta   float64
		reverse bool
		want    memorystore.Side
	}{
		{5, false, memorystore.SideBuy},
		{5, true, memorystore.SideSell},
		{-3, false, memorystore.SideSell},
		{-3, true, memorystore.SideBuy},
	}
	for _, tt := range tests {
		if got := OrderSide(tt.delta, tt.reverse); got != tt.want {
			t.Errorf("OrderSide(%v, %v) = %s, want %s", tt.delta, tt.reverse, got, tt.want)
		}
	}
}

// go test -v --run TestSnapshotFromPositions
func TestSnapshotFromPositions(t *testing.T) {
	snap := SnapshotFromPositions([]Position{
		{Pair: "BTC", Qty: 1},
		{Pair: "BTC", Qty: 0.5},
		{Pair: "", Qty: 9},
		{Pair: "ETH", Qty: -2},
	})
	if len(snap) != 2 || snap["BTC"] != 1.5 || snap["ETH"] != -2 {
		t.Errorf("unexpected snapshot: %v", snap)
	}
}

// go test -v --run TestRealizedPnL
func TestRealizedPnL(t *testing.T) {
	tests := []struct {
		name   string
		orders []memorystore.OrderRecord
		want   float64
	}{
		{
			name: "round trip",
			orders: []memorystore.OrderRecord{
				{Side: memorystore.SideBuy, Qty: 10, Price: 100},
				{Side: memorystore.SideSell, Qty: 10, Price: 120},
			},
			want: 200,
		},
		{
			name:   "open buy is cash flow",
			orders: []memorystore.OrderRecord{{Side: memorystore.SideBuy, Qty: 5, Price: 100}},
			want:   -500,
		},
		{
			name: "rounded to 6 places",
			orders: []memorystore.OrderRecord{
				{Side: memorystore.SideSell, Qty: 0.1, Price: 0.0000333},
			},
			want: 0.000003,
		},
		{name: "empty", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RealizedPnL(tt.orders); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// go test -v --run TestOrderExecutor
func TestOrderExecutor(t *testing.T) {
	ex := newFakeExchange()
	ex.steps["B-BTC_USDT"] = 0.5
	ex.fillPrice = 42000
	logs := memorystore.NewOrderLogStore()
	exec := NewOrderExecutor(ex, NewQuantityRounder(ex, time.Second, zap.NewNop()), logs, 10, time.Second, zap.NewNop())
	exec.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	s := &Session{ID: "abcdef", Credentials: Credentials{Key: "abcdef99", Secret: "x"}}
	ctx := context.Background()

	t.Run("zero after rounding", func(t *testing.T) {
		rec, err := exec.Execute(ctx, s, "B-BTC_USDT", memorystore.SideBuy, 0.2)
		if rec != nil || err != nil {
			t.Fatalf("expected no-op, got %v, %v", rec, err)
		}
		if len(ex.placed()) != 0 || logs.Get("abcdef") != nil {
			t.Fatal("zero quantity must not place or log an order")
		}
	})

	t.Run("rounded quantity recorded", func(t *testing.T) {
		rec, err := exec.Execute(ctx, s, "B-BTC_USDT", memorystore.SideSell, -7.8)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		placed := ex.placed()
		if len(placed) != 1 || placed[0].Qty != 7.5 || placed[0].Side != memorystore.SideSell || placed[0].Leverage != 10 {
			t.Fatalf("unexpected placed orders: %+v", placed)
		}
		log := logs.Get("abcdef")
		if len(log) != 1 || log[0] != *rec {
			t.Fatalf("unexpected log: %+v", log)
		}
		if rec.Qty != 7.5 || rec.Price != 42000 || rec.OrderID != "ord-B-BTC_USDT" {
			t.Errorf("unexpected record: %+v", rec)
		}
	})

	t.Run("failure not logged", func(t *testing.T) {
		ex.orderErr = errors.New("rejected")
		defer func() { ex.orderErr = nil }()
		if _, err := exec.Execute(ctx, s, "B-BTC_USDT", memorystore.SideBuy, 1); err == nil {
			t.Fatal("expected error")
		}
		if len(logs.Get("abcdef")) != 1 {
			t.Error("failed order must not be logged")
		}
	})
}
