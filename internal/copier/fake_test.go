package copier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"copytrader/internal/memorystore"
)

type placedOrder struct {
	Key      string
	Pair     string
	Side     memorystore.Side
	Qty      float64
	Leverage int
}

// fakeExchange is an in-memory Exchange keyed by API key.
type fakeExchange struct {
	mu sync.Mutex

	wallets      map[string]float64
	walletErr    error
	positions    map[string][]Position
	positionsErr error
	steps        map[string]float64
	stepErr      error
	stepCalls    int
	orderErr     error
	pairErrs     map[string]error
	orderGate    chan struct{} // when set, orders block until it is closed
	orderStarted chan struct{}
	fillPrice    float64
	orders       []placedOrder
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		wallets:   make(map[string]float64),
		positions: make(map[string][]Position),
		steps:     make(map[string]float64),
		pairErrs:  make(map[string]error),
	}
}

func (f *fakeExchange) Positions(ctx context.Context, creds Credentials) ([]Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	out := make([]Position, len(f.positions[creds.Key]))
	copy(out, f.positions[creds.Key])
	return out, nil
}

func (f *fakeExchange) WalletBalance(ctx context.Context, creds Credentials) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.walletErr != nil {
		return 0, f.walletErr
	}
	w, ok := f.wallets[creds.Key]
	if !ok {
		return 0, errors.New("no wallet")
	}
	return w, nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, creds Credentials, pair string, side memorystore.Side, qty float64, leverage int) (Fill, error) {
	f.mu.Lock()
	gate, started := f.orderGate, f.orderStarted
	f.mu.Unlock()
	if gate != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return Fill{}, f.orderErr
	}
	if err := f.pairErrs[pair]; err != nil {
		return Fill{}, err
	}
	f.orders = append(f.orders, placedOrder{Key: creds.Key, Pair: pair, Side: side, Qty: qty, Leverage: leverage})
	return Fill{OrderID: "ord-" + pair, Price: f.fillPrice}, nil
}

func (f *fakeExchange) QuantityStep(ctx context.Context, pair string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stepCalls++
	if f.stepErr != nil {
		return 0, f.stepErr
	}
	if s, ok := f.steps[pair]; ok {
		return s, nil
	}
	return 0.001, nil
}

func (f *fakeExchange) setPositions(key string, ps ...Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[key] = ps
}

func (f *fakeExchange) placed() []placedOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]placedOrder, len(f.orders))
	copy(out, f.orders)
	return out
}

type fakePrices map[string]float64

func (p fakePrices) LatestPrice(pair string) (float64, bool) {
	v, ok := p[pair]
	return v, ok
}

func (p fakePrices) Prices() map[string]float64 {
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
