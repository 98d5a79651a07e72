package copier

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"copytrader/internal/memorystore"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const copierIDLength = 6

// LeadTrader is an account whose positions are mirrored.
type LeadTrader struct {
	ID          string
	Name        string
	Credentials Credentials
}

// LeadAUM is a lead with its assets under management.
type LeadAUM struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	AUM  float64 `json:"aum"`
}

type StartRequest struct {
	LeadID      string
	Credentials Credentials
	Capital     float64
	Reverse     bool
}

type Options struct {
	PollInterval   time.Duration
	NoiseThreshold float64
	Leverage       int
	CallTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		PollInterval:   time.Second,
		NoiseThreshold: 0.0001,
		Leverage:       10,
		CallTimeout:    10 * time.Second,
	}
}

// CopierID derives the session id from an API key: its first six characters.
func CopierID(apiKey string) string {
	if len(apiKey) <= copierIDLength {
		return apiKey
	}
	return apiKey[:copierIDLength]
}

// Manager owns the session registry and runs one sync loop per session.
type Manager struct {
	exchange Exchange
	prices   PriceFeed
	logs     *memorystore.MemoryOrderLogStore
	rounder  *QuantityRounder
	executor *OrderExecutor
	opts     Options
	logger   *zap.Logger

	leads     map[string]LeadTrader
	leadOrder []string

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.RWMutex
	sessions  map[string]*Session
	allocated map[string]float64 // lead id -> capital of its active sessions
	closed    bool
}

func NewManager(exchange Exchange, prices PriceFeed, logs *memorystore.MemoryOrderLogStore,
	leads []LeadTrader, opts Options, logger *zap.Logger) *Manager {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.NoiseThreshold <= 0 {
		opts.NoiseThreshold = def.NoiseThreshold
	}
	if opts.Leverage <= 0 {
		opts.Leverage = def.Leverage
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = def.CallTimeout
	}

	rounder := NewQuantityRounder(exchange, opts.CallTimeout, logger)
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		exchange:   exchange,
		prices:     prices,
		logs:       logs,
		rounder:    rounder,
		executor:   NewOrderExecutor(exchange, rounder, logs, opts.Leverage, opts.CallTimeout, logger),
		opts:       opts,
		logger:     logger,
		leads:      make(map[string]LeadTrader, len(leads)),
		baseCtx:    ctx,
		baseCancel: cancel,
		sessions:   make(map[string]*Session),
		allocated:  make(map[string]float64),
	}
	for _, l := range leads {
		if _, dup := m.leads[l.ID]; dup {
			continue
		}
		m.leads[l.ID] = l
		m.leadOrder = append(m.leadOrder, l.ID)
	}
	return m
}

// SetFillSink registers a sink notified after every recorded order.
func (m *Manager) SetFillSink(sink FillSink) {
	m.executor.SetFillSink(sink)
}

// Rounder exposes the step cache so it can be reset on a schedule.
func (m *Manager) Rounder() *QuantityRounder {
	return m.rounder
}

// Start validates the request, computes the scaling factor from the lead's
// current wallet and launches the session loop. It returns the copier id
// without waiting for the initial sync.
func (m *Manager) Start(ctx context.Context, req StartRequest) (string, error) {
	if req.Credentials.Key == "" || req.Credentials.Secret == "" {
		return "", fmt.Errorf("%w: copier credentials are required", ErrInvalidStart)
	}
	id := CopierID(req.Credentials.Key)

	lead, ok := m.leads[req.LeadID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLead, req.LeadID)
	}
	if !(req.Capital > 0) || math.IsInf(req.Capital, 0) {
		return "", fmt.Errorf("%w: capital must be positive, got %v", ErrInvalidStart, req.Capital)
	}
	if m.IsActive(id) {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	wallet, err := m.exchange.WalletBalance(callCtx, lead.Credentials)
	cancel()
	if err != nil {
		return "", fmt.Errorf("%w: lead %s: %v", ErrLeadWallet, lead.ID, err)
	}
	scaling, err := ScalingFactor(wallet, req.Capital)
	if err != nil {
		return "", fmt.Errorf("%w: lead %s: %v", ErrLeadWallet, lead.ID, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerShutdown
	}
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	sessCtx, sessCancel := context.WithCancel(m.baseCtx)
	s := &Session{
		ID:          id,
		LeadID:      lead.ID,
		Credentials: req.Credentials,
		Capital:     req.Capital,
		Scaling:     scaling,
		Reverse:     req.Reverse,
		StartedAt:   time.Now().UTC(),
		cancel:      sessCancel,
		done:        make(chan struct{}),
	}
	m.sessions[id] = s
	m.allocated[lead.ID] += req.Capital
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("copy session started",
		zap.String("copier_id", id),
		zap.String("lead_id", lead.ID),
		zap.Float64("capital", req.Capital),
		zap.Float64("lead_wallet", wallet),
		zap.Float64("scaling", scaling),
		zap.Bool("reverse", req.Reverse),
	)

	go m.run(sessCtx, s, lead)
	return id, nil
}

// Stop removes the session and releases its capital from the lead's AUM.
// Unknown ids are ignored. It reports whether a session was stopped.
func (m *Manager) Stop(copierID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[copierID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, copierID)
	m.allocated[s.LeadID] -= s.Capital
	if math.Abs(m.allocated[s.LeadID]) < 1e-9 {
		delete(m.allocated, s.LeadID)
	}
	m.mu.Unlock()

	s.stop()
	m.logger.Info("copy session stopped", zap.String("copier_id", copierID), zap.String("lead_id", s.LeadID))
	return true
}

func (m *Manager) IsActive(copierID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[copierID]
	return ok
}

// ActiveCount returns the number of registered sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IsActiveKey is IsActive for the id derived from apiKey.
func (m *Manager) IsActiveKey(apiKey string) bool {
	return m.IsActive(CopierID(apiKey))
}

// Session returns the active session with the given id.
func (m *Manager) Session(copierID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[copierID]
	return s, ok
}

// Allocated returns the capital currently allocated to leadID.
func (m *Manager) Allocated(leadID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocated[leadID]
}

// OrderLog returns the copier's orders in placement order and their realized PnL.
// Logs remain readable after the session stops.
func (m *Manager) OrderLog(copierID string) ([]memorystore.OrderRecord, float64) {
	orders := m.logs.Get(copierID)
	if orders == nil {
		orders = []memorystore.OrderRecord{}
	}
	return orders, RealizedPnL(orders)
}

// LeadsWithAUM lists every configured lead with wallet + allocated capital.
// Wallets are fetched concurrently; a failed fetch counts as 0.
func (m *Manager) LeadsWithAUM(ctx context.Context) []LeadAUM {
	wallets := make([]float64, len(m.leadOrder))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range m.leadOrder {
		i := i // per-iteration copy (pre-Go 1.22 loop semantics)
		lead := m.leads[id]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, m.opts.CallTimeout)
			defer cancel()
			w, err := m.exchange.WalletBalance(callCtx, lead.Credentials)
			if err != nil {
				m.logger.Warn("failed to fetch lead wallet", zap.String("lead_id", lead.ID), zap.Error(err))
				return nil
			}
			wallets[i] = w
			return nil
		})
	}
	_ = g.Wait()

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LeadAUM, 0, len(m.leadOrder))
	for i, id := range m.leadOrder {
		lead := m.leads[id]
		aum, _ := decimal.NewFromFloat(wallets[i]).
			Add(decimal.NewFromFloat(m.allocated[id])).
			Round(2).Float64()
		out = append(out, LeadAUM{ID: lead.ID, Name: lead.Name, AUM: aum})
	}
	return out
}

// PriceMap returns a copy of the latest price per pair.
func (m *Manager) PriceMap() map[string]float64 {
	if m.prices == nil {
		return map[string]float64{}
	}
	return m.prices.Prices()
}

// Shutdown stops every session and waits for their loops to exit or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Stop(id)
	}
	m.baseCancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("all copy sessions stopped", zap.Int("count", len(ids)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for copy sessions: %w", ctx.Err())
	}
}
