package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"copytrader/internal/copier"
	"copytrader/internal/memorystore"
	"copytrader/pkg/coindcx"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// publicKey is the limiter bucket for unsigned calls.
const publicKey = "public"

// Adapter implements copier.Exchange on top of the CoinDCX REST client. Every
// call waits on a token bucket owned by the API key it is signed with.
type Adapter struct {
	client *coindcx.RESTClient
	limit  rate.Limit
	burst  int
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ copier.Exchange = (*Adapter)(nil)

func NewAdapter(client *coindcx.RESTClient, perSecond float64, burst int, logger *zap.Logger) *Adapter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Adapter{
		client:   client,
		limit:    limit,
		burst:    burst,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (a *Adapter) limiter(key string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.limiters[key]
	if !ok {
		l = rate.NewLimiter(a.limit, a.burst)
		a.limiters[key] = l
	}
	return l
}

func (a *Adapter) wait(ctx context.Context, key string) error {
	if err := a.limiter(key).Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", copier.ErrTransport, err)
	}
	return nil
}

func (a *Adapter) Positions(ctx context.Context, creds copier.Credentials) ([]copier.Position, error) {
	if err := a.wait(ctx, creds.Key); err != nil {
		return nil, err
	}
	raw, err := a.client.GetPositions(ctx, toCredentials(creds))
	if err != nil {
		return nil, classify("fetch positions", err)
	}

	positions := make([]copier.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, copier.Position{
			Pair:       p.Pair,
			Qty:        p.ActivePos.Value(),
			Leverage:   float64(p.Leverage),
			AvgPrice:   float64(p.AvgPrice),
			Margin:     float64(p.LockedUserMargin),
			MarginType: p.MarginType,
		})
	}
	return positions, nil
}

func (a *Adapter) WalletBalance(ctx context.Context, creds copier.Credentials) (float64, error) {
	if err := a.wait(ctx, creds.Key); err != nil {
		return 0, err
	}
	balance, err := a.client.GetWalletBalance(ctx, toCredentials(creds))
	if err != nil {
		return 0, classify("fetch wallet", err)
	}
	return balance, nil
}

func (a *Adapter) PlaceMarketOrder(ctx context.Context, creds copier.Credentials, pair string,
	side memorystore.Side, qty float64, leverage int) (copier.Fill, error) {
	if err := a.wait(ctx, creds.Key); err != nil {
		return copier.Fill{}, err
	}

	order := coindcx.NewMarketOrder(pair, toSide(side), qty, leverage)
	res, err := a.client.CreateOrder(ctx, toCredentials(creds), order)
	if err != nil {
		return copier.Fill{}, classify("create order", err)
	}
	a.logger.Debug("order acknowledged",
		zap.String("pair", pair),
		zap.String("client_order_id", order.ClientOrderID),
		zap.String("order_id", res.ID),
	)
	return copier.Fill{OrderID: res.ID, Price: res.Price}, nil
}

func (a *Adapter) QuantityStep(ctx context.Context, pair string) (float64, error) {
	if err := a.wait(ctx, publicKey); err != nil {
		return 0, err
	}
	step, err := a.client.GetQuantityIncrement(ctx, pair)
	if err != nil {
		return 0, classify("fetch instrument", err)
	}
	return step, nil
}

func toCredentials(c copier.Credentials) coindcx.Credentials {
	return coindcx.Credentials{Key: c.Key, Secret: c.Secret}
}

func toSide(s memorystore.Side) string {
	if s == memorystore.SideSell {
		return coindcx.SideSell
	}
	return coindcx.SideBuy
}

// classify wraps err in the copier error category it belongs to.
func classify(op string, err error) error {
	if errors.Is(err, coindcx.ErrMalformed) {
		return fmt.Errorf("%w: %s: %v", copier.ErrData, op, err)
	}
	return fmt.Errorf("%w: %s: %v", copier.ErrTransport, op, err)
}
