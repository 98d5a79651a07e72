package coindcx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrMalformed marks a response that arrived but could not be interpreted.
var ErrMalformed = errors.New("coindcx: malformed response")

// APIError is returned for any non-2xx reply.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coindcx: http %d: %s", e.StatusCode, e.Body)
}

// RESTClient talks to the CoinDCX futures REST API.
// Requests are never retried: a repeated order submission would double the position.
type RESTClient struct {
	client *resty.Client
	now    func() time.Time
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAllowGetMethodPayload(true). // wallets endpoint takes a signed GET body
		SetHeader("Accept", "application/json")

	return &RESTClient{client: client, now: time.Now}
}

func (c *RESTClient) timestamp() int64 {
	return c.now().UnixMilli()
}

// signedRequest prepares a request whose body is the signed compact JSON of body.
func (c *RESTClient) signedRequest(ctx context.Context, creds Credentials, body any) (*resty.Request, error) {
	payload, signature, err := Sign(body, creds.Secret)
	if err != nil {
		return nil, errors.Wrap(err, "sign request")
	}
	return c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(HeaderAPIKey, creds.Key).
		SetHeader(HeaderSignature, signature).
		SetBody(payload), nil
}

func (c *RESTClient) do(req *resty.Request, method, endpoint string) ([]byte, error) {
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, endpoint)
	}
	if !resp.IsSuccess() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(string(resp.Body()))}
	}
	return resp.Body(), nil
}

// GetPositions returns the account's USDT-margined futures positions.
func (c *RESTClient) GetPositions(ctx context.Context, creds Credentials) ([]Position, error) {
	req, err := c.signedRequest(ctx, creds, PositionsRequest{
		Timestamp:               c.timestamp(),
		Page:                    "1",
		Size:                    positionsPageSize,
		MarginCurrencyShortName: []string{MarginCurrencyUSDT},
	})
	if err != nil {
		return nil, err
	}

	body, err := c.do(req, http.MethodPost, EndpointPositions)
	if err != nil {
		return nil, err
	}

	var positions []Position
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "decode positions: %v", err)
	}
	return positions, nil
}

// GetWalletBalance returns balance + locked balance of the USDT futures wallet.
func (c *RESTClient) GetWalletBalance(ctx context.Context, creds Credentials) (float64, error) {
	req, err := c.signedRequest(ctx, creds, WalletRequest{Timestamp: c.timestamp()})
	if err != nil {
		return 0, err
	}

	body, err := c.do(req, http.MethodGet, EndpointWallets)
	if err != nil {
		return 0, err
	}

	var wallets []Wallet
	if err := json.Unmarshal(body, &wallets); err != nil {
		return 0, errors.Wrapf(ErrMalformed, "decode wallets: %v", err)
	}
	for _, w := range wallets {
		if w.CurrencyShortName == MarginCurrencyUSDT {
			return float64(w.Balance) + float64(w.LockedBalance), nil
		}
	}
	return 0, errors.Wrap(ErrMalformed, "no USDT wallet in response")
}

// NewMarketOrder builds a market order with the fixed parameters used for copying.
func NewMarketOrder(pair, side string, quantity float64, leverage int) Order {
	return Order{
		Side:          side,
		Pair:          pair,
		OrderType:     OrderTypeMarket,
		TotalQuantity: quantity,
		Leverage:      leverage,
		Notification:  NotificationEmail,
		TimeInForce:   TimeInForceGTC,
		Hidden:        false,
		PostOnly:      false,
		ClientOrderID: uuid.NewString(),
	}
}

// CreateOrder submits order and returns the exchange order id and executed price.
// An empty response list yields id "unknown" and price 0.
func (c *RESTClient) CreateOrder(ctx context.Context, creds Credentials, order Order) (*OrderResult, error) {
	req, err := c.signedRequest(ctx, creds, OrderRequest{Timestamp: c.timestamp(), Order: order})
	if err != nil {
		return nil, err
	}

	body, err := c.do(req, http.MethodPost, EndpointCreateOrder)
	if err != nil {
		return nil, err
	}

	var orders []OrderResponse
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "decode order response: %v", err)
	}

	result := &OrderResult{ID: unknownOrderID}
	if len(orders) == 0 {
		return result, nil
	}
	first := orders[0]
	if first.ID != "" {
		result.ID = first.ID
	}
	switch {
	case first.Price.Value() > 0:
		result.Price = first.Price.Value()
	case first.AvgPrice.Value() > 0:
		result.Price = first.AvgPrice.Value()
	}
	return result, nil
}

// GetQuantityIncrement returns the minimum tradable quantity step for pair.
func (c *RESTClient) GetQuantityIncrement(ctx context.Context, pair string) (float64, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("pair", pair).
		SetQueryParam("margin_currency_short_name", MarginCurrencyUSDT)

	body, err := c.do(req, http.MethodGet, EndpointInstrument)
	if err != nil {
		return 0, err
	}

	var resp InstrumentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, errors.Wrapf(ErrMalformed, "decode instrument: %v", err)
	}
	step := resp.Instrument.QuantityIncrement.Value()
	if step <= 0 {
		return 0, errors.Wrapf(ErrMalformed, "instrument %s has no quantity_increment", pair)
	}
	return step, nil
}
