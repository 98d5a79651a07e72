package coindcx

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Credentials is an API key/secret pair. Every private call is signed with Secret.
type Credentials struct {
	Key    string
	Secret string
}

// Float decodes JSON numbers, numeric strings and null into a float64.
// CoinDCX mixes all three for the same field across endpoints.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	b = bytes.Trim(b, `"`)
	if len(b) == 0 {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("coindcx: invalid number %q: %w", b, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("coindcx: non-finite number %q", b)
	}
	*f = Float(v)
	return nil
}

func (f *Float) Value() float64 {
	if f == nil {
		return 0
	}
	return float64(*f)
}

// Position is one entry of the futures positions list.
type Position struct {
	ID               string `json:"id"`
	Pair             string `json:"pair"`
	ActivePos        *Float `json:"active_pos"` // signed; nil when the field is absent
	Leverage         Float  `json:"leverage"`
	AvgPrice         Float  `json:"avg_price"`
	LockedUserMargin Float  `json:"locked_user_margin"`
	MarginType       string `json:"margin_type"`
}

type Wallet struct {
	CurrencyShortName string `json:"currency_short_name"`
	Balance           Float  `json:"balance"`
	LockedBalance     Float  `json:"locked_balance"`
}

type PositionsRequest struct {
	Timestamp               int64    `json:"timestamp"`
	Page                    string   `json:"page"`
	Size                    string   `json:"size"`
	MarginCurrencyShortName []string `json:"margin_currency_short_name"`
}

type WalletRequest struct {
	Timestamp int64 `json:"timestamp"`
}

type OrderRequest struct {
	Timestamp int64 `json:"timestamp"`
	Order     Order `json:"order"`
}

// Order is the "order" object of a create-order request.
type Order struct {
	Side          string  `json:"side"`
	Pair          string  `json:"pair"`
	OrderType     string  `json:"order_type"`
	TotalQuantity float64 `json:"total_quantity"`
	Leverage      int     `json:"leverage"`
	Notification  string  `json:"notification"`
	TimeInForce   string  `json:"time_in_force"`
	Hidden        bool    `json:"hidden"`
	PostOnly      bool    `json:"post_only"`
	ClientOrderID string  `json:"client_order_id,omitempty"`
}

// OrderResponse is one element of the create-order response list.
type OrderResponse struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Pair          string `json:"pair"`
	Side          string `json:"side"`
	Status        string `json:"status"`
	Price         *Float `json:"price"`
	AvgPrice      *Float `json:"avg_price"`
}

// OrderResult is what callers need from a placed order.
type OrderResult struct {
	ID    string
	Price float64 // executed price, 0 when the exchange did not report one
}

type InstrumentResponse struct {
	Instrument struct {
		Pair              string `json:"pair"`
		QuantityIncrement *Float `json:"quantity_increment"`
	} `json:"instrument"`
}
