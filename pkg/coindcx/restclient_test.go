package coindcx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testCreds = Credentials{Key: "abcdef123456", Secret: "s3cret"}

// signedServer verifies the signature headers of every request before calling handle.
func signedServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body []byte)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.URL.Path != EndpointInstrument {
			if got := r.Header.Get(HeaderAPIKey); got != testCreds.Key {
				t.Errorf("api key header = %q", got)
			}
			if got, want := r.Header.Get(HeaderSignature), SignPayload(body, testCreds.Secret); got != want {
				t.Errorf("signature mismatch: got %s want %s", got, want)
			}
		}
		handle(w, r, body)
	}))
}

func newTestClient(url string) *RESTClient {
	c := NewRESTClient(url, 5*time.Second)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

// go test -v --run TestSign
func TestSign(t *testing.T) {
	payload, sig, err := Sign(map[string]any{"timestamp": 1}, "secret")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if string(payload) != `{"timestamp":1}` {
		t.Errorf("payload not compact: %s", payload)
	}
	// echo -n '{"timestamp":1}' | openssl dgst -sha256 -hmac secret
	if len(sig) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(sig))
	}
	if sig != SignPayload(payload, "secret") {
		t.Error("Sign and SignPayload disagree")
	}
}

// go test -v --run TestGetPositions
func TestGetPositions(t *testing.T) {
	srv := signedServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		if r.Method != http.MethodPost || r.URL.Path != EndpointPositions {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req PositionsRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad body: %v", err)
		}
		if req.Timestamp != 1700000000000 || req.Page != "1" || req.Size != "50" {
			t.Errorf("unexpected body: %+v", req)
		}
		if len(req.MarginCurrencyShortName) != 1 || req.MarginCurrencyShortName[0] != "USDT" {
			t.Errorf("unexpected margin currency: %v", req.MarginCurrencyShortName)
		}
		_, _ = w.Write([]byte(`[
			{"pair":"B-BTC_USDT","active_pos":0.5,"leverage":10,"avg_price":"42000.5","locked_user_margin":2100.1,"margin_type":"crossed"},
			{"pair":"B-ETH_USDT","active_pos":"-2","leverage":"5","avg_price":null,"locked_user_margin":0}
		]`))
	})
	defer srv.Close()

	positions, err := newTestClient(srv.URL).GetPositions(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[0].ActivePos.Value() != 0.5 || float64(positions[0].AvgPrice) != 42000.5 {
		t.Errorf("unexpected first position: %+v", positions[0])
	}
	if positions[1].ActivePos.Value() != -2 || float64(positions[1].Leverage) != 5 {
		t.Errorf("unexpected second position: %+v", positions[1])
	}
}

// go test -v --run TestGetPositionsErrors
func TestGetPositionsErrors(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		srv := signedServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
		})
		defer srv.Close()

		_, err := newTestClient(srv.URL).GetPositions(context.Background(), testCreds)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected APIError 401, got %v", err)
		}
		if errors.Is(err, ErrMalformed) {
			t.Error("http error must not be reported as malformed")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		srv := signedServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
			_, _ = w.Write([]byte(`{"status":"error"}`))
		})
		defer srv.Close()

		_, err := newTestClient(srv.URL).GetPositions(context.Background(), testCreds)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})
}

// go test -v --run TestGetWalletBalance
func TestGetWalletBalance(t *testing.T) {
	srv := signedServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		if r.Method != http.MethodGet || r.URL.Path != EndpointWallets {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if string(body) != `{"timestamp":1700000000000}` {
			t.Errorf("unexpected wallet body: %s", body)
		}
		_, _ = w.Write([]byte(`[
			{"currency_short_name":"INR","balance":"10","locked_balance":"0"},
			{"currency_short_name":"USDT","balance":"900.5","locked_balance":"99.5"}
		]`))
	})
	defer srv.Close()

	balance, err := newTestClient(srv.URL).GetWalletBalance(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("GetWalletBalance: %v", err)
	}
	if balance != 1000 {
		t.Errorf("expected 1000, got %v", balance)
	}
}

// go test -v --run TestGetWalletBalanceNoUSDT
func TestGetWalletBalanceNoUSDT(t *testing.T) {
	srv := signedServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = w.Write([]byte(`[{"currency_short_name":"INR","balance":"10","locked_balance":"0"}]`))
	})
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetWalletBalance(context.Background(), testCreds)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

// go test -v --run TestCreateOrder
func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantID    string
		wantPrice float64
	}{
		{name: "price", response: `[{"id":"o-1","price":101.5,"avg_price":0}]`, wantID: "o-1", wantPrice: 101.5},
		{name: "avg price fallback", response: `[{"id":"o-2","price":null,"avg_price":"99"}]`, wantID: "o-2", wantPrice: 99},
		{name: "no price", response: `[{"id":"o-3"}]`, wantID: "o-3", wantPrice: 0},
		{name: "empty list", response: `[]`, wantID: "unknown", wantPrice: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := signedServer(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
				var req OrderRequest
				if err := json.Unmarshal(body, &req); err != nil {
					t.Fatalf("bad body: %v", err)
				}
				o := req.Order
				if o.OrderType != "market_order" || o.TimeInForce != "good_till_cancel" || o.Leverage != 10 {
					t.Errorf("unexpected order fields: %+v", o)
				}
				if o.Hidden || o.PostOnly {
					t.Errorf("order must be neither hidden nor post-only: %+v", o)
				}
				if o.ClientOrderID == "" {
					t.Error("expected client order id")
				}
				_, _ = w.Write([]byte(tt.response))
			})
			defer srv.Close()

			order := NewMarketOrder("B-BTC_USDT", SideBuy, 0.25, 10)
			res, err := newTestClient(srv.URL).CreateOrder(context.Background(), testCreds, order)
			if err != nil {
				t.Fatalf("CreateOrder: %v", err)
			}
			if res.ID != tt.wantID || res.Price != tt.wantPrice {
				t.Errorf("got %+v, want id=%s price=%v", res, tt.wantID, tt.wantPrice)
			}
		})
	}
}

// go test -v --run TestGetQuantityIncrement
func TestGetQuantityIncrement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pair") != "B-BTC_USDT" || r.URL.Query().Get("margin_currency_short_name") != "USDT" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"instrument":{"pair":"B-BTC_USDT","quantity_increment":"0.001"}}`))
	}))
	defer srv.Close()

	step, err := newTestClient(srv.URL).GetQuantityIncrement(context.Background(), "B-BTC_USDT")
	if err != nil {
		t.Fatalf("GetQuantityIncrement: %v", err)
	}
	if step != 0.001 {
		t.Errorf("expected 0.001, got %v", step)
	}
}

// go test -v --run TestFloatUnmarshal
func TestFloatUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		err  bool
	}{
		{in: `1.5`, want: 1.5},
		{in: `"-2.25"`, want: -2.25},
		{in: `null`, want: 0},
		{in: `""`, want: 0},
		{in: `"abc"`, err: true},
	}
	for _, tt := range tests {
		var f Float
		err := json.Unmarshal([]byte(tt.in), &f)
		if tt.err {
			if err == nil {
				t.Errorf("%s: expected error", tt.in)
			}
			continue
		}
		if err != nil || float64(f) != tt.want {
			t.Errorf("%s: got %v, %v; want %v", tt.in, f, err, tt.want)
		}
	}
}
