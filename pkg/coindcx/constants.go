package coindcx

// REST endpoints, relative to the configured base URL.
const (
	EndpointPositions   = "/exchange/v1/derivatives/futures/positions"
	EndpointCreateOrder = "/exchange/v1/derivatives/futures/orders/create"
	EndpointWallets     = "/exchange/v1/derivatives/futures/wallets"
	EndpointInstrument  = "/exchange/v1/derivatives/futures/data/instrument"
)

const (
	HeaderAPIKey    = "X-AUTH-APIKEY"
	HeaderSignature = "X-AUTH-SIGNATURE"
)

const (
	MarginCurrencyUSDT = "USDT"

	SideBuy  = "buy"
	SideSell = "sell"

	OrderTypeMarket   = "market_order"
	TimeInForceGTC    = "good_till_cancel"
	NotificationEmail = "email_notification"
	DefaultMarginType = "Isolated"

	// CurrentPricesChannel is the public Socket.IO room for futures prices.
	CurrentPricesChannel = "currentPrices@futures@rt"
	// CurrentPricesEvent is emitted on CurrentPricesChannel with {"prices": {pair: {"mp": ...}}}.
	CurrentPricesEvent = "currentPrices@futures#update"
)

const (
	positionsPageSize = "50"
	unknownOrderID    = "unknown"
)
