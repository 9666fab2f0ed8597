package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase an asset.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell an asset.
	SideSell
)

// String returns the wire representation of the order side ("buy" or "sell").
func (s OrderSide) String() string {
	return [...]string{"buy", "sell"}[s]
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts the wire codes "b"/"s" used by trade arrays as well as full words.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(data), `"`)) {
	case "buy", "b":
		*s = SideBuy
	case "sell", "s":
		*s = SideSell
	default:
		return fmt.Errorf("unknown order side %s", data)
	}
	return nil
}

// OrderType represents how an order executes.
type OrderType int

// Order type constants.
const (
	// TypeMarket executes immediately at the best available price.
	TypeMarket OrderType = iota
	// TypeLimit executes at a specified price or better.
	TypeLimit
	// TypeStopLoss triggers a market order when price reaches stop price.
	TypeStopLoss
	// TypeTakeProfit triggers a market order when price reaches target.
	TypeTakeProfit
	// TypeStopLossLimit triggers a limit order when price reaches stop price.
	TypeStopLossLimit
	// TypeTakeProfitLimit triggers a limit order when price reaches target.
	TypeTakeProfitLimit
	// TypeSettlePosition closes a margin position.
	TypeSettlePosition
)

var orderTypeNames = [...]string{
	"market", "limit", "stop-loss", "take-profit", "stop-loss-limit", "take-profit-limit", "settle-position",
}

// String returns the wire representation of the order type.
func (t OrderType) String() string {
	return orderTypeNames[t]
}

// NeedsPrice reports whether the order type requires a price.
func (t OrderType) NeedsPrice() bool {
	return t != TypeMarket && t != TypeSettlePosition
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
// It accepts the wire codes "m"/"l" used by trade arrays as well as full names.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	str := strings.ToLower(strings.Trim(string(data), `"`))
	switch str {
	case "m":
		*t = TypeMarket
		return nil
	case "l":
		*t = TypeLimit
		return nil
	}
	for i, name := range orderTypeNames {
		if name == str {
			*t = OrderType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown order type %s", data)
}

// OrderStatus represents the current state of an order.
type OrderStatus string

// Order status values as reported by the venue.
const (
	StatusPending  OrderStatus = "pending"
	StatusOpen     OrderStatus = "open"
	StatusClosed   OrderStatus = "closed"
	StatusCanceled OrderStatus = "canceled"
	StatusExpired  OrderStatus = "expired"
)

// IsTerminal returns true if the order is in a terminal state (no further changes possible).
func (s OrderStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCanceled || s == StatusExpired
}

// ServerTime is the venue clock.
type ServerTime struct {
	UnixTime int64  `json:"unixtime"`
	RFC1123  string `json:"rfc1123"`
}

// Time returns the server time as a time.Time.
func (s ServerTime) Time() time.Time {
	return time.Unix(s.UnixTime, 0)
}

// AssetInfo describes one asset.
type AssetInfo struct {
	AltName         string `json:"altname"`
	AssetClass      string `json:"aclass"`
	Decimals        int    `json:"decimals"`
	DisplayDecimals int    `json:"display_decimals"`
	Status          string `json:"status,omitempty"`
}

// AssetPair describes one tradable pair.
type AssetPair struct {
	AltName           string      `json:"altname"`
	WSName            string      `json:"wsname,omitempty"`
	AssetClassBase    string      `json:"aclass_base"`
	Base              string      `json:"base"`
	AssetClassQuote   string      `json:"aclass_quote"`
	Quote             string      `json:"quote"`
	PairDecimals      int         `json:"pair_decimals"`
	LotDecimals       int         `json:"lot_decimals"`
	LotMultiplier     int         `json:"lot_multiplier"`
	Fees              [][]float64 `json:"fees"`
	FeesMaker         [][]float64 `json:"fees_maker,omitempty"`
	FeeVolumeCurrency string      `json:"fee_volume_currency"`
	MarginCall        int         `json:"margin_call"`
	MarginStop        int         `json:"margin_stop"`
	OrderMin          apd.Decimal `json:"ordermin"`
}

// Ticker represents real-time market data for a trading pair.
type Ticker struct {
	// Pair is the venue's pair name (e.g. "XXBTZUSD").
	Pair string `json:"pair"`
	// Bid is the best bid price.
	Bid apd.Decimal `json:"bid"`
	// Ask is the best ask price.
	Ask apd.Decimal `json:"ask"`
	// Last is the price of the most recent trade.
	Last apd.Decimal `json:"last"`
	// Open is today's opening price.
	Open apd.Decimal `json:"open"`
	// High is the highest price in the last 24 hours.
	High apd.Decimal `json:"high"`
	// Low is the lowest price in the last 24 hours.
	Low apd.Decimal `json:"low"`
	// Volume is the traded volume in the last 24 hours.
	Volume apd.Decimal `json:"volume"`
	// VWAP is the volume weighted average price in the last 24 hours.
	VWAP apd.Decimal `json:"vwap"`
	// Trades is the number of trades in the last 24 hours.
	Trades int64 `json:"trades"`
	// Timestamp is when this ticker was received.
	Timestamp time.Time `json:"timestamp"`
}

// Candle is one OHLC interval.
type Candle struct {
	Time   time.Time   `json:"time"`
	Open   apd.Decimal `json:"open"`
	High   apd.Decimal `json:"high"`
	Low    apd.Decimal `json:"low"`
	Close  apd.Decimal `json:"close"`
	VWAP   apd.Decimal `json:"vwap"`
	Volume apd.Decimal `json:"volume"`
	Count  int64       `json:"count"`
}

// OHLC is a page of candles plus the cursor for the next poll.
type OHLC struct {
	Pair    string   `json:"pair"`
	Candles []Candle `json:"candles"`
	Last    int64    `json:"last"`
}

// OrderBookLevel represents a single price level in the order book.
type OrderBookLevel struct {
	Price     apd.Decimal `json:"price"`
	Volume    apd.Decimal `json:"volume"`
	Timestamp time.Time   `json:"timestamp"`
}

// OrderBook represents a depth snapshot for a trading pair.
type OrderBook struct {
	// Pair is the venue's pair name.
	Pair string `json:"pair"`
	// Bids are buy levels sorted by price descending.
	Bids []OrderBookLevel `json:"bids"`
	// Asks are sell levels sorted by price ascending.
	Asks []OrderBookLevel `json:"asks"`
}

// PublicTrade is one executed trade from the public tape.
type PublicTrade struct {
	Price     apd.Decimal `json:"price"`
	Volume    apd.Decimal `json:"volume"`
	Time      time.Time   `json:"time"`
	Side      OrderSide   `json:"side"`
	OrderType OrderType   `json:"order_type"`
	Misc      string      `json:"misc"`
}

// Trades is a page of public trades plus the cursor for the next poll.
type Trades struct {
	Pair   string        `json:"pair"`
	Trades []PublicTrade `json:"trades"`
	Last   string        `json:"last"`
}

// Balance is the holding of one asset.
type Balance struct {
	Asset  string      `json:"asset"`
	Amount apd.Decimal `json:"amount"`
}

// TradeBalance summarizes margin and equity.
type TradeBalance struct {
	EquivalentBalance apd.Decimal `json:"eb"`
	TradeBalance      apd.Decimal `json:"tb"`
	MarginUsed        apd.Decimal `json:"m"`
	UnrealizedPnL     apd.Decimal `json:"n"`
	Cost              apd.Decimal `json:"c"`
	Valuation         apd.Decimal `json:"v"`
	Equity            apd.Decimal `json:"e"`
	FreeMargin        apd.Decimal `json:"mf"`
	MarginLevel       apd.Decimal `json:"ml"`
}

// OrderDescription is the venue's summary of an order.
type OrderDescription struct {
	Pair      string `json:"pair"`
	Side      string `json:"type"`
	OrderType string `json:"ordertype"`
	Price     string `json:"price"`
	Price2    string `json:"price2"`
	Leverage  string `json:"leverage"`
	Order     string `json:"order"`
	Close     string `json:"close,omitempty"`
}

// OrderInfo describes an open or closed order.
type OrderInfo struct {
	RefID          string           `json:"refid,omitempty"`
	UserRef        int64            `json:"userref,omitempty"`
	Status         OrderStatus      `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	OpenTime       float64          `json:"opentm"`
	StartTime      float64          `json:"starttm"`
	ExpireTime     float64          `json:"expiretm"`
	CloseTime      float64          `json:"closetm,omitempty"`
	Description    OrderDescription `json:"descr"`
	Volume         apd.Decimal      `json:"vol"`
	VolumeExecuted apd.Decimal      `json:"vol_exec"`
	Cost           apd.Decimal      `json:"cost"`
	Fee            apd.Decimal      `json:"fee"`
	Price          apd.Decimal      `json:"price"`
	StopPrice      apd.Decimal      `json:"stopprice"`
	LimitPrice     apd.Decimal      `json:"limitprice"`
	Misc           string           `json:"misc"`
	OrderFlags     string           `json:"oflags"`
	Trades         []string         `json:"trades,omitempty"`
}

// OpenOrders maps transaction ids to open orders.
type OpenOrders struct {
	Open map[string]OrderInfo `json:"open"`
}

// ClosedOrders is a page of closed orders.
type ClosedOrders struct {
	Closed map[string]OrderInfo `json:"closed"`
	Count  int                  `json:"count"`
}

// TradeInfo is one trade from the account's history.
type TradeInfo struct {
	OrderTxID string      `json:"ordertxid"`
	PosTxID   string      `json:"postxid"`
	Pair      string      `json:"pair"`
	Time      float64     `json:"time"`
	Side      string      `json:"type"`
	OrderType string      `json:"ordertype"`
	Price     apd.Decimal `json:"price"`
	Cost      apd.Decimal `json:"cost"`
	Fee       apd.Decimal `json:"fee"`
	Volume    apd.Decimal `json:"vol"`
	Margin    apd.Decimal `json:"margin"`
	Misc      string      `json:"misc"`
}

// TradesHistory is a page of account trades.
type TradesHistory struct {
	Trades map[string]TradeInfo `json:"trades"`
	Count  int                  `json:"count"`
}

// LedgerEntry is one ledger movement.
type LedgerEntry struct {
	RefID      string      `json:"refid"`
	Time       float64     `json:"time"`
	Type       string      `json:"type"`
	SubType    string      `json:"subtype,omitempty"`
	AssetClass string      `json:"aclass"`
	Asset      string      `json:"asset"`
	Amount     apd.Decimal `json:"amount"`
	Fee        apd.Decimal `json:"fee"`
	Balance    apd.Decimal `json:"balance"`
}

// Ledgers is a page of ledger entries.
type Ledgers struct {
	Ledger map[string]LedgerEntry `json:"ledger"`
	Count  int                    `json:"count"`
}

// Order flags accepted by AddOrder.
const (
	FlagPostOnly      = "post"
	FlagFeeInBase     = "fcib"
	FlagFeeInQuote    = "fciq"
	FlagNoMarketProt  = "nompp"
	FlagVolumeInQuote = "viqc"
)

// OrderRequest describes a new order.
type OrderRequest struct {
	Pair       string       `validate:"required"`
	Side       OrderSide    `validate:"oneof=0 1"`
	Type       OrderType    `validate:"min=0,max=6"`
	Volume     *apd.Decimal `validate:"required"`
	Price      *apd.Decimal
	Price2     *apd.Decimal
	Leverage   string
	Flags      []string `validate:"dive,oneof=post fcib fciq nompp viqc"`
	StartTime  string
	ExpireTime string
	UserRef    int32
	// ValidateOnly asks the venue to validate the order without submitting it.
	ValidateOnly bool
}

// NewOrderRequest creates an order request.
func NewOrderRequest(pair string, side OrderSide, orderType OrderType, volume *apd.Decimal) *OrderRequest {
	return &OrderRequest{Pair: pair, Side: side, Type: orderType, Volume: volume}
}

// WithPrice sets the primary price and returns the request for chaining.
func (o *OrderRequest) WithPrice(price *apd.Decimal) *OrderRequest {
	o.Price = price
	return o
}

// WithPrice2 sets the secondary price and returns the request for chaining.
func (o *OrderRequest) WithPrice2(price *apd.Decimal) *OrderRequest {
	o.Price2 = price
	return o
}

// WithFlags sets order flags and returns the request for chaining.
func (o *OrderRequest) WithFlags(flags ...string) *OrderRequest {
	o.Flags = append(o.Flags, flags...)
	return o
}

// WithUserRef sets the user reference id and returns the request for chaining.
func (o *OrderRequest) WithUserRef(ref int32) *OrderRequest {
	o.UserRef = ref
	return o
}

// WithValidateOnly toggles validate-only submission and returns the request for chaining.
func (o *OrderRequest) WithValidateOnly(v bool) *OrderRequest {
	o.ValidateOnly = v
	return o
}

// Validate checks the request before it is sent.
func (o *OrderRequest) Validate() error {
	if err := validate.Struct(o); err != nil {
		return err
	}
	if o.Volume.Sign() <= 0 {
		return errors.New("volume must be positive")
	}
	if o.Type.NeedsPrice() && o.Price == nil {
		return fmt.Errorf("%s order requires a price", o.Type)
	}
	return nil
}

// Params renders the request as AddOrder form parameters.
func (o *OrderRequest) Params() Params {
	p := Params{
		"pair":      o.Pair,
		"type":      o.Side.String(),
		"ordertype": o.Type.String(),
		"volume":    o.Volume,
	}
	if o.Price != nil {
		p["price"] = o.Price
	}
	if o.Price2 != nil {
		p["price2"] = o.Price2
	}
	if o.Leverage != "" {
		p["leverage"] = o.Leverage
	}
	if len(o.Flags) > 0 {
		p["oflags"] = o.Flags
	}
	if o.StartTime != "" {
		p["starttm"] = o.StartTime
	}
	if o.ExpireTime != "" {
		p["expiretm"] = o.ExpireTime
	}
	if o.UserRef != 0 {
		p["userref"] = o.UserRef
	}
	if o.ValidateOnly {
		p["validate"] = true
	}
	return p
}

// AddOrderResult is the venue's acknowledgement of a new order.
type AddOrderResult struct {
	Description struct {
		Order string `json:"order"`
		Close string `json:"close,omitempty"`
	} `json:"descr"`
	TxIDs []string `json:"txid"`
}

// CancelResult reports how many orders a cancel request affected.
type CancelResult struct {
	Count   int  `json:"count"`
	Pending bool `json:"pending,omitempty"`
}
