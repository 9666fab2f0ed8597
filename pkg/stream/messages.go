package stream

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Kind identifies the shape of an inbound message.
type Kind int

// Inbound message kinds, in classification priority order.
const (
	KindSystemStatus Kind = iota
	KindSubscriptionStatus
	KindHeartbeat
	KindPing
	KindPong
	KindError
	KindData
	KindGeneric
)

// String returns the wire event name for control kinds and "data"/"generic" otherwise.
func (k Kind) String() string {
	switch k {
	case KindSystemStatus:
		return "systemStatus"
	case KindSubscriptionStatus:
		return "subscriptionStatus"
	case KindHeartbeat:
		return "heartbeat"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindError:
		return "error"
	case KindData:
		return "data"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Message is one classified inbound frame.
type Message interface {
	Kind() Kind
}

// Result is delivered on the channel returned by Session.Connect.
// Exactly one of Message and Err is set.
type Result struct {
	Message Message
	Err     error
}

// SystemStatus is sent once after the connection opens and on status changes.
type SystemStatus struct {
	Event        string `json:"event"`
	ConnectionID uint64 `json:"connectionID"`
	Status       string `json:"status"`
	Version      string `json:"version"`
}

func (SystemStatus) Kind() Kind { return KindSystemStatus }

// SubscriptionStatus acknowledges a subscribe or unsubscribe request.
// Optional fields the server omitted are left at their zero value.
type SubscriptionStatus struct {
	Event        string       `json:"event"`
	Status       string       `json:"status"`
	ChannelID    *uint64      `json:"channelID,omitempty"`
	ChannelName  string       `json:"channelName,omitempty"`
	Pair         string       `json:"pair,omitempty"`
	ReqID        *uint64      `json:"reqid,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	Subscription Subscription `json:"subscription"`
}

func (SubscriptionStatus) Kind() Kind { return KindSubscriptionStatus }

// Subscribed reports whether the server accepted a subscribe request.
func (s SubscriptionStatus) Subscribed() bool { return s.Status == "subscribed" }

// Heartbeat is sent by the server when no data has been pushed for about a second.
type Heartbeat struct{}

func (Heartbeat) Kind() Kind { return KindHeartbeat }

// Ping is an application-level ping.
type Ping struct {
	ReqID *uint64
}

func (Ping) Kind() Kind { return KindPing }

// Pong answers an application-level ping.
type Pong struct {
	ReqID *uint64
}

func (Pong) Kind() Kind { return KindPong }

// ErrorNotice is a server-side rejection that is not tied to a subscription ack.
type ErrorNotice struct {
	Event        string        `json:"event"`
	ErrorMessage string        `json:"errorMessage"`
	Status       string        `json:"status"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Pair         string        `json:"pair,omitempty"`
}

func (ErrorNotice) Kind() Kind { return KindError }

func (e ErrorNotice) Error() string { return "stream: " + e.ErrorMessage }

// DataArray is a channel data push: [channelID, payload..., channelName, pair].
// Elements keep their wire order; numbers decode as json.Number.
type DataArray []any

func (DataArray) Kind() Kind { return KindData }

// ChannelID returns the leading numeric channel id, if present.
func (d DataArray) ChannelID() (uint64, bool) {
	if len(d) == 0 {
		return 0, false
	}
	n, ok := d[0].(fmt.Stringer)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(n.String(), 10, 64)
	return id, err == nil
}

// ChannelName returns the channel name element (e.g. "ticker", "book-10").
func (d DataArray) ChannelName() string {
	if len(d) < 3 {
		return ""
	}
	s, _ := d[len(d)-2].(string)
	return s
}

// Pair returns the trailing pair element.
func (d DataArray) Pair() string {
	if len(d) < 3 {
		return ""
	}
	s, _ := d[len(d)-1].(string)
	return s
}

// Payload returns the elements between the channel id and the channel name.
func (d DataArray) Payload() []any {
	if len(d) < 4 {
		return nil
	}
	return d[1 : len(d)-2]
}

// Generic is any other valid JSON value.
type Generic struct {
	Value any
}

func (Generic) Kind() Kind { return KindGeneric }

// SubscriptionName is a channel name. Requests are checked against the public
// channels below; names echoed back by the venue are kept as sent.
type SubscriptionName string

// Public channel names.
const (
	ChannelTicker SubscriptionName = "ticker"
	ChannelOHLC   SubscriptionName = "ohlc"
	ChannelTrade  SubscriptionName = "trade"
	ChannelSpread SubscriptionName = "spread"
	ChannelBook   SubscriptionName = "book"
	ChannelAll    SubscriptionName = "*"
)

// ParseSubscriptionName maps a channel name onto the closed set of known channels.
func ParseSubscriptionName(name string) (SubscriptionName, error) {
	switch n := SubscriptionName(name); n {
	case ChannelTicker, ChannelOHLC, ChannelTrade, ChannelSpread, ChannelBook, ChannelAll:
		return n, nil
	default:
		return "", fmt.Errorf("unknown subscription %q", name)
	}
}

// Subscription describes a channel and its options.
type Subscription struct {
	Name     SubscriptionName `json:"name" validate:"oneof=ticker ohlc trade spread book *"`
	Interval uint32           `json:"interval,omitempty" validate:"omitempty,oneof=1 5 15 30 60 240 1440 10080 21600"`
	Depth    uint32           `json:"depth,omitempty" validate:"omitempty,oneof=10 25 100 500 1000"`
}

// Subscription request events.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
)

// SubscribeRequest is the wire form of a subscribe or unsubscribe command.
type SubscribeRequest struct {
	Event        string       `json:"event" validate:"oneof=subscribe unsubscribe"`
	ReqID        uint64       `json:"reqid,omitempty"`
	Pair         []string     `json:"pair,omitempty" validate:"dive,required"`
	Subscription Subscription `json:"subscription"`
}

// NewSubscribe creates a subscribe request for the named channel.
func NewSubscribe(name SubscriptionName) *SubscribeRequest {
	return &SubscribeRequest{Event: EventSubscribe, Subscription: Subscription{Name: name}}
}

// NewUnsubscribe creates an unsubscribe request for the named channel.
func NewUnsubscribe(name SubscriptionName) *SubscribeRequest {
	return &SubscribeRequest{Event: EventUnsubscribe, Subscription: Subscription{Name: name}}
}

func (r *SubscribeRequest) WithPairs(pairs ...string) *SubscribeRequest {
	r.Pair = pairs
	return r
}

func (r *SubscribeRequest) AddPair(pair string) *SubscribeRequest {
	r.Pair = append(r.Pair, pair)
	return r
}

// WithInterval sets the candle interval in minutes (ohlc only).
func (r *SubscribeRequest) WithInterval(minutes uint32) *SubscribeRequest {
	r.Subscription.Interval = minutes
	return r
}

// WithDepth sets the number of book levels (book only).
func (r *SubscribeRequest) WithDepth(depth uint32) *SubscribeRequest {
	r.Subscription.Depth = depth
	return r
}

// WithReqID tags the request so the matching subscriptionStatus can be correlated.
func (r *SubscribeRequest) WithReqID(id uint64) *SubscribeRequest {
	r.ReqID = id
	return r
}

var validate = validator.New()

// Validate checks the channel name and option values.
func (r *SubscribeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid subscription: %w", err)
	}
	if r.Subscription.Interval != 0 && r.Subscription.Name != ChannelOHLC {
		return fmt.Errorf("invalid subscription: interval only applies to %s", ChannelOHLC)
	}
	if r.Subscription.Depth != 0 && r.Subscription.Name != ChannelBook {
		return fmt.Errorf("invalid subscription: depth only applies to %s", ChannelBook)
	}
	return nil
}
