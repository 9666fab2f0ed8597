package stream

import (
	"github.com/bytedance/sonic"

	"krakenkit/pkg/core"
)

// decoder keeps numbers as json.Number so channel ids and prices survive untouched.
var decoder = sonic.Config{UseNumber: true}.Froze()

// envelope carries every field any control object may have. Pointers record presence.
type envelope struct {
	Event        *string       `json:"event"`
	ConnectionID *uint64       `json:"connectionID"`
	Status       *string       `json:"status"`
	Version      *string       `json:"version"`
	ChannelID    *uint64       `json:"channelID"`
	ChannelName  *string       `json:"channelName"`
	Pair         *string       `json:"pair"`
	ReqID        *uint64       `json:"reqid"`
	ErrorMessage *string       `json:"errorMessage"`
	Subscription *Subscription `json:"subscription"`
}

type objectMatcher func(e *envelope) (Message, bool)

// objectMatchers are tried in order; the first match wins.
var objectMatchers = []objectMatcher{
	matchSystemStatus,
	matchSubscriptionStatus,
	matchEvent("heartbeat", func(*envelope) Message { return Heartbeat{} }),
	matchEvent("ping", func(e *envelope) Message { return Ping{ReqID: e.ReqID} }),
	matchEvent("pong", func(e *envelope) Message { return Pong{ReqID: e.ReqID} }),
	matchErrorNotice,
}

// Classify turns one text frame into a typed message.
//
// Control objects are matched by field presence first, then JSON arrays become
// DataArray, then any other valid JSON becomes Generic. Text that is not JSON at
// all yields a *core.ParseError.
func Classify(text []byte) (Message, error) {
	var env envelope
	if err := decoder.Unmarshal(text, &env); err == nil {
		for _, match := range objectMatchers {
			if msg, ok := match(&env); ok {
				return msg, nil
			}
		}
	}

	var arr []any
	if err := decoder.Unmarshal(text, &arr); err == nil && arr != nil {
		return DataArray(arr), nil
	}

	var value any
	if err := decoder.Unmarshal(text, &value); err != nil {
		return nil, &core.ParseError{Text: string(text), Err: err}
	}
	return Generic{Value: value}, nil
}

func matchSystemStatus(e *envelope) (Message, bool) {
	if e.Event == nil || e.ConnectionID == nil || e.Status == nil || e.Version == nil {
		return nil, false
	}
	return SystemStatus{
		Event:        *e.Event,
		ConnectionID: *e.ConnectionID,
		Status:       *e.Status,
		Version:      *e.Version,
	}, true
}

func matchSubscriptionStatus(e *envelope) (Message, bool) {
	if e.Event == nil || e.Status == nil || e.Subscription == nil {
		return nil, false
	}
	return SubscriptionStatus{
		Event:        *e.Event,
		Status:       *e.Status,
		ChannelID:    e.ChannelID,
		ChannelName:  deref(e.ChannelName),
		Pair:         deref(e.Pair),
		ReqID:        e.ReqID,
		ErrorMessage: deref(e.ErrorMessage),
		Subscription: *e.Subscription,
	}, true
}

func matchEvent(event string, build func(*envelope) Message) objectMatcher {
	return func(e *envelope) (Message, bool) {
		if e.Event == nil || *e.Event != event {
			return nil, false
		}
		return build(e), true
	}
}

func matchErrorNotice(e *envelope) (Message, bool) {
	if e.Event == nil || e.ErrorMessage == nil || e.Status == nil {
		return nil, false
	}
	return ErrorNotice{
		Event:        *e.Event,
		ErrorMessage: *e.ErrorMessage,
		Status:       *e.Status,
		Subscription: e.Subscription,
		Pair:         deref(e.Pair),
	}, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
