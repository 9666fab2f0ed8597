package core

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"krakenkit/internal/ratelimit"
)

// Params holds request parameters. Values are rendered by Encode.
type Params map[string]any

// Encode renders the params as a sorted form/query string.
func (p Params) Encode() string {
	values := make(url.Values, len(p))
	for k, v := range p {
		values.Set(k, formatParam(v))
	}
	return values.Encode()
}

// Strings renders each value the way Encode does, for query-string APIs.
func (p Params) Strings() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = formatParam(v)
	}
	return out
}

func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ",")
	case *apd.Decimal:
		return val.Text('f')
	case apd.Decimal:
		return val.Text('f')
	case time.Time:
		return fmt.Sprint(val.Unix())
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Request describes one REST call before it is signed and sent.
type Request struct {
	Operation Operation         `json:"operation"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Params    Params            `json:"params,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Tier      ratelimit.Tier    `json:"tier"`
	Private   bool              `json:"private"`
	CacheKey  string            `json:"cache_key,omitempty"`
	CacheTTL  time.Duration     `json:"cache_ttl,omitempty"`
}

// NewRequest creates a request for op. Private operations are POSTed as form bodies.
func NewRequest(op Operation) *Request {
	method := http.MethodGet
	if op.IsPrivate() {
		method = http.MethodPost
	}
	return &Request{
		Operation: op,
		Method:    method,
		Path:      op.Path(),
		Params:    make(Params),
		Headers:   make(map[string]string),
		Tier:      op.Tier(),
		Private:   op.IsPrivate(),
	}
}

func (r *Request) SetParam(key string, value any) *Request {
	if r.Params == nil {
		r.Params = make(Params)
	}
	r.Params[key] = value
	return r
}

// SetParamIf sets key only when ok is true, for optional parameters.
func (r *Request) SetParamIf(ok bool, key string, value any) *Request {
	if ok {
		r.SetParam(key, value)
	}
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetCache(key string, ttl time.Duration) *Request {
	r.CacheKey = key
	r.CacheTTL = ttl
	return r
}

func (r *Request) SetParams(params Params) *Request {
	if r.Params == nil {
		r.Params = make(Params)
	}
	maps.Copy(r.Params, params)
	return r
}
