// Package auth signs private REST requests.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Sign computes the API-Sign header value:
// base64(HMAC-SHA512(path + SHA256(nonce + postData), base64decode(secret))).
func Sign(path string, nonce uint64, postData, secret string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	inner := sha256.Sum256([]byte(strconv.FormatUint(nonce, 10) + postData))

	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(path))
	mac.Write(inner[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// NonceSource issues strictly increasing millisecond nonces, even when called
// several times within the same millisecond.
type NonceSource struct {
	mu   sync.Mutex
	last uint64
	now  func() time.Time
}

// NewNonceSource creates a NonceSource backed by the wall clock.
func NewNonceSource() *NonceSource {
	return &NonceSource{now: time.Now}
}

// Next returns the next nonce.
func (n *NonceSource) Next() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := uint64(n.now().UnixMilli())
	if next <= n.last {
		next = n.last + 1
	}
	n.last = next
	return next
}
