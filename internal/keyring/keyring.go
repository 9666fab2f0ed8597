// Package keyring holds the API key pairs used to sign private requests and
// rotates between them when the venue rejects or throttles a key.
package keyring

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"krakenkit/internal/auth"
	"krakenkit/pkg/core"
)

type KeyRing struct {
	mu       sync.RWMutex
	keys     []*APIKey
	current  int
	strategy RotationStrategy
	logger   zerolog.Logger
}

type APIKey struct {
	ID         string
	Key        string
	Secret     string
	Disabled   bool
	LastUsed   time.Time
	ErrorCount int
}

type RotationStrategy int

const (
	// RotationRoundRobin advances to the next key on every use.
	RotationRoundRobin RotationStrategy = iota
	// RotationOnError advances after any failed request.
	RotationOnError
	// RotationOnRateLimit advances only after rate-limit or authentication failures.
	RotationOnRateLimit
)

func NewKeyRing(keys []*APIKey, strategy RotationStrategy) *KeyRing {
	keysCopy := make([]*APIKey, len(keys))
	for i, k := range keys {
		keysCopy[i] = &APIKey{
			ID:         k.ID,
			Key:        k.Key,
			Secret:     k.Secret,
			Disabled:   k.Disabled,
			LastUsed:   k.LastUsed,
			ErrorCount: k.ErrorCount,
		}
	}

	return &KeyRing{
		keys:     keysCopy,
		strategy: strategy,
		logger:   zerolog.Nop(),
	}
}

// FromCredentials builds a ring from configured key pairs, naming them key-1, key-2, ...
func FromCredentials(creds []core.Credentials, strategy RotationStrategy) *KeyRing {
	keys := make([]*APIKey, len(creds))
	for i, c := range creds {
		keys[i] = &APIKey{ID: fmt.Sprintf("key-%d", i+1), Key: c.APIKey, Secret: c.APISecret}
	}
	return NewKeyRing(keys, strategy)
}

// SetLogger configures the logger for the key ring.
func (k *KeyRing) SetLogger(logger zerolog.Logger) {
	k.logger = logger
}

// Len returns the number of keys, including disabled ones.
func (k *KeyRing) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

// Current returns a copy of the first enabled key at or after the cursor, or nil.
func (k *KeyRing) Current() *APIKey {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if key := k.currentLocked(); key != nil {
		copied := *key
		return &copied
	}
	return nil
}

func (k *KeyRing) currentLocked() *APIKey {
	for i := 0; i < len(k.keys); i++ {
		idx := (k.current + i) % len(k.keys)
		if !k.keys[idx].Disabled {
			return k.keys[idx]
		}
	}
	return nil
}

// Sign signs a private request with the current key and marks it used.
// It returns the key id so failures can be reported against the right key.
func (k *KeyRing) Sign(path string, nonce uint64, postData string) (id, apiKey, signature string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	key := k.currentLocked()
	if key == nil {
		if len(k.keys) == 0 {
			return "", "", "", core.ErrNoCredentials
		}
		return "", "", "", core.ErrNoAPIKey
	}

	signature, err = auth.Sign(path, nonce, postData, key.Secret)
	if err != nil {
		return "", "", "", fmt.Errorf("sign with %s: %w", key.ID, err)
	}
	key.LastUsed = time.Now()
	if k.strategy == RotationRoundRobin {
		k.rotateLocked()
	}
	return key.ID, key.Key, signature, nil
}

func (k *KeyRing) Rotate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rotateLocked()
}

func (k *KeyRing) rotateLocked() {
	if len(k.keys) == 0 {
		return
	}

	start := k.current
	for {
		k.current = (k.current + 1) % len(k.keys)
		if !k.keys[k.current].Disabled {
			return
		}
		if k.current == start {
			return
		}
	}
}

// OnError records a failed request made with key id and rotates per the strategy.
func (k *KeyRing) OnError(id string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var key *APIKey
	for _, candidate := range k.keys {
		if candidate.ID == id {
			key = candidate
			break
		}
	}
	if key == nil {
		return
	}
	key.ErrorCount++

	rotate := false
	switch k.strategy {
	case RotationOnError:
		rotate = true
	case RotationOnRateLimit:
		rotate = core.IsRateLimitError(err) || core.IsAuthenticationError(err)
	}
	if rotate && k.keys[k.current] == key {
		k.rotateLocked()
		k.logger.Warn().
			Str("key", key.ID).
			Int("errors", key.ErrorCount).
			Err(err).
			Msg("rotated api key")
	}
}

func (k *KeyRing) Disable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = true
			return
		}
	}
}

func (k *KeyRing) Enable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = false
			key.ErrorCount = 0
			return
		}
	}
}

func (k *KeyRing) Add(key *APIKey) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, existing := range k.keys {
		if existing.ID == key.ID {
			return
		}
	}

	k.keys = append(k.keys, &APIKey{
		ID:     key.ID,
		Key:    key.Key,
		Secret: key.Secret,
	})
}

func (k *KeyRing) Remove(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i, key := range k.keys {
		if key.ID == id {
			k.keys = append(k.keys[:i], k.keys[i+1:]...)
			if k.current >= len(k.keys) && len(k.keys) > 0 {
				k.current = 0
			}
			return
		}
	}
}

func (k *APIKey) String() string {
	return fmt.Sprintf("APIKey{ID:%s, Key:%s}", k.ID, maskKey(k.Key))
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
