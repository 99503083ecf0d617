package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DefaultKeyPrefixes are the prefixes accepted by StashKey when none are given.
// OpenAI keys start with "sk-", and so do Anthropic keys ("sk-ant-").
var DefaultKeyPrefixes = []string{"sk-"}

// ErrInvalidKeyFormat is returned by StashKey for keys without a known prefix.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

// tokenBytes is the amount of randomness in a stash token.
const tokenBytes = 16

// Stash maps opaque tokens to raw keys for the life of the process.
type Stash interface {
	Put(token, key string)
	Get(token string) (string, bool)
}

// MemoryStash is an in-memory Stash safe for concurrent use.
//
// Entries are never evicted: a stashed key lives as long as the process.
type MemoryStash struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemoryStash creates an empty stash.
func NewMemoryStash() *MemoryStash {
	return &MemoryStash{keys: make(map[string]string)}
}

// Put stores key under token, replacing any previous entry.
func (s *MemoryStash) Put(token, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = make(map[string]string)
	}
	s.keys[token] = key
}

// Get returns the key stored under token.
func (s *MemoryStash) Get(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[token]
	return key, ok
}

// Len returns the number of stashed keys.
func (s *MemoryStash) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// StashKey validates a raw key, stores it in the stash under a fresh random
// token and returns a Reference to that token. Only the token should be
// persisted in configuration; the raw key stays in the stash.
func StashKey(stash Stash, key string, prefixes ...string) (Reference, error) {
	if stash == nil {
		return Reference{}, errors.New("no stash configured")
	}
	if len(prefixes) == 0 {
		prefixes = DefaultKeyPrefixes
	}
	if !hasAnyPrefix(key, prefixes) {
		return Reference{}, fmt.Errorf("%w: API key must start with %s", ErrInvalidKeyFormat, strings.Join(prefixes, " or "))
	}

	token, err := newToken()
	if err != nil {
		return Reference{}, err
	}
	for token == key {
		if token, err = newToken(); err != nil {
			return Reference{}, err
		}
	}

	stash.Put(token, key)
	return StashToken(token), nil
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate stash token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
