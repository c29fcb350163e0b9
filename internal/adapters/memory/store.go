// Package memory provides process-local stores used when Redis is disabled.
// State is lost on restart and not shared between replicas.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jemaat/portal/internal/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// CredentialStore is an in-memory ports.CredentialStore.
type CredentialStore struct {
	mu     sync.Mutex
	tokens map[string]entry
	now    func() time.Time
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{tokens: make(map[string]entry), now: time.Now}
}

func (s *CredentialStore) Get(_ context.Context, clientID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tokens[clientID]
	if !ok {
		return "", ports.ErrNoCredential
	}
	if e.expired(s.now()) {
		delete(s.tokens, clientID)
		return "", ports.ErrNoCredential
	}
	return string(e.value), nil
}

func (s *CredentialStore) Set(_ context.Context, clientID, token string, ttl time.Duration) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[clientID] = entry{value: []byte(token), expiresAt: deadline(s.now(), ttl)}
	return nil
}

func (s *CredentialStore) Delete(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, clientID)
	return nil
}

// ContentCache is an in-memory ports.ContentCache.
type ContentCache struct {
	mu        sync.Mutex
	resources map[string]map[string]entry
	now       func() time.Time
}

var _ ports.ContentCache = (*ContentCache)(nil)

// NewContentCache creates an empty content cache.
func NewContentCache() *ContentCache {
	return &ContentCache{resources: make(map[string]map[string]entry), now: time.Now}
}

func (c *ContentCache) Get(_ context.Context, resource, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.resources[resource][key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		delete(c.resources[resource], key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *ContentCache) Set(_ context.Context, resource, key string, value []byte, ttl time.Duration) error {
	if resource == "" || key == "" {
		return errors.New("resource and key cannot be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.resources[resource]
	if !ok {
		m = make(map[string]entry)
		c.resources[resource] = m
	}
	m[key] = entry{value: append([]byte(nil), value...), expiresAt: deadline(c.now(), ttl)}
	return nil
}

func (c *ContentCache) Invalidate(_ context.Context, resource string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.resources, resource)
	return nil
}
