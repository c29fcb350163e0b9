// Package redis provides Redis-backed adapters for the portal.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jemaat/portal/internal/data/cryptoutil"
	"github.com/jemaat/portal/internal/ports"
)

// DefaultCredentialPrefix namespaces credential keys.
const DefaultCredentialPrefix = "portal:client:"

const credentialSuffix = ":auth_token"

// CredentialStore keeps one bearer token per browser client.
type CredentialStore struct {
	client redis.UniversalClient
	prefix string
	sealer cryptoutil.Sealer // nil stores tokens as is
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore creates a credential store. An empty prefix uses DefaultCredentialPrefix.
func NewCredentialStore(client redis.UniversalClient, prefix string) *CredentialStore {
	if prefix == "" {
		prefix = DefaultCredentialPrefix
	}
	return &CredentialStore{client: client, prefix: prefix}
}

// WithSealer seals tokens at rest, bound to their client ID. Entries that no
// longer open, for example after a key was dropped, read as missing.
func (s *CredentialStore) WithSealer(sealer cryptoutil.Sealer) *CredentialStore {
	s.sealer = sealer
	return s
}

func (s *CredentialStore) key(clientID string) string {
	return s.prefix + clientID + credentialSuffix
}

// Get returns the stored token or ports.ErrNoCredential.
func (s *CredentialStore) Get(ctx context.Context, clientID string) (string, error) {
	if clientID == "" {
		return "", ports.ErrNoCredential
	}

	token, err := s.client.Get(ctx, s.key(clientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNoCredential
		}
		return "", fmt.Errorf("redis get credential: %w", err)
	}
	if token == "" {
		return "", ports.ErrNoCredential
	}
	if s.sealer != nil {
		plain, err := s.sealer.Open(token, []byte(clientID))
		if err != nil || len(plain) == 0 {
			return "", ports.ErrNoCredential
		}
		token = string(plain)
	}
	return token, nil
}

// Set replaces the client's token. ttl <= 0 keeps it until deleted.
func (s *CredentialStore) Set(ctx context.Context, clientID, token string, ttl time.Duration) error {
	if clientID == "" {
		return errors.New("client ID cannot be empty")
	}
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if ttl < 0 {
		ttl = 0
	}
	value := token
	if s.sealer != nil {
		sealed, err := s.sealer.Seal([]byte(token), []byte(clientID))
		if err != nil {
			return fmt.Errorf("encrypt credential: %w", err)
		}
		value = sealed
	}
	if err := s.client.Set(ctx, s.key(clientID), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set credential: %w", err)
	}
	return nil
}

// Delete removes the client's token. Missing keys are not an error.
func (s *CredentialStore) Delete(ctx context.Context, clientID string) error {
	if clientID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(clientID)).Err(); err != nil {
		return fmt.Errorf("redis del credential: %w", err)
	}
	return nil
}
