// Package session stores per-session credential and endpoint overrides in
// Redis. The execution core only reads this state; writes happen from the
// console HTTP surface. Secrets are AES-GCM encrypted at rest.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/pkg/crypto"
)

// Field names under one session/environment namespace. SourceKey/Pin are
// current; ApiKey/ApiSecret remain readable for sessions written by earlier
// console versions.
const (
	fieldSourceKey    = "SourceKey"
	fieldPin          = "Pin"
	fieldApiKey       = "ApiKey"
	fieldApiSecret    = "ApiSecret"
	fieldSoapEndpoint = "SoapEndpoint"
)

// ErrUnavailable is returned when no session backend is configured.
var ErrUnavailable = errors.New("session: store not configured")

// Store keeps session-scoped overrides with a sliding TTL.
type Store struct {
	client *redis.Client
	secret string
	ttl    time.Duration
	log    *slog.Logger
}

// NewStore connects to Redis and verifies the connection, mirroring the
// fail-fast construction of the rate limiter backends.
func NewStore(addr, password string, db int, encryptionSecret string, ttl time.Duration, log *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Store{client: client, secret: encryptionSecret, ttl: ttl, log: log}, nil
}

// Close releases the Redis connection.
func (s *Store) Close() {
	if s != nil && s.client != nil {
		_ = s.client.Close()
	}
}

func key(sessionID string, env domain.Environment, field string) string {
	return fmt.Sprintf("usaepay:%s:%s:%s", sessionID, env, field)
}

// SetCredentials saves an override pair for one session and environment.
func (s *Store) SetCredentials(ctx context.Context, sessionID string, env domain.Environment, sourceKey, pin string) error {
	if s == nil {
		return ErrUnavailable
	}
	encKey, err := crypto.EncryptString(s.secret, sourceKey)
	if err != nil {
		return fmt.Errorf("encrypt source key: %w", err)
	}
	encPin, err := crypto.EncryptString(s.secret, pin)
	if err != nil {
		return fmt.Errorf("encrypt pin: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key(sessionID, env, fieldSourceKey), encKey, s.ttl)
	pipe.Set(ctx, key(sessionID, env, fieldPin), encPin, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// ClearCredentials removes the override pair, including legacy-alias fields.
func (s *Store) ClearCredentials(ctx context.Context, sessionID string, env domain.Environment) error {
	if s == nil {
		return ErrUnavailable
	}
	return s.client.Del(ctx,
		key(sessionID, env, fieldSourceKey),
		key(sessionID, env, fieldPin),
		key(sessionID, env, fieldApiKey),
		key(sessionID, env, fieldApiSecret),
	).Err()
}

// SetEndpoint saves a SOAP endpoint override for one session and environment.
func (s *Store) SetEndpoint(ctx context.Context, sessionID string, env domain.Environment, endpoint string) error {
	if s == nil {
		return ErrUnavailable
	}
	return s.client.Set(ctx, key(sessionID, env, fieldSoapEndpoint), endpoint, s.ttl).Err()
}

// Endpoint returns the stored SOAP endpoint override, or "" when absent.
func (s *Store) Endpoint(ctx context.Context, sessionID string, env domain.Environment) (string, error) {
	if s == nil || sessionID == "" {
		return "", nil
	}
	value, err := s.client.Get(ctx, key(sessionID, env, fieldSoapEndpoint)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

// Credentials reads the stored pair for one session and environment. Each
// field independently falls back to its legacy alias.
func (s *Store) Credentials(ctx context.Context, sessionID string, env domain.Environment) (string, string, error) {
	if s == nil || sessionID == "" {
		return "", "", nil
	}
	sourceKey, err := s.getSecret(ctx, sessionID, env, fieldSourceKey, fieldApiKey)
	if err != nil {
		return "", "", err
	}
	pin, err := s.getSecret(ctx, sessionID, env, fieldPin, fieldApiSecret)
	if err != nil {
		return "", "", err
	}
	return sourceKey, pin, nil
}

func (s *Store) getSecret(ctx context.Context, sessionID string, env domain.Environment, field, legacyField string) (string, error) {
	for _, f := range []string{field, legacyField} {
		value, err := s.client.Get(ctx, key(sessionID, env, f)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", err
		}
		plain, err := crypto.DecryptToString(s.secret, value)
		if err != nil {
			s.log.Warn("session secret unreadable", "field", f, "error", err)
			continue
		}
		return plain, nil
	}
	return "", nil
}

// Provider binds a Store to one session ID so it can serve as a credential
// resolution tier.
type Provider struct {
	store     *Store
	sessionID string
}

// ForSession returns a credential provider scoped to sessionID. A nil store
// or blank session yields an always-empty tier.
func (s *Store) ForSession(sessionID string) Provider {
	return Provider{store: s, sessionID: sessionID}
}

// Lookup implements the credential provider contract.
func (p Provider) Lookup(ctx context.Context, env domain.Environment) (string, string, error) {
	if p.store == nil || p.sessionID == "" {
		return "", "", nil
	}
	return p.store.Credentials(ctx, p.sessionID, env)
}
