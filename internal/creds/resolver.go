// Package creds resolves gateway credentials and computes the two
// authentication artifacts the gateway understands: the s2 API-hash used for
// REST Basic auth and the MD5 security token carried inside legacy SOAP
// envelopes. Neither proves anything beyond possession of the secret; the
// secret itself is never transmitted.
package creds

import (
	"context"
	"strings"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/pkg/config"
)

// Provider looks up a credential pair for one environment. A blank component
// means this tier cannot contribute it.
type Provider interface {
	Lookup(ctx context.Context, env domain.Environment) (key, secret string, err error)
}

// Resolver walks an ordered provider list and returns the first complete
// pair. Partial pairs never win and never merge across tiers.
type Resolver struct {
	providers []Provider
}

// NewResolver constructs a Resolver with providers in priority order.
func NewResolver(providers ...Provider) *Resolver {
	return &Resolver{providers: providers}
}

// Resolve returns the first complete (key, secret) pair, or two empty strings
// when no tier yields one. Provider failures are treated as an empty tier so
// a flaky session store cannot block execution; signing is best-effort.
func (r *Resolver) Resolve(ctx context.Context, env domain.Environment) (string, string) {
	for _, p := range r.providers {
		key, secret, err := p.Lookup(ctx, env)
		if err != nil {
			continue
		}
		key = strings.TrimSpace(key)
		secret = strings.TrimSpace(secret)
		if key != "" && secret != "" {
			return key, secret
		}
	}
	return "", ""
}

// Explicit is the highest-priority tier: credentials supplied directly by the
// caller on one request.
type Explicit struct {
	Key    string
	Secret string
}

// Lookup returns the explicit pair for any environment.
func (e Explicit) Lookup(ctx context.Context, env domain.Environment) (string, string, error) {
	return e.Key, e.Secret, nil
}

// Static reads per-environment credentials from configuration, trying the
// current field names first and the legacy aliases second, independently for
// key and secret.
type Static struct {
	Cfg config.Config
}

// Lookup resolves the configured pair for env.
func (s Static) Lookup(ctx context.Context, env domain.Environment) (string, string, error) {
	gw := s.Cfg.Gateway(string(env))
	key := gw.SourceKey
	if strings.TrimSpace(key) == "" {
		key = gw.ApiKey
	}
	secret := gw.Pin
	if strings.TrimSpace(secret) == "" {
		secret = gw.ApiSecret
	}
	return key, secret, nil
}
