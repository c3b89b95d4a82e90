package domain

import (
	"strings"
	"time"
)

// APIKind identifies which gateway interface a preset targets.
type APIKind string

const (
	APIKindRest APIKind = "rest"
	APIKindSoap APIKind = "soap"
	// APIKindPayJS marks client-side tokenization presets which can never be
	// proxied server-side.
	APIKindPayJS APIKind = "payjs"
)

// Environment selects the upstream gateway environment.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// ParseEnvironment maps free-form input to an Environment, defaulting to sandbox.
func ParseEnvironment(value string) Environment {
	if strings.EqualFold(strings.TrimSpace(value), string(EnvProduction)) {
		return EnvProduction
	}
	return EnvSandbox
}

// ParseAPIKind maps free-form input to an APIKind, defaulting to rest.
func ParseAPIKind(value string) APIKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(APIKindSoap):
		return APIKindSoap
	case string(APIKindPayJS):
		return APIKindPayJS
	default:
		return APIKindRest
	}
}

// Preset is a stored, parameterized request definition replayable with
// variable substitution. System presets are owned by the seeder and upserted
// on startup; user presets are never touched by that process.
type Preset struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	APIKind        APIKind           `json:"apiKind"`
	Environment    Environment       `json:"environment"`
	RestMethod     string            `json:"restMethod,omitempty"`
	PathOrEndpoint string            `json:"pathOrEndpoint,omitempty"`
	SoapAction     string            `json:"soapAction,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	BodyTemplate   string            `json:"bodyTemplate,omitempty"`
	Variables      map[string]string `json:"variables,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	IsQuick        bool              `json:"isQuick"`
	IsSystem       bool              `json:"isSystem"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}
