// Package soapops executes typed SOAP gateway operations. Each operation
// variant is validated field by field before any network call; transport
// failures and cancellation always come back as structured results carrying
// elapsed latency, never as raw errors.
package soapops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/creds"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/proxy"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/session"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/pkg/config"
)

// ErrMissingCredentials is returned when no resolution tier yields a complete
// pair; unlike REST signing, SOAP calls cannot proceed unauthenticated.
var ErrMissingCredentials = errors.New(
	"SOAP source key and PIN are required; provide them in the request, session, or configuration")

// ValidationError names every missing or invalid field of one operation.
type ValidationError struct {
	Operation string
	Fields    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s requires %s", e.Operation, strings.Join(e.Fields, ", "))
}

// Input describes one typed operation request.
type Input struct {
	Environment       domain.Environment
	EndpointURL       string
	SourceKey         string
	Pin               string
	ClientIP          string
	RemoteAddr        string
	SessionID         string
	ConfirmProduction bool
	Operation         domain.Operation
}

// Result is the structured outcome of one operation attempt.
type Result struct {
	Operation    string `json:"operation"`
	Success      bool   `json:"success"`
	Payload      string `json:"payload,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	HTTPStatus   int    `json:"httpStatus,omitempty"`
	SoapFault    bool   `json:"soapFault"`
	LatencyMs    int64  `json:"latencyMs"`
	Endpoint     string `json:"endpoint"`
}

// Service runs typed SOAP operations through the proxy executor.
type Service struct {
	proxy    *proxy.Service
	sessions *session.Store
	cfg      config.Config
	log      *slog.Logger
}

// New constructs a Service.
func New(proxySvc *proxy.Service, sessions *session.Store, cfg config.Config, log *slog.Logger) *Service {
	return &Service{proxy: proxySvc, sessions: sessions, cfg: cfg, log: log}
}

// Execute validates, signs and runs one operation. Pre-flight failures
// (confirmation, validation, credentials, endpoint configuration) are
// returned as errors before any network call; once the call is in flight
// every failure becomes a Result.
func (s *Service) Execute(ctx context.Context, input Input) (Result, error) {
	if input.Environment == domain.EnvProduction && !input.ConfirmProduction {
		return Result{}, proxy.ErrConfirmationRequired
	}
	if input.Operation == nil {
		return Result{}, errors.New("no SOAP operation provided")
	}
	if err := validate(input.Operation); err != nil {
		return Result{}, err
	}

	resolver := creds.NewResolver(
		creds.Explicit{Key: input.SourceKey, Secret: input.Pin},
		s.sessions.ForSession(input.SessionID),
		creds.Static{Cfg: s.cfg},
	)
	sourceKey, pin := resolver.Resolve(ctx, input.Environment)
	if sourceKey == "" || pin == "" {
		return Result{}, ErrMissingCredentials
	}

	endpoint, err := s.proxy.ResolveSoapEndpoint(ctx, input.SessionID, input.Environment, input.EndpointURL)
	if err != nil {
		return Result{}, err
	}

	clientIP := resolveClientIP(input.ClientIP, input.RemoteAddr)
	token := creds.BuildSecurityToken(sourceKey, pin, clientIP)
	envelope, err := buildEnvelope(input.Operation, token, clientIP)
	if err != nil {
		return Result{}, err
	}

	opName := input.Operation.Name()
	resp, err := s.proxy.ExecuteSoap(ctx, domain.SoapRequest{
		Environment:       input.Environment,
		SoapAction:        "urn:usaepay#" + opName,
		EndpointURL:       endpoint,
		Body:              envelope,
		SessionID:         input.SessionID,
		ConfirmProduction: input.ConfirmProduction,
	})
	if err != nil {
		message := err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			message = "SOAP request canceled"
		}
		s.log.Error("soap operation failed", "operation", opName, "error", err)
		return Result{
			Operation:    opName,
			Success:      false,
			ErrorMessage: message,
			LatencyMs:    resp.LatencyMs,
			Endpoint:     endpoint,
		}, nil
	}

	fault := resp.SoapFault != nil && *resp.SoapFault
	return Result{
		Operation:  opName,
		Success:    resp.StatusCode < 400 && !fault,
		Payload:    resp.Body,
		HTTPStatus: resp.StatusCode,
		SoapFault:  fault,
		LatencyMs:  resp.LatencyMs,
		Endpoint:   endpoint,
	}, nil
}

// validate switches exhaustively over the operation variants and collects
// every missing required field.
func validate(op domain.Operation) error {
	var fields []string
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			fields = append(fields, field)
		}
	}
	requireAmount := func(value string) {
		if strings.TrimSpace(value) == "" {
			fields = append(fields, "amount")
			return
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			fields = append(fields, "amount (numeric)")
		}
	}

	switch v := op.(type) {
	case domain.Sale:
		requireAmount(v.Amount)
		require("card number", v.CardNumber)
		require("card expiration", v.CardExpiration)
	case domain.AuthOnly:
		requireAmount(v.Amount)
		require("card number", v.CardNumber)
		require("card expiration", v.CardExpiration)
	case domain.Credit:
		requireAmount(v.Amount)
		require("card number", v.CardNumber)
		require("card expiration", v.CardExpiration)
	case domain.CheckSale:
		requireAmount(v.Amount)
		require("routing number", v.Routing)
		require("account number", v.Account)
		require("check number", v.CheckNumber)
	case domain.QuickSale:
		require("refnum", v.RefNum)
		requireAmount(v.Amount)
	case domain.Void:
		require("refnum", v.RefNum)
	case domain.Refund:
		require("refnum", v.RefNum)
		requireAmount(v.Amount)
	default:
		return fmt.Errorf("unsupported SOAP operation: %s", op.Name())
	}

	if len(fields) > 0 {
		return &ValidationError{Operation: op.Name(), Fields: fields}
	}
	return nil
}

// resolveClientIP prefers the explicit override, then the caller's observed
// remote address, then empty.
func resolveClientIP(override, remoteAddr string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
