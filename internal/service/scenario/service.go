// Package scenario orchestrates preset execution: render, sign/execute,
// redact, record. It owns the only persistence side effect of the pipeline,
// the append-only ScenarioRun audit trail.
package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/redact"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/proxy"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/template"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/ws"
)

// ErrClientSideOnly rejects presets whose api kind can never be proxied
// server-side (Pay.js tokenization flows).
var ErrClientSideOnly = errors.New("client-side tokenization presets cannot be executed by the proxy")

// Service records scenario runs around the proxy executors.
type Service struct {
	runs   repository.RunRepository
	proxy  *proxy.Service
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs a Service. hub may be nil when no live feed is attached.
func New(runs repository.RunRepository, proxySvc *proxy.Service, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{runs: runs, proxy: proxySvc, hub: hub, logger: logger}
}

// RecentRuns returns the newest audit records.
func (s Service) RecentRuns(ctx context.Context, limit int) ([]domain.ScenarioRun, error) {
	if limit <= 0 {
		limit = 15
	}
	return s.runs.ListRecentRuns(ctx, limit)
}

// RecentErrors returns the newest failed runs.
func (s Service) RecentErrors(ctx context.Context, limit int) ([]domain.ScenarioRun, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.runs.ListRecentErrors(ctx, limit)
}

// Run fetches one audit record.
func (s Service) Run(ctx context.Context, id string) (*domain.ScenarioRun, error) {
	return s.runs.GetRunByID(ctx, id)
}

// ExecutePreset renders and executes one stored preset, then records the
// redacted exchange. Render and configuration failures surface as errors with
// nothing recorded; once the executor has been invoked, transport failures
// are recorded as failed runs so the audit trail keeps their latency.
func (s Service) ExecutePreset(ctx context.Context, preset *domain.Preset, ticketNumber string, confirmProduction bool, sessionID string) (*domain.ScenarioRun, error) {
	if preset.Environment == domain.EnvProduction && !confirmProduction {
		return nil, proxy.ErrConfirmationRequired
	}
	if preset.APIKind == domain.APIKindPayJS {
		return nil, ErrClientSideOnly
	}

	vars := template.WithBuiltins(preset.Variables, time.Now())

	headers, err := template.RenderMap(preset.Headers, vars)
	if err != nil {
		return nil, err
	}
	body, err := template.Render(preset.BodyTemplate, vars)
	if err != nil {
		return nil, err
	}
	pathOrEndpoint, err := template.Render(preset.PathOrEndpoint, vars)
	if err != nil {
		return nil, err
	}

	if preset.APIKind == domain.APIKindRest {
		method, err := template.Render(preset.RestMethod, vars)
		if err != nil {
			return nil, err
		}
		if method == "" {
			method = "POST"
		}
		req := domain.RestRequest{
			Environment:       preset.Environment,
			Method:            method,
			PathOrURL:         pathOrEndpoint,
			Headers:           headers,
			Body:              body,
			SessionID:         sessionID,
			PresetID:          &preset.ID,
			TicketNumber:      ticketNumber,
			ConfirmProduction: confirmProduction,
		}
		_, run, err := s.ExecuteRest(ctx, req)
		return run, err
	}

	soapAction, err := template.Render(preset.SoapAction, vars)
	if err != nil {
		return nil, err
	}
	req := domain.SoapRequest{
		Environment:       preset.Environment,
		SoapAction:        soapAction,
		EndpointURL:       pathOrEndpoint,
		Headers:           headers,
		Body:              body,
		SessionID:         sessionID,
		PresetID:          &preset.ID,
		TicketNumber:      ticketNumber,
		ConfirmProduction: confirmProduction,
	}
	_, run, err := s.ExecuteSoap(ctx, req)
	return run, err
}

// ExecuteRest runs one REST request through the proxy and appends the audit
// record. Pre-flight failures return with nothing recorded; transport
// failures after dispatch come back as recorded failed runs.
func (s Service) ExecuteRest(ctx context.Context, req domain.RestRequest) (domain.ProxyResponse, *domain.ScenarioRun, error) {
	resp, err := s.proxy.ExecuteRest(ctx, req)
	if err != nil {
		if isPreflight(err) {
			return resp, nil, err
		}
		run, recErr := s.recordFailure(ctx, domain.APIKindRest, req.PresetID, req.Environment, req.TicketNumber, serializeRest(req), resp, err)
		return resp, run, recErr
	}
	run, err := s.RecordRest(ctx, req, resp)
	return resp, run, err
}

// ExecuteSoap runs one SOAP envelope through the proxy and appends the audit
// record, with the same failure handling as ExecuteRest.
func (s Service) ExecuteSoap(ctx context.Context, req domain.SoapRequest) (domain.ProxyResponse, *domain.ScenarioRun, error) {
	resp, err := s.proxy.ExecuteSoap(ctx, req)
	if err != nil {
		if isPreflight(err) {
			return resp, nil, err
		}
		run, recErr := s.recordFailure(ctx, domain.APIKindSoap, req.PresetID, req.Environment, req.TicketNumber, serializeSoap(req), resp, err)
		return resp, run, recErr
	}
	run, err := s.RecordSoap(ctx, req, resp)
	return resp, run, err
}

// RecordRest appends the audit record for one REST exchange.
func (s Service) RecordRest(ctx context.Context, req domain.RestRequest, resp domain.ProxyResponse) (*domain.ScenarioRun, error) {
	status := resp.StatusCode
	run := &domain.ScenarioRun{
		ID:               uuid.NewString(),
		PresetID:         req.PresetID,
		APIKind:          domain.APIKindRest,
		Environment:      req.Environment,
		RequestRedacted:  redact.Redact(serializeRest(req)),
		ResponseRedacted: redact.Redact(resp.Body),
		HTTPStatus:       &status,
		LatencyMs:        resp.LatencyMs,
		CorrelationID:    newCorrelationID(),
		TicketNumber:     req.TicketNumber,
		CreatedAt:        time.Now().UTC(),
	}
	return s.insert(ctx, run)
}

// RecordSoap appends the audit record for one SOAP exchange.
func (s Service) RecordSoap(ctx context.Context, req domain.SoapRequest, resp domain.ProxyResponse) (*domain.ScenarioRun, error) {
	status := resp.StatusCode
	run := &domain.ScenarioRun{
		ID:               uuid.NewString(),
		PresetID:         req.PresetID,
		APIKind:          domain.APIKindSoap,
		Environment:      req.Environment,
		RequestRedacted:  redact.Redact(serializeSoap(req)),
		ResponseRedacted: redact.Redact(resp.Body),
		HTTPStatus:       &status,
		SoapFault:        resp.SoapFault,
		LatencyMs:        resp.LatencyMs,
		CorrelationID:    newCorrelationID(),
		TicketNumber:     req.TicketNumber,
		CreatedAt:        time.Now().UTC(),
	}
	return s.insert(ctx, run)
}

func (s Service) recordFailure(ctx context.Context, kind domain.APIKind, presetID *string, env domain.Environment, ticketNumber, serialized string, resp domain.ProxyResponse, cause error) (*domain.ScenarioRun, error) {
	run := &domain.ScenarioRun{
		ID:               uuid.NewString(),
		PresetID:         presetID,
		APIKind:          kind,
		Environment:      env,
		RequestRedacted:  redact.Redact(serialized),
		ResponseRedacted: redact.Redact(fmt.Sprintf("transport failure: %v", cause)),
		LatencyMs:        resp.LatencyMs,
		CorrelationID:    newCorrelationID(),
		TicketNumber:     ticketNumber,
		CreatedAt:        time.Now().UTC(),
	}
	s.logger.Warn("request execution failed", "api_kind", kind, "error", cause)
	return s.insert(ctx, run)
}

func (s Service) insert(ctx context.Context, run *domain.ScenarioRun) (*domain.ScenarioRun, error) {
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	s.broadcast(run)
	return run, nil
}

func (s Service) broadcast(run *domain.ScenarioRun) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(run)
	if err != nil {
		s.logger.Warn("run broadcast marshal failed", "run_id", run.ID, "error", err)
		return
	}
	s.hub.Broadcast(payload)
}

// isPreflight reports whether the executor failed before any network call was
// attempted; those failures are surfaced to the caller with nothing recorded.
func isPreflight(err error) bool {
	var cfgErr *proxy.ConfigError
	return errors.Is(err, proxy.ErrConfirmationRequired) || errors.As(err, &cfgErr)
}

func serializeRest(req domain.RestRequest) string {
	payload, err := json.MarshalIndent(struct {
		Method    string            `json:"method"`
		PathOrURL string            `json:"pathOrUrl"`
		Headers   map[string]string `json:"headers,omitempty"`
		Body      string            `json:"body,omitempty"`
	}{req.Method, req.PathOrURL, req.Headers, req.Body}, "", "  ")
	if err != nil {
		return ""
	}
	return string(payload)
}

func serializeSoap(req domain.SoapRequest) string {
	payload, err := json.MarshalIndent(struct {
		SoapAction  string            `json:"soapAction"`
		EndpointURL string            `json:"endpointUrl,omitempty"`
		Headers     map[string]string `json:"headers,omitempty"`
		Body        string            `json:"body"`
	}{req.SoapAction, req.EndpointURL, req.Headers, req.Body}, "", "  ")
	if err != nil {
		return ""
	}
	return string(payload)
}

// newCorrelationID issues the per-run trace identifier: a fresh UUID without
// dashes, unique for every run.
func newCorrelationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
