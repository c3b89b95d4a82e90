package proxy

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
)

const wsdlSuffix = "/usaepay.wsdl"

// ExecuteSoap posts one SOAP envelope. The endpoint resolution order is
// explicit request endpoint, then session override, then environment default.
func (s *Service) ExecuteSoap(ctx context.Context, req domain.SoapRequest) (domain.ProxyResponse, error) {
	if req.Environment == domain.EnvProduction && !req.ConfirmProduction {
		return domain.ProxyResponse{}, ErrConfirmationRequired
	}

	endpoint, err := s.ResolveSoapEndpoint(ctx, req.SessionID, req.Environment, req.EndpointURL)
	if err != nil {
		return domain.ProxyResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(req.Body))
	if err != nil {
		return domain.ProxyResponse{}, fmt.Errorf("build request: %w", err)
	}
	applyHeaders(httpReq, req.Headers)
	httpReq.Header.Set("Content-Type", resolveContentType(req.Headers, "text/xml; charset=utf-8"))
	if strings.TrimSpace(req.SoapAction) != "" {
		httpReq.Header.Set("SOAPAction", req.SoapAction)
	}

	resp, err := s.send(httpReq)
	if err != nil {
		return resp, err
	}

	// Substring heuristic, kept for compatibility. Any payload containing the
	// literal text "fault" (a field named DefaultRate, say) will be
	// misclassified as a fault.
	fault := strings.Contains(strings.ToLower(resp.Body), "fault")
	resp.SoapFault = &fault

	s.log.Info("soap proxy", "endpoint", endpoint, "status", resp.StatusCode,
		"fault", fault, "latency_ms", resp.LatencyMs)
	return resp, nil
}

// ResolveSoapEndpoint picks and validates the SOAP endpoint for a call.
func (s *Service) ResolveSoapEndpoint(ctx context.Context, sessionID string, env domain.Environment, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return normalizeEndpoint(override)
	}
	if s.sessions != nil && sessionID != "" {
		stored, err := s.sessions.Endpoint(ctx, sessionID, env)
		if err != nil {
			s.log.Warn("session endpoint lookup failed", "error", err)
		} else if strings.TrimSpace(stored) != "" {
			return normalizeEndpoint(stored)
		}
	}
	configured := s.cfg.Gateway(string(env)).SoapEndpoint
	if strings.TrimSpace(configured) == "" {
		return "", &ConfigError{Reason: fmt.Sprintf("SOAP endpoint not configured for %s", env)}
	}
	return normalizeEndpoint(configured)
}

// normalizeEndpoint strips a trailing WSDL suffix and slash, then rejects
// endpoints that end at the bare gateway path: those are missing the
// per-account key segment and can never authenticate.
func normalizeEndpoint(endpoint string) (string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if strings.HasSuffix(strings.ToLower(trimmed), wsdlSuffix) {
		trimmed = trimmed[:len(trimmed)-len(wsdlSuffix)]
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if strings.HasSuffix(strings.ToLower(trimmed), "/soap/gate") {
		return "", &ConfigError{Reason: "SOAP endpoint is missing the account key segment; " +
			"use the Developer Center WSDL URL (https://sandbox.usaepay.com/soap/gate/<key>/usaepay.wsdl) " +
			"or configure the endpoint as https://sandbox.usaepay.com/soap/gate/<key>"}
	}
	return trimmed, nil
}
