// Package proxy executes outbound REST and SOAP calls against the gateway,
// measuring latency and classifying the outcome. It is the only part of the
// execution pipeline that touches the network.
package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/creds"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/session"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/pkg/config"
)

// Service sends proxied gateway requests over a shared pooled client.
type Service struct {
	client   *http.Client
	cfg      config.Config
	sessions *session.Store
	log      *slog.Logger
}

// New constructs a proxy service. sessions may be nil when no session backend
// is configured; the session credential tier is then always empty.
func New(cfg config.Config, sessions *session.Store, log *slog.Logger) *Service {
	return &Service{
		client:   &http.Client{Timeout: cfg.UpstreamTimeout},
		cfg:      cfg,
		sessions: sessions,
		log:      log,
	}
}

// ExecuteRest performs one REST call. Credential signing is best-effort: when
// no tier yields a complete pair the request goes out unauthenticated rather
// than failing. Transport errors still return the elapsed latency on the
// response value.
func (s *Service) ExecuteRest(ctx context.Context, req domain.RestRequest) (domain.ProxyResponse, error) {
	if req.Environment == domain.EnvProduction && !req.ConfirmProduction {
		return domain.ProxyResponse{}, ErrConfirmationRequired
	}

	gw := s.cfg.Gateway(string(req.Environment))
	if strings.TrimSpace(gw.RestBaseURL) == "" {
		return domain.ProxyResponse{}, &ConfigError{
			Reason: fmt.Sprintf("REST base URL not configured for %s", req.Environment),
		}
	}

	requestURL := buildRequestURL(gw.RestBaseURL, req.PathOrURL)

	var body io.Reader
	if strings.TrimSpace(req.Body) != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, requestURL, body)
	if err != nil {
		return domain.ProxyResponse{}, fmt.Errorf("build request: %w", err)
	}

	applyHeaders(httpReq, req.Headers)
	if body != nil {
		httpReq.Header.Set("Content-Type", resolveContentType(req.Headers, "application/json"))
	}
	s.applyAuthorization(ctx, httpReq, req)

	resp, err := s.send(httpReq)
	if err != nil {
		return resp, err
	}
	s.log.Info("rest proxy", "method", req.Method, "url", requestURL,
		"status", resp.StatusCode, "latency_ms", resp.LatencyMs)
	return resp, nil
}

// applyAuthorization attaches the s2 API-hash Basic credential unless the
// caller already supplied an Authorization value, either on the request state
// or inside the header map. An explicit value always wins and skips signing.
func (s *Service) applyAuthorization(ctx context.Context, httpReq *http.Request, req domain.RestRequest) {
	if strings.TrimSpace(req.Authorization) != "" {
		httpReq.Header.Set("Authorization", req.Authorization)
		return
	}
	if httpReq.Header.Get("Authorization") != "" {
		return
	}
	resolver := creds.NewResolver(
		creds.Explicit{Key: req.SourceKey, Secret: req.Pin},
		s.sessions.ForSession(req.SessionID),
		creds.Static{Cfg: s.cfg},
	)
	key, secret := resolver.Resolve(ctx, req.Environment)
	if key == "" || secret == "" {
		return
	}
	httpReq.Header.Set("Authorization", creds.BasicAuth(key, creds.APIHash(key, secret)))
}

// send performs the call, measures wall-clock latency and flattens response
// headers into a single map with multi-valued headers comma-joined.
func (s *Service) send(httpReq *http.Request) (domain.ProxyResponse, error) {
	start := time.Now()
	resp, err := s.client.Do(httpReq)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return domain.ProxyResponse{LatencyMs: latency}, fmt.Errorf("upstream call: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	latency = time.Since(start).Milliseconds()
	if err != nil {
		return domain.ProxyResponse{StatusCode: resp.StatusCode, LatencyMs: latency},
			fmt.Errorf("read response: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		headers[name] = strings.Join(values, ",")
	}

	return domain.ProxyResponse{
		StatusCode: resp.StatusCode,
		Body:       string(payload),
		Headers:    headers,
		LatencyMs:  latency,
	}, nil
}

// buildRequestURL uses pathOrURL verbatim when absolute, otherwise joins it
// to the environment base URL.
func buildRequestURL(baseURL, pathOrURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	trimmed := strings.TrimSpace(pathOrURL)
	if trimmed == "" {
		return base
	}
	if parsed, err := url.Parse(trimmed); err == nil && parsed.IsAbs() {
		return parsed.String()
	}
	return base + "/" + strings.TrimLeft(trimmed, "/")
}

// applyHeaders copies caller headers verbatim except Content-Type, which is
// reapplied explicitly alongside the body.
func applyHeaders(httpReq *http.Request, headers map[string]string) {
	for name, value := range headers {
		if strings.EqualFold(name, "Content-Type") {
			continue
		}
		httpReq.Header.Set(name, value)
	}
}

func resolveContentType(headers map[string]string, fallback string) string {
	for name, value := range headers {
		if strings.EqualFold(name, "Content-Type") {
			return value
		}
	}
	return fallback
}
