// Package httpx exposes the console JSON API: preset management, the manual
// proxy endpoints, typed SOAP transactions, the run audit trail, session
// overrides and the live run feed.
package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/preset"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/proxy"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/scenario"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/soapops"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/session"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/template"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/ws"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/pkg/token"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	presets     preset.Service
	scenarios   scenario.Service
	soapOps     *soapops.Service
	sessions    *session.Store
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	limiter     RateLimiter
	tokenSecret string
	sessionTTL  time.Duration
	dbHealth    func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	upstreamTotal      *prometheus.CounterVec
}

const (
	rateWindowDefault   = time.Minute
	rateWindowRealtime  = 30 * time.Second
	rateLimitPresetRead = 120
	rateLimitPresetMod  = 60
	rateLimitExecute    = 30
	rateLimitSession    = 30
	rateLimitRuns       = 120
	rateLimitWebsocket  = 30
	healthCheckTimeout  = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, presetSvc preset.Service, scenarioSvc scenario.Service, soapSvc *soapops.Service, sessions *session.Store, hub *ws.Hub, limiter RateLimiter, tokenSecret string, sessionTTL time.Duration, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		presets:   presetSvc,
		scenarios: scenarioSvc,
		soapOps:   soapSvc,
		sessions:  sessions,
		hub:       hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:     limiter,
		tokenSecret: strings.TrimSpace(tokenSecret),
		sessionTTL:  sessionTTL,
		dbHealth:    dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/presets", r.audit(r.withRateLimit("presets", rateLimitPresetMod, rateWindowDefault, r.rateLimitKeySession, r.handlePresets)))
	r.mux.HandleFunc("/presets/", r.audit(r.withRateLimit("preset", rateLimitPresetRead, rateWindowDefault, r.rateLimitKeySession, r.handlePresetSubroutes)))
	r.mux.HandleFunc("/proxy/rest", r.audit(r.withRateLimit("proxy_rest", rateLimitExecute, rateWindowDefault, r.rateLimitKeySession, r.handleProxyRest)))
	r.mux.HandleFunc("/proxy/soap", r.audit(r.withRateLimit("proxy_soap", rateLimitExecute, rateWindowDefault, r.rateLimitKeySession, r.handleProxySoap)))
	r.mux.HandleFunc("/soap/transactions", r.audit(r.withRateLimit("soap_transactions", rateLimitExecute, rateWindowDefault, r.rateLimitKeySession, r.handleSoapTransactions)))
	r.mux.HandleFunc("/runs", r.audit(r.withRateLimit("runs", rateLimitRuns, rateWindowDefault, r.rateLimitKeySession, r.handleRuns)))
	r.mux.HandleFunc("/runs/", r.audit(r.withRateLimit("run", rateLimitRuns, rateWindowDefault, r.rateLimitKeySession, r.handleRunByID)))
	r.mux.HandleFunc("/session/credentials", r.audit(r.withRateLimit("session_credentials", rateLimitSession, rateWindowDefault, rateLimitKeyIP, r.handleSessionCredentials)))
	r.mux.HandleFunc("/session/endpoint", r.audit(r.withRateLimit("session_endpoint", rateLimitSession, rateWindowDefault, rateLimitKeyIP, r.handleSessionEndpoint)))
	r.mux.HandleFunc("/ws/runs", r.audit(r.withRateLimit("ws_runs", rateLimitWebsocket, rateWindowRealtime, rateLimitKeyIP, r.handleRunsWS)))
}

func (r *Router) handlePresets(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.listPresets(w, req)
	case http.MethodPost:
		r.upsertPreset(w, req, "")
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) listPresets(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	limit := parseLimit(query.Get("limit"))

	var (
		presets []domain.Preset
		err     error
	)
	switch view := query.Get("view"); view {
	case "quick":
		presets, err = r.presets.Quick(req.Context(), limit)
	case "custom":
		presets, err = r.presets.Custom(req.Context(), limit)
	case "system":
		presets, err = r.presets.System(req.Context(), limit)
	default:
		term := strings.TrimSpace(query.Get("q"))
		if term != "" || query.Get("api") != "" {
			var kind *domain.APIKind
			if rawKind := query.Get("api"); rawKind != "" {
				parsed := domain.ParseAPIKind(rawKind)
				kind = &parsed
			}
			presets, err = r.presets.Search(req.Context(), term, kind)
		} else {
			presets, err = r.presets.Recent(req.Context(), limit)
		}
	}
	if err != nil {
		r.logger.Error("preset list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list presets")
		return
	}
	if presets == nil {
		presets = []domain.Preset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": presets})
}

func (r *Router) upsertPreset(w http.ResponseWriter, req *http.Request, id string) {
	var payload domain.Preset
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	payload.ID = id
	payload.IsSystem = false
	payload.APIKind = domain.ParseAPIKind(string(payload.APIKind))
	payload.Environment = domain.ParseEnvironment(string(payload.Environment))

	stored, err := r.presets.Upsert(req.Context(), &payload)
	if err != nil {
		if errors.Is(err, preset.ErrNameRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.logger.Error("preset upsert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store preset")
		return
	}
	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, stored)
}

func (r *Router) handlePresetSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/presets/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		r.notFound(w)
		return
	}
	id := parts[0]

	if len(parts) == 2 && parts[1] == "run" {
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		r.runPreset(w, req, id)
		return
	}
	if len(parts) != 1 {
		r.notFound(w)
		return
	}

	switch req.Method {
	case http.MethodGet:
		stored, err := r.presets.Get(req.Context(), id)
		if err != nil {
			r.presetError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	case http.MethodPut:
		r.upsertPreset(w, req, id)
	case http.MethodDelete:
		if err := r.presets.Delete(req.Context(), id); err != nil {
			r.presetError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) runPreset(w http.ResponseWriter, req *http.Request, id string) {
	var payload struct {
		TicketNumber      string `json:"ticketNumber"`
		ConfirmProduction bool   `json:"confirmProduction"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	stored, err := r.presets.Get(req.Context(), id)
	if err != nil {
		r.presetError(w, err)
		return
	}
	run, err := r.scenarios.ExecutePreset(req.Context(), stored, payload.TicketNumber, payload.ConfirmProduction, r.sessionID(req))
	if err != nil {
		r.executionError(w, err)
		return
	}
	r.recordUpstreamCall(string(stored.APIKind), string(stored.Environment), runOutcome(run))
	writeJSON(w, http.StatusOK, map[string]any{
		"run":         run,
		"diagnostics": runDiagnostics(run),
	})
}

func (r *Router) handleProxyRest(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Environment       string            `json:"environment"`
		Method            string            `json:"method"`
		PathOrURL         string            `json:"pathOrUrl"`
		Headers           map[string]string `json:"headers"`
		Body              string            `json:"body"`
		Authorization     string            `json:"authorization"`
		SourceKey         string            `json:"sourceKey"`
		Pin               string            `json:"pin"`
		TicketNumber      string            `json:"ticketNumber"`
		ConfirmProduction bool              `json:"confirmProduction"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	restReq := domain.RestRequest{
		Environment:       domain.ParseEnvironment(payload.Environment),
		Method:            payload.Method,
		PathOrURL:         payload.PathOrURL,
		Headers:           payload.Headers,
		Body:              payload.Body,
		Authorization:     payload.Authorization,
		SourceKey:         payload.SourceKey,
		Pin:               payload.Pin,
		SessionID:         r.sessionID(req),
		TicketNumber:      payload.TicketNumber,
		ConfirmProduction: payload.ConfirmProduction,
	}
	resp, run, err := r.scenarios.ExecuteRest(req.Context(), restReq)
	if err != nil {
		r.executionError(w, err)
		return
	}
	r.recordUpstreamCall("rest", string(restReq.Environment), runOutcome(run))
	writeJSON(w, http.StatusOK, map[string]any{
		"response":    resp,
		"run":         run,
		"diagnostics": buildDiagnostics(resp),
	})
}

func (r *Router) handleProxySoap(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Environment       string            `json:"environment"`
		SoapAction        string            `json:"soapAction"`
		EndpointURL       string            `json:"endpointUrl"`
		Headers           map[string]string `json:"headers"`
		Body              string            `json:"body"`
		TicketNumber      string            `json:"ticketNumber"`
		ConfirmProduction bool              `json:"confirmProduction"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	soapReq := domain.SoapRequest{
		Environment:       domain.ParseEnvironment(payload.Environment),
		SoapAction:        payload.SoapAction,
		EndpointURL:       payload.EndpointURL,
		Headers:           payload.Headers,
		Body:              payload.Body,
		SessionID:         r.sessionID(req),
		TicketNumber:      payload.TicketNumber,
		ConfirmProduction: payload.ConfirmProduction,
	}
	resp, run, err := r.scenarios.ExecuteSoap(req.Context(), soapReq)
	if err != nil {
		r.executionError(w, err)
		return
	}
	r.recordUpstreamCall("soap", string(soapReq.Environment), runOutcome(run))
	writeJSON(w, http.StatusOK, map[string]any{
		"response":    resp,
		"run":         run,
		"diagnostics": buildDiagnostics(resp),
	})
}

func (r *Router) handleSoapTransactions(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Environment       string          `json:"environment"`
		EndpointURL       string          `json:"endpointUrl"`
		SourceKey         string          `json:"sourceKey"`
		Pin               string          `json:"pin"`
		ClientIP          string          `json:"clientIp"`
		ConfirmProduction bool            `json:"confirmProduction"`
		Operation         json.RawMessage `json:"operation"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	op, err := decodeOperation(payload.Operation)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := soapops.Input{
		Environment:       domain.ParseEnvironment(payload.Environment),
		EndpointURL:       payload.EndpointURL,
		SourceKey:         payload.SourceKey,
		Pin:               payload.Pin,
		ClientIP:          payload.ClientIP,
		RemoteAddr:        req.RemoteAddr,
		SessionID:         r.sessionID(req),
		ConfirmProduction: payload.ConfirmProduction,
		Operation:         op,
	}
	result, err := r.soapOps.Execute(req.Context(), input)
	if err != nil {
		r.executionError(w, err)
		return
	}
	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	r.recordUpstreamCall("soap", string(input.Environment), outcome)
	writeJSON(w, http.StatusOK, result)
}

// decodeOperation maps a tagged JSON object to its typed operation variant.
func decodeOperation(raw json.RawMessage) (domain.Operation, error) {
	if len(raw) == 0 {
		return nil, errors.New("operation is required")
	}
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, errors.New("invalid operation payload")
	}

	var (
		op  domain.Operation
		err error
	)
	switch tagged.Type {
	case "sale":
		var v domain.Sale
		err = json.Unmarshal(raw, &v)
		op = v
	case "authOnly":
		var v domain.AuthOnly
		err = json.Unmarshal(raw, &v)
		op = v
	case "credit":
		var v domain.Credit
		err = json.Unmarshal(raw, &v)
		op = v
	case "checkSale":
		var v domain.CheckSale
		err = json.Unmarshal(raw, &v)
		op = v
	case "quickSale":
		var v domain.QuickSale
		err = json.Unmarshal(raw, &v)
		op = v
	case "void":
		var v domain.Void
		err = json.Unmarshal(raw, &v)
		op = v
	case "refund":
		var v domain.Refund
		err = json.Unmarshal(raw, &v)
		op = v
	default:
		return nil, errors.New("unknown operation type: " + tagged.Type)
	}
	if err != nil {
		return nil, errors.New("invalid operation payload")
	}
	return op, nil
}

func (r *Router) handleRuns(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	query := req.URL.Query()
	limit := parseLimit(query.Get("limit"))

	var (
		runs []domain.ScenarioRun
		err  error
	)
	if query.Get("view") == "errors" {
		runs, err = r.scenarios.RecentErrors(req.Context(), limit)
	} else {
		runs, err = r.scenarios.RecentRuns(req.Context(), limit)
	}
	if err != nil {
		r.logger.Error("run list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []domain.ScenarioRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (r *Router) handleRunByID(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(req.URL.Path, "/runs/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	run, err := r.scenarios.Run(req.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		r.logger.Error("run lookup failed", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (r *Router) handleSessionCredentials(w http.ResponseWriter, req *http.Request) {
	if r.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session store not configured")
		return
	}
	switch req.Method {
	case http.MethodPut:
		var payload struct {
			Environment string `json:"environment"`
			SourceKey   string `json:"sourceKey"`
			Pin         string `json:"pin"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		if strings.TrimSpace(payload.SourceKey) == "" || strings.TrimSpace(payload.Pin) == "" {
			writeError(w, http.StatusBadRequest, "sourceKey and pin are required")
			return
		}
		sid, issued, err := r.ensureSession(req)
		if err != nil {
			r.logger.Error("session token issue failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to issue session token")
			return
		}
		env := domain.ParseEnvironment(payload.Environment)
		if err := r.sessions.SetCredentials(req.Context(), sid, env, payload.SourceKey, payload.Pin); err != nil {
			r.sessionError(w, err)
			return
		}
		response := map[string]string{"status": "stored", "environment": string(env)}
		if issued != "" {
			response["sessionToken"] = issued
		}
		writeJSON(w, http.StatusOK, response)
	case http.MethodDelete:
		sid := r.sessionID(req)
		if sid == "" {
			writeError(w, http.StatusUnauthorized, "session token required")
			return
		}
		env := domain.ParseEnvironment(req.URL.Query().Get("environment"))
		if err := r.sessions.ClearCredentials(req.Context(), sid, env); err != nil {
			r.sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "environment": string(env)})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleSessionEndpoint(w http.ResponseWriter, req *http.Request) {
	if r.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session store not configured")
		return
	}
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Environment string `json:"environment"`
		EndpointURL string `json:"endpointUrl"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.EndpointURL) == "" {
		writeError(w, http.StatusBadRequest, "endpointUrl is required")
		return
	}
	sid, issued, err := r.ensureSession(req)
	if err != nil {
		r.logger.Error("session token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}
	env := domain.ParseEnvironment(payload.Environment)
	if err := r.sessions.SetEndpoint(req.Context(), sid, env, payload.EndpointURL); err != nil {
		r.sessionError(w, err)
		return
	}
	response := map[string]string{"status": "stored", "environment": string(env)}
	if issued != "" {
		response["sessionToken"] = issued
	}
	writeJSON(w, http.StatusOK, response)
}

func (r *Router) handleRunsWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(client)
	go func() {
		defer func() {
			r.hub.Unregister(client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	components["session_store"] = map[string]any{"configured": r.sessions != nil}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// sessionID extracts and verifies the console session token, returning the
// empty string for anonymous callers.
func (r *Router) sessionID(req *http.Request) string {
	raw := strings.TrimSpace(req.Header.Get("X-Session-Token"))
	if raw == "" {
		auth := strings.TrimSpace(req.Header.Get("Authorization"))
		if strings.HasPrefix(auth, "Bearer ") {
			raw = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if raw == "" || r.tokenSecret == "" {
		return ""
	}
	claims, err := token.Parse(raw, r.tokenSecret)
	if err != nil {
		return ""
	}
	return claims.SessionID
}

// ensureSession reuses the caller's session when a valid token is presented,
// otherwise mints a fresh session and returns the token to hand back.
func (r *Router) ensureSession(req *http.Request) (sid, issuedToken string, err error) {
	if sid := r.sessionID(req); sid != "" {
		return sid, "", nil
	}
	sid = uuid.NewString()
	issued, err := token.Generate(sid, r.tokenSecret, r.sessionTTL)
	if err != nil {
		return "", "", err
	}
	return sid, issued, nil
}

func (r *Router) presetError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "preset not found")
		return
	}
	r.logger.Error("preset operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "preset operation failed")
}

func (r *Router) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	r.logger.Error("session operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "session operation failed")
}

// executionError maps pre-flight execution failures to client statuses.
// Anything else is a server-side fault.
func (r *Router) executionError(w http.ResponseWriter, err error) {
	var (
		cfgErr     *proxy.ConfigError
		missingErr *template.MissingVariablesError
		valErr     *soapops.ValidationError
	)
	switch {
	case errors.Is(err, proxy.ErrConfirmationRequired):
		writeError(w, http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, scenario.ErrClientSideOnly):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, soapops.ErrMissingCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &cfgErr), errors.As(err, &missingErr), errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		r.logger.Error("execution failed", "error", err)
		writeError(w, http.StatusInternalServerError, "execution failed")
	}
}

// buildDiagnostics suggests likely causes for a gateway response. The hints
// mirror what an operator checks first when a manual request misbehaves.
func buildDiagnostics(resp domain.ProxyResponse) []string {
	var hints []string
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		hints = append(hints, "Authentication failed. Verify the source key and PIN, or the explicit Authorization header.")
	case http.StatusTooManyRequests:
		hints = append(hints, "The gateway rate limited this request. Wait before retrying.")
	}
	if resp.SoapFault != nil && *resp.SoapFault {
		hints = append(hints, "The response contains a SOAP fault. Inspect the fault code and fault string in the body.")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		hints = append(hints, "The gateway reported a server-side error. Retry later or check gateway status.")
	} else if resp.StatusCode >= http.StatusBadRequest && len(hints) == 0 {
		hints = append(hints, "The gateway rejected the request. Check the request body, path, and content type.")
	}
	if resp.StatusCode == 0 {
		hints = append(hints, "No response was received. Check connectivity and the configured endpoint.")
	}
	return hints
}

func runDiagnostics(run *domain.ScenarioRun) []string {
	if run == nil {
		return nil
	}
	resp := domain.ProxyResponse{SoapFault: run.SoapFault}
	if run.HTTPStatus != nil {
		resp.StatusCode = *run.HTTPStatus
	}
	return buildDiagnostics(resp)
}

func runOutcome(run *domain.ScenarioRun) string {
	if run == nil {
		return "unknown"
	}
	if run.HTTPStatus == nil {
		return "transport_error"
	}
	if *run.HTTPStatus >= http.StatusBadRequest || (run.SoapFault != nil && *run.SoapFault) {
		return "failure"
	}
	return "success"
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, metricRoute(req.URL.Path), status, duration)

		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		actor := "anonymous"
		if sid := r.sessionID(req); sid != "" {
			actor = "session"
			fields = append(fields, "session_id", sid)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

// metricRoute collapses identifier path segments so metric label cardinality
// stays bounded.
func metricRoute(path string) string {
	switch {
	case strings.HasPrefix(path, "/presets/"):
		if strings.HasSuffix(path, "/run") {
			return "/presets/{id}/run"
		}
		return "/presets/{id}"
	case strings.HasPrefix(path, "/runs/"):
		return "/runs/{id}"
	default:
		return path
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
