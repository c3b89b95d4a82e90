package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/domain"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/repository"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/preset"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/proxy"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/scenario"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/internal/service/soapops"
	"github.com/nmi-davidmadrigal/USAePay-TestBench/pkg/config"
)

type fakePresetRepo struct {
	presets map[string]*domain.Preset
}

func newFakePresetRepo() *fakePresetRepo {
	return &fakePresetRepo{presets: make(map[string]*domain.Preset)}
}

func (f *fakePresetRepo) CreatePreset(ctx context.Context, p *domain.Preset) error {
	clone := *p
	f.presets[p.ID] = &clone
	return nil
}

func (f *fakePresetRepo) UpdatePreset(ctx context.Context, p *domain.Preset) error {
	if _, ok := f.presets[p.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *p
	f.presets[p.ID] = &clone
	return nil
}

func (f *fakePresetRepo) GetPresetByID(ctx context.Context, id string) (*domain.Preset, error) {
	p, ok := f.presets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakePresetRepo) DeletePreset(ctx context.Context, id string) error {
	if _, ok := f.presets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.presets, id)
	return nil
}

func (f *fakePresetRepo) SearchPresets(ctx context.Context, term string, kind *domain.APIKind) ([]domain.Preset, error) {
	var out []domain.Preset
	for _, p := range f.presets {
		if term != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			continue
		}
		if kind != nil && p.APIKind != *kind {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePresetRepo) ListRecentPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	var out []domain.Preset
	for _, p := range f.presets {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePresetRepo) ListQuickPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	var out []domain.Preset
	for _, p := range f.presets {
		if p.IsQuick {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePresetRepo) ListCustomPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	var out []domain.Preset
	for _, p := range f.presets {
		if !p.IsSystem {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePresetRepo) ListSystemPresets(ctx context.Context, limit int) ([]domain.Preset, error) {
	var out []domain.Preset
	for _, p := range f.presets {
		if p.IsSystem {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePresetRepo) FindSystemPreset(ctx context.Context, name string, env domain.Environment, kind domain.APIKind) (*domain.Preset, error) {
	for _, p := range f.presets {
		if p.IsSystem && p.Name == name && p.Environment == env && p.APIKind == kind {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeRunRepo struct {
	runs []*domain.ScenarioRun
}

func (f *fakeRunRepo) CreateRun(ctx context.Context, run *domain.ScenarioRun) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunRepo) GetRunByID(ctx context.Context, id string) (*domain.ScenarioRun, error) {
	for _, run := range f.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRunRepo) ListRecentRuns(ctx context.Context, limit int) ([]domain.ScenarioRun, error) {
	out := make([]domain.ScenarioRun, 0, len(f.runs))
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.runs[i])
	}
	return out, nil
}

func (f *fakeRunRepo) ListRecentErrors(ctx context.Context, limit int) ([]domain.ScenarioRun, error) {
	out := make([]domain.ScenarioRun, 0)
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		run := f.runs[i]
		if run.HTTPStatus == nil || *run.HTTPStatus >= 400 || (run.SoapFault != nil && *run.SoapFault) {
			out = append(out, *run)
		}
	}
	return out, nil
}

type testEnv struct {
	router     *Router
	presetRepo *fakePresetRepo
	runRepo    *fakeRunRepo
}

func newTestRouter(t *testing.T, baseURL string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := config.Config{
		UpstreamTimeout: 5 * time.Second,
		Sandbox:         config.GatewayEnv{RestBaseURL: baseURL, SoapEndpoint: ""},
	}
	presetRepo := newFakePresetRepo()
	runRepo := &fakeRunRepo{}
	proxySvc := proxy.New(cfg, nil, logger)
	router := NewRouter(
		logger,
		preset.New(presetRepo, logger),
		scenario.New(runRepo, proxySvc, nil, logger),
		soapops.New(proxySvc, nil, cfg, logger),
		nil,
		nil,
		NewMemoryRateLimiter(),
		"test-secret",
		time.Hour,
		nil,
	)
	t.Cleanup(router.Close)
	return &testEnv{router: router, presetRepo: presetRepo, runRepo: runRepo}
}

func TestHealthz(t *testing.T) {
	env := newTestRouter(t, "https://x.test")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}

func TestPresetLifecycle(t *testing.T) {
	env := newTestRouter(t, "https://x.test")

	body := `{"name": "My Sale", "apiKind": "rest", "restMethod": "POST", "pathOrEndpoint": "/transactions"}`
	req := httptest.NewRequest(http.MethodPost, "/presets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	var created domain.Preset
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.ID == "" || created.Name != "My Sale" {
		t.Fatalf("unexpected created preset: %+v", created)
	}

	req = httptest.NewRequest(http.MethodGet, "/presets/"+created.ID, nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get failed: %d", rec.Code)
	}

	update := `{"name": "Renamed", "apiKind": "rest"}`
	req = httptest.NewRequest(http.MethodPut, "/presets/"+created.ID, strings.NewReader(update))
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/presets/"+created.ID, nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/presets/"+created.ID, nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestPresetNameRequired(t *testing.T) {
	env := newTestRouter(t, "https://x.test")
	req := httptest.NewRequest(http.MethodPost, "/presets", strings.NewReader(`{"apiKind": "rest"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProxyRestRecordsRun(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": "Approved"}`))
	}))
	defer upstream.Close()

	env := newTestRouter(t, upstream.URL)
	body := `{"environment": "sandbox", "method": "POST", "pathOrUrl": "/transactions", "body": "{\"cardNumber\": \"4111111111111111\"}"}`
	req := httptest.NewRequest(http.MethodPost, "/proxy/rest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Response    domain.ProxyResponse `json:"response"`
		Run         *domain.ScenarioRun  `json:"run"`
		Diagnostics []string             `json:"diagnostics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.Response.StatusCode != http.StatusOK {
		t.Fatalf("unexpected upstream status: %d", payload.Response.StatusCode)
	}
	if payload.Run == nil {
		t.Fatal("expected a recorded run")
	}
	if strings.Contains(payload.Run.RequestRedacted, "4111111111111111") {
		t.Fatalf("card number leaked into audit record:\n%s", payload.Run.RequestRedacted)
	}
	if len(payload.Diagnostics) != 0 {
		t.Fatalf("clean call should carry no hints, got %v", payload.Diagnostics)
	}
	if len(env.runRepo.runs) != 1 {
		t.Fatalf("expected one stored run, got %d", len(env.runRepo.runs))
	}
}

func TestProxyRestAuthDiagnostics(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	env := newTestRouter(t, upstream.URL)
	body := `{"environment": "sandbox", "method": "GET", "pathOrUrl": "/ping"}`
	req := httptest.NewRequest(http.MethodPost, "/proxy/rest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("proxy endpoint should relay upstream failures in-band, got %d", rec.Code)
	}
	var payload struct {
		Diagnostics []string `json:"diagnostics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	found := false
	for _, hint := range payload.Diagnostics {
		if strings.Contains(hint, "Authentication failed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected auth hint, got %v", payload.Diagnostics)
	}
}

func TestProxyRestProductionRequiresConfirmation(t *testing.T) {
	env := newTestRouter(t, "https://x.test")
	body := `{"environment": "production", "method": "GET", "pathOrUrl": "/ping"}`
	req := httptest.NewRequest(http.MethodPost, "/proxy/rest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusPreconditionRequired {
		t.Fatalf("expected 428, got %d", rec.Code)
	}
	if len(env.runRepo.runs) != 0 {
		t.Fatal("guarded call must record nothing")
	}
}

func TestSoapTransactionsValidation(t *testing.T) {
	env := newTestRouter(t, "https://x.test")

	body := `{"environment": "sandbox", "operation": {"type": "sale"}}`
	req := httptest.NewRequest(http.MethodPost, "/soap/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty sale, got %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "runSale requires") {
		t.Fatalf("validation message should name the operation: %s", rec.Body.String())
	}

	body = `{"environment": "sandbox", "operation": {"type": "teleport"}}`
	req = httptest.NewRequest(http.MethodPost, "/soap/transactions", strings.NewReader(body))
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}
}

func TestRunsListingAndLookup(t *testing.T) {
	env := newTestRouter(t, "https://x.test")
	ok, bad := 200, 500
	env.runRepo.runs = []*domain.ScenarioRun{
		{ID: "run-a", HTTPStatus: &ok},
		{ID: "run-b", HTTPStatus: &bad},
	}

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload struct {
		Runs []domain.ScenarioRun `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(payload.Runs) != 2 || payload.Runs[0].ID != "run-b" {
		t.Fatalf("expected newest-first runs, got %v", payload.Runs)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs?view=errors", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(payload.Runs) != 1 || payload.Runs[0].ID != "run-b" {
		t.Fatalf("expected only failed runs, got %v", payload.Runs)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/run-a", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("run lookup failed: %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/missing", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", rec.Code)
	}
}

func TestSessionEndpointsWithoutStore(t *testing.T) {
	env := newTestRouter(t, "https://x.test")
	req := httptest.NewRequest(http.MethodPut, "/session/credentials",
		strings.NewReader(`{"environment": "sandbox", "sourceKey": "k", "pin": "p"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a session store, got %d", rec.Code)
	}
}

func TestMethodChecks(t *testing.T) {
	env := newTestRouter(t, "https://x.test")
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/proxy/rest"},
		{http.MethodGet, "/soap/transactions"},
		{http.MethodPost, "/runs"},
		{http.MethodPost, "/healthz"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestDecodeOperationVariants(t *testing.T) {
	op, err := decodeOperation(json.RawMessage(`{"type": "refund", "refNum": "42", "amount": "1.00"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refund, ok := op.(domain.Refund)
	if !ok {
		t.Fatalf("expected Refund, got %T", op)
	}
	if refund.RefNum != "42" || refund.Amount != "1.00" {
		t.Fatalf("unexpected refund fields: %+v", refund)
	}

	if _, err := decodeOperation(nil); err == nil {
		t.Fatal("missing operation must fail")
	}
	if _, err := decodeOperation(json.RawMessage(`{"type": "nope"}`)); err == nil {
		t.Fatal("unknown type must fail")
	}
}
