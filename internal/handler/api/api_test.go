package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"VendorLink/internal/contracts"
	"VendorLink/internal/domain/models"
	"VendorLink/internal/repository"
	"VendorLink/internal/service/ratelimit"
	"VendorLink/internal/services/inference"
	"VendorLink/internal/usecase"
	"VendorLink/pkg/cache"

	"github.com/labstack/echo/v4"
)

func do(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func vendorEcho(t *testing.T, task models.Task) *echo.Echo {
	t.Helper()
	model, err := inference.New(task, inference.Options{})
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	svc := usecase.NewInferenceService(model, nil, "1.0.0", 0, nil, nil, nil)
	e := echo.New()
	NewVendorHandler(nil, svc, VendorIdentity{Version: "1.0.0", DeploymentID: "dep_1"}, time.Now()).RegisterRoutes(e)
	return e
}

func TestInferSignal(t *testing.T) {
	e := vendorEcho(t, models.TaskSignal)
	rec := do(e, http.MethodPost, "/infer", `{"symbol":"EURUSD","timeframe":"5m"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	v, err := contracts.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, errs := contracts.ValidateRecord(models.TaskSignal, contracts.Response, v); len(errs) != 0 {
		t.Fatalf("response does not validate: %v", errs)
	}
}

func TestInferValidationError(t *testing.T) {
	e := vendorEcho(t, models.TaskSignal)
	rec := do(e, http.MethodPost, "/infer", `{"symbol":"EURUSD","timeframe":"5m","ohlcv":[[1,2]]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Error   string                      `json:"error"`
		Details []contracts.ValidationError `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "" || len(body.Details) == 0 || body.Details[0].Path != "ohlcv[0]" {
		t.Fatalf("unexpected error body %s", rec.Body)
	}

	if rec := do(e, http.MethodPost, "/infer", `{"symbol":`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	e := vendorEcho(t, models.TaskOptimizer)
	rec := do(e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) || !strings.Contains(rec.Body.String(), `"deployment_id":"dep_1"`) {
		t.Fatalf("unexpected health %d %s", rec.Code, rec.Body)
	}
	rec = do(e, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"model_loaded":true`) {
		t.Fatalf("unexpected ready %d %s", rec.Code, rec.Body)
	}
}

func infraEcho(t *testing.T, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	c := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = c.Close() })
	ingest := usecase.NewIngestor(repository.NewCacheDedupGuard(c, time.Minute), nil, nil, nil, nil)
	tracker := usecase.NewDeploymentTracker(repository.NewCacheDeploymentStore(c), nil, nil)
	e := echo.New()
	NewInfraHandler(nil, ingest, tracker, limiter, []string{"tok"}).RegisterRoutes(e)
	return e
}

var auth = map[string]string{echo.HeaderAuthorization: "Bearer tok"}

const signalBatch = `[{"symbol":"EURUSD","timeframe":"5m","decision":"BUY","confidence":0.8,"model_version":"1","timestamp":"2024-01-01T00:00:00Z","deployment_id":"dep_1"}]`

func TestStoreAuthAndReplay(t *testing.T) {
	e := infraEcho(t, nil)

	if rec := do(e, http.MethodPost, "/api/signals/store", signalBatch, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/signals/store", signalBatch, map[string]string{echo.HeaderAuthorization: "Bearer nope"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}

	rec := do(e, http.MethodPost, "/api/signals/store", signalBatch, auth)
	if rec.Code != http.StatusNoContent || rec.Header().Get(contracts.HeaderIdempotentReplay) != "" {
		t.Fatalf("expected fresh 204, got %d", rec.Code)
	}
	rec = do(e, http.MethodPost, "/api/signals/store", signalBatch, auth)
	if rec.Code != http.StatusNoContent || rec.Header().Get(contracts.HeaderIdempotentReplay) != "true" {
		t.Fatalf("expected replay 204, got %d %v", rec.Code, rec.Header())
	}

	rec = do(e, http.MethodPost, "/api/consensus/store", signalBatch, auth)
	if rec.Code != http.StatusNoContent || rec.Header().Get(contracts.HeaderIdempotentReplay) != "" {
		t.Fatalf("expected tasks to dedup independently, got %d %v", rec.Code, rec.Header())
	}
}

func TestStoreRateLimited(t *testing.T) {
	e := infraEcho(t, ratelimit.New(1, 0))
	if rec := do(e, http.MethodPost, "/api/optimizer/store", `[]`, auth); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/optimizer/store", `[]`, auth); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestLegacyIntake(t *testing.T) {
	e := infraEcho(t, nil)
	body := `[{"owner":"acme","model_id":"m","symbol":"EURUSD","timeframe":"5m","bar_ts":"2024-01-01T00:00:00Z","decision":"BUY","confidence":0.9}]`
	if rec := do(e, http.MethodPost, "/api/signals/legacy", body, auth); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d %s", rec.Code, rec.Body)
	}
	bad := strings.Replace(body, `"owner":"acme"`, `"owner":""`, 1)
	if rec := do(e, http.MethodPost, "/api/signals/legacy", bad, auth); rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "[0].owner") {
		t.Fatalf("expected owner error, got %d %s", rec.Code, rec.Body)
	}
}

func TestDeploymentLifecycle(t *testing.T) {
	e := infraEcho(t, nil)

	rec := do(e, http.MethodPost, "/api/marketplace/deployments", `{"id":"dep_1","model_id":"m","vendor_id":"acme"}`, auth)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body)
	}
	var d models.Deployment
	_ = json.Unmarshal(rec.Body.Bytes(), &d)
	if d.Status != models.StatusPending || d.VersionID != "v1" {
		t.Fatalf("unexpected deployment %+v", d)
	}
	if rec := do(e, http.MethodPost, "/api/marketplace/deployments", `{"vendor_id":"acme"}`, auth); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without model_id, got %d", rec.Code)
	}

	beat := func(status, ts string) models.Deployment {
		t.Helper()
		rec := do(e, http.MethodPost, "/api/marketplace/vendor/heartbeats",
			`{"deployment_id":"dep_1","status":"`+status+`","timestamp":"`+ts+`"}`, auth)
		if rec.Code != http.StatusOK {
			t.Fatalf("heartbeat %s: %d %s", status, rec.Code, rec.Body)
		}
		var out models.Deployment
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		return out
	}
	beat("ready", "2024-01-01T00:00:00.000Z")
	if got := beat("offline", "2024-01-01T00:00:00.001Z"); got.Status != models.StatusOffline {
		t.Fatalf("expected offline, got %s", got.Status)
	}

	rec = do(e, http.MethodGet, "/api/marketplace/deployments/dep_1", "", auth)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"offline"`) {
		t.Fatalf("unexpected get %d %s", rec.Code, rec.Body)
	}
	if rec := do(e, http.MethodGet, "/api/marketplace/deployments/dep_9", "", auth); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/api/marketplace/deployments", "", auth)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Fatalf("unexpected list %d %s", rec.Code, rec.Body)
	}

	rec = do(e, http.MethodPost, "/api/marketplace/vendor/heartbeats", `{"deployment_id":"dep_9","status":"ready","timestamp":"2024-01-01T00:00:00Z"}`, auth)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown deployment, got %d", rec.Code)
	}
	rec = do(e, http.MethodPost, "/api/marketplace/vendor/heartbeats", `{"deployment_id":"dep_1","status":"up","timestamp":"2024-01-01T00:00:00Z"}`, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", rec.Code)
	}
}

type downSink struct{}

func (downSink) Init(context.Context) error   { return nil }
func (downSink) Health(context.Context) error { return nil }
func (downSink) Close() error                 { return nil }
func (downSink) StoreBatch(context.Context, []models.Envelope) error {
	return errors.New("clickhouse down")
}

type okSink struct{ downSink }

func (okSink) StoreBatch(context.Context, []models.Envelope) error { return nil }

type downPublisher struct{}

func (downPublisher) Close() error { return nil }
func (downPublisher) PublishBatch(context.Context, []models.Envelope) error {
	return errors.New("kafka down")
}

func TestInfraErrorsUseAppErrors(t *testing.T) {
	e := infraEcho(t, nil)

	rec := do(e, http.MethodPost, "/api/signals/store", signalBatch, nil)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), `"code":"ERR_UNAUTHORIZED"`) {
		t.Fatalf("unexpected 401 body %d %s", rec.Code, rec.Body)
	}

	reg := `{"id":"dep_1","model_id":"m","vendor_id":"acme"}`
	if rec := do(e, http.MethodPost, "/api/marketplace/deployments", reg, auth); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	rec = do(e, http.MethodPost, "/api/marketplace/deployments", reg, auth)
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), `"code":"ERR_CONFLICT"`) {
		t.Fatalf("unexpected 409 body %d %s", rec.Code, rec.Body)
	}

	rec = do(e, http.MethodGet, "/api/marketplace/deployments/dep_9", "", auth)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"code":"ERR_NOT_FOUND"`) {
		t.Fatalf("unexpected 404 body %d %s", rec.Code, rec.Body)
	}
}

func TestStoreFailureIsInternalError(t *testing.T) {
	c := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = c.Close() })
	ingest := usecase.NewIngestor(repository.NewCacheDedupGuard(c, time.Minute), downSink{}, nil, nil, nil)
	tracker := usecase.NewDeploymentTracker(repository.NewCacheDeploymentStore(c), nil, nil)
	e := echo.New()
	NewInfraHandler(nil, ingest, tracker, nil, nil).RegisterRoutes(e)

	rec := do(e, http.MethodPost, "/api/signals/store", signalBatch, auth)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), `"code":"ERR_INTERNAL"`) {
		t.Fatalf("unexpected 500 body %d %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "clickhouse down") {
		t.Fatalf("internal error detail leaked: %s", rec.Body)
	}
}

func TestStoredButUnpublishedBatchIsFlagged(t *testing.T) {
	c := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = c.Close() })
	ingest := usecase.NewIngestor(repository.NewCacheDedupGuard(c, time.Minute), okSink{}, downPublisher{}, nil, nil)
	tracker := usecase.NewDeploymentTracker(repository.NewCacheDeploymentStore(c), nil, nil)
	e := echo.New()
	NewInfraHandler(nil, ingest, tracker, nil, nil).RegisterRoutes(e)

	rec := do(e, http.MethodPost, "/api/signals/store", signalBatch, auth)
	if rec.Code != http.StatusNoContent || rec.Header().Get(contracts.HeaderFanoutFailed) != "true" {
		t.Fatalf("unexpected response %d %v", rec.Code, rec.Header())
	}
	rec = do(e, http.MethodPost, "/api/signals/store", signalBatch, auth)
	if rec.Code != http.StatusNoContent || rec.Header().Get(contracts.HeaderIdempotentReplay) != "true" {
		t.Fatalf("resend should be a replay: %d %v", rec.Code, rec.Header())
	}
}
