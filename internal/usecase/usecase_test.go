package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"VendorLink/internal/contracts"
	"VendorLink/internal/domain/models"
	domrepo "VendorLink/internal/domain/repository"
	"VendorLink/internal/domain/service"
	"VendorLink/internal/repository"
	"VendorLink/internal/services/inference"
	"VendorLink/pkg/cache"
)

func memCache(t *testing.T) cache.Service {
	t.Helper()
	c := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func decode(t *testing.T, s string) any {
	t.Helper()
	v, err := contracts.Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

type fakeWriter struct {
	mu   sync.Mutex
	recs []models.DecisionRecord
}

func (w *fakeWriter) Write(_ context.Context, records ...models.DecisionRecord) models.WriteOutcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recs = append(w.recs, records...)
	return models.WriteOutcome{Err: errors.New("store down")}
}

type failingModel struct{}

func (failingModel) Task() models.Task { return models.TaskSignal }
func (failingModel) Infer(context.Context, models.InferenceRequest) (models.DecisionRecord, error) {
	return nil, errors.New("boom")
}

type badModel struct{}

func (badModel) Task() models.Task { return models.TaskSignal }
func (badModel) Infer(context.Context, models.InferenceRequest) (models.DecisionRecord, error) {
	return models.SignalRecord{Symbol: "EURUSD", Timeframe: models.TF5m, Decision: models.DecisionBuy, Confidence: 1.2}, nil
}

func TestInferWithoutBarsReturnsValidRecord(t *testing.T) {
	model, err := inference.New(models.TaskSignal, inference.Options{})
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	w := &fakeWriter{}
	svc := NewInferenceService(model, w, "2.0.0", time.Second, nil, nil, nil)

	rec, verrs, err := svc.Infer(context.Background(), decode(t, `{"symbol":"EURUSD","timeframe":"5m"}`))
	if err != nil || len(verrs) != 0 {
		t.Fatalf("unexpected failure %v %v", verrs, err)
	}
	sig := rec.(models.SignalRecord)
	if !sig.Decision.Valid() || sig.Confidence < 0 || sig.Confidence > 1 || sig.ModelVersion != "2.0.0" {
		t.Fatalf("unexpected record %+v", sig)
	}
	if _, ok := sig.Metadata["inference_time_ms"]; !ok {
		t.Fatalf("expected inference_time_ms metadata")
	}
	if errs := contracts.Check(rec); len(errs) != 0 {
		t.Fatalf("response does not validate: %v", errs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.recs) != 1 {
		t.Fatalf("expected one background write despite failure, got %d", len(w.recs))
	}
}

func TestInferRejectsBadRequest(t *testing.T) {
	model, _ := inference.New(models.TaskSignal, inference.Options{})
	svc := NewInferenceService(model, nil, "1", 0, nil, nil, nil)
	_, verrs, err := svc.Infer(context.Background(), decode(t, `{"symbol":"EURUSD","timeframe":"2m"}`))
	if err != nil || len(verrs) == 0 || verrs[0].Path != "timeframe" {
		t.Fatalf("expected timeframe error, got %v %v", verrs, err)
	}
}

func TestInferModelFailures(t *testing.T) {
	stats := NewRequestStats()
	for _, m := range []service.Model{failingModel{}, badModel{}} {
		svc := NewInferenceService(m, nil, "1", 0, stats, nil, nil)
		if _, _, err := svc.Infer(context.Background(), decode(t, `{"symbol":"EURUSD","timeframe":"5m"}`)); err == nil {
			t.Fatalf("%T: expected error", m)
		}
	}
	snap := stats.Snapshot()
	if *snap.RequestsLastMinute != 2 || *snap.ErrorCountLastMinute != 2 {
		t.Fatalf("unexpected stats %+v", snap)
	}
}

func TestRequestStatsWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewRequestStats()
	s.now = func() time.Time { return now }
	s.Observe(10*time.Millisecond, false)
	s.Observe(30*time.Millisecond, true)

	snap := s.Snapshot()
	if *snap.RequestsLastMinute != 2 || *snap.ErrorCountLastMinute != 1 || *snap.AvgLatencyMs != 20 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.MemoryUsage == nil || *snap.MemoryUsage < 0 || *snap.MemoryUsage > 1 {
		t.Fatalf("memory usage out of range")
	}

	now = now.Add(time.Minute)
	if snap := s.Snapshot(); *snap.RequestsLastMinute != 0 || snap.AvgLatencyMs != nil {
		t.Fatalf("expected empty window, got %+v", snap)
	}
}

type chanSender struct{ ch chan models.Heartbeat }

func (s chanSender) Send(_ context.Context, hb models.Heartbeat) models.EmitOutcome {
	s.ch <- hb
	return models.EmitOutcome{Err: errors.New("unreachable")}
}

func TestEmitterLifecycle(t *testing.T) {
	sender := chanSender{ch: make(chan models.Heartbeat, 64)}
	e := NewHeartbeatEmitter(sender, "dep_1", "1.2.3", 5*time.Millisecond,
		WithJitter(func() time.Duration { return 0 }),
		WithMetricsSource(NewRequestStats().Snapshot),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case hb := <-sender.ch:
			if hb.Status != models.StatusReady || hb.DeploymentID != "dep_1" || hb.Message != "Heartbeat from 1.2.3" || hb.Metrics == nil {
				t.Fatalf("unexpected heartbeat %+v", hb)
			}
		case <-time.After(time.Second):
			t.Fatalf("heartbeat %d not sent", i)
		}
	}
	cancel()
	<-done

	var last models.Heartbeat
	for {
		select {
		case hb := <-sender.ch:
			last = hb
			continue
		default:
		}
		break
	}
	if last.Status != models.StatusOffline {
		t.Fatalf("expected final offline heartbeat, got %+v", last)
	}
}

func TestEmitterJitterRange(t *testing.T) {
	e := NewHeartbeatEmitter(chanSender{}, "dep_1", "1", 30*time.Second)
	for i := 0; i < 200; i++ {
		d := e.Next()
		if d < 30*time.Second || d >= 30*time.Second+MaxJitter {
			t.Fatalf("delay %v out of range", d)
		}
	}
}

func newTracker(t *testing.T) *DeploymentTracker {
	t.Helper()
	tr := NewDeploymentTracker(repository.NewCacheDeploymentStore(memCache(t)), nil, nil)
	tr.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return tr
}

func TestDeploymentStatusTransitions(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	d, err := tr.Register(ctx, models.DeploymentRegistration{ModelID: "m", VersionID: "v1", VendorID: "acme"})
	if err != nil || d.Status != models.StatusPending || d.LastHeartbeatAt != nil || len(d.ID) < 5 || d.ID[:4] != "dep_" {
		t.Fatalf("unexpected registration %+v %v", d, err)
	}
	if _, err := tr.Register(ctx, models.DeploymentRegistration{ID: d.ID, ModelID: "m", VersionID: "v1", VendorID: "acme"}); !errors.Is(err, domrepo.ErrDeploymentExists) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}

	apply := func(status models.DeploymentStatus, ts string) (models.Deployment, bool) {
		t.Helper()
		got, applied, err := tr.Apply(ctx, models.Heartbeat{DeploymentID: d.ID, Status: status, Timestamp: ts})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		return got, applied
	}

	if got, _ := apply(models.StatusReady, "2024-01-01T00:00:00.000Z"); got.Status != models.StatusReady {
		t.Fatalf("expected ready, got %s", got.Status)
	}
	if got, _ := apply(models.StatusError, "2024-01-01T00:00:00.001Z"); got.Status != models.StatusError {
		t.Fatalf("expected immediate error, got %s", got.Status)
	}
	if got, _ := apply(models.StatusOffline, "2024-01-01T00:00:00.002Z"); got.Status != models.StatusOffline {
		t.Fatalf("expected offline, got %s", got.Status)
	}
	if got, applied := apply(models.StatusReady, "2024-01-01T00:00:00.001Z"); applied || got.Status != models.StatusOffline {
		t.Fatalf("stale heartbeat must not win, got %s applied=%v", got.Status, applied)
	}
	if got, applied := apply(models.StatusReady, "2024-01-01T00:00:00.002Z"); !applied || got.Status != models.StatusReady {
		t.Fatalf("offline must be re-enterable and left, got %s", got.Status)
	}

	_, _, err = tr.Apply(ctx, models.Heartbeat{DeploymentID: "dep_missing", Status: models.StatusReady, Timestamp: "2024-01-01T00:00:00Z"})
	if !errors.Is(err, domrepo.ErrDeploymentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeploymentAggregates(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	d, _ := tr.Register(ctx, models.DeploymentRegistration{ID: "dep_1", ModelID: "m", VersionID: "v1", VendorID: "acme"})

	req, errs, lat := 40.0, 10.0, 12.5
	got, _, err := tr.Apply(ctx, models.Heartbeat{
		DeploymentID: d.ID,
		Status:       models.StatusReady,
		Timestamp:    "2024-01-01T00:00:00Z",
		Metrics:      &models.HeartbeatMetrics{RequestsLastMinute: &req, ErrorCountLastMinute: &errs, AvgLatencyMs: &lat},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if *got.ErrorRate != 0.25 || *got.RequestsPerMinute != 40 || *got.AvgLatencyMs != 12.5 {
		t.Fatalf("unexpected aggregates %+v", got)
	}
	v, _ := contracts.Normalize(got)
	if _, verrs := contracts.ValidateDeployment(v); len(verrs) != 0 {
		t.Fatalf("deployment does not validate: %v", verrs)
	}
}

type fakeSink struct {
	fail  bool
	count int
}

func (s *fakeSink) Init(context.Context) error   { return nil }
func (s *fakeSink) Health(context.Context) error { return nil }
func (s *fakeSink) Close() error                 { return nil }
func (s *fakeSink) StoreBatch(_ context.Context, b []models.Envelope) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.count += len(b)
	return nil
}

const storeBody = `[{"symbol":"EURUSD","timeframe":"5m","decision":"BUY","confidence":0.8,"model_version":"1","timestamp":"2024-01-01T00:00:00Z","vendor_id":"acme"}]`

func TestIngestDedup(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	ing := NewIngestor(repository.NewCacheDedupGuard(memCache(t), time.Minute), sink, nil, nil, nil)

	res, verrs, err := ing.Store(ctx, models.TaskSignal, "", "", decode(t, storeBody))
	if err != nil || len(verrs) != 0 || res.Replay || res.Key != "EURUSD:5m:340813440" || res.Accepted != 1 {
		t.Fatalf("unexpected first result %+v %v %v", res, verrs, err)
	}
	res, _, err = ing.Store(ctx, models.TaskSignal, "", "", decode(t, storeBody))
	if err != nil || !res.Replay || sink.count != 1 {
		t.Fatalf("expected replay without storing, got %+v count=%d", res, sink.count)
	}

	_, verrs, _ = ing.Store(ctx, models.TaskSignal, "", "", decode(t, `[{"symbol":"EURUSD"}]`))
	if len(verrs) == 0 || verrs[0].Path[:3] != "[0]" {
		t.Fatalf("expected indexed validation errors, got %v", verrs)
	}
}

func TestIngestReleasesKeyOnFailure(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{fail: true}
	ing := NewIngestor(repository.NewCacheDedupGuard(memCache(t), time.Minute), sink, nil, nil, nil)

	if _, _, err := ing.Store(ctx, models.TaskSignal, "k1", "", decode(t, storeBody)); err == nil {
		t.Fatalf("expected sink error")
	}
	sink.fail = false
	res, _, err := ing.Store(ctx, models.TaskSignal, "k1", "", decode(t, storeBody))
	if err != nil || res.Replay || res.Key != "k1" {
		t.Fatalf("expected retry to be accepted, got %+v %v", res, err)
	}
}

type fakePublisher struct {
	fail  bool
	count int
}

func (p *fakePublisher) Close() error { return nil }
func (p *fakePublisher) PublishBatch(_ context.Context, b []models.Envelope) error {
	if p.fail {
		return errors.New("kafka down")
	}
	p.count += len(b)
	return nil
}

func TestIngestKeepsKeyWhenStoredButNotPublished(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	pub := &fakePublisher{fail: true}
	ing := NewIngestor(repository.NewCacheDedupGuard(memCache(t), time.Minute), sink, pub, nil, nil)

	res, _, err := ing.Store(ctx, models.TaskSignal, "", "", decode(t, storeBody))
	if err != nil || !res.FanoutFailed || sink.count != 1 {
		t.Fatalf("expected stored batch with failed fan-out, got %+v %v count=%d", res, err, sink.count)
	}

	pub.fail = false
	res, _, err = ing.Store(ctx, models.TaskSignal, "", "", decode(t, storeBody))
	if err != nil || !res.Replay || sink.count != 1 {
		t.Fatalf("expected resend to be a replay, got %+v %v count=%d", res, err, sink.count)
	}
}

func TestIngestReleasesKeyWhenOnlyPublisherFails(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{fail: true}
	ing := NewIngestor(repository.NewCacheDedupGuard(memCache(t), time.Minute), nil, pub, nil, nil)

	if _, _, err := ing.Store(ctx, models.TaskSignal, "k2", "", decode(t, storeBody)); err == nil {
		t.Fatalf("expected publish error without a sink")
	}
	pub.fail = false
	res, _, err := ing.Store(ctx, models.TaskSignal, "k2", "", decode(t, storeBody))
	if err != nil || res.Replay || pub.count != 1 {
		t.Fatalf("expected retry to be published, got %+v %v count=%d", res, err, pub.count)
	}
}

func TestIngestLegacy(t *testing.T) {
	ing := NewIngestor(nil, nil, nil, nil, nil)
	body := `[{"owner":"acme","model_id":"m","symbol":"EURUSD","timeframe":"5m","bar_ts":"2024-01-01T00:00:00Z","decision":"BUY","confidence":0.9}]`
	res, verrs, err := ing.StoreLegacy(context.Background(), models.TaskSignal, "", decode(t, body))
	if err != nil || len(verrs) != 0 || res.Key != "EURUSD:5m:340813440" {
		t.Fatalf("unexpected legacy result %+v %v %v", res, verrs, err)
	}
}

func TestKafkaHeartbeatHandler(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	_, _ = tr.Register(ctx, models.DeploymentRegistration{ID: "dep_1", ModelID: "m", VersionID: "v1", VendorID: "acme"})
	h := NewKafkaHeartbeatHandler("heartbeats", tr, nil, nil)

	if err := h.Handle(ctx, []byte(`{"deployment_id":"dep_1","status":"maintenance","timestamp":"2024-01-01T00:00:00Z"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if d, _ := tr.Get(ctx, "dep_1"); d.Status != models.StatusMaintenance {
		t.Fatalf("expected maintenance, got %s", d.Status)
	}
	if err := h.Handle(ctx, []byte(`{"deployment_id":"dep_2","status":"ready","timestamp":"2024-01-01T00:00:00Z"}`)); err != nil {
		t.Fatalf("unknown deployment should be dropped, got %v", err)
	}
	if err := h.Handle(ctx, []byte(`{"deployment_id":"dep_1","status":"asleep"}`)); err == nil {
		t.Fatalf("expected invalid heartbeat error")
	}
	if err := h.Handle(ctx, []byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
