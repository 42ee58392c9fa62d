package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"VendorLink/internal/domain/models"

	"github.com/shopspring/decimal"
)

func TestCandleModel(t *testing.T) {
	m := NewCandleModel()
	ctx := context.Background()

	rec, err := m.Infer(ctx, models.SignalRequest{Symbol: "EURUSD", Timeframe: models.TF5m})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	sig := rec.(models.SignalRecord)
	if sig.Decision != models.DecisionHold || sig.Confidence != 0.5 {
		t.Fatalf("expected HOLD at 0.5 without bars, got %s %f", sig.Decision, sig.Confidence)
	}

	bullish := models.Bar{0, 1.0, 2.05, 0.95, 2.0, 100}
	rec, _ = m.Infer(ctx, models.SignalRequest{Symbol: "EURUSD", Timeframe: models.TF5m, OHLCV: []models.Bar{bullish}})
	sig = rec.(models.SignalRecord)
	if sig.Decision != models.DecisionBuy || sig.Confidence > 0.9 || sig.Confidence < 0.6 {
		t.Fatalf("expected BUY in [0.6,0.9], got %s %f", sig.Decision, sig.Confidence)
	}

	bearish := models.Bar{0, 2.0, 2.05, 0.95, 1.0, 100}
	rec, _ = m.Infer(ctx, models.SignalRequest{
		Symbol: "EURUSD", Timeframe: models.TF5m,
		OHLCV:    []models.Bar{bearish},
		Features: map[string]float64{"rsi": 30},
	})
	sig = rec.(models.SignalRecord)
	if sig.Decision != models.DecisionSell || sig.Confidence > 1 {
		t.Fatalf("expected SELL, got %s %f", sig.Decision, sig.Confidence)
	}
	if sig.Metadata["features_count"] != 1 || sig.Metadata["ohlcv_bars"] != 1 {
		t.Fatalf("unexpected metadata %v", sig.Metadata)
	}

	if _, err := m.Infer(ctx, models.ConsensusRequest{}); err == nil {
		t.Fatalf("expected wrong request type to fail")
	}
}

func TestMajorityModel(t *testing.T) {
	rec, err := NewMajorityModel().Infer(context.Background(), models.ConsensusRequest{
		Symbol:    "EURUSD",
		Timeframe: models.TF1h,
		Signals: []models.ConsensusInput{
			{Decision: models.DecisionBuy, Confidence: 0.8, Source: "m1"},
			{Decision: models.DecisionBuy, Confidence: 0.4, Source: "m1"},
			{Decision: models.DecisionSell, Confidence: 0.8},
		},
	})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	cons := rec.(models.ConsensusRecord)
	if cons.Decision != models.DecisionBuy {
		t.Fatalf("expected BUY, got %s", cons.Decision)
	}
	if cons.Confidence < 0.59 || cons.Confidence > 0.61 {
		t.Fatalf("expected vote share 0.6, got %f", cons.Confidence)
	}
	if len(cons.Contributions) != 3 {
		t.Fatalf("expected 3 contributions, got %v", cons.Contributions)
	}
	if _, ok := cons.Contributions["signal_2"]; !ok {
		t.Fatalf("expected unnamed source to get a positional id, got %v", cons.Contributions)
	}

	empty, _ := NewMajorityModel().Infer(context.Background(), models.ConsensusRequest{Symbol: "X", Timeframe: models.TF1m})
	if empty.(models.ConsensusRecord).Decision != models.DecisionHold {
		t.Fatalf("expected HOLD without signals")
	}
}

func TestEqualWeightModel(t *testing.T) {
	ctx := context.Background()
	m := NewEqualWeightModel()

	rec, err := m.Infer(ctx, models.OptimizerRequest{Assets: []string{"A", "B", "C", "A"}, Timeframe: models.TF1d})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	allocs := rec.(models.OptimizerRecord).Allocations
	if len(allocs) != 3 {
		t.Fatalf("expected duplicates removed, got %v", allocs)
	}
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(decimal.NewFromFloat(a.Weight))
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected weights to sum to 1, got %s", sum)
	}

	maxW, maxP := 0.25, 2
	rec, _ = m.Infer(ctx, models.OptimizerRequest{
		Assets:      []string{"A", "B", "C"},
		Timeframe:   models.TF1d,
		Constraints: &models.OptimizerConstraints{MaxPositions: &maxP, MaxWeightPerAsset: &maxW},
	})
	allocs = rec.(models.OptimizerRecord).Allocations
	if len(allocs) != 2 || allocs[0].Weight != 0.25 || allocs[1].Weight != 0.25 {
		t.Fatalf("expected two capped positions, got %v", allocs)
	}

	minW := 0.4
	rec, _ = m.Infer(ctx, models.OptimizerRequest{
		Assets:      []string{"A", "B", "C"},
		Timeframe:   models.TF1d,
		Constraints: &models.OptimizerConstraints{MinWeightPerAsset: &minW},
	})
	if n := len(rec.(models.OptimizerRecord).Allocations); n != 2 {
		t.Fatalf("expected min weight to allow 2 positions, got %d", n)
	}
}

func TestHTTPModel(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Triple{Decision: models.DecisionSell, Confidence: 0.65, Rationale: []string{"remote"}})
	}))
	defer srv.Close()

	m, err := NewHTTPModel(models.TaskSignal, srv.URL, time.Second, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec, err := m.Infer(context.Background(), models.SignalRequest{Symbol: "EURUSD", Timeframe: models.TF5m})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	sig := rec.(models.SignalRecord)
	if sig.Decision != models.DecisionSell || sig.Symbol != "EURUSD" || calls != 2 {
		t.Fatalf("unexpected record %+v after %d calls", sig, calls)
	}

	if _, err := NewHTTPModel(models.TaskOptimizer, srv.URL, time.Second, 1); err == nil {
		t.Fatalf("expected optimizer to be rejected")
	}
}

func TestNew(t *testing.T) {
	for _, task := range []models.Task{models.TaskSignal, models.TaskConsensus, models.TaskOptimizer} {
		m, err := New(task, Options{})
		if err != nil || m.Task() != task {
			t.Fatalf("%s: unexpected model %v %v", task, m, err)
		}
	}
	if _, err := New("bogus", Options{}); err == nil {
		t.Fatalf("expected unknown task error")
	}
}
