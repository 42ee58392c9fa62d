package idempotency

import (
	"testing"
	"time"

	"VendorLink/internal/domain/models"
)

func TestDeriveMillisScenario(t *testing.T) {
	if got := DeriveMillis("EURUSD", models.TF5m, 1704067200000); got != "EURUSD:5m:340813440" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestSameBucketSameKey(t *testing.T) {
	base := int64(1704067200000)
	for _, off := range []int64{0, 1, 2500, 4999} {
		if DeriveMillis("BTC", models.TF1m, base+off) != DeriveMillis("BTC", models.TF1m, base) {
			t.Fatalf("offset %d left the bucket", off)
		}
	}
	if DeriveMillis("BTC", models.TF1m, base+5000) == DeriveMillis("BTC", models.TF1m, base) {
		t.Fatalf("expected adjacent buckets to differ")
	}
}

func TestBucketFloorsNegatives(t *testing.T) {
	cases := map[int64]int64{-1: -1, -5000: -1, -5001: -2, 0: 0, 4999: 0}
	for ms, want := range cases {
		if got := Bucket(ms); got != want {
			t.Fatalf("Bucket(%d) = %d, want %d", ms, got, want)
		}
	}
}

func TestForRecord(t *testing.T) {
	rec := models.SignalRecord{Symbol: "EURUSD", Timeframe: models.TF5m, Timestamp: "2024-01-01T00:00:04.999Z"}
	key, err := ForRecord(rec)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if key != Derive("EURUSD", models.TF5m, time.UnixMilli(1704067200000)) {
		t.Fatalf("unexpected key %s", key)
	}

	opt := models.OptimizerRecord{Timeframe: models.TF1d, Timestamp: "2024-01-01T00:00:00Z"}
	if key, _ := ForRecord(opt); key != "portfolio:1d:340813440" {
		t.Fatalf("unexpected optimizer key %s", key)
	}

	if _, err := ForRecord(models.SignalRecord{Timestamp: "bad"}); err == nil {
		t.Fatalf("expected invalid timestamp error")
	}
}
