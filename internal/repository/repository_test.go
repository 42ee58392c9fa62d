package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	"VendorLink/pkg/cache"
)

func newCache(t *testing.T) cache.Service {
	t.Helper()
	c := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheDeploymentStore(t *testing.T) {
	ctx := context.Background()
	s := NewCacheDeploymentStore(newCache(t))

	if _, err := s.Get(ctx, "dep_x"); !errors.Is(err, repository.ErrDeploymentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	for _, id := range []string{"dep_b", "dep_a"} {
		if err := s.Put(ctx, models.Deployment{ID: id, Status: models.StatusPending}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	d, err := s.Get(ctx, "dep_a")
	if err != nil || d.Status != models.StatusPending {
		t.Fatalf("unexpected get %+v %v", d, err)
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != 2 || list[0].ID != "dep_a" {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
}

func TestCacheDedupGuard(t *testing.T) {
	ctx := context.Background()
	g := NewCacheDedupGuard(newCache(t), time.Minute)

	first, err := g.Claim(ctx, "EURUSD:5m:1")
	if err != nil || !first {
		t.Fatalf("expected first claim, got %v %v", first, err)
	}
	if again, _ := g.Claim(ctx, "EURUSD:5m:1"); again {
		t.Fatalf("expected replay to be refused")
	}
	if err := g.Release(ctx, "EURUSD:5m:1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if again, _ := g.Claim(ctx, "EURUSD:5m:1"); !again {
		t.Fatalf("expected claim after release")
	}
}

func TestInsertStatement(t *testing.T) {
	rec := models.SignalRecord{
		Symbol:       "EURUSD",
		Timeframe:    models.TF5m,
		Decision:     models.DecisionBuy,
		Confidence:   0.8,
		ModelVersion: "1",
		Timestamp:    "2024-01-01T00:00:00Z",
	}
	batch := []models.Envelope{
		{Key: "EURUSD:5m:340813440", Task: models.TaskSignal, Version: "0.2.1", Payload: rec},
		{Key: "bad", Task: models.TaskSignal, Payload: "not a record"},
	}
	q, args, err := insertStatement("marketplace.decisions", batch)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.HasPrefix(q, "INSERT INTO marketplace.decisions (") || strings.Count(q, "(?,") != 1 {
		t.Fatalf("unexpected query %s", q)
	}
	if len(args) != 9 || args[5] != "EURUSD" || args[6] != "5m" {
		t.Fatalf("unexpected args %v", args)
	}
	if !strings.Contains(args[8].(string), `"symbol":"EURUSD"`) {
		t.Fatalf("expected JSON payload, got %v", args[8])
	}

	if q, _, _ := insertStatement("t", batch[1:]); q != "" {
		t.Fatalf("expected no statement for unindexable payloads")
	}
}

func TestDecisionsSchema(t *testing.T) {
	stmts := DecisionsSchema("marketplace.decisions")
	if len(stmts) != 2 || stmts[0] != "CREATE DATABASE IF NOT EXISTS marketplace" {
		t.Fatalf("unexpected schema %v", stmts)
	}
	if got := DecisionsSchema("decisions"); len(got) != 1 {
		t.Fatalf("expected table only, got %v", got)
	}
}

func TestEnvelopeMessagesKeyedByIdempotencyKey(t *testing.T) {
	msgs := envelopeMessages([]models.Envelope{{Key: "a"}, {Key: "b"}})
	if len(msgs) != 2 || string(msgs[1].Key) != "b" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}
