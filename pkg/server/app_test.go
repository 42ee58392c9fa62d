package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/usecase"
	xhttp "VendorLink/pkg/http"
)

type recordingSender struct {
	mu       sync.Mutex
	statuses []models.DeploymentStatus
	first    chan struct{}
	once     sync.Once
}

func (s *recordingSender) Send(_ context.Context, hb models.Heartbeat) models.EmitOutcome {
	s.mu.Lock()
	s.statuses = append(s.statuses, hb.Status)
	s.mu.Unlock()
	s.once.Do(func() { close(s.first) })
	return models.EmitOutcome{Delivered: true, StatusCode: 200}
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++
	return nil
}

func TestRunContextSendsOfflineAndCloses(t *testing.T) {
	sender := &recordingSender{first: make(chan struct{})}
	emitter := usecase.NewHeartbeatEmitter(sender, "dep_1", "1.0.0", time.Hour,
		usecase.WithJitter(func() time.Duration { return 0 }))

	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	app := New(nil, nil, srv)
	app.SetEmitter(emitter)
	closer := &closeCounter{}
	app.AddCloser("test", closer)
	app.AddCloser("nil", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	select {
	case <-sender.first:
	case <-time.After(5 * time.Second):
		t.Fatalf("no heartbeat before timeout")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("shutdown did not finish")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.statuses) < 2 || sender.statuses[0] != models.StatusReady || sender.statuses[len(sender.statuses)-1] != models.StatusOffline {
		t.Fatalf("unexpected heartbeat sequence %v", sender.statuses)
	}
	if closer.n != 1 {
		t.Fatalf("expected closer to run once, got %d", closer.n)
	}
}
