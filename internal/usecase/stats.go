package usecase

import (
	"runtime"
	"sync"
	"time"

	"VendorLink/internal/domain/models"
)

type sample struct {
	at      time.Time
	latency time.Duration
	failed  bool
}

// RequestStats keeps the last minute of inference calls for heartbeat metrics.
type RequestStats struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
	now     func() time.Time
}

func NewRequestStats() *RequestStats {
	return &RequestStats{window: time.Minute, now: time.Now}
}

func (s *RequestStats) Observe(latency time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.trim(now)
	s.samples = append(s.samples, sample{at: now, latency: latency, failed: failed})
}

// Snapshot summarises the window. memory_usage is heap in use over memory obtained from the OS.
func (s *RequestStats) Snapshot() *models.HeartbeatMetrics {
	s.mu.Lock()
	s.trim(s.now())
	var (
		total  time.Duration
		errors float64
	)
	for _, smp := range s.samples {
		total += smp.latency
		if smp.failed {
			errors++
		}
	}
	n := len(s.samples)
	s.mu.Unlock()

	requests := float64(n)
	out := &models.HeartbeatMetrics{
		RequestsLastMinute:   &requests,
		ErrorCountLastMinute: &errors,
	}
	if n > 0 {
		avg := float64(total.Microseconds()) / 1000 / float64(n)
		out.AvgLatencyMs = &avg
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.Sys > 0 {
		mem := float64(ms.HeapInuse) / float64(ms.Sys)
		if mem > 1 {
			mem = 1
		}
		out.MemoryUsage = &mem
	}
	return out
}

func (s *RequestStats) trim(now time.Time) {
	cut := 0
	for cut < len(s.samples) && now.Sub(s.samples[cut].at) >= s.window {
		cut++
	}
	if cut > 0 {
		s.samples = append(s.samples[:0], s.samples[cut:]...)
	}
}
