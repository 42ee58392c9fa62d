package usecase

import (
	"context"
	"math/rand/v2"
	"time"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/service"
	applogger "VendorLink/pkg/logger"
	"VendorLink/pkg/util"
)

// MaxJitter bounds the random delay added to every heartbeat period.
const MaxJitter = 5 * time.Second

// EmitterOption configures HeartbeatEmitter.
type EmitterOption func(*HeartbeatEmitter)

// HeartbeatEmitter reports liveness for one deployment.
type HeartbeatEmitter struct {
	sender       service.HeartbeatSender
	deploymentID string
	version      string
	interval     time.Duration
	finalTimeout time.Duration
	jitter       func() time.Duration
	metrics      func() *models.HeartbeatMetrics
	now          func() time.Time
	log          *applogger.Logger
}

func NewHeartbeatEmitter(sender service.HeartbeatSender, deploymentID, version string, interval time.Duration, opts ...EmitterOption) *HeartbeatEmitter {
	e := &HeartbeatEmitter{
		sender:       sender,
		deploymentID: deploymentID,
		version:      version,
		interval:     interval,
		finalTimeout: 5 * time.Second,
		jitter:       func() time.Duration { return rand.N(MaxJitter) },
		now:          time.Now,
		log:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithJitter replaces the uniform [0, MaxJitter) source.
func WithJitter(fn func() time.Duration) EmitterOption {
	return func(e *HeartbeatEmitter) {
		if fn != nil {
			e.jitter = fn
		}
	}
}

// WithMetricsSource attaches process metrics to every heartbeat.
func WithMetricsSource(fn func() *models.HeartbeatMetrics) EmitterOption {
	return func(e *HeartbeatEmitter) { e.metrics = fn }
}

func WithFinalTimeout(d time.Duration) EmitterOption {
	return func(e *HeartbeatEmitter) {
		if d > 0 {
			e.finalTimeout = d
		}
	}
}

func WithEmitterLogger(l *applogger.Logger) EmitterOption {
	return func(e *HeartbeatEmitter) {
		if l != nil {
			e.log = l
		}
	}
}

// Emit sends one heartbeat with status. Failures are logged and returned, never retried.
func (e *HeartbeatEmitter) Emit(ctx context.Context, status models.DeploymentStatus) models.EmitOutcome {
	hb := models.Heartbeat{
		DeploymentID: e.deploymentID,
		Status:       status,
		Timestamp:    util.FormatISO(e.now()),
		Message:      "Heartbeat from " + e.version,
	}
	if e.metrics != nil {
		hb.Metrics = e.metrics()
	}
	out := e.sender.Send(ctx, hb)
	if out.Err != nil {
		e.log.Warn("heartbeat not delivered",
			applogger.String("deployment_id", e.deploymentID),
			applogger.String("status", string(status)),
			applogger.Error(out.Err),
		)
	}
	return out
}

// Next returns the delay before the following heartbeat.
func (e *HeartbeatEmitter) Next() time.Duration {
	return e.interval + e.jitter()
}

// Run emits ready at once and then every Next() until ctx is cancelled, then sends a
// final offline heartbeat bounded by the final timeout.
func (e *HeartbeatEmitter) Run(ctx context.Context) {
	e.Emit(ctx, models.StatusReady)

	timer := time.NewTimer(e.Next())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), e.finalTimeout)
			e.Emit(final, models.StatusOffline)
			cancel()
			return
		case <-timer.C:
			e.Emit(ctx, models.StatusReady)
			timer.Reset(e.Next())
		}
	}
}
