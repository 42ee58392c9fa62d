package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	applogger "VendorLink/pkg/logger"
	"VendorLink/pkg/util"

	"github.com/google/uuid"
)

// DeploymentTracker owns the deployment status machine. A deployment starts pending and
// only moves when a heartbeat is applied; the newest heartbeat always wins.
type DeploymentTracker struct {
	store   repository.DeploymentStore
	log     *applogger.Logger
	metrics repository.Metrics
	now     func() time.Time
	newID   func() string

	mu sync.Mutex
}

func NewDeploymentTracker(store repository.DeploymentStore, l *applogger.Logger, m repository.Metrics) *DeploymentTracker {
	if l == nil {
		l = applogger.Nop()
	}
	return &DeploymentTracker{
		store:   store,
		log:     l,
		metrics: m,
		now:     time.Now,
		newID:   func() string { return "dep_" + uuid.NewString() },
	}
}

// Register creates a pending deployment. An empty id is generated.
func (t *DeploymentTracker) Register(ctx context.Context, reg models.DeploymentRegistration) (models.Deployment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := reg.ID
	if id == "" {
		id = t.newID()
	}
	if _, err := t.store.Get(ctx, id); err == nil {
		return models.Deployment{}, fmt.Errorf("register %s: %w", id, repository.ErrDeploymentExists)
	} else if !errors.Is(err, repository.ErrDeploymentNotFound) {
		return models.Deployment{}, fmt.Errorf("register %s: %w", id, err)
	}

	d := models.Deployment{
		ID:        id,
		ModelID:   reg.ModelID,
		VersionID: reg.VersionID,
		VendorID:  reg.VendorID,
		Status:    models.StatusPending,
		CreatedAt: util.FormatISO(t.now()),
		CPUCores:  reg.CPUCores,
		MemoryGB:  reg.MemoryGB,
		GPUType:   reg.GPUType,
	}
	if err := t.store.Put(ctx, d); err != nil {
		return models.Deployment{}, fmt.Errorf("register %s: %w", id, err)
	}
	t.log.Info("deployment registered", applogger.String("deployment_id", id), applogger.String("vendor_id", reg.VendorID))
	return d, nil
}

// Apply moves the deployment to hb.Status. A heartbeat older than the last applied one
// is ignored and reported with applied=false; equal timestamps apply.
func (t *DeploymentTracker) Apply(ctx context.Context, hb models.Heartbeat) (d models.Deployment, applied bool, err error) {
	at, ok := util.ParseISO(hb.Timestamp)
	if !ok {
		return models.Deployment{}, false, fmt.Errorf("heartbeat timestamp %q is not ISO-8601", hb.Timestamp)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, err = t.store.Get(ctx, hb.DeploymentID)
	if err != nil {
		t.record(hb.Status, "unknown")
		return models.Deployment{}, false, fmt.Errorf("apply heartbeat: %w", err)
	}
	if d.LastHeartbeatAt != nil {
		if last, ok := util.ParseISO(*d.LastHeartbeatAt); ok && at.Before(last) {
			t.record(hb.Status, "stale")
			t.log.Debug("stale heartbeat ignored",
				applogger.String("deployment_id", d.ID),
				applogger.String("timestamp", hb.Timestamp),
				applogger.String("last", *d.LastHeartbeatAt),
			)
			return d, false, nil
		}
	}

	prev := d.Status
	ts := hb.Timestamp
	d.Status = hb.Status
	d.LastHeartbeatAt = &ts
	aggregate(&d, hb.Metrics)

	if err := t.store.Put(ctx, d); err != nil {
		return models.Deployment{}, false, fmt.Errorf("apply heartbeat: %w", err)
	}
	t.record(hb.Status, "applied")
	if prev != d.Status {
		t.log.Info("deployment status changed",
			applogger.String("deployment_id", d.ID),
			applogger.String("from", string(prev)),
			applogger.String("to", string(d.Status)),
		)
	}
	return d, true, nil
}

func (t *DeploymentTracker) Get(ctx context.Context, id string) (models.Deployment, error) {
	return t.store.Get(ctx, id)
}

func (t *DeploymentTracker) List(ctx context.Context) ([]models.Deployment, error) {
	return t.store.List(ctx)
}

func (t *DeploymentTracker) record(status models.DeploymentStatus, result string) {
	if t.metrics != nil {
		t.metrics.RecordHeartbeat(string(status), result)
	}
}

// aggregate copies the heartbeat's last-minute figures onto the deployment.
func aggregate(d *models.Deployment, m *models.HeartbeatMetrics) {
	if m == nil {
		return
	}
	if m.AvgLatencyMs != nil {
		v := *m.AvgLatencyMs
		d.AvgLatencyMs = &v
	}
	if m.RequestsLastMinute != nil {
		v := *m.RequestsLastMinute
		d.RequestsPerMinute = &v
		if m.ErrorCountLastMinute != nil {
			rate := 0.0
			if v > 0 {
				rate = min(*m.ErrorCountLastMinute/v, 1)
			}
			d.ErrorRate = &rate
		}
	}
}
