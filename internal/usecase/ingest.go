package usecase

import (
	"context"
	"fmt"
	"time"

	"VendorLink/internal/contracts"
	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	"VendorLink/internal/idempotency"
	applogger "VendorLink/pkg/logger"
)

// IngestResult describes one accepted or replayed batch.
type IngestResult struct {
	Key      string
	Accepted int
	Replay   bool
	// FanoutFailed is set when the batch was stored but could not be published.
	FanoutFailed bool
}

// Ingestor accepts record batches on the receiving side. Sink and publisher are optional;
// with neither configured a batch is validated, deduplicated and dropped.
type Ingestor struct {
	guard   repository.DedupGuard
	sink    repository.DecisionSink
	pub     repository.DecisionPublisher
	log     *applogger.Logger
	metrics repository.Metrics
	now     func() time.Time
}

func NewIngestor(
	guard repository.DedupGuard,
	sink repository.DecisionSink,
	pub repository.DecisionPublisher,
	l *applogger.Logger,
	m repository.Metrics,
) *Ingestor {
	if l == nil {
		l = applogger.Nop()
	}
	return &Ingestor{guard: guard, sink: sink, pub: pub, log: l, metrics: m, now: time.Now}
}

// Store validates a JSON array of write-variant records for task.
// key is the X-Idempotency-Key header; when empty it is derived from the first record.
func (i *Ingestor) Store(ctx context.Context, task models.Task, key, version string, payload any) (IngestResult, contracts.ValidationErrors, error) {
	recs, errs := contracts.ValidateBatch(payload, func(v any) (models.DecisionRecord, contracts.ValidationErrors) {
		return contracts.ValidateRecord(task, contracts.Write, v)
	})
	if len(errs) > 0 {
		i.rejected(string(task))
		return IngestResult{}, errs, nil
	}
	if key == "" {
		k, err := idempotency.ForRecord(recs[0])
		if err != nil {
			return IngestResult{}, contracts.ValidationErrors{{Path: "[0].timestamp", Message: err.Error()}}, nil
		}
		key = k
	}

	envs := make([]models.Envelope, len(recs))
	for n, rec := range recs {
		k, _ := idempotency.ForRecord(rec)
		envs[n] = i.envelope(k, task, version, rec.Source().VendorID, rec)
	}
	res, err := i.accept(ctx, task, key, envs)
	return res, nil, err
}

// StoreLegacy is Store for arrays of v0.16.4 records.
func (i *Ingestor) StoreLegacy(ctx context.Context, task models.Task, key string, payload any) (IngestResult, contracts.ValidationErrors, error) {
	recs, errs := contracts.ValidateBatch(payload, func(v any) (models.LegacyRecord, contracts.ValidationErrors) {
		return contracts.ValidateLegacy(task, v)
	})
	if len(errs) > 0 {
		i.rejected("legacy_" + string(task))
		return IngestResult{}, errs, nil
	}
	if key == "" {
		k, err := idempotency.ForLegacy(recs[0])
		if err != nil {
			return IngestResult{}, contracts.ValidationErrors{{Path: "[0].bar_ts", Message: err.Error()}}, nil
		}
		key = k
	}

	envs := make([]models.Envelope, len(recs))
	for n, rec := range recs {
		k, _ := idempotency.ForLegacy(rec)
		envs[n] = i.envelope(k, task, contracts.LegacyVersion, "", rec)
	}
	res, err := i.accept(ctx, task, key, envs)
	return res, nil, err
}

func (i *Ingestor) envelope(key string, task models.Task, version, vendorID string, payload any) models.Envelope {
	if version == "" {
		version = contracts.Semver
	}
	return models.Envelope{
		Key:        key,
		Task:       task,
		Version:    version,
		VendorID:   vendorID,
		Payload:    payload,
		ReceivedAt: i.now().UTC(),
	}
}

func (i *Ingestor) accept(ctx context.Context, task models.Task, key string, envs []models.Envelope) (IngestResult, error) {
	res := IngestResult{Key: key, Accepted: len(envs)}
	if i.guard != nil {
		fresh, err := i.guard.Claim(ctx, claimKey(task, key))
		if err != nil {
			i.fail("dedup")
			return IngestResult{}, fmt.Errorf("claim %s: %w", key, err)
		}
		if !fresh {
			if i.metrics != nil {
				i.metrics.RecordReplay(string(task))
			}
			i.log.Debug("idempotent replay", applogger.String("key", key))
			return IngestResult{Key: key, Replay: true}, nil
		}
	}

	start := i.now()
	stored, err := i.deliver(ctx, envs)
	switch {
	case err != nil && stored:
		// The sink holds the batch, so the claim stays and a resend is a replay.
		i.fail("fanout")
		i.log.Warn("batch stored but not published", applogger.String("key", key), applogger.Error(err))
		res.FanoutFailed = true
	case err != nil:
		i.fail("ingest")
		if i.guard != nil {
			if rerr := i.guard.Release(ctx, claimKey(task, key)); rerr != nil {
				i.log.Warn("release idempotency key", applogger.String("key", key), applogger.Error(rerr))
			}
		}
		return IngestResult{}, fmt.Errorf("ingest %s: %w", key, err)
	}
	if i.metrics != nil {
		i.metrics.RecordLatency("ingest", i.now().Sub(start).Seconds())
	}
	i.log.Debug("batch accepted", applogger.String("key", key), applogger.Int("records", len(envs)))
	return res, nil
}

// claimKey scopes a dedup claim to one task.
func claimKey(task models.Task, key string) string {
	return string(task) + ":" + key
}

// deliver stores then publishes. stored reports whether the sink accepted the batch.
func (i *Ingestor) deliver(ctx context.Context, envs []models.Envelope) (stored bool, err error) {
	if i.sink != nil {
		if err := i.sink.StoreBatch(ctx, envs); err != nil {
			return false, fmt.Errorf("store: %w", err)
		}
		stored = true
	}
	if i.pub != nil {
		if err := i.pub.PublishBatch(ctx, envs); err != nil {
			return stored, fmt.Errorf("publish: %w", err)
		}
	}
	return stored, nil
}

func (i *Ingestor) rejected(schema string) {
	if i.metrics != nil {
		i.metrics.RecordValidationFailure(schema)
	}
}

func (i *Ingestor) fail(kind string) {
	if i.metrics != nil {
		i.metrics.RecordError(kind)
	}
}

// Close releases the sink and publisher.
func (i *Ingestor) Close() {
	if i.pub != nil {
		_ = i.pub.Close()
	}
	if i.sink != nil {
		_ = i.sink.Close()
	}
}
