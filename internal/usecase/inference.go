package usecase

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"VendorLink/internal/contracts"
	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	"VendorLink/internal/domain/service"
	applogger "VendorLink/pkg/logger"
	"VendorLink/pkg/util"
)

// ErrModelOutput marks a model result that fails its own response contract.
var ErrModelOutput = errors.New("model produced an invalid record")

// InferenceService validates a request, runs the model, stamps the result and hands
// a copy to the writer in the background. The response never waits on the write.
type InferenceService struct {
	model        service.Model
	writer       service.RecordWriter
	version      string
	writeTimeout time.Duration
	stats        *RequestStats
	log          *applogger.Logger
	metrics      repository.Metrics
	now          func() time.Time

	pending sync.WaitGroup
}

func NewInferenceService(
	model service.Model,
	writer service.RecordWriter,
	version string,
	writeTimeout time.Duration,
	stats *RequestStats,
	l *applogger.Logger,
	m repository.Metrics,
) *InferenceService {
	if l == nil {
		l = applogger.Nop()
	}
	if stats == nil {
		stats = NewRequestStats()
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &InferenceService{
		model:        model,
		writer:       writer,
		version:      version,
		writeTimeout: writeTimeout,
		stats:        stats,
		log:          l,
		metrics:      m,
		now:          time.Now,
	}
}

func (s *InferenceService) Task() models.Task { return s.model.Task() }

func (s *InferenceService) Stats() *RequestStats { return s.stats }

// Infer returns validation errors for a bad request and an error when the model fails.
func (s *InferenceService) Infer(ctx context.Context, payload any) (models.DecisionRecord, contracts.ValidationErrors, error) {
	task := s.model.Task()
	req, verrs := contracts.ValidateRequest(task, payload)
	if len(verrs) > 0 {
		if s.metrics != nil {
			s.metrics.RecordValidationFailure(string(task) + "_request")
		}
		return nil, verrs, nil
	}

	start := s.now()
	rec, err := s.model.Infer(ctx, req)
	elapsed := s.now().Sub(start)
	if err == nil {
		rec, err = s.stamp(rec, start, elapsed)
	}
	s.stats.Observe(elapsed, err != nil)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("inference")
		}
		return nil, nil, fmt.Errorf("infer %s: %w", task, err)
	}
	if s.metrics != nil {
		s.metrics.RecordLatency("inference", elapsed.Seconds())
	}

	s.dispatch(rec)
	return rec, nil, nil
}

func (s *InferenceService) stamp(rec models.DecisionRecord, at time.Time, took time.Duration) (models.DecisionRecord, error) {
	ts := util.FormatISO(at)
	ms := took.Milliseconds()
	meta := func(m map[string]any) map[string]any {
		out := make(map[string]any, len(m)+1)
		maps.Copy(out, m)
		out["inference_time_ms"] = ms
		return out
	}

	switch r := rec.(type) {
	case models.SignalRecord:
		r.ModelVersion, r.Timestamp, r.Metadata = s.version, ts, meta(r.Metadata)
		rec = r
	case models.ConsensusRecord:
		r.ModelVersion, r.Timestamp, r.Metadata = s.version, ts, meta(r.Metadata)
		rec = r
	case models.OptimizerRecord:
		r.ModelVersion, r.Timestamp, r.Metadata = s.version, ts, meta(r.Metadata)
		rec = r
	default:
		return nil, fmt.Errorf("%w: unexpected type %T", ErrModelOutput, rec)
	}

	rec = models.ResponseVariant(rec)
	if errs := contracts.Check(rec); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrModelOutput, errs)
	}
	return rec, nil
}

func (s *InferenceService) dispatch(rec models.DecisionRecord) {
	if s.writer == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()

		out := s.writer.Write(ctx, rec)
		switch {
		case out.Skipped:
		case !out.Delivered:
			s.log.Warn("decision write not delivered",
				applogger.String("task", string(rec.Task())),
				applogger.String("key", out.Key),
				applogger.Int("status", out.StatusCode),
				applogger.String("error", out.Error()),
			)
		}
	}()
}

// Drain waits for background writes until ctx is done.
func (s *InferenceService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain writes: %w", ctx.Err())
	}
}
