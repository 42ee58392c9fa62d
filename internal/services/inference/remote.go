package inference

import (
	"context"
	"fmt"
	"time"

	"VendorLink/internal/domain/models"
	xhttp "VendorLink/pkg/http"
)

// Triple is what an external model service returns for signal and consensus requests.
type Triple struct {
	Decision   models.Decision `json:"decision"`
	Confidence float64         `json:"confidence"`
	Rationale  []string        `json:"rationale,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// HTTPModel forwards each request to an external model service and wraps its
// (decision, confidence, rationale) answer into a record. Bounds are left to the
// caller's contract check so an out-of-range answer surfaces instead of being clamped.
type HTTPModel struct {
	task     models.Task
	url      string
	client   *xhttp.Client
	attempts int
}

// NewHTTPModel builds a remote model for task. Optimizer tasks have no triple form.
func NewHTTPModel(task models.Task, url string, timeout time.Duration, attempts int) (*HTTPModel, error) {
	if task != models.TaskSignal && task != models.TaskConsensus {
		return nil, fmt.Errorf("remote model: task %q is not supported", task)
	}
	if url == "" {
		return nil, fmt.Errorf("remote model: url is required")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPModel{
		task:     task,
		url:      url,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: attempts,
	}, nil
}

func (m *HTTPModel) Task() models.Task { return m.task }

func (m *HTTPModel) Infer(ctx context.Context, req models.InferenceRequest) (models.DecisionRecord, error) {
	var out Triple
	if err := m.postWithRetry(ctx, req, &out); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case models.SignalRequest:
		return models.SignalRecord{
			Symbol:     r.Symbol,
			Timeframe:  r.Timeframe,
			Decision:   out.Decision,
			Confidence: out.Confidence,
			Rationale:  out.Rationale,
			Metadata:   out.Metadata,
		}, nil
	case models.ConsensusRequest:
		return models.ConsensusRecord{
			Symbol:     r.Symbol,
			Timeframe:  r.Timeframe,
			Decision:   out.Decision,
			Confidence: out.Confidence,
			Rationale:  out.Rationale,
			Metadata:   out.Metadata,
		}, nil
	default:
		return nil, fmt.Errorf("remote model: unexpected request %T", req)
	}
}

// postWithRetry retries transient failures with a linear backoff. Only the model call is
// retried here; the outbound record write never is.
func (m *HTTPModel) postWithRetry(ctx context.Context, payload, dest interface{}) error {
	var err error
	for i := 1; i <= m.attempts; i++ {
		err = m.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     m.url,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    payload,
		}, dest)
		if err == nil {
			return nil
		}
		if i == m.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("remote model %s: %w", m.url, err)
}
