package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"VendorLink/internal/contracts"
	"VendorLink/internal/domain/models"

	"github.com/go-resty/resty/v2"
)

// Prober checks a running model process over HTTP.
type Prober struct {
	client *resty.Client
}

// Report is the outcome of one probe. Violations are contract failures of /health or /infer.
type Report struct {
	Task       models.Task
	Healthy    bool
	Record     models.DecisionRecord
	Violations contracts.ValidationErrors
}

// OK reports whether health passed and the inference response validated.
func (r Report) OK() bool {
	return r.Healthy && len(r.Violations) == 0
}

func New(baseURL string, timeout time.Duration) *Prober {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	return &Prober{client: client}
}

// SampleRequest returns a minimal valid request for task.
func SampleRequest(task models.Task) (any, error) {
	switch task {
	case models.TaskSignal:
		return map[string]any{
			"symbol":    "EURUSD",
			"timeframe": "5m",
			"ohlcv": [][6]float64{
				{1704067200000, 1.1000, 1.1010, 1.0995, 1.1008, 1200},
				{1704067500000, 1.1008, 1.1030, 1.1005, 1.1027, 1500},
			},
		}, nil
	case models.TaskConsensus:
		return map[string]any{
			"symbol":    "EURUSD",
			"timeframe": "5m",
			"signals": []map[string]any{
				{"decision": "BUY", "confidence": 0.7, "source": "momentum"},
				{"decision": "HOLD", "confidence": 0.5, "source": "mean_reversion"},
			},
		}, nil
	case models.TaskOptimizer:
		return map[string]any{
			"portfolio_id":   "probe",
			"assets":         []string{"AAPL", "MSFT", "GOOG"},
			"timeframe":      "1d",
			"risk_tolerance": 0.5,
		}, nil
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}
}

// Check calls /health, then /infer with the task's sample request. Transport failures
// are returned as errors; contract failures land in the report.
func (p *Prober) Check(ctx context.Context, task models.Task) (Report, error) {
	body, err := SampleRequest(task)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Task: task}

	var health struct {
		Status string `json:"status"`
	}
	resp, err := p.client.R().SetContext(ctx).SetResult(&health).Get("/health")
	if err != nil {
		return rep, fmt.Errorf("health: %w", err)
	}
	switch {
	case resp.IsError():
		rep.Violations = append(rep.Violations, contracts.ValidationError{Path: "/health", Message: fmt.Sprintf("status %d", resp.StatusCode())})
	case health.Status != "ok":
		rep.Violations = append(rep.Violations, contracts.ValidationError{Path: "/health.status", Message: fmt.Sprintf("expected \"ok\", got %q", health.Status)})
	default:
		rep.Healthy = true
	}

	resp, err = p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/infer")
	if err != nil {
		return rep, fmt.Errorf("infer: %w", err)
	}
	if resp.IsError() {
		rep.Violations = append(rep.Violations, contracts.ValidationError{
			Path:    "/infer",
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 200)),
		})
		return rep, nil
	}

	v, err := contracts.Decode(resp.Body())
	if err != nil {
		rep.Violations = append(rep.Violations, contracts.ValidationError{Path: "/infer", Message: err.Error()})
		return rep, nil
	}
	rec, errs := contracts.ValidateRecord(task, contracts.Response, v)
	rep.Violations = append(rep.Violations, errs...)
	rep.Record = rec
	return rep, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
