package infra

import (
	"context"
	"fmt"
	"io"
	"time"

	"VendorLink/internal/contracts"
	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	"VendorLink/internal/idempotency"
	xhttp "VendorLink/pkg/http"
	applogger "VendorLink/pkg/logger"
)

// maxErrorBody bounds how much of a rejection body is kept in the outcome.
const maxErrorBody = 512

// WriterOption configures Writer.
type WriterOption func(*Writer)

// Writer posts decision records to the infrastructure store. Each call is exactly one
// HTTP attempt; failures come back in the outcome and are never retried here.
type Writer struct {
	url     string
	token   string
	client  *xhttp.Client
	source  models.Provenance
	legacy  bool
	owner   string
	modelID string
	log     *applogger.Logger
	metrics repository.Metrics
}

// NewWriter builds a writer for url with a bearer token. An empty url or token
// yields a disabled writer whose Write is a no-op.
func NewWriter(url, token string, opts ...WriterOption) *Writer {
	w := &Writer{
		url:    url,
		token:  token,
		client: xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
		log:    applogger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WithWriteTimeout bounds the single attempt.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.client = xhttp.NewClient(xhttp.WithTimeout(d))
		}
	}
}

// WithProvenance stamps vendor_id and deployment_id onto every written record.
func WithProvenance(p models.Provenance) WriterOption {
	return func(w *Writer) {
		w.source = p
	}
}

// WithLegacyFormat converts every record to the v0.16.4 shape before sending.
func WithLegacyFormat(owner, modelID string) WriterOption {
	return func(w *Writer) {
		w.legacy = true
		w.owner = owner
		w.modelID = modelID
	}
}

// WithWriterLogger sets the logger. A nil logger keeps the default.
func WithWriterLogger(l *applogger.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithWriterMetrics records write outcomes on m.
func WithWriterMetrics(m repository.Metrics) WriterOption {
	return func(w *Writer) {
		w.metrics = m
	}
}

// Enabled reports whether a destination and credential are configured.
func (w *Writer) Enabled() bool {
	return w.url != "" && w.token != ""
}

// Write validates and sends records as one JSON array. The idempotency key is taken
// from the first record. Nothing is sent when any record fails its contract.
func (w *Writer) Write(ctx context.Context, records ...models.DecisionRecord) models.WriteOutcome {
	if !w.Enabled() {
		return models.WriteOutcome{Skipped: true}
	}
	if len(records) == 0 {
		return models.WriteOutcome{Err: fmt.Errorf("write: no records")}
	}
	for i, rec := range records {
		if rec == nil {
			w.record("unknown", "invalid")
			return models.WriteOutcome{Err: fmt.Errorf("write: record %d is nil", i)}
		}
	}
	task := string(records[0].Task())

	body, key, err := w.compose(records)
	if err != nil {
		w.record(task, "invalid")
		w.log.Warn("write rejected locally", applogger.String("task", task), applogger.Error(err))
		return models.WriteOutcome{Err: err}
	}

	start := time.Now()
	resp, err := w.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    w.url,
		Headers: map[string]string{
			"Content-Type":                   "application/json",
			"Authorization":                  "Bearer " + w.token,
			contracts.HeaderContractsVersion: contracts.Semver,
			contracts.HeaderIdempotencyKey:   key,
		},
		Body: body,
	})
	if w.metrics != nil {
		w.metrics.RecordLatency("write", time.Since(start).Seconds())
	}
	if err != nil {
		w.record(task, "error")
		w.log.Warn("write failed", applogger.String("key", key), applogger.Error(err))
		return models.WriteOutcome{Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		w.record(task, "rejected")
		w.log.Warn("write rejected",
			applogger.String("key", key),
			applogger.Int("status", resp.StatusCode),
			applogger.String("body", string(msg)),
		)
		return models.WriteOutcome{
			Key:        key,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	w.record(task, "delivered")
	w.log.Debug("write delivered", applogger.String("key", key), applogger.Int("records", len(records)))
	return models.WriteOutcome{Delivered: true, StatusCode: resp.StatusCode, Key: key}
}

func (w *Writer) compose(records []models.DecisionRecord) ([]any, string, error) {
	key, err := idempotency.ForRecord(records[0])
	if err != nil {
		return nil, "", err
	}

	body := make([]any, 0, len(records))
	for i, rec := range records {
		if w.legacy {
			out, errs := contracts.ToLegacy(rec, w.owner, w.modelID)
			if len(errs) > 0 {
				return nil, "", fmt.Errorf("record %d: %w", i, errs)
			}
			body = append(body, out)
			continue
		}
		rec = rec.WithSource(w.source)
		if errs := contracts.CheckWrite(rec); len(errs) > 0 {
			return nil, "", fmt.Errorf("record %d: %w", i, errs)
		}
		body = append(body, rec)
	}
	return body, key, nil
}

func (w *Writer) record(task, result string) {
	if w.metrics != nil {
		w.metrics.RecordWrite(task, result)
	}
}
