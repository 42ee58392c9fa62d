package service

import (
	"context"

	"VendorLink/internal/domain/models"
)

// Model is the inference boundary. It sees one validated request and returns a record
// carrying at least decision, confidence and rationale; the caller stamps model_version
// and timestamp.
type Model interface {
	Task() models.Task
	Infer(ctx context.Context, req models.InferenceRequest) (models.DecisionRecord, error)
}

// RecordWriter delivers decision records to the infrastructure store.
type RecordWriter interface {
	Write(ctx context.Context, records ...models.DecisionRecord) models.WriteOutcome
}

// HeartbeatSender delivers one heartbeat.
type HeartbeatSender interface {
	Send(ctx context.Context, hb models.Heartbeat) models.EmitOutcome
}
