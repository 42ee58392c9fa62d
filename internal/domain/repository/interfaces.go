package repository

import (
	"context"
	"errors"

	"VendorLink/internal/domain/models"
)

var (
	ErrDeploymentNotFound = errors.New("deployment not found")
	ErrDeploymentExists   = errors.New("deployment already exists")
)

// DecisionSink durably stores accepted records.
type DecisionSink interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, batch []models.Envelope) error
	Health(ctx context.Context) error
	Close() error
}

// DecisionPublisher fans accepted records out to downstream consumers.
type DecisionPublisher interface {
	PublishBatch(ctx context.Context, batch []models.Envelope) error
	Close() error
}

// DedupGuard remembers idempotency keys. Claim returns false when the key was already seen.
type DedupGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// DeploymentStore persists deployments by id.
type DeploymentStore interface {
	Get(ctx context.Context, id string) (models.Deployment, error)
	Put(ctx context.Context, d models.Deployment) error
	List(ctx context.Context) ([]models.Deployment, error)
}

type Metrics interface {
	RecordWrite(task, result string)
	RecordHeartbeat(status, result string)
	RecordValidationFailure(schema string)
	RecordReplay(task string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
