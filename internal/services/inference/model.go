package inference

import (
	"fmt"
	"time"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/service"
)

// Options selects between the built-in placeholder models and a remote model service.
type Options struct {
	RemoteURL      string
	RemoteTimeout  time.Duration
	RemoteAttempts int
}

// New returns the model serving task.
func New(task models.Task, opts Options) (service.Model, error) {
	if opts.RemoteURL != "" {
		return NewHTTPModel(task, opts.RemoteURL, opts.RemoteTimeout, opts.RemoteAttempts)
	}
	switch task {
	case models.TaskSignal:
		return NewCandleModel(), nil
	case models.TaskConsensus:
		return NewMajorityModel(), nil
	case models.TaskOptimizer:
		return NewEqualWeightModel(), nil
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}
}
