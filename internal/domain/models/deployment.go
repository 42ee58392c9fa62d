package models

type DeploymentStatus string

const (
	StatusPending     DeploymentStatus = "pending"
	StatusReady       DeploymentStatus = "ready"
	StatusError       DeploymentStatus = "error"
	StatusMaintenance DeploymentStatus = "maintenance"
	StatusOffline     DeploymentStatus = "offline"
)

func (s DeploymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusError, StatusMaintenance, StatusOffline:
		return true
	default:
		return false
	}
}

// Deployment is the receiving side's view of one running model instance.
// Status only changes when a heartbeat is applied.
type Deployment struct {
	ID              string           `json:"id"`
	ModelID         string           `json:"model_id"`
	VersionID       string           `json:"version_id"`
	VendorID        string           `json:"vendor_id"`
	Status          DeploymentStatus `json:"status"`
	CreatedAt       string           `json:"created_at"`
	LastHeartbeatAt *string          `json:"last_heartbeat_at"`

	CPUCores *float64 `json:"cpu_cores,omitempty"`
	MemoryGB *float64 `json:"memory_gb,omitempty"`
	GPUType  *string  `json:"gpu_type,omitempty"`

	AvgLatencyMs      *float64 `json:"avg_latency_ms,omitempty"`
	RequestsPerMinute *float64 `json:"requests_per_minute,omitempty"`
	ErrorRate         *float64 `json:"error_rate,omitempty"`
}

// DeploymentRegistration is the body of a register call.
type DeploymentRegistration struct {
	ID        string   `json:"id"`
	ModelID   string   `json:"model_id" validate:"required"`
	VersionID string   `json:"version_id" default:"v1" validate:"required"`
	VendorID  string   `json:"vendor_id" validate:"required"`
	CPUCores  *float64 `json:"cpu_cores" validate:"omitempty,gt=0"`
	MemoryGB  *float64 `json:"memory_gb" validate:"omitempty,gt=0"`
	GPUType   *string  `json:"gpu_type"`
}

type HeartbeatMetrics struct {
	CPUUsage             *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage          *float64 `json:"memory_usage,omitempty"`
	AvgLatencyMs         *float64 `json:"avg_latency_ms,omitempty"`
	RequestsLastMinute   *float64 `json:"requests_last_minute,omitempty"`
	ErrorCountLastMinute *float64 `json:"error_count_last_minute,omitempty"`
}

type Heartbeat struct {
	DeploymentID string            `json:"deployment_id"`
	Status       DeploymentStatus  `json:"status"`
	Timestamp    string            `json:"timestamp"`
	Metrics      *HeartbeatMetrics `json:"metrics,omitempty"`
	Message      string            `json:"message,omitempty"`
}
