package models

type Stage string

const (
	StageShadow  Stage = "shadow"
	StagePilot   Stage = "pilot"
	StageProd    Stage = "prod"
	StageRetired Stage = "retired"
)

func (s Stage) Valid() bool {
	switch s {
	case StageShadow, StagePilot, StageProd, StageRetired:
		return true
	default:
		return false
	}
}

// CatalogModel is a marketplace listing entry.
type CatalogModel struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Description         string      `json:"description,omitempty"`
	Vendor              string      `json:"vendor"`
	Task                Task        `json:"task"`
	Stage               Stage       `json:"stage"`
	CreatedAt           string      `json:"created_at"`
	UpdatedAt           string      `json:"updated_at"`
	LastHeartbeatAt     *string     `json:"last_heartbeat_at"`
	LastOOSSharpe       *float64    `json:"last_oos_sharpe"`
	AvgConfidence       *float64    `json:"avg_confidence"`
	TotalPredictions    *int64      `json:"total_predictions,omitempty"`
	DeploymentCount     *int64      `json:"deployment_count,omitempty"`
	Status              string      `json:"status,omitempty"`
	Tags                []string    `json:"tags,omitempty"`
	SupportedSymbols    []string    `json:"supported_symbols,omitempty"`
	SupportedTimeframes []Timeframe `json:"supported_timeframes,omitempty"`
}
