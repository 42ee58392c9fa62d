package models

// LegacyRecord is the closed union of the v0.16.4 record shapes.
type LegacyRecord interface {
	Task() Task
	Subject() string
	Frame() Timeframe
	// BarTime is the ISO timestamp the legacy consumer keys on.
	BarTime() string

	isLegacyRecord()
}

// LegacySignal is the fixed-field signal shape. Every field except Meta is mandatory.
type LegacySignal struct {
	Owner      string         `json:"owner"`
	ModelID    string         `json:"model_id"`
	Symbol     string         `json:"symbol"`
	Timeframe  Timeframe      `json:"timeframe"`
	BarTS      string         `json:"bar_ts"`
	Decision   Decision       `json:"decision"`
	Confidence float64        `json:"confidence"`
	Meta       map[string]any `json:"meta"`
}

func (r LegacySignal) Task() Task       { return TaskSignal }
func (r LegacySignal) Subject() string  { return r.Symbol }
func (r LegacySignal) Frame() Timeframe { return r.Timeframe }
func (r LegacySignal) BarTime() string  { return r.BarTS }
func (r LegacySignal) isLegacyRecord()  {}

type LegacyContributor struct {
	ModelID  string   `json:"model_id"`
	Decision Decision `json:"decision"`
	Weight   float64  `json:"weight"`
}

type LegacyConsensus struct {
	Owner        string              `json:"owner"`
	Symbol       string              `json:"symbol"`
	Timeframe    Timeframe           `json:"timeframe"`
	BarTS        string              `json:"bar_ts"`
	Decision     Decision            `json:"decision"`
	Confidence   float64             `json:"confidence"`
	Contributors []LegacyContributor `json:"contributors"`
	Meta         map[string]any      `json:"meta"`
}

func (r LegacyConsensus) Task() Task       { return TaskConsensus }
func (r LegacyConsensus) Subject() string  { return r.Symbol }
func (r LegacyConsensus) Frame() Timeframe { return r.Timeframe }
func (r LegacyConsensus) BarTime() string  { return r.BarTS }
func (r LegacyConsensus) isLegacyRecord()  {}
