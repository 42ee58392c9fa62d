package models

import "time"

// Task identifies which contract family a payload belongs to.
type Task string

const (
	TaskSignal    Task = "signal"
	TaskConsensus Task = "consensus"
	TaskOptimizer Task = "optimizer"
)

// Valid reports whether t is a known task kind.
func (t Task) Valid() bool {
	switch t {
	case TaskSignal, TaskConsensus, TaskOptimizer:
		return true
	default:
		return false
	}
}

type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Timeframes lists every timeframe accepted on the wire, in ascending order.
var Timeframes = []Timeframe{TF1m, TF5m, TF15m, TF1h, TF4h, TF1d}

func (tf Timeframe) Valid() bool {
	return tf.Duration() > 0
}

// Duration returns the bar length of tf, or 0 when tf is unknown.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

func (d Decision) Valid() bool {
	return d == DecisionBuy || d == DecisionSell || d == DecisionHold
}

// Provenance carries the write-only fields appended when a record is persisted.
// Both are empty on inference responses.
type Provenance struct {
	VendorID     string `json:"vendor_id,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
}

// DecisionRecord is the closed union of SignalRecord, ConsensusRecord and OptimizerRecord.
type DecisionRecord interface {
	Task() Task
	// Subject is the first component of the idempotency key.
	Subject() string
	Frame() Timeframe
	Instant() string
	Source() Provenance
	WithSource(p Provenance) DecisionRecord

	isDecisionRecord()
}

// ResponseVariant strips write-only fields from r.
func ResponseVariant(r DecisionRecord) DecisionRecord {
	return r.WithSource(Provenance{})
}

type SignalRecord struct {
	Symbol       string         `json:"symbol"`
	Timeframe    Timeframe      `json:"timeframe"`
	Decision     Decision       `json:"decision"`
	Confidence   float64        `json:"confidence"`
	ModelVersion string         `json:"model_version"`
	Timestamp    string         `json:"timestamp"`
	Rationale    []string       `json:"rationale,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Provenance
}

func (r SignalRecord) Task() Task         { return TaskSignal }
func (r SignalRecord) Subject() string    { return r.Symbol }
func (r SignalRecord) Frame() Timeframe   { return r.Timeframe }
func (r SignalRecord) Instant() string    { return r.Timestamp }
func (r SignalRecord) Source() Provenance { return r.Provenance }
func (r SignalRecord) isDecisionRecord()  {}

func (r SignalRecord) WithSource(p Provenance) DecisionRecord {
	r.Provenance = p
	return r
}

// Contribution is one model's share of a consensus decision, keyed by model id.
type Contribution struct {
	Decision   Decision `json:"decision"`
	Weight     float64  `json:"weight"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type ConsensusRecord struct {
	Symbol        string                  `json:"symbol"`
	Timeframe     Timeframe               `json:"timeframe"`
	Decision      Decision                `json:"decision"`
	Confidence    float64                 `json:"confidence"`
	ModelVersion  string                  `json:"model_version"`
	Timestamp     string                  `json:"timestamp"`
	Rationale     []string                `json:"rationale,omitempty"`
	Contributions map[string]Contribution `json:"contributions,omitempty"`
	Metadata      map[string]any          `json:"metadata,omitempty"`
	Provenance
}

func (r ConsensusRecord) Task() Task         { return TaskConsensus }
func (r ConsensusRecord) Subject() string    { return r.Symbol }
func (r ConsensusRecord) Frame() Timeframe   { return r.Timeframe }
func (r ConsensusRecord) Instant() string    { return r.Timestamp }
func (r ConsensusRecord) Source() Provenance { return r.Provenance }
func (r ConsensusRecord) isDecisionRecord()  {}

func (r ConsensusRecord) WithSource(p Provenance) DecisionRecord {
	r.Provenance = p
	return r
}

type Allocation struct {
	Symbol     string   `json:"symbol"`
	Weight     float64  `json:"weight"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// PortfolioSubject is the idempotency subject of an optimizer record without a portfolio id.
const PortfolioSubject = "portfolio"

type OptimizerRecord struct {
	PortfolioID        string         `json:"portfolio_id,omitempty"`
	Timeframe          Timeframe      `json:"timeframe"`
	Allocations        []Allocation   `json:"allocations"`
	ExpectedReturn     *float64       `json:"expected_return,omitempty"`
	ExpectedVolatility *float64       `json:"expected_volatility,omitempty"`
	SharpeRatio        *float64       `json:"sharpe_ratio,omitempty"`
	ModelVersion       string         `json:"model_version"`
	Timestamp          string         `json:"timestamp"`
	Rationale          []string       `json:"rationale,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	Provenance
}

func (r OptimizerRecord) Task() Task { return TaskOptimizer }

func (r OptimizerRecord) Subject() string {
	if r.PortfolioID != "" {
		return r.PortfolioID
	}
	return PortfolioSubject
}

func (r OptimizerRecord) Frame() Timeframe   { return r.Timeframe }
func (r OptimizerRecord) Instant() string    { return r.Timestamp }
func (r OptimizerRecord) Source() Provenance { return r.Provenance }
func (r OptimizerRecord) isDecisionRecord()  {}

func (r OptimizerRecord) WithSource(p Provenance) DecisionRecord {
	r.Provenance = p
	return r
}
