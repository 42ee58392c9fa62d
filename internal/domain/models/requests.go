package models

// Bar is one OHLCV tuple: [ts, open, high, low, close, volume].
type Bar [6]float64

func (b Bar) Time() float64   { return b[0] }
func (b Bar) Open() float64   { return b[1] }
func (b Bar) High() float64   { return b[2] }
func (b Bar) Low() float64    { return b[3] }
func (b Bar) Close() float64  { return b[4] }
func (b Bar) Volume() float64 { return b[5] }

// InferenceRequest is the closed union of the three request shapes.
type InferenceRequest interface {
	Task() Task
	isInferenceRequest()
}

type SignalRequest struct {
	Symbol    string             `json:"symbol"`
	Timeframe Timeframe          `json:"timeframe"`
	OHLCV     []Bar              `json:"ohlcv,omitempty"`
	Features  map[string]float64 `json:"features,omitempty"`
}

func (SignalRequest) Task() Task          { return TaskSignal }
func (SignalRequest) isInferenceRequest() {}

// ConsensusInput is an upstream signal fed into a consensus model.
type ConsensusInput struct {
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source,omitempty"`
}

type ConsensusRequest struct {
	Symbol    string           `json:"symbol"`
	Timeframe Timeframe        `json:"timeframe"`
	Inputs    map[string]any   `json:"inputs,omitempty"`
	Signals   []ConsensusInput `json:"signals,omitempty"`
}

func (ConsensusRequest) Task() Task          { return TaskConsensus }
func (ConsensusRequest) isInferenceRequest() {}

type OptimizerConstraints struct {
	MaxPositions      *int               `json:"max_positions,omitempty"`
	MaxWeightPerAsset *float64           `json:"max_weight_per_asset,omitempty"`
	MinWeightPerAsset *float64           `json:"min_weight_per_asset,omitempty"`
	SectorLimits      map[string]float64 `json:"sector_limits,omitempty"`
}

type OptimizerRequest struct {
	PortfolioID   string                `json:"portfolio_id,omitempty"`
	Assets        []string              `json:"assets"`
	Timeframe     Timeframe             `json:"timeframe"`
	RiskTolerance *float64              `json:"risk_tolerance,omitempty"`
	Constraints   *OptimizerConstraints `json:"constraints,omitempty"`
	MarketData    map[string]any        `json:"market_data,omitempty"`
}

func (OptimizerRequest) Task() Task          { return TaskOptimizer }
func (OptimizerRequest) isInferenceRequest() {}
