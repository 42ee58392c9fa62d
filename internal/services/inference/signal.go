package inference

import (
	"context"
	"fmt"
	"math"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/services/features"
)

// CandleModel decides from the shape of the most recent bar: a strong body in either
// direction produces BUY or SELL, anything else HOLD. Supplied features lift confidence.
type CandleModel struct {
	// StrongBody is the body ratio above which a candle counts as decisive.
	StrongBody float64
}

func NewCandleModel() *CandleModel {
	return &CandleModel{StrongBody: 0.6}
}

func (m *CandleModel) Task() models.Task { return models.TaskSignal }

func (m *CandleModel) Infer(_ context.Context, req models.InferenceRequest) (models.DecisionRecord, error) {
	r, ok := req.(models.SignalRequest)
	if !ok {
		return nil, fmt.Errorf("candle model: unexpected request %T", req)
	}

	decision := models.DecisionHold
	confidence := 0.5
	rationale := make([]string, 0, 4)

	if len(r.OHLCV) > 0 {
		s := features.Summarize(r.OHLCV, r.Timeframe)
		switch {
		case s.Direction > 0 && s.BodyRatio > m.StrongBody:
			decision = models.DecisionBuy
			confidence = math.Min(0.9, 0.6+s.BodyRatio*0.3)
			rationale = append(rationale, fmt.Sprintf("Strong bullish candle (body ratio: %.2f)", s.BodyRatio))
		case s.Direction < 0 && s.BodyRatio > m.StrongBody:
			decision = models.DecisionSell
			confidence = math.Min(0.9, 0.6+s.BodyRatio*0.3)
			rationale = append(rationale, fmt.Sprintf("Strong bearish candle (body ratio: %.2f)", s.BodyRatio))
		default:
			confidence = 0.7
			rationale = append(rationale, "Indecisive price action")
		}
		rationale = append(rationale, fmt.Sprintf("Analyzed %d price bars", s.Bars))
	}

	if n := len(r.Features); n > 0 {
		rationale = append(rationale, fmt.Sprintf("Used %d technical features", n))
		confidence = math.Min(1.0, confidence+0.1)
	}
	rationale = append(rationale, fmt.Sprintf("%s %s analysis complete", r.Symbol, r.Timeframe))

	return models.SignalRecord{
		Symbol:     r.Symbol,
		Timeframe:  r.Timeframe,
		Decision:   decision,
		Confidence: confidence,
		Rationale:  rationale,
		Metadata: map[string]any{
			"features_count": len(r.Features),
			"ohlcv_bars":     len(r.OHLCV),
		},
	}, nil
}
