package inference

import (
	"context"
	"fmt"

	"VendorLink/internal/domain/models"

	"github.com/shopspring/decimal"
)

// weightPlaces is the precision allocations are rounded to.
const weightPlaces = 6

// EqualWeightModel splits the portfolio evenly across the requested assets, honouring
// max_positions and the per-asset bounds. Weights are computed in decimal so a fully
// invested portfolio sums to exactly 1.
type EqualWeightModel struct{}

func NewEqualWeightModel() *EqualWeightModel { return &EqualWeightModel{} }

func (m *EqualWeightModel) Task() models.Task { return models.TaskOptimizer }

func (m *EqualWeightModel) Infer(_ context.Context, req models.InferenceRequest) (models.DecisionRecord, error) {
	r, ok := req.(models.OptimizerRequest)
	if !ok {
		return nil, fmt.Errorf("equal weight model: unexpected request %T", req)
	}

	assets := dedupe(r.Assets)
	rationale := []string{fmt.Sprintf("%d candidate assets", len(assets))}

	c := r.Constraints
	if c != nil && c.MaxPositions != nil && *c.MaxPositions >= 0 && *c.MaxPositions < len(assets) {
		assets = assets[:*c.MaxPositions]
		rationale = append(rationale, fmt.Sprintf("Limited to %d positions", len(assets)))
	}
	if c != nil && c.MinWeightPerAsset != nil && *c.MinWeightPerAsset > 0 {
		minW := decimal.NewFromFloat(*c.MinWeightPerAsset)
		fit := decimal.NewFromInt(1).Div(minW).IntPart()
		if fit < int64(len(assets)) {
			assets = assets[:fit]
			rationale = append(rationale, fmt.Sprintf("Minimum weight allows %d positions", fit))
		}
	}

	rec := models.OptimizerRecord{
		PortfolioID: r.PortfolioID,
		Timeframe:   r.Timeframe,
		Allocations: make([]models.Allocation, 0, len(assets)),
	}
	if len(assets) == 0 {
		rec.Rationale = append(rationale, "Nothing to allocate, fully in cash")
		return rec, nil
	}

	one := decimal.NewFromInt(1)
	n := decimal.NewFromInt(int64(len(assets)))
	weight := one.DivRound(n, weightPlaces)
	capped := false
	if c != nil && c.MaxWeightPerAsset != nil {
		if maxW := decimal.NewFromFloat(*c.MaxWeightPerAsset); weight.GreaterThan(maxW) {
			weight = maxW.Truncate(weightPlaces)
			capped = true
		}
	}

	allocated := decimal.Zero
	for i, symbol := range assets {
		w := weight
		if !capped && i == len(assets)-1 {
			w = one.Sub(allocated)
		}
		allocated = allocated.Add(w)
		rec.Allocations = append(rec.Allocations, models.Allocation{Symbol: symbol, Weight: w.InexactFloat64()})
	}

	if capped {
		cash := one.Sub(allocated)
		rationale = append(rationale, fmt.Sprintf("Capped at %s per asset, %s left in cash", weight.String(), cash.String()))
	} else {
		rationale = append(rationale, fmt.Sprintf("Equal weight %s across %d assets", weight.String(), len(assets)))
	}
	rec.Rationale = rationale
	return rec, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
