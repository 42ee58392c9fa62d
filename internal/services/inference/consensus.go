package inference

import (
	"context"
	"fmt"
	"strconv"

	"VendorLink/internal/domain/models"
)

// MajorityModel combines upstream signals by confidence-weighted vote.
type MajorityModel struct{}

func NewMajorityModel() *MajorityModel { return &MajorityModel{} }

func (m *MajorityModel) Task() models.Task { return models.TaskConsensus }

func (m *MajorityModel) Infer(_ context.Context, req models.InferenceRequest) (models.DecisionRecord, error) {
	r, ok := req.(models.ConsensusRequest)
	if !ok {
		return nil, fmt.Errorf("majority model: unexpected request %T", req)
	}

	rec := models.ConsensusRecord{
		Symbol:     r.Symbol,
		Timeframe:  r.Timeframe,
		Decision:   models.DecisionHold,
		Confidence: 0.5,
	}

	var total float64
	votes := map[models.Decision]float64{}
	for _, s := range r.Signals {
		votes[s.Decision] += s.Confidence
		total += s.Confidence
	}
	if total == 0 {
		rec.Rationale = []string{"No upstream conviction, holding"}
		return rec, nil
	}

	// Ties resolve toward HOLD, then BUY.
	best := models.DecisionHold
	for _, d := range []models.Decision{models.DecisionBuy, models.DecisionSell} {
		if votes[d] > votes[best] {
			best = d
		}
	}
	rec.Decision = best
	rec.Confidence = votes[best] / total

	rec.Contributions = make(map[string]models.Contribution, len(r.Signals))
	for i, s := range r.Signals {
		id := s.Source
		if id == "" {
			id = "signal_" + strconv.Itoa(i)
		}
		if _, dup := rec.Contributions[id]; dup {
			id = id + "_" + strconv.Itoa(i)
		}
		conf := s.Confidence
		rec.Contributions[id] = models.Contribution{
			Decision:   s.Decision,
			Weight:     s.Confidence / total,
			Confidence: &conf,
		}
	}
	rec.Rationale = []string{
		fmt.Sprintf("%d of %d signals agree on %s", count(r.Signals, best), len(r.Signals), best),
		fmt.Sprintf("Vote share %.2f", rec.Confidence),
	}
	return rec, nil
}

func count(signals []models.ConsensusInput, d models.Decision) int {
	n := 0
	for _, s := range signals {
		if s.Decision == d {
			n++
		}
	}
	return n
}
