package contracts

import (
	"sort"
	"strings"

	"VendorLink/internal/domain/models"
)

// LegacyVersion is the schema generation the legacy record shapes belong to.
const LegacyVersion = "0.16.4"

type legacyOptions struct {
	barTS string
}

// LegacyOption adjusts a ToLegacy conversion.
type LegacyOption func(*legacyOptions)

// WithBarTimestamp sets bar_ts explicitly instead of taking the record timestamp.
func WithBarTimestamp(ts string) LegacyOption {
	return func(o *legacyOptions) {
		o.barTS = ts
	}
}

// ToLegacy converts a current-format record into the v0.16.4 shape. Owner and model id
// are never defaulted; meta falls back to an empty map. Nothing is returned unless the
// produced record passes the legacy schema.
func ToLegacy(rec models.DecisionRecord, owner, modelID string, opts ...LegacyOption) (models.LegacyRecord, ValidationErrors) {
	cfg := legacyOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var errs ValidationErrors
	owner = strings.TrimSpace(owner)
	modelID = strings.TrimSpace(modelID)
	if owner == "" {
		errs.add("owner", "owner is required by the legacy format and cannot be resolved")
	}
	if modelID == "" {
		errs.add("model_id", "model_id is required by the legacy format and cannot be resolved")
	}
	if rec == nil {
		errs.add("", "record is nil")
		return nil, errs
	}
	errs = append(errs, Check(rec)...)
	if len(errs) > 0 {
		return nil, errs
	}

	var out models.LegacyRecord
	switch r := rec.(type) {
	case models.SignalRecord:
		out = models.LegacySignal{
			Owner:      owner,
			ModelID:    modelID,
			Symbol:     r.Symbol,
			Timeframe:  r.Timeframe,
			BarTS:      barTimestamp(cfg, r.Timestamp),
			Decision:   r.Decision,
			Confidence: r.Confidence,
			Meta:       legacyMeta(r.Metadata),
		}
	case models.ConsensusRecord:
		meta := legacyMeta(r.Metadata)
		if _, ok := meta["model_id"]; !ok {
			meta["model_id"] = modelID
		}
		out = models.LegacyConsensus{
			Owner:        owner,
			Symbol:       r.Symbol,
			Timeframe:    r.Timeframe,
			BarTS:        barTimestamp(cfg, r.Timestamp),
			Decision:     r.Decision,
			Confidence:   r.Confidence,
			Contributors: contributors(r.Contributions),
			Meta:         meta,
		}
	default:
		errs.add("", "optimizer records have no legacy format")
		return nil, errs
	}

	v, err := Normalize(out)
	if err != nil {
		errs.add("", err.Error())
		return nil, errs
	}
	if _, verrs := ValidateLegacy(out.Task(), v); len(verrs) > 0 {
		return nil, verrs
	}
	return out, nil
}

// ValidateLegacy checks a payload against the v0.16.4 signal or consensus shape.
func ValidateLegacy(task models.Task, payload any) (models.LegacyRecord, ValidationErrors) {
	switch task {
	case models.TaskSignal:
		return validateObject(payload, func(o *object) models.LegacyRecord { return legacySignal(o) })
	case models.TaskConsensus:
		return validateObject(payload, func(o *object) models.LegacyRecord { return legacyConsensus(o) })
	default:
		return nil, ValidationErrors{{Message: enumMessage(string(task), []string{"signal", "consensus"})}}
	}
}

func legacySignal(o *object) models.LegacySignal {
	return models.LegacySignal{
		Owner:      o.requiredString("owner"),
		ModelID:    o.requiredString("model_id"),
		Symbol:     o.requiredString("symbol"),
		Timeframe:  o.timeframe("timeframe"),
		BarTS:      o.timestamp("bar_ts", true),
		Decision:   o.decision("decision"),
		Confidence: o.requiredNumber("confidence", unitRange),
		Meta:       legacyMeta(o.openMap("meta")),
	}
}

func legacyConsensus(o *object) models.LegacyConsensus {
	rec := models.LegacyConsensus{
		Owner:      o.requiredString("owner"),
		Symbol:     o.requiredString("symbol"),
		Timeframe:  o.timeframe("timeframe"),
		BarTS:      o.timestamp("bar_ts", true),
		Decision:   o.decision("decision"),
		Confidence: o.requiredNumber("confidence", unitRange),
	}
	if arr, ok := o.array("contributors", true); ok {
		rec.Contributors = make([]models.LegacyContributor, 0, len(arr))
		for i, item := range arr {
			c, ok := asObject(indexPath(o.at("contributors"), i), item, o.errs)
			if !ok {
				continue
			}
			rec.Contributors = append(rec.Contributors, models.LegacyContributor{
				ModelID:  c.requiredString("model_id"),
				Decision: c.decision("decision"),
				Weight:   c.requiredNumber("weight", unitRange),
			})
			c.done()
		}
	}
	rec.Meta = legacyMeta(o.openMap("meta"))
	return rec
}

func barTimestamp(cfg legacyOptions, ts string) string {
	if cfg.barTS != "" {
		return cfg.barTS
	}
	return ts
}

func legacyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func contributors(m map[string]models.Contribution) []models.LegacyContributor {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.LegacyContributor, 0, len(ids))
	for _, id := range ids {
		c := m[id]
		out = append(out, models.LegacyContributor{ModelID: id, Decision: c.Decision, Weight: c.Weight})
	}
	return out
}
