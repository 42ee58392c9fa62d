package contracts

import "VendorLink/internal/domain/models"

func consensusRequest(o *object) models.ConsensusRequest {
	req := models.ConsensusRequest{
		Symbol:    o.requiredString("symbol"),
		Timeframe: o.timeframe("timeframe"),
		Inputs:    o.openMap("inputs"),
	}
	if arr, ok := o.array("signals", false); ok {
		req.Signals = make([]models.ConsensusInput, 0, len(arr))
		for i, item := range arr {
			s, ok := asObject(indexPath(o.at("signals"), i), item, o.errs)
			if !ok {
				continue
			}
			req.Signals = append(req.Signals, models.ConsensusInput{
				Decision:   s.decision("decision"),
				Confidence: s.requiredNumber("confidence", unitRange),
				Source:     s.optionalString("source"),
			})
			s.done()
		}
	}
	return req
}

func consensusRecord(o *object) models.ConsensusRecord {
	return models.ConsensusRecord{
		Symbol:        o.requiredString("symbol"),
		Timeframe:     o.timeframe("timeframe"),
		Decision:      o.decision("decision"),
		Confidence:    o.requiredNumber("confidence", unitRange),
		ModelVersion:  o.str("model_version", true, false),
		Timestamp:     o.timestamp("timestamp", true),
		Rationale:     o.rationale(),
		Contributions: contributions(o),
		Metadata:      o.openMap("metadata"),
	}
}

// contributions reads the model_id keyed contribution map.
func contributions(o *object) map[string]models.Contribution {
	v, ok := o.lookup("contributions")
	if !ok {
		return nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		o.errs.add(o.at("contributions"), expected("object", v))
		return nil
	}
	out := make(map[string]models.Contribution, len(m))
	for _, modelID := range sortedKeys(m) {
		c, ok := asObject(joinKey(o.at("contributions"), modelID), m[modelID], o.errs)
		if !ok {
			continue
		}
		out[modelID] = models.Contribution{
			Decision:   c.decision("decision"),
			Weight:     c.requiredNumber("weight", anyNumber),
			Confidence: c.optionalNumber("confidence", anyNumber),
		}
		c.done()
	}
	return out
}
