package contracts

import (
	"VendorLink/internal/domain/models"
)

func signalRequest(o *object) models.SignalRequest {
	req := models.SignalRequest{
		Symbol:    o.requiredString("symbol"),
		Timeframe: o.timeframe("timeframe"),
		OHLCV:     bars(o, "ohlcv"),
		Features:  o.numberMap("features", anyNumber),
	}
	return req
}

// bars reads a list of [ts, open, high, low, close, volume] tuples.
func bars(o *object, key string) []models.Bar {
	arr, ok := o.array(key, false)
	if !ok {
		return nil
	}
	out := make([]models.Bar, 0, len(arr))
	for i, item := range arr {
		p := indexPath(o.at(key), i)
		row, isArr := item.([]any)
		if !isArr {
			o.errs.add(p, expected("array", item))
			continue
		}
		if len(row) != len(models.Bar{}) {
			o.errs.add(p, "Array must contain exactly 6 element(s)")
			continue
		}
		var bar models.Bar
		valid := true
		for j, cell := range row {
			n, ok := checkNumber(indexPath(p, j), cell, anyNumber, o.errs)
			if !ok {
				valid = false
			}
			bar[j] = n
		}
		if valid {
			out = append(out, bar)
		}
	}
	return out
}

func signalRecord(o *object) models.SignalRecord {
	return models.SignalRecord{
		Symbol:       o.requiredString("symbol"),
		Timeframe:    o.timeframe("timeframe"),
		Decision:     o.decision("decision"),
		Confidence:   o.requiredNumber("confidence", unitRange),
		ModelVersion: o.str("model_version", true, false),
		Timestamp:    o.timestamp("timestamp", true),
		Rationale:    o.rationale(),
		Metadata:     o.openMap("metadata"),
	}
}
