package contracts

import "VendorLink/internal/domain/models"

func optimizerRequest(o *object) models.OptimizerRequest {
	req := models.OptimizerRequest{
		PortfolioID: o.optionalString("portfolio_id"),
	}
	if v, present := o.fields["assets"]; !present || v == nil {
		o.skip("assets")
		o.errs.add(o.at("assets"), msgRequired)
	} else {
		req.Assets = o.stringList("assets", true)
		if req.Assets != nil && len(req.Assets) == 0 {
			o.errs.add(o.at("assets"), "Array must contain at least 1 element(s)")
		}
	}
	req.Timeframe = o.timeframe("timeframe")
	req.RiskTolerance = o.optionalNumber("risk_tolerance", unitRange)
	if c := o.child("constraints", false); c != nil {
		req.Constraints = &models.OptimizerConstraints{
			MaxWeightPerAsset: c.optionalNumber("max_weight_per_asset", unitRange),
			MinWeightPerAsset: c.optionalNumber("min_weight_per_asset", unitRange),
			SectorLimits:      c.numberMap("sector_limits", nonNegative),
		}
		if n := c.optionalInt("max_positions", positiveInt); n != nil {
			v := int(*n)
			req.Constraints.MaxPositions = &v
		}
		c.done()
	}
	req.MarketData = o.openMap("market_data")
	return req
}

func optimizerRecord(o *object) models.OptimizerRecord {
	rec := models.OptimizerRecord{
		PortfolioID: o.optionalString("portfolio_id"),
		Timeframe:   o.timeframe("timeframe"),
		Allocations: allocations(o),
	}
	rec.ExpectedReturn = o.optionalNumber("expected_return", anyNumber)
	rec.ExpectedVolatility = o.optionalNumber("expected_volatility", nonNegative)
	rec.SharpeRatio = o.optionalNumber("sharpe_ratio", anyNumber)
	rec.ModelVersion = o.str("model_version", true, false)
	rec.Timestamp = o.timestamp("timestamp", true)
	rec.Rationale = o.rationale()
	rec.Metadata = o.openMap("metadata")
	return rec
}

func allocations(o *object) []models.Allocation {
	arr, ok := o.array("allocations", true)
	if !ok {
		return nil
	}
	out := make([]models.Allocation, 0, len(arr))
	for i, item := range arr {
		a, ok := asObject(indexPath(o.at("allocations"), i), item, o.errs)
		if !ok {
			continue
		}
		out = append(out, models.Allocation{
			Symbol:     a.requiredString("symbol"),
			Weight:     a.requiredNumber("weight", unitRange),
			Confidence: a.optionalNumber("confidence", unitRange),
		})
		a.done()
	}
	return out
}
