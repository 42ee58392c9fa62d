package contracts

import "VendorLink/internal/domain/models"

func heartbeat(o *object) models.Heartbeat {
	hb := models.Heartbeat{
		DeploymentID: o.requiredString("deployment_id"),
		Status:       o.status("status"),
		Timestamp:    o.timestamp("timestamp", true),
	}
	if m := o.child("metrics", false); m != nil {
		hb.Metrics = &models.HeartbeatMetrics{
			CPUUsage:             m.optionalNumber("cpu_usage", unitRange),
			MemoryUsage:          m.optionalNumber("memory_usage", unitRange),
			AvgLatencyMs:         m.optionalNumber("avg_latency_ms", nonNegative),
			RequestsLastMinute:   m.optionalNumber("requests_last_minute", nonNegative),
			ErrorCountLastMinute: m.optionalNumber("error_count_last_minute", nonNegative),
		}
		m.done()
	}
	hb.Message = o.optionalString("message")
	return hb
}

func deployment(o *object) models.Deployment {
	return models.Deployment{
		ID:                o.requiredString("id"),
		ModelID:           o.requiredString("model_id"),
		VersionID:         o.requiredString("version_id"),
		VendorID:          o.requiredString("vendor_id"),
		Status:            o.status("status"),
		CreatedAt:         o.timestamp("created_at", true),
		LastHeartbeatAt:   o.nullableTimestamp("last_heartbeat_at"),
		CPUCores:          o.optionalNumber("cpu_cores", nonNegative),
		MemoryGB:          o.optionalNumber("memory_gb", nonNegative),
		GPUType:           o.optionalStringPtr("gpu_type"),
		AvgLatencyMs:      o.optionalNumber("avg_latency_ms", nonNegative),
		RequestsPerMinute: o.optionalNumber("requests_per_minute", nonNegative),
		ErrorRate:         o.optionalNumber("error_rate", unitRange),
	}
}

func catalogModel(o *object) models.CatalogModel {
	m := models.CatalogModel{
		ID:               o.requiredString("id"),
		Name:             o.requiredString("name"),
		Description:      o.optionalString("description"),
		Vendor:           o.requiredString("vendor"),
		Task:             models.Task(o.enum("task", taskNames)),
		Stage:            models.Stage(o.enum("stage", stageNames)),
		CreatedAt:        o.timestamp("created_at", true),
		UpdatedAt:        o.timestamp("updated_at", true),
		LastHeartbeatAt:  o.nullableTimestamp("last_heartbeat_at"),
		LastOOSSharpe:    o.nullableNumber("last_oos_sharpe", anyNumber),
		AvgConfidence:    o.nullableNumber("avg_confidence", unitRange),
		TotalPredictions: o.optionalInt("total_predictions", nonNegInt),
		DeploymentCount:  o.optionalInt("deployment_count", nonNegInt),
		Status:           o.optionalString("status"),
		Tags:             o.stringList("tags", false),
		SupportedSymbols: o.stringList("supported_symbols", true),
	}
	if tfs := o.stringList("supported_timeframes", false); tfs != nil {
		m.SupportedTimeframes = make([]models.Timeframe, 0, len(tfs))
		for i, s := range tfs {
			tf := models.Timeframe(s)
			if !tf.Valid() {
				o.errs.add(indexPath(o.at("supported_timeframes"), i), enumMessage(s, timeframeNames()))
				continue
			}
			m.SupportedTimeframes = append(m.SupportedTimeframes, tf)
		}
	}
	return m
}
