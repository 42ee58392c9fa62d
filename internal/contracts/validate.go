package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"VendorLink/internal/domain/models"
)

// Direction selects which side of a contract a payload is checked against.
type Direction string

const (
	Request  Direction = "request"
	Response Direction = "response"
	// Write is the response shape plus the vendor_id and deployment_id provenance fields.
	Write Direction = "write"
)

var provenanceKeys = []string{"vendor_id", "deployment_id"}

// Decode parses a JSON document keeping numbers as json.Number.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode json: unexpected data after document")
	}
	return v, nil
}

// Normalize converts a typed value into the untyped form the validators read.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return Decode(b)
}

// Validate checks payload against the task's schema for dir. The returned value is
// a models.InferenceRequest for Request and a models.DecisionRecord otherwise.
func Validate(task models.Task, dir Direction, payload any) (any, ValidationErrors) {
	switch dir {
	case Request:
		return ValidateRequest(task, payload)
	case Response, Write:
		return ValidateRecord(task, dir, payload)
	default:
		return nil, ValidationErrors{{Message: fmt.Sprintf("unknown direction %q", dir)}}
	}
}

// ValidateRequest checks an inference request for task and returns it typed.
func ValidateRequest(task models.Task, payload any) (models.InferenceRequest, ValidationErrors) {
	var errs ValidationErrors
	o, ok := asObject("", payload, &errs)
	if !ok {
		return nil, errs
	}
	var req models.InferenceRequest
	switch task {
	case models.TaskSignal:
		req = signalRequest(o)
	case models.TaskConsensus:
		req = consensusRequest(o)
	case models.TaskOptimizer:
		req = optimizerRequest(o)
	default:
		return nil, unknownTask(task)
	}
	o.done()
	if len(errs) > 0 {
		return nil, errs
	}
	return req, nil
}

// ValidateRecord checks a decision record. For Write the provenance fields are split
// off first so the remainder must satisfy the response schema unchanged.
func ValidateRecord(task models.Task, dir Direction, payload any) (models.DecisionRecord, ValidationErrors) {
	var errs ValidationErrors
	m, ok := payload.(map[string]any)
	if !ok {
		errs.add("", expected("object", payload))
		return nil, errs
	}

	base := m
	var prov models.Provenance
	if dir == Write {
		base = make(map[string]any, len(m))
		extra := make(map[string]any, len(provenanceKeys))
		for k, v := range m {
			if k == "vendor_id" || k == "deployment_id" {
				extra[k] = v
				continue
			}
			base[k] = v
		}
		p := &object{fields: extra, seen: map[string]bool{}, errs: &errs}
		prov.VendorID = p.optionalString("vendor_id")
		prov.DeploymentID = p.optionalString("deployment_id")
	}

	o, _ := asObject("", base, &errs)
	var rec models.DecisionRecord
	switch task {
	case models.TaskSignal:
		rec = signalRecord(o)
	case models.TaskConsensus:
		rec = consensusRecord(o)
	case models.TaskOptimizer:
		rec = optimizerRecord(o)
	default:
		return nil, unknownTask(task)
	}
	o.done()
	if len(errs) > 0 {
		return nil, errs
	}
	return rec.WithSource(prov), nil
}

// Check re-validates a typed record's response variant, which is what every outbound
// record must satisfy before provenance is attached.
func Check(rec models.DecisionRecord) ValidationErrors {
	if rec == nil {
		return ValidationErrors{{Message: "record is nil"}}
	}
	v, err := Normalize(models.ResponseVariant(rec))
	if err != nil {
		return ValidationErrors{{Message: err.Error()}}
	}
	_, errs := ValidateRecord(rec.Task(), Response, v)
	return errs
}

// CheckWrite validates rec as a write-variant record, provenance included.
func CheckWrite(rec models.DecisionRecord) ValidationErrors {
	if rec == nil {
		return ValidationErrors{{Message: "record is nil"}}
	}
	v, err := Normalize(rec)
	if err != nil {
		return ValidationErrors{{Message: err.Error()}}
	}
	_, errs := ValidateRecord(rec.Task(), Write, v)
	return errs
}

// ValidateHeartbeat checks a heartbeat body as sent to the infra intake.
func ValidateHeartbeat(payload any) (models.Heartbeat, ValidationErrors) {
	return validateObject(payload, heartbeat)
}

// ValidateDeployment checks a deployment registration.
func ValidateDeployment(payload any) (models.Deployment, ValidationErrors) {
	return validateObject(payload, deployment)
}

// ValidateCatalogModel checks a catalog entry.
func ValidateCatalogModel(payload any) (models.CatalogModel, ValidationErrors) {
	return validateObject(payload, catalogModel)
}

func validateObject[T any](payload any, read func(*object) T) (T, ValidationErrors) {
	var (
		zero T
		errs ValidationErrors
	)
	o, ok := asObject("", payload, &errs)
	if !ok {
		return zero, errs
	}
	v := read(o)
	o.done()
	if len(errs) > 0 {
		return zero, errs
	}
	return v, nil
}

// ValidateBatch checks every element of a JSON array body, re-rooting errors at "[i]".
func ValidateBatch[T any](payload any, one func(any) (T, ValidationErrors)) ([]T, ValidationErrors) {
	arr, ok := payload.([]any)
	if !ok {
		return nil, ValidationErrors{{Message: expected("array", payload)}}
	}
	if len(arr) == 0 {
		return nil, ValidationErrors{{Message: "Array must contain at least 1 element(s)"}}
	}
	var (
		out  = make([]T, 0, len(arr))
		errs ValidationErrors
	)
	for i, item := range arr {
		v, itemErrs := one(item)
		if len(itemErrs) > 0 {
			errs = append(errs, itemErrs.AtIndex(i)...)
			continue
		}
		out = append(out, v)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func unknownTask(task models.Task) ValidationErrors {
	return ValidationErrors{{Message: enumMessage(string(task), taskNames)}}
}
