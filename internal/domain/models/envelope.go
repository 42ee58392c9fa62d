package models

import "time"

// Envelope is one accepted record on the receiving side, keyed for dedup and fan-out.
// Payload is either a DecisionRecord or a LegacyRecord.
type Envelope struct {
	Key        string    `json:"key"`
	Task       Task      `json:"task"`
	Version    string    `json:"contracts_version"`
	VendorID   string    `json:"vendor_id,omitempty"`
	Payload    any       `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// WriteOutcome reports one best-effort write. It never carries a panic or aborts the caller.
type WriteOutcome struct {
	Delivered  bool   `json:"delivered"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
	Key        string `json:"idempotency_key,omitempty"`
	// Skipped is set when the writer is disabled by configuration; no I/O happened.
	Skipped bool `json:"skipped,omitempty"`
}

// Error returns the failure reason, or "" when delivered or skipped.
func (o WriteOutcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

type EmitOutcome struct {
	Delivered  bool
	StatusCode int
	Err        error
	Skipped    bool
}
