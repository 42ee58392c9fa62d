package contracts

import (
	"fmt"
	"regexp"

	"VendorLink/internal/domain/models"
)

// Semver is the contracts version stamped on every outbound write.
const Semver = "0.2.1"

const (
	HeaderContractsVersion = "X-Marketplace-Contracts-Version"
	HeaderToken            = "X-Marketplace-Token"
	HeaderIdempotencyKey   = "X-Idempotency-Key"
	HeaderIdempotentReplay = "X-Idempotent-Replay"
	// HeaderFanoutFailed marks a stored batch that was not published downstream.
	HeaderFanoutFailed = "X-Fanout-Failed"
)

// symbolPattern accepts a concatenated pair of two 3-6 letter codes or a 2-5 letter ticker.
var symbolPattern = regexp.MustCompile(`^(?:[A-Z]{3,6}[A-Z]{3,6}|[A-Z]{2,5})$`)

// IsValidSymbol reports whether s is an upper-case ticker or pair, e.g. "AAPL" or "EURUSD".
// Record validation does not apply it; any non-empty symbol is accepted there.
func IsValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

func IsValidTimeframe(s string) bool {
	return models.Timeframe(s).Valid()
}

// FormatConfidence renders a confidence in [0,1] as a percentage with one decimal.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.1f%%", c*100)
}
