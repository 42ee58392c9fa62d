// Package idempotency derives the dedup token shared by vendors and the
// receiving store. Both sides must bucket identically, so the width is fixed.
package idempotency

import (
	"fmt"
	"time"

	"VendorLink/internal/domain/models"
	xutil "VendorLink/pkg/util"
)

// BucketMillis is the window width. Changing it breaks dedup across deployments.
const BucketMillis int64 = 5000

// Bucket returns floor(ms / BucketMillis), rounding toward negative infinity.
func Bucket(ms int64) int64 {
	b := ms / BucketMillis
	if ms%BucketMillis != 0 && ms < 0 {
		b--
	}
	return b
}

// DeriveMillis builds "<symbol>:<timeframe>:<bucket>" from a unix millisecond instant.
func DeriveMillis(symbol string, tf models.Timeframe, ms int64) string {
	return fmt.Sprintf("%s:%s:%d", symbol, tf, Bucket(ms))
}

// Derive is DeriveMillis for a time.Time.
func Derive(symbol string, tf models.Timeframe, ts time.Time) string {
	return DeriveMillis(symbol, tf, ts.UnixMilli())
}

// ForRecord keys a decision record by its subject, timeframe and timestamp.
// The record timestamp must already be valid ISO-8601.
func ForRecord(rec models.DecisionRecord) (string, error) {
	ts, ok := xutil.ParseISO(rec.Instant())
	if !ok {
		return "", fmt.Errorf("idempotency: invalid timestamp %q", rec.Instant())
	}
	return Derive(rec.Subject(), rec.Frame(), ts), nil
}

// ForLegacy keys a legacy record by its bar timestamp.
func ForLegacy(rec models.LegacyRecord) (string, error) {
	ts, ok := xutil.ParseISO(rec.BarTime())
	if !ok {
		return "", fmt.Errorf("idempotency: invalid bar_ts %q", rec.BarTime())
	}
	return Derive(rec.Subject(), rec.Frame(), ts), nil
}
