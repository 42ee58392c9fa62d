package util

import (
	"testing"
	"time"
)

func TestParseISO(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseISO(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
	if _, ok := ParseISO("2024-10-10T10:10:10.123+07:00"); !ok {
		t.Fatalf("expected fractional offset form to parse")
	}
	if _, ok := ParseISO("10/10/2024"); ok {
		t.Fatalf("expected non-ISO input to fail")
	}
}

func TestFormatISO(t *testing.T) {
	in := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := FormatISO(in); got != "2024-01-01T00:00:00.000Z" {
		t.Fatalf("unexpected format %s", got)
	}
}
