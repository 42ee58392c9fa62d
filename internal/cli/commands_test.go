package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeyCommand(t *testing.T) {
	out, err := execute(t, "key", "EURUSD", "5m", "--at", "2024-01-01T00:00:04Z")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if strings.TrimSpace(out) != "EURUSD:5m:340813440" {
		t.Fatalf("unexpected key %q", out)
	}

	if _, err := execute(t, "key", "EURUSD", "2h"); err == nil {
		t.Fatalf("expected invalid timeframe to fail")
	}
	if _, err := execute(t, "key", "EURUSD", "5m", "--at", "yesterday"); err == nil {
		t.Fatalf("expected invalid --at to fail")
	}
}

func TestProbeCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			_, _ = w.Write([]byte(`{"symbol":"EURUSD","timeframe":"5m","decision":"BUY","confidence":1.5,"model_version":"1","timestamp":"2024-01-01T00:00:00Z"}`))
		}
	}))
	defer srv.Close()

	out, err := execute(t, "probe", "--url", srv.URL, "--task", "signal")
	if err == nil {
		t.Fatalf("expected probe to fail on an out-of-range confidence")
	}
	if !strings.Contains(out, "confidence:") {
		t.Fatalf("expected the violation path in output, got %q", out)
	}
}
