package infra

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"VendorLink/internal/contracts"
	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	xhttp "VendorLink/pkg/http"
	applogger "VendorLink/pkg/logger"
)

// HeartbeatPath is appended to the marketplace API base URL.
const HeartbeatPath = "/api/marketplace/vendor/heartbeats"

// HeartbeatClient posts single heartbeats to the marketplace API.
type HeartbeatClient struct {
	url     string
	token   string
	client  *xhttp.Client
	log     *applogger.Logger
	metrics repository.Metrics
}

// NewHeartbeatClient targets apiURL + HeartbeatPath. An empty apiURL or token disables it.
func NewHeartbeatClient(apiURL, token string, timeout time.Duration, l *applogger.Logger, m repository.Metrics) *HeartbeatClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if l == nil {
		l = applogger.Nop()
	}
	url := ""
	if apiURL != "" {
		url = strings.TrimRight(apiURL, "/") + HeartbeatPath
	}
	return &HeartbeatClient{
		url:     url,
		token:   token,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		log:     l,
		metrics: m,
	}
}

func (c *HeartbeatClient) Enabled() bool {
	return c.url != "" && c.token != ""
}

// Send validates hb and makes one delivery attempt.
func (c *HeartbeatClient) Send(ctx context.Context, hb models.Heartbeat) models.EmitOutcome {
	if !c.Enabled() {
		return models.EmitOutcome{Skipped: true}
	}
	status := string(hb.Status)

	v, err := contracts.Normalize(hb)
	if err == nil {
		if _, errs := contracts.ValidateHeartbeat(v); len(errs) > 0 {
			err = errs
		}
	}
	if err != nil {
		c.record(status, "invalid")
		c.log.Warn("heartbeat rejected locally", applogger.String("deployment_id", hb.DeploymentID), applogger.Error(err))
		return models.EmitOutcome{Err: err}
	}

	resp, err := c.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.url,
		Headers: map[string]string{
			"Content-Type":                   "application/json",
			"Authorization":                  "Bearer " + c.token,
			contracts.HeaderContractsVersion: contracts.Semver,
		},
		Body: hb,
	})
	if err != nil {
		c.record(status, "error")
		c.log.Warn("heartbeat failed", applogger.String("deployment_id", hb.DeploymentID), applogger.Error(err))
		return models.EmitOutcome{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.record(status, "rejected")
		c.log.Warn("heartbeat rejected",
			applogger.String("deployment_id", hb.DeploymentID),
			applogger.Int("status", resp.StatusCode),
		)
		return models.EmitOutcome{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.record(status, "delivered")
	c.log.Info("heartbeat sent", applogger.String("deployment_id", hb.DeploymentID), applogger.String("status", status))
	return models.EmitOutcome{Delivered: true, StatusCode: resp.StatusCode}
}

func (c *HeartbeatClient) record(status, result string) {
	if c.metrics != nil {
		c.metrics.RecordHeartbeat(status, result)
	}
}
