package usecase

import (
	"context"
	"errors"
	"fmt"

	"VendorLink/internal/contracts"
	domrepo "VendorLink/internal/domain/repository"
	pkgkafka "VendorLink/pkg/kafka"
	applogger "VendorLink/pkg/logger"
)

// KafkaHeartbeatHandler applies heartbeats published to a Kafka topic.
type KafkaHeartbeatHandler struct {
	topic   string
	tracker *DeploymentTracker
	log     *applogger.Logger
	metrics domrepo.Metrics
}

func NewKafkaHeartbeatHandler(topic string, tracker *DeploymentTracker, l *applogger.Logger, m domrepo.Metrics) *KafkaHeartbeatHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaHeartbeatHandler{topic: topic, tracker: tracker, log: l, metrics: m}
}

func (h *KafkaHeartbeatHandler) Topic() string { return h.topic }

// Handle returns an error for undecodable or invalid messages so they reach the DLQ.
// Heartbeats for unknown deployments are dropped.
func (h *KafkaHeartbeatHandler) Handle(ctx context.Context, b []byte) error {
	v, err := contracts.Decode(b)
	if err != nil {
		h.fail("consumer_unmarshal")
		return err
	}
	hb, errs := contracts.ValidateHeartbeat(v)
	if len(errs) > 0 {
		if h.metrics != nil {
			h.metrics.RecordValidationFailure("heartbeat")
		}
		return fmt.Errorf("invalid heartbeat: %w", errs)
	}

	_, _, err = h.tracker.Apply(ctx, hb)
	if errors.Is(err, domrepo.ErrDeploymentNotFound) {
		h.log.Warn("heartbeat for unknown deployment", applogger.String("deployment_id", hb.DeploymentID))
		return nil
	}
	if err != nil {
		h.fail("consumer_apply")
		return err
	}
	return nil
}

func (h *KafkaHeartbeatHandler) fail(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaHeartbeatHandler)(nil)
