package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	pkgkafka "VendorLink/pkg/kafka"
	"VendorLink/pkg/util"
)

// DecisionsSchema returns the statements that create the decisions table.
func DecisionsSchema(table string) []string {
	db, _, found := strings.Cut(table, ".")
	stmts := make([]string, 0, 2)
	if found {
		stmts = append(stmts, "CREATE DATABASE IF NOT EXISTS "+db)
	}
	return append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	received_at DateTime64(3),
	idem_key String,
	task LowCardinality(String),
	contracts_version LowCardinality(String),
	vendor_id String,
	subject String,
	timeframe LowCardinality(String),
	ts DateTime64(3),
	payload String
) ENGINE = ReplacingMergeTree(received_at) ORDER BY (task, subject, timeframe, idem_key)`, table))
}

// ClickHouseSink implements DecisionSink for ClickHouse.
type ClickHouseSink struct {
	db    *sql.DB
	table string
}

func NewClickHouseSink(db *sql.DB, table string) *ClickHouseSink {
	return &ClickHouseSink{db: db, table: table}
}

func (s *ClickHouseSink) Init(ctx context.Context) error {
	for _, q := range DecisionsSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

// StoreBatch inserts envelopes with multi-row VALUES, 2000 rows per statement.
func (s *ClickHouseSink) StoreBatch(ctx context.Context, batch []models.Envelope) error {
	const chunkSize = 2000
	for start := 0; start < len(batch); start += chunkSize {
		end := min(start+chunkSize, len(batch))
		q, args, err := insertStatement(s.table, batch[start:end])
		if err != nil {
			return err
		}
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseSink) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSink) Close() error {
	return nil // Managed by pkg
}

const decisionColumns = "received_at, idem_key, task, contracts_version, vendor_id, subject, timeframe, ts, payload"

func insertStatement(table string, batch []models.Envelope) (string, []any, error) {
	values := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*9)
	for _, env := range batch {
		subject, tf, ts, ok := envelopeIndex(env.Payload)
		if !ok {
			continue
		}
		payload, err := json.Marshal(env.Payload)
		if err != nil {
			return "", nil, fmt.Errorf("encode %s: %w", env.Key, err)
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			env.ReceivedAt,
			env.Key,
			string(env.Task),
			env.Version,
			env.VendorID,
			subject,
			string(tf),
			ts,
			string(payload),
		)
	}
	if len(values) == 0 {
		return "", nil, nil
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, decisionColumns, strings.Join(values, ","))
	return q, args, nil
}

func envelopeIndex(payload any) (string, models.Timeframe, time.Time, bool) {
	var (
		subject string
		tf      models.Timeframe
		instant string
	)
	switch p := payload.(type) {
	case models.DecisionRecord:
		subject, tf, instant = p.Subject(), p.Frame(), p.Instant()
	case models.LegacyRecord:
		subject, tf, instant = p.Subject(), p.Frame(), p.BarTime()
	default:
		return "", "", time.Time{}, false
	}
	ts, ok := util.ParseISO(instant)
	return subject, tf, ts, ok
}

// KafkaDecisionPublisher implements DecisionPublisher for Kafka. Messages are keyed by
// idempotency key so one decision window stays on one partition.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) PublishBatch(ctx context.Context, batch []models.Envelope) error {
	if len(batch) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, envelopeMessages(batch))
}

func (p *KafkaDecisionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func envelopeMessages(batch []models.Envelope) []pkgkafka.Message {
	msgs := make([]pkgkafka.Message, len(batch))
	for i, env := range batch {
		msgs[i] = pkgkafka.Message{Key: []byte(env.Key), Value: env}
	}
	return msgs
}

var (
	_ repository.DecisionSink      = (*ClickHouseSink)(nil)
	_ repository.DecisionPublisher = (*KafkaDecisionPublisher)(nil)
)
