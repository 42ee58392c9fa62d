package di

import (
	"context"
	"fmt"
	"time"

	"VendorLink/internal/domain/models"
	"VendorLink/internal/domain/repository"
	"VendorLink/internal/domain/service"
	"VendorLink/internal/handler/api"
	internalrepo "VendorLink/internal/repository"
	"VendorLink/internal/service/infra"
	"VendorLink/internal/service/ratelimit"
	"VendorLink/internal/services/inference"
	"VendorLink/internal/usecase"
	"VendorLink/pkg/cache"
	pkgch "VendorLink/pkg/clickhouse"
	"VendorLink/pkg/config"
	xhttp "VendorLink/pkg/http"
	pkgkafka "VendorLink/pkg/kafka"
	applogger "VendorLink/pkg/logger"
	"VendorLink/pkg/metrics"
	"VendorLink/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// Started is captured at process start for /ready.
var Started = time.Now()

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "vendorlink",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder, or nil when metrics are off.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideCache returns Redis when enabled and an in-memory cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideClickHouseClient creates a ClickHouse client for the infra role, or nil.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Infra.Enabled || !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideDecisionSink creates the ClickHouse sink and its schema.
func ProvideDecisionSink(client *pkgch.Client, cfg *config.Config) (repository.DecisionSink, error) {
	if client == nil {
		return nil, nil
	}
	sink := internalrepo.NewClickHouseSink(client.DB(), cfg.ClickHouse.Database+".decisions")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return sink, nil
}

// ProvideKafkaProducer creates a Kafka producer for the infra role, or nil.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Infra.Enabled || !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideDecisionPublisher creates the Kafka fan-out publisher.
func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.DecisionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a heartbeat consumer when a heartbeat topic is configured.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Infra.Enabled || !cfg.Kafka.Enabled || cfg.Kafka.HeartbeatTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideModel selects the model for the vendor task.
func ProvideModel(cfg *config.Config) (service.Model, error) {
	if !cfg.Vendor.Enabled {
		return nil, nil
	}
	return inference.New(models.Task(cfg.Vendor.Task), inference.Options{
		RemoteURL:      cfg.Vendor.ModelURL,
		RemoteTimeout:  cfg.Vendor.ModelTimeout,
		RemoteAttempts: cfg.Vendor.ModelAttempts,
	})
}

// ProvideRecordWriter creates the outbound writer; it is nil when no destination is configured.
func ProvideRecordWriter(cfg *config.Config, l *applogger.Logger, m repository.Metrics) service.RecordWriter {
	if !cfg.Vendor.WriterEnabled() {
		return nil
	}
	opts := []infra.WriterOption{
		infra.WithWriteTimeout(cfg.Vendor.WriteTimeout),
		infra.WithProvenance(models.Provenance{VendorID: cfg.Vendor.VendorID, DeploymentID: cfg.Vendor.DeploymentID}),
		infra.WithWriterLogger(l),
		infra.WithWriterMetrics(m),
	}
	if cfg.Vendor.LegacyFormat {
		opts = append(opts, infra.WithLegacyFormat(cfg.Vendor.Owner, cfg.Vendor.ModelID))
	}
	return infra.NewWriter(cfg.Vendor.SignalsURL, cfg.Vendor.Token, opts...)
}

func ProvideInferenceService(cfg *config.Config, model service.Model, w service.RecordWriter, l *applogger.Logger, m repository.Metrics) *usecase.InferenceService {
	if model == nil {
		return nil
	}
	return usecase.NewInferenceService(model, w, cfg.Vendor.ModelVersion, cfg.Vendor.WriteTimeout, usecase.NewRequestStats(), l, m)
}

// ProvideHeartbeatSender creates the HTTP heartbeat client.
func ProvideHeartbeatSender(cfg *config.Config, l *applogger.Logger, m repository.Metrics) *infra.HeartbeatClient {
	return infra.NewHeartbeatClient(cfg.Vendor.APIURL, cfg.Vendor.Token, cfg.Vendor.HeartbeatTimeout, l, m)
}

// ProvideHeartbeatEmitter returns nil unless the vendor role has an endpoint, token and deployment id.
func ProvideHeartbeatEmitter(cfg *config.Config, sender *infra.HeartbeatClient, svc *usecase.InferenceService, l *applogger.Logger) *usecase.HeartbeatEmitter {
	if !cfg.Vendor.Enabled || !cfg.Vendor.HeartbeatEnabled() {
		return nil
	}
	opts := []usecase.EmitterOption{
		usecase.WithFinalTimeout(cfg.Vendor.HeartbeatTimeout),
		usecase.WithEmitterLogger(l),
	}
	if svc != nil {
		opts = append(opts, usecase.WithMetricsSource(svc.Stats().Snapshot))
	}
	return usecase.NewHeartbeatEmitter(sender, cfg.Vendor.DeploymentID, cfg.Vendor.ModelVersion, cfg.Vendor.HeartbeatInterval, opts...)
}

func ProvideDeploymentTracker(c cache.Service, l *applogger.Logger, m repository.Metrics) *usecase.DeploymentTracker {
	return usecase.NewDeploymentTracker(internalrepo.NewCacheDeploymentStore(c), l, m)
}

func ProvideIngestor(cfg *config.Config, c cache.Service, sink repository.DecisionSink, pub repository.DecisionPublisher, l *applogger.Logger, m repository.Metrics) *usecase.Ingestor {
	if !cfg.Infra.Enabled {
		return nil
	}
	return usecase.NewIngestor(internalrepo.NewCacheDedupGuard(c, cfg.Infra.DedupTTL), sink, pub, l, m)
}

// ProvideKafkaHeartbeatHandler registers the tracker on the heartbeat topic.
func ProvideKafkaHeartbeatHandler(cfg *config.Config, tracker *usecase.DeploymentTracker, l *applogger.Logger, m repository.Metrics) *usecase.KafkaHeartbeatHandler {
	return usecase.NewKafkaHeartbeatHandler(cfg.Kafka.HeartbeatTopic, tracker, l, m)
}

// ProvideHandlers builds the route sets of the enabled roles.
func ProvideHandlers(
	cfg *config.Config,
	svc *usecase.InferenceService,
	ingest *usecase.Ingestor,
	tracker *usecase.DeploymentTracker,
	l *applogger.Logger,
) []xhttp.Handler {
	var hs []xhttp.Handler
	if svc != nil {
		hs = append(hs, api.NewVendorHandler(l, svc, api.VendorIdentity{
			Version:      cfg.Vendor.ModelVersion,
			DeploymentID: cfg.Vendor.DeploymentID,
			VendorID:     cfg.Vendor.VendorID,
		}, Started))
	}
	if ingest != nil {
		limiter := ratelimit.New(cfg.Infra.RateLimit.Capacity, cfg.Infra.RateLimit.RefillPerSec)
		hs = append(hs, api.NewInfraHandler(l, ingest, tracker, limiter, cfg.Infra.Tokens))
	}
	return hs
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(prometheus.DefaultGatherer, cfg.Metrics.SlowThreshold))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	svc *usecase.InferenceService,
	emitter *usecase.HeartbeatEmitter,
	ingest *usecase.Ingestor,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaHeartbeatHandler,
	c cache.Service,
	chClient *pkgch.Client,
) *server.App {
	app := server.New(cfg, l, srv)
	if svc != nil {
		app.SetInference(svc)
	}
	if emitter != nil {
		app.SetEmitter(emitter)
	}
	if ingest != nil {
		app.SetIngest(ingest)
	}
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	app.AddCloser("cache", c)
	if chClient != nil {
		app.AddCloser("clickhouse", chClient)
	}
	return app
}
