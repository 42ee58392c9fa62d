package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"VendorLink/internal/usecase"
	"VendorLink/pkg/config"
	xhttp "VendorLink/pkg/http"
	pkgkafka "VendorLink/pkg/kafka"
	applogger "VendorLink/pkg/logger"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	emitter    *usecase.HeartbeatEmitter
	inference  *usecase.InferenceService
	ingest     *usecase.Ingestor
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	closers    []namedCloser
}

// New creates a new App around an HTTP server. Optional parts are attached with the setters.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, httpServer: srv}
}

// SetEmitter attaches the heartbeat emitter; it runs for the life of the app.
func (a *App) SetEmitter(e *usecase.HeartbeatEmitter) { a.emitter = e }

// SetInference attaches the inference service so pending writes are drained on shutdown.
func (a *App) SetInference(s *usecase.InferenceService) { a.inference = s }

func (a *App) SetIngest(i *usecase.Ingestor) { a.ingest = i }

// SetConsumer attaches a Kafka consumer and the handler registered on it.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// AddCloser registers a client closed last during shutdown.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

// HTTP returns the server the app runs.
func (a *App) HTTP() *xhttp.Server { return a.httpServer }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	emitCtx, cancelEmit := context.WithCancel(context.Background())
	defer cancelEmit()
	var emitWg sync.WaitGroup
	if a.emitter != nil {
		emitWg.Add(1)
		go func() {
			defer emitWg.Done()
			a.emitter.Run(emitCtx)
		}()
		a.log.Info("heartbeat emitter started")
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		cancelEmit()
		emitWg.Wait()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	// The final offline heartbeat goes out before the listener closes.
	cancelEmit()
	emitWg.Wait()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.inference != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), a.drainTimeout())
		if err := a.inference.Drain(drainCtx); err != nil {
			a.log.Warn("pending writes abandoned", applogger.Error(err))
		}
		cancelDrain()
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.ingest != nil {
		a.ingest.Close()
	}

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("client", nc.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

func (a *App) drainTimeout() time.Duration {
	if a.cfg != nil && a.cfg.Vendor.DrainTimeout > 0 {
		return a.cfg.Vendor.DrainTimeout
	}
	return 10 * time.Second
}
