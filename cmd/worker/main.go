package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"resume-builder/internal/bootstrap"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/storage/db"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/workerproc"
)

const (
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
	consumerTag               = "resume-worker"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

func main() {
	cfg := config.Load()
	if strings.TrimSpace(cfg.AMQPURL) == "" {
		log.Fatal("AMQP_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := max(1, envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency))
	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	poolOpts := db.OptionsFromEnv(db.DefaultWorkerOptions(concurrency))
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{DBOptions: &poolOpts})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	deliveries, err := app.Queue.Consume(consumerTag, concurrency)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	telemetry.Info("worker.started", map[string]any{
		"queue":       cfg.AMQPQueue,
		"concurrency": concurrency,
	})

	err = run(ctx, app.DocumentsService, deliveries, app.Queue.NotifyClose(), concurrency, shutdownTimeout)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker stopped: %v", err)
	}
	telemetry.Info("worker.stopped", nil)
}

// run fans deliveries out to concurrency consumers until ctx is cancelled or
// the broker connection drops. In-flight messages get shutdownTimeout to
// finish after cancellation.
func run(ctx context.Context, proc workerproc.Processor, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error, concurrency int, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	// Processing outlives the signal so a message is not cut off halfway.
	work, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	go func() {
		<-gctx.Done()
		timer := time.NewTimer(shutdownTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": shutdownTimeout.String()})
			cancelWork()
		case <-work.Done():
		}
	}()

	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return consume(gctx, work, proc, deliveries)
		})
	}
	if closed != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case amqpErr, ok := <-closed:
				if !ok || amqpErr == nil {
					return errDeliveriesClosed
				}
				return amqpErr
			}
		})
	}
	return g.Wait()
}

func consume(ctx, work context.Context, proc workerproc.Processor, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			workerproc.Settle(work, proc, d.Body, d.Redelivered, d)
		}
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
