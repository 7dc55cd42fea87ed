package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/medisetu/platform/pkg/common/config"
	"github.com/medisetu/platform/pkg/common/kafka"
	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/common/models"
)

// event-audit tails the portal's domain events into the structured log.
func main() {
	logger.Init()
	cfg := config.Load()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Log.Fatal("KAFKA_BROKERS is required")
	}

	consumer := kafka.NewConsumer(cfg)
	defer consumer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Log.WithFields(map[string]interface{}{
		"topic": cfg.KafkaTopic,
		"group": cfg.KafkaGroupID,
	}).Info("Event audit started")

	err := consumer.Consume(ctx, func(_ context.Context, event models.Event) error {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
			"source":     event.Source,
			"data":       event.Data,
			"emitted_at": event.Timestamp,
		}).Info("Domain event")
		return nil
	})
	if err != nil && err != context.Canceled {
		logger.Log.WithError(err).Error("event consumer stopped")
	}

	logger.Log.Info("Event audit stopped")
}
