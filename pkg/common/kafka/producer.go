package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medisetu/platform/pkg/common/config"
	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

// Event types published after successful writes.
const (
	EventPatientRegistered       = "patient.registered"
	EventReportSaved             = "report.saved"
	EventReportAnalyzed          = "report.analyzed"
	EventAppointmentBooked       = "appointment.booked"
	EventAppointmentStatusChange = "appointment.status_changed"
	EventNoteSaved               = "note.saved"
)

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data map[string]interface{}) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
	source string
}

func NewProducer(cfg *config.Config, source string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer, topic: cfg.KafkaTopic, source: source}
}

// NewPublisher returns a Kafka producer, or a no-op publisher when no brokers
// are configured.
func NewPublisher(cfg *config.Config, source string) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Log.Info("KAFKA_BROKERS not set, domain events disabled")
		return Nop{}
	}
	return NewProducer(cfg, source)
}

func (p *Producer) Publish(ctx context.Context, eventType string, data map[string]interface{}) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    p.source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.ID),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(p.source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": eventType,
		}).Error("Failed to publish event")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"topic":      p.topic,
	}).Debug("Event published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, map[string]interface{}) error { return nil }

func (Nop) Close() error { return nil }
