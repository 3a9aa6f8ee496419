package service

import (
	"context"

	"clarvis-be/internal/pkg/logger"
	"clarvis-be/pkg/events"
	pktNats "clarvis-be/pkg/nats"
)

// EventListenerService records study material events delivered by the bus.
type EventListenerService struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewEventListenerService(subscriber *pktNats.Subscriber, logger logger.ILogger) *EventListenerService {
	return &EventListenerService{subscriber: subscriber, logger: logger}
}

func (s *EventListenerService) Start() error {
	if err := s.subscriber.Subscribe(events.StudyMaterialGenerated, "clarvis-study-generated", s.Handle); err != nil {
		return err
	}
	return s.subscriber.Subscribe(events.StudyMaterialFailed, "clarvis-study-failed", s.Handle)
}

func (s *EventListenerService) Handle(_ context.Context, event events.Event) error {
	details := map[string]interface{}{"event": event.EventType(), "occurred_at": event.Timestamp()}
	for k, v := range event.Payload() {
		details[k] = v
	}
	if event.EventType() == events.StudyMaterialFailed {
		s.logger.Warn("EVENTS", "Study material generation failed", details)
		return nil
	}
	s.logger.Info("EVENTS", "Study material generated", details)
	return nil
}

// NopEventPublisher drops events when no bus is configured.
type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, events.Event) error { return nil }
