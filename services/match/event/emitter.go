package event

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"roulette/pkg/mq"
	"roulette/pkg/types/eventtype"
)

// Emitter publishes match lifecycle events to the fanout exchange. It
// satisfies service.Notifier.
type Emitter struct {
	mqClient *mq.RabbitMQ
	log      zerolog.Logger
}

func NewEmitter(mqClient *mq.RabbitMQ, log zerolog.Logger) *Emitter {
	return &Emitter{mqClient: mqClient, log: log}
}

func (e *Emitter) Notify(userID int64, eventType string, data any) error {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			e.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event data")
			return err
		}
		raw = b
	}

	payload := eventtype.EventPayload{
		EventType: eventType,
		UserID:    userID,
		Data:      raw,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// Fanout exchange, routing key unused.
	if err := e.mqClient.PublishMessage(mq.ExchangeMatchEvents, "", body); err != nil {
		e.log.Error().Err(err).Str("event", eventType).Int64("user_id", userID).Msg("failed to publish match event")
		return err
	}

	e.log.Debug().Str("event", eventType).Int64("user_id", userID).Msg("match event published")
	return nil
}
