package event

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"roulette/pkg/mq"
	"roulette/pkg/types/eventtype"
)

// Dispatcher routes a consumed event to the user's live connection, if
// one is registered on this instance.
type Dispatcher interface {
	Dispatch(payload eventtype.EventPayload)
}

// Consumer listens on the socket queue bound to the match event fanout
// and hands each event to the dispatcher. Every instance consumes the
// full stream; events for users connected elsewhere are dropped by the
// dispatcher.
type Consumer struct {
	mqClient   *mq.RabbitMQ
	dispatcher Dispatcher
	log        zerolog.Logger
}

func NewConsumer(mqClient *mq.RabbitMQ, dispatcher Dispatcher, log zerolog.Logger) *Consumer {
	return &Consumer{mqClient: mqClient, dispatcher: dispatcher, log: log}
}

func (c *Consumer) StartListening() error {
	if err := c.mqClient.DeclareExchange(mq.ExchangeMatchEvents, mq.ExchangeTypeFanout); err != nil {
		return err
	}

	queue, err := c.mqClient.DeclareQueue(mq.QueueMatchSocket, mq.ExchangeMatchEvents, "")
	if err != nil {
		return err
	}

	err = c.mqClient.ConsumeMessages(queue.Name, func(body []byte) {
		var payload eventtype.EventPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed match event")
			return
		}
		c.dispatcher.Dispatch(payload)
	})
	if err != nil {
		return err
	}

	c.log.Info().Str("queue", queue.Name).Msg("consuming match events")
	return nil
}
