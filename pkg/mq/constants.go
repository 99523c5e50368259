package mq

// Exchange Names
const (
	ExchangeMatchEvents = "match_events"
)

// Exchange Types
const (
	ExchangeTypeTopic  = "topic"
	ExchangeTypeFanout = "fanout"
)

// Queue Names
const (
	QueueMatchSocket = "match_socket_queue"
)
