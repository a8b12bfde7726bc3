package messaging

import (
	"log"
)

// InboundHandler is called for each decoded inbound message.
type InboundHandler interface {
	HandleMissionRequest(env *Envelope, req MissionRequest)
	HandleMissionCancel(env *Envelope, req MissionCancel)
	HandlePositionReport(env *Envelope, req PositionReport)
	HandleBatteryReport(env *Envelope, req BatteryReport)
	HandleObstacleReport(env *Envelope, req ObstacleReport)
	HandleObstacleExpire(env *Envelope, req ObstacleExpire)
	HandleErrorReport(env *Envelope, req ErrorReport)
}

// Consumer subscribes to the telemetry topic and routes messages to the
// handler.
type Consumer struct {
	client  *Client
	topic   string
	handler InboundHandler
}

func NewConsumer(client *Client, topic string, handler InboundHandler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

func (c *Consumer) Start() error {
	return c.client.Subscribe(c.topic, c.handleMessage)
}

func (c *Consumer) handleMessage(_ string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		log.Printf("consumer: decode error: %v", err)
		return
	}

	switch p := env.Payload.(type) {
	case MissionRequest:
		c.handler.HandleMissionRequest(env, p)
	case MissionCancel:
		c.handler.HandleMissionCancel(env, p)
	case PositionReport:
		c.handler.HandlePositionReport(env, p)
	case BatteryReport:
		c.handler.HandleBatteryReport(env, p)
	case ObstacleReport:
		c.handler.HandleObstacleReport(env, p)
	case ObstacleExpire:
		c.handler.HandleObstacleExpire(env, p)
	case ErrorReport:
		c.handler.HandleErrorReport(env, p)
	default:
		log.Printf("consumer: unhandled payload type: %T", p)
	}
}
