package messaging

import (
	"log"
	"time"

	"fleetcore/store"
)

// DrainerConfig controls the outbox flush loop.
type DrainerConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int // 0 retries forever
}

// OutboxDrainer flushes pending outbox rows to the broker in batches.
// Delivery is at-least-once; a message that keeps failing past the
// retry cap is dropped so one bad topic cannot clog the queue.
type OutboxDrainer struct {
	db       *store.DB
	client   *Client
	cfg      DrainerConfig
	stopChan chan struct{}
}

func NewOutboxDrainer(db *store.DB, client *Client, cfg DrainerConfig) *OutboxDrainer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &OutboxDrainer{
		db:       db,
		client:   client,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

func (d *OutboxDrainer) Stop() {
	select {
	case d.stopChan <- struct{}{}:
	default:
	}
}

func (d *OutboxDrainer) run() {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

func (d *OutboxDrainer) drain() {
	msgs, err := d.db.ListPendingOutbox(d.cfg.BatchSize)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return
	}
	for _, msg := range msgs {
		if err := d.client.Publish(msg.Topic, msg.Payload); err != nil {
			if d.cfg.MaxRetries > 0 && msg.Retries+1 >= d.cfg.MaxRetries {
				log.Printf("outbox: dropping %s message %d after %d attempts: %v",
					msg.MsgType, msg.ID, msg.Retries+1, err)
				d.db.AckOutbox(msg.ID)
				continue
			}
			log.Printf("outbox: publish to %s failed: %v", msg.Topic, err)
			d.db.IncrementOutboxRetries(msg.ID)
			continue
		}
		d.db.AckOutbox(msg.ID)
	}
}
