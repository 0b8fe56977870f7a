// Package messaging provides a NATS client wrapper for pub/sub messaging
// between the moderation service and its collaborators. It handles connection
// lifecycle, subject-based subscriptions, and convenience methods for the
// moderation subjects.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used by the moderation service.
const (
	SubjectEvaluate  = "moderation.evaluate"  // gate check requests from the web tier
	SubjectResult    = "moderation.result"    // + .<request_id> (gate verdicts)
	SubjectViolation = "moderation.violation" // violation-recorded events for the admin dashboard
	SubjectReconcile = "moderation.reconcile" // on-demand reconciler trigger
	SubjectBanNotice = "moderation.ban"       // + .<user_id> (ban notifications)
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "moderation",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeEvaluate subscribes to real-time gate check requests from the web
// tier.
func (c *NATSClient) SubscribeEvaluate(handler func(data []byte)) error {
	return c.Subscribe(SubjectEvaluate, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishResult publishes a gate verdict for a specific request.
func (c *NATSClient) PublishResult(requestID string, data []byte) error {
	return c.Publish(SubjectResult+"."+requestID, data)
}

// PublishViolation publishes a violation-recorded event for the admin
// dashboard.
func (c *NATSClient) PublishViolation(data []byte) error {
	return c.Publish(SubjectViolation, data)
}

// SubscribeReconcile subscribes to on-demand reconciler triggers.
func (c *NATSClient) SubscribeReconcile(handler func(data []byte)) error {
	return c.Subscribe(SubjectReconcile, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishReconcile requests an immediate reconciler cycle.
func (c *NATSClient) PublishReconcile() error {
	return c.Publish(SubjectReconcile, nil)
}

// PublishBanNotice publishes a ban notification for a specific user.
func (c *NATSClient) PublishBanNotice(userID string, data []byte) error {
	return c.Publish(SubjectBanNotice+"."+userID, data)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
