package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Bus is an in-memory fan-out of step events, keyed by topic. Publishing
// never blocks on a slow consumer; a full subscriber channel drops the
// event instead.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *StepEvent
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *logrus.Logger
}

// NewBus returns a stopped bus; call Start before publishing.
func NewBus(logger *logrus.Logger) *Bus {
	if logger == nil {
		logger = logrus.New()
	}
	return &Bus{
		subscribers: make(map[string][]chan *StepEvent),
		logger:      logger,
	}
}

func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return fmt.Errorf("telemetry bus is already running")
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.logger.Info("Telemetry bus started")
	return nil
}

func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel == nil {
		return fmt.Errorf("telemetry bus is not running")
	}

	b.cancel()
	b.cancel = nil

	for topic, subscribers := range b.subscribers {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
	b.logger.Info("Telemetry bus stopped")
	return nil
}

// Publish delivers one event to every subscriber of its topic.
func (b *Bus) Publish(ctx context.Context, event *StepEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.ctx == nil || b.ctx.Err() != nil {
		return fmt.Errorf("telemetry bus is stopped")
	}

	topic := event.Topic()
	subscribers, ok := b.subscribers[topic]
	if !ok {
		b.logger.WithField("topic", topic).Debug("No subscribers for topic")
		return nil
	}

	for _, ch := range subscribers {
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.logger.WithField("topic", topic).Warn("Subscriber channel is full. Event dropped.")
		}
	}
	return nil
}

// Subscribe registers a consumer for one topic and returns its channel.
// The channel is closed when the bus stops or the consumer unsubscribes.
func (b *Bus) Subscribe(topic string) (<-chan *StepEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil || b.ctx.Err() != nil {
		return nil, fmt.Errorf("telemetry bus is stopped")
	}

	ch := make(chan *StepEvent, 16)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.logger.WithField("topic", topic).Debug("New subscription added")
	return ch, nil
}

// Unsubscribe removes a consumer's channel and closes it.
func (b *Bus) Unsubscribe(topic string, sub <-chan *StepEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[topic]
	if !ok {
		return fmt.Errorf("no subscribers for topic: %s", topic)
	}

	for i, ch := range subscribers {
		if ch == sub {
			close(ch)
			last := len(subscribers) - 1
			subscribers[i] = subscribers[last]
			b.subscribers[topic] = subscribers[:last]
			b.logger.WithField("topic", topic).Debug("Subscription removed")
			return nil
		}
	}
	return fmt.Errorf("subscription channel not found for topic: %s", topic)
}
