package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/charmbracelet/log"

	"github.com/timada-org/todos/pkg/topic"
)

const (
	minRetryDelay = 100 * time.Millisecond
	maxRetryDelay = 10 * time.Second
)

type BrokerOptions struct {
	URL          string
	Topic        string
	Subscription string
	Bus          *Bus
	Logger       *log.Logger
}

// Broker shares events between nodes through a Pulsar topic. Every node
// publishes to the topic and consumes it with its own exclusive
// subscription, handing received events to its local bus.
type Broker struct {
	client   pulsar.Client
	producer pulsar.Producer
	consumer pulsar.Consumer
	bus      *Bus
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewBroker(options BrokerOptions) (*Broker, error) {
	if options.Bus == nil {
		return nil, errors.New("broker: bus cannot be nil")
	}

	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: options.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}

	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: options.Topic,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("broker: create producer: %w", err)
	}

	consumer, err := client.Subscribe(pulsar.ConsumerOptions{
		Topic:            options.Topic,
		SubscriptionName: options.Subscription,
		Type:             pulsar.Exclusive,
	})
	if err != nil {
		producer.Close()
		client.Close()
		return nil, fmt.Errorf("broker: subscribe: %w", err)
	}

	return &Broker{
		client:   client,
		producer: producer,
		consumer: consumer,
		bus:      options.Bus,
		logger:   options.Logger.With("component", "broker"),
		done:     make(chan struct{}),
	}, nil
}

func (b *Broker) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = b.producer.Send(ctx, &pulsar.ProducerMessage{
		Key:     event.UserID,
		Payload: payload,
	})

	return err
}

// Start consumes the topic until Close.
func (b *Broker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	go func() {
		defer close(b.done)

		var delay time.Duration

		for {
			msg, err := b.consumer.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}

				delay = retryDelay(delay)
				b.logger.Error("receive failed", "err", err, "retry_in", delay)

				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
				continue
			}

			delay = 0

			b.consumer.Ack(msg)

			event, err := decodeEvent(msg.Payload())
			if err != nil {
				b.logger.Warn("dropping event", "err", err)
				continue
			}

			b.bus.Dispatch(event)
		}
	}()
}

// retryDelay doubles the previous delay within [minRetryDelay, maxRetryDelay].
func retryDelay(previous time.Duration) time.Duration {
	if previous < minRetryDelay {
		return minRetryDelay
	}

	if next := previous * 2; next < maxRetryDelay {
		return next
	}

	return maxRetryDelay
}

func decodeEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	if event.Topic == nil {
		return nil, errors.New("event topic is missing")
	}

	if _, err := topic.NewName(event.Topic.Value); err != nil {
		return nil, err
	}

	if event.UserID == "" {
		return nil, errors.New("event user_id is missing")
	}

	return &event, nil
}

func (b *Broker) Close() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}

	b.consumer.Close()
	b.producer.Close()
	b.client.Close()
}
