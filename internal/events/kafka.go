package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	// DefaultKafkaTopic receives ledger events when no topic is configured.
	DefaultKafkaTopic = "sonetyo.ledger.events"
	// DefaultKafkaDeliveryTimeout fails a record the brokers have not
	// acknowledged in time. kgo never gives up on its own.
	DefaultKafkaDeliveryTimeout = 5 * time.Second
)

// KafkaPublisher produces every event to a topic keyed by record id, so all
// events of one record land on the same partition in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects a producer to brokers. Options given by the
// caller override the defaults.
func NewKafkaPublisher(brokers []string, topic string, opts ...kgo.Opt) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordDeliveryTimeout(DefaultKafkaDeliveryTimeout),
	}, opts...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Name() string {
	return "kafka"
}

// HandleEvent produces ev and waits for the broker to acknowledge it.
func (p *KafkaPublisher) HandleEvent(ctx context.Context, ev ledger.Event) error {
	rec, err := eventRecord(p.topic, ev)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

// Close flushes pending records and closes the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}

func eventRecord(topic string, ev ledger.Event) (*kgo.Record, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(strconv.FormatUint(ev.RecordID, 10)),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event-id", Value: []byte(ev.ID)},
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}, nil
}
