package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// KafkaNotifier publishes alerts as JSON to a Kafka topic, keyed by asset.
type KafkaNotifier struct {
	topic    string
	producer sarama.SyncProducer
}

// NewKafkaNotifier connects a sync producer to brokers.
func NewKafkaNotifier(brokers []string, topic string, cfg *sarama.Config) (*KafkaNotifier, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(p, topic), nil
}

// NewKafkaNotifierWithProducer wraps an existing producer.
func NewKafkaNotifierWithProducer(p sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{topic: topic, producer: p}
}

// Name returns "kafka".
func (k *KafkaNotifier) Name() string { return "kafka" }

type alertEvent struct {
	AlertID      string   `json:"alert_id"`
	Asset        string   `json:"asset"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name,omitempty"`
	MarketCap    string   `json:"market_cap"`
	Supply       *float64 `json:"supply,omitempty"`
	Wallet       string   `json:"wallet"`
	Signature    string   `json:"signature"`
	Lineage      int      `json:"lineage"`
	FirstLineage int      `json:"first_lineage"`
	Refire       bool     `json:"refire"`
	DetectedAt   int64    `json:"detected_at"`
}

// Notify publishes one alert event. SyncProducer does not take a context.
func (k *KafkaNotifier) Notify(_ context.Context, msg Message) error {
	a := msg.Alert
	data, err := json.Marshal(alertEvent{
		AlertID:      a.AlertID,
		Asset:        a.Asset,
		Symbol:       msg.Metadata.Symbol,
		Name:         msg.Metadata.Name,
		MarketCap:    msg.Metadata.MarketCap,
		Supply:       msg.Metadata.Supply,
		Wallet:       a.Wallet,
		Signature:    a.Signature,
		Lineage:      int(a.Lineage),
		FirstLineage: int(a.FirstLineage),
		Refire:       a.Refire,
		DetectedAt:   a.DetectedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(a.Asset),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("kafka send: %w", err)
	}
	return nil
}

// Close closes the producer.
func (k *KafkaNotifier) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
