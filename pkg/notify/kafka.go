package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
)

// KafkaNotifier publishes reminders to a topic consumed by the messaging
// service. Records are keyed by driver so one driver's reminders stay ordered.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	log    logger.ILogger
}

func NewKafkaNotifier(brokers []string, topic string, log logger.ILogger) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaNotifier{client: client, topic: topic, log: log}, nil
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	rec, err := record(k.topic, n)
	if err != nil {
		return err
	}
	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		k.log.Error("failed to publish reminder", logger.Int64("document_id", n.DocumentID), logger.Error(err))
		return fmt.Errorf("publish reminder: %v: %w", err, errs.ErrStorageUnavailable)
	}
	return nil
}

func (k *KafkaNotifier) Close() {
	k.client.Close()
}

func record(topic string, n Notification) (*kgo.Record, error) {
	value, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode reminder: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(n.DriverID, 10)),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "dedupe-key", Value: []byte(n.Key)},
		},
	}, nil
}
