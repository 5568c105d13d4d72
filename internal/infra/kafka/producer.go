package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
)

// Producer sends auth events asynchronously. Delivery failures are logged by a drain goroutine
// that lives until Close.
type Producer struct {
	async   sarama.AsyncProducer
	prefix  string
	logger  *zap.Logger
	drained chan struct{}
}

// NewProducer connects to cfg.Brokers. Login code events feed the mailer, so every in-sync
// replica has to acknowledge a message before it counts as sent.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	async, err := sarama.NewAsyncProducer(cfg.Brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("Kafka producer connected",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return newProducer(async, cfg.TopicPrefix, logger), nil
}

func producerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V3_5_0_0
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Partitioner = sarama.NewHashPartitioner
	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Flush.Frequency = 50 * time.Millisecond
	c.Producer.Retry.Max = 5
	c.Producer.Return.Successes = false
	c.Producer.Return.Errors = true
	c.Metadata.Retry.Backoff = 250 * time.Millisecond
	return c
}

func newProducer(async sarama.AsyncProducer, prefix string, logger *zap.Logger) *Producer {
	p := &Producer{
		async:   async,
		prefix:  prefix,
		logger:  logger,
		drained: make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

func (p *Producer) drainErrors() {
	defer close(p.drained)

	for perr := range p.async.Errors() {
		key := ""
		if perr.Msg != nil && perr.Msg.Key != nil {
			if raw, err := perr.Msg.Key.Encode(); err == nil {
				key = string(raw)
			}
		}
		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
		}
		p.logger.Error("Event delivery failed",
			zap.String("topic", topic),
			zap.String("person_id", key),
			zap.Error(perr.Err),
		)
	}
}

// Send queues value on the topic of eventType. Messages of one person share a partition so
// consumers see them in order. Send blocks until the message is queued or ctx is done.
func (p *Producer) Send(ctx context.Context, eventType, personID string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.TopicName(eventType),
		Value: sarama.ByteEncoder(value),
	}
	if personID != "" {
		msg.Key = sarama.StringEncoder(personID)
	}

	select {
	case p.async.Input() <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s: %w", eventType, ctx.Err())
	}
}

// Close flushes queued messages and waits for the last delivery errors to be logged.
func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka producer")
	p.async.AsyncClose()
	<-p.drained
	return nil
}

// TopicName returns the topic eventType is published on.
func (p *Producer) TopicName(eventType string) string {
	return topicName(p.prefix, eventType)
}

func topicName(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}

	dotted := prefix + "."
	if strings.HasPrefix(eventType, dotted) {
		return eventType
	}

	return dotted + eventType
}
