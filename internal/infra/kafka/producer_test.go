package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestProducerSendKeysByPerson(t *testing.T) {
	async := mocks.NewAsyncProducer(t, nil)
	producer := newProducer(async, "agir", zap.NewNop())

	async.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "agir."+EventLoginSucceeded {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "person-1" {
			return errors.New("unexpected key " + string(key))
		}
		return nil
	})

	if err := producer.Send(context.Background(), EventLoginSucceeded, "person-1", []byte(`{}`)); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestProducerLogsDeliveryFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	async := mocks.NewAsyncProducer(t, nil)
	producer := newProducer(async, "", zap.New(core))

	async.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	if err := producer.Send(context.Background(), EventLoginCodeRequested, "person-2", []byte(`{}`)); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	entries := logs.FilterMessage("Event delivery failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one delivery failure log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["topic"] != EventLoginCodeRequested || fields["person_id"] != "person-2" {
		t.Fatalf("unexpected log fields %v", fields)
	}
}
