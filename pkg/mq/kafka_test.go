package mq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(KafkaConfig{})
	assert.Error(t, err)
}

func TestToKafka(t *testing.T) {
	msg := toKafka(Message{
		Topic:   "greeks.events",
		Key:     "req-1",
		Value:   []byte(`{"price":1}`),
		Headers: map[string]string{"event_type": "greeks.calculated"},
	})
	assert.Equal(t, "greeks.events", msg.Topic)
	assert.Equal(t, []byte("req-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("greeks.calculated"), msg.Headers[0].Value)
}

func TestSendValidatesBeforeWriting(t *testing.T) {
	p, err := NewProducer(KafkaConfig{Brokers: []string{"127.0.0.1:1"}, MaxRetries: 1})
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.Send(context.Background()))
	assert.ErrorContains(t, p.Send(context.Background(), Message{Key: "k"}), "no topic")
}
