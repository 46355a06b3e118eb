//go:build integration

package rabbitmq_test

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "passage/pkg/platform/audit"
	"passage/pkg/platform/audit/publishers/rabbitmq"
	"passage/pkg/testutil/containers"
)

func TestSink_PublishesToQueue(t *testing.T) {
	mq := containers.NewRabbitMQContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink, err := rabbitmq.New(rabbitmq.Config{URL: mq.URL, Queue: "audit-test"})
	require.NoError(t, err)
	defer sink.Close()

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   "did:key:zAgent",
		Action:    string(audit.EventVerificationFailed),
		Reason:    "invalid_signature",
	}
	require.NoError(t, sink.Append(ctx, event))

	conn, err := amqp.Dial(mq.URL)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	msg, ok, err := ch.Get("audit-test", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, event.Action, msg.Type)

	decoded, err := audit.Unmarshal(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "invalid_signature", decoded.Reason)
	assert.Equal(t, audit.CategorySecurity, decoded.Category)
}
