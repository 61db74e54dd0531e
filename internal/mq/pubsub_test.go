package mq

import (
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
)

func TestPubSubMessageLiftsOrderingKey(t *testing.T) {
	msg := pubsubMessage([]byte(`{}`), map[string]string{
		ContentTypeAttr: "application/json",
		CorrelationAttr: "abc",
		OrderingKeyAttr: "user-7",
	})

	assert.Equal(t, "user-7", msg.OrderingKey)
	assert.Equal(t, map[string]string{
		ContentTypeAttr: "application/json",
		CorrelationAttr: "abc",
	}, msg.Attributes)
}

func TestFromPubSubRestoresOrderingKey(t *testing.T) {
	got := fromPubSub(&pubsub.Message{
		ID:          "m-1",
		Data:        []byte("x"),
		Attributes:  map[string]string{CorrelationAttr: "abc"},
		OrderingKey: "user-7",
	})

	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, "abc", got.Attributes[CorrelationAttr])
	assert.Equal(t, "user-7", got.Attributes[OrderingKeyAttr])
}

func TestSubscriptionSuffixDefault(t *testing.T) {
	assert.Equal(t, "-sub", subscriptionSuffix(""))
	assert.Equal(t, "-watchers", subscriptionSuffix("-watchers"))
}
