package mq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp.Table{
		"isin":    "INE000A01001",
		"raw":     []byte("bytes"),
		"attempt": int32(2),
	}, "application/json", "abc")

	assert.Equal(t, map[string]string{
		"isin":          "INE000A01001",
		"raw":           "bytes",
		"attempt":       "2",
		ContentTypeAttr: "application/json",
		CorrelationAttr: "abc",
	}, attrs)

	assert.Empty(t, headersToAttributes(nil, "", ""))
}
