package tracker

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/merchkart/storefront/internal/kafka"
	"github.com/merchkart/storefront/internal/orders"
)

// The paths below return before the service touches Redis or the provider;
// the full flow is covered by the integration environment.

func TestHandleOrderPlaced_IgnoresOtherEventTypes(t *testing.T) {
	svc := &Service{ServiceName: "tracker"}

	env := orders.Envelope{
		EventID:   "e1",
		EventType: orders.EventPaymentCompleted,
		Payload:   kafkax.MustMarshal(orders.PaymentCompletedPayload{}),
	}
	err := svc.HandleOrderPlaced(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)})
	assert.NoError(t, err, "foreign event types commit without side effects")
}

func TestHandleOrderPlaced_MalformedEnvelope(t *testing.T) {
	svc := &Service{ServiceName: "tracker"}
	err := svc.HandleOrderPlaced(context.Background(), kafkago.Message{Value: []byte(`{broken`)})
	require.Error(t, err, "undecodable messages stay uncommitted")
}
