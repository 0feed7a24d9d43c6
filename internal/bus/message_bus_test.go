package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBusInboundRoundTrip(t *testing.T) {
	b := NewMessageBus(Config{})
	b.PublishInbound(InboundMessage{Channel: "telegram", SenderID: "u1", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Content)
}

func TestMessageBusOutboundRedactsSecrets(t *testing.T) {
	b := NewMessageBus(Config{})
	b.PublishOutbound(OutboundMessage{Channel: "telegram", ChatID: "c1", Content: "key: sk-ant-REDACTED"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Contains(t, msg.Content, "[REDACTED]")
	assert.NotContains(t, msg.Content, "sk-ant-api03")
}

func TestMessageBusRateLimitsPerSender(t *testing.T) {
	b := NewMessageBus(Config{InboundBuffer: 100, RateLimitPerMinute: 2})
	for i := 0; i < 10; i++ {
		b.PublishInbound(InboundMessage{Channel: "cli", SenderID: "flood", Content: "spam"})
	}
	assert.LessOrEqual(t, len(b.inbound), 2)
}

func TestMessageBusBroadcast(t *testing.T) {
	b := NewMessageBus(Config{})
	received := make(chan Event, 1)
	b.Subscribe("sub1", func(e Event) { received <- e })
	b.Broadcast(Event{Name: "health"})

	select {
	case e := <-received:
		assert.Equal(t, "health", e.Name)
	case <-time.After(time.Second):
		t.Fatal("did not receive broadcast event")
	}
}
