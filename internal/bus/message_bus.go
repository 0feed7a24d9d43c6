package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oxicrab/oxicrab/internal/safety"
)

// tokenBucket is a lazily-refilled per-sender rate limiter: capacity tokens,
// refilled at refillRate tokens/sec, checked (and refilled) on every access
// rather than via a background ticker.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

func newTokenBucket(capacity, refillRate float64) *tokenBucket {
	return &tokenBucket{tokens: capacity, capacity: capacity, refillRate: refillRate, lastRefill: time.Now()}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// MessageBus is the in-process transport between channel adapters and the
// agent loop: buffered Go channels for inbound/outbound messages and events,
// plus a per-sender token bucket so one noisy peer cannot starve others.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	subMu       sync.RWMutex
	subscribers map[string]EventHandler

	bucketMu     sync.Mutex
	buckets      map[string]*tokenBucket
	bucketCap    float64
	bucketRefill float64

	leakDetector *safety.LeakDetector
}

// Config controls buffer sizes and the per-sender rate limit.
type Config struct {
	InboundBuffer  int
	OutboundBuffer int
	// RateLimitPerMinute is the steady-state allowance per sender; capacity
	// equals this value so a sender can burst up to one minute's worth
	// before being throttled.
	RateLimitPerMinute float64
}

// NewMessageBus constructs a MessageBus with the given buffer sizes and
// per-sender rate limit.
func NewMessageBus(cfg Config) *MessageBus {
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = 256
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = 256
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	return &MessageBus{
		inbound:      make(chan InboundMessage, cfg.InboundBuffer),
		outbound:     make(chan OutboundMessage, cfg.OutboundBuffer),
		subscribers:  make(map[string]EventHandler),
		buckets:      make(map[string]*tokenBucket),
		bucketCap:    cfg.RateLimitPerMinute,
		bucketRefill: cfg.RateLimitPerMinute / 60,
		leakDetector: safety.NewLeakDetector(),
	}
}

// PublishInbound enqueues msg, dropping it (with a log) if the sender is
// over its rate limit or the buffer is full.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	if !b.allowSender(msg.SenderID) {
		slog.Warn("inbound message dropped by rate limit", "sender", msg.SenderID, "channel", msg.Channel)
		return
	}
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("inbound buffer full, dropping message", "channel", msg.Channel, "sender", msg.SenderID)
	}
}

// ConsumeInbound blocks until a message is available or ctx is done.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound runs the leak detector over msg.Content before enqueueing,
// redacting any secret-shaped substring so a tool result or model completion
// never leaks credentials back out through a channel.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	if matches := b.leakDetector.Scan(msg.Content); len(matches) > 0 {
		slog.Warn("redacting leaked secret from outbound message", "channel", msg.Channel, "count", len(matches))
		msg.Content = b.leakDetector.Redact(msg.Content)
	}
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("outbound buffer full, dropping message", "channel", msg.Channel, "chat_id", msg.ChatID)
	}
}

// SubscribeOutbound blocks until a message is available or ctx is done.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// Subscribe registers an event handler under id, replacing any existing
// handler with the same id.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes the handler registered under id.
func (b *MessageBus) Unsubscribe(id string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	delete(b.subscribers, id)
}

// Broadcast delivers event to every subscriber synchronously. Handlers must
// not block.
func (b *MessageBus) Broadcast(event Event) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	for _, handler := range b.subscribers {
		handler(event)
	}
}

func (b *MessageBus) allowSender(senderID string) bool {
	if senderID == "" {
		return true
	}
	b.bucketMu.Lock()
	bucket, ok := b.buckets[senderID]
	if !ok {
		bucket = newTokenBucket(b.bucketCap, b.bucketRefill)
		b.buckets[senderID] = bucket
	}
	b.bucketMu.Unlock()
	return bucket.allow()
}
