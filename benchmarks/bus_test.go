package benchmarks

import (
	"context"
	"testing"

	"github.com/awsomestore/storefront/pkg/storefront/event"
)

// noopHandler does minimal work to measure fan-out overhead.
var noopHandler = event.PushHandlerFunc(func(ctx context.Context, env event.Envelope) error {
	return nil
})

func orderEnvelope(b *testing.B, registry *event.Registry) event.Envelope {
	b.Helper()
	env, err := registry.Encode(event.OrderCreated, event.OrderEvent{
		Email:        "bench@example.com",
		OrderID:      "ORDER#bench",
		ProductCodes: []string{"WID-1"},
	})
	if err != nil {
		b.Fatal(err)
	}
	return env
}

// BenchmarkEncode measures envelope encoding overhead.
func BenchmarkEncode(b *testing.B) {
	registry := event.NewStoreRegistry()
	payload := event.OrderEvent{
		Email:        "bench@example.com",
		OrderID:      "ORDER#bench",
		ProductCodes: []string{"WID-1"},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = registry.Encode(event.OrderCreated, payload)
	}
}

// BenchmarkDecode measures envelope decoding overhead.
func BenchmarkDecode(b *testing.B) {
	registry := event.NewStoreRegistry()
	env := orderEnvelope(b, registry)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = registry.Decode(env)
	}
}

// BenchmarkPublish_1 measures publishing to one push subscriber.
func BenchmarkPublish_1(b *testing.B) {
	benchmarkPublish(b, 1)
}

// BenchmarkPublish_10 measures publishing to 10 push subscribers.
func BenchmarkPublish_10(b *testing.B) {
	benchmarkPublish(b, 10)
}

// BenchmarkPublish_Filtered measures a fan-out where only one of 10
// subscribers matches.
func BenchmarkPublish_Filtered(b *testing.B) {
	registry := event.NewStoreRegistry()
	bus := event.NewBus(event.BusConfig{})
	defer bus.Close()

	bus.SubscribePush(event.NewFilter(event.OrderCreated), noopHandler)
	for i := 0; i < 9; i++ {
		bus.SubscribePush(event.NewFilter(event.ProductDeleted), noopHandler)
	}

	env := orderEnvelope(b, registry)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = bus.Publish(ctx, env)
	}
}

func benchmarkPublish(b *testing.B, subscribers int) {
	registry := event.NewStoreRegistry()
	bus := event.NewBus(event.BusConfig{})
	defer bus.Close()

	for i := 0; i < subscribers; i++ {
		bus.SubscribePush(event.Filter{}, noopHandler)
	}

	env := orderEnvelope(b, registry)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = bus.Publish(ctx, env)
	}
}

// BenchmarkSubscribe measures subscription registration overhead.
func BenchmarkSubscribe(b *testing.B) {
	bus := event.NewBus(event.BusConfig{})
	defer bus.Close()
	for i := 0; i < b.N; i++ {
		id := bus.SubscribePush(event.Filter{}, noopHandler)
		bus.Unsubscribe(id)
	}
}

