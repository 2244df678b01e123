// Package wakebus implements the Wake Bus (spec.md §4.4): a pub/sub
// hint channel, not a queue. A publish failure or a dropped message
// never loses work — the drain loop can always reconstruct it from the
// cursor and the event log — so this package deliberately does not try
// to make delivery reliable.
package wakebus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// channelName returns "notifications:wake:<workerIndex>" (spec.md §6).
func channelName(workerIndex int) string {
	return fmt.Sprintf("notifications:wake:%d", workerIndex)
}

// Bus publishes partition wake hints to the worker that owns them, and
// lets a worker subscribe to its own channel.
type Bus struct {
	client  *redis.Client
	workers int
	log     zerolog.Logger
}

// New constructs a Bus. workers is N, the number of in-process workers;
// it determines which channel a partition's wake lands on via
// partition mod N, matching the ownership mapping in spec.md §5.
func New(client *redis.Client, workers int, log zerolog.Logger) *Bus {
	return &Bus{
		client:  client,
		workers: workers,
		log:     log.With().Str("component", "wakebus").Logger(),
	}
}

// Ping verifies the underlying Redis connection, satisfying the
// adminserver readiness-probe Pinger interface.
func (b *Bus) Ping(ctx context.Context) error {
	return Ping(ctx, b.client)
}

// Publish sends partition as a wake hint to the channel of the worker
// that owns it (spec.md §4.4, §5 "partition mod N").
func (b *Bus) Publish(ctx context.Context, partition int) error {
	workerIndex := partition % b.workers
	channel := channelName(workerIndex)
	if err := b.client.Publish(ctx, channel, strconv.Itoa(partition)).Err(); err != nil {
		return fmt.Errorf("wakebus: publish: %w", err)
	}
	return nil
}

// Subscribe opens a subscription to the channel owned by workerIndex
// and returns a channel of partition ids. Payloads that don't parse as
// an integer are dropped (spec.md §6: "Subscribers MUST ignore
// payloads they cannot parse"). The caller must call the returned func
// when done to close the underlying subscription; cancelling ctx only
// stops the forwarding goroutine and closes the partition channel.
func (b *Bus) Subscribe(ctx context.Context, workerIndex int) (<-chan int, func()) {
	channel := channelName(workerIndex)
	pubsub := b.client.Subscribe(ctx, channel)

	out := make(chan int)
	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				partition, err := strconv.Atoi(msg.Payload)
				if err != nil {
					b.log.Warn().Str("payload", msg.Payload).Msg("wake bus: unparsable payload ignored")
					continue
				}
				select {
				case out <- partition:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}
