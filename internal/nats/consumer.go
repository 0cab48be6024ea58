package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

// ConsumerManager handles durable consumer creation and retrieval.
type ConsumerManager struct {
	js jetstream.JetStream
}

// NewConsumerManager creates a new ConsumerManager.
func NewConsumerManager(js jetstream.JetStream) *ConsumerManager {
	return &ConsumerManager{js: js}
}

// EnsureConsumer creates or updates a durable consumer on the given stream.
// A zero ackWait keeps the server default.
func (cm *ConsumerManager) EnsureConsumer(ctx context.Context, stream, name, filterSubject string, ackWait time.Duration) (jetstream.Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
	}

	consumer, err := cm.js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer %s on %s: %w", name, stream, err)
	}
	return consumer, nil
}

// Fetcher is the part of jetstream.Consumer used by Consume.
type Fetcher interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// BatchSize caps the number of messages pulled per fetch.
const BatchSize = 10

var retryDelay = 500 * time.Millisecond

// Consume pulls messages from c and passes each to handle until ctx is
// cancelled. At most workers messages are handled at once, and only as many
// messages are fetched as there are idle workers, so none waits out its ack
// deadline in a local buffer. With one worker messages are handled in
// delivery order. Consume waits for running handlers before returning.
// handle is responsible for acking.
func Consume(ctx context.Context, name string, c Fetcher, workers int, handle func(context.Context, jetstream.Msg)) error {
	if workers < 1 {
		workers = 1
	}
	slots := make(chan struct{}, workers)
	release := func(n int) {
		for range n {
			<-slots
		}
	}

	var g errgroup.Group
	defer func() { _ = g.Wait() }()

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Wait for one idle worker, then claim any others without blocking.
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		claimed := 1
	claim:
		for claimed < BatchSize {
			select {
			case slots <- struct{}{}:
				claimed++
			default:
				break claim
			}
		}

		msgs, err := c.Fetch(claimed, jetstream.FetchMaxWait(FetchTimeout))
		if err != nil {
			release(claimed)
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, jetstream.ErrConsumerDeleted) {
				return fmt.Errorf("consumer %s: %w", name, err)
			}
			slog.Debug("fetching messages", "consumer", name, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		started := 0
		for msg := range msgs.Messages() {
			started++
			g.Go(func() error {
				defer release(1)
				handle(ctx, msg)
				return nil
			})
		}
		release(claimed - started)
		if err := msgs.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) && ctx.Err() == nil {
			slog.Debug("fetch batch ended", "consumer", name, "error", err)
		}
	}
}

// KeepAlive marks msg as in progress every interval until the returned stop
// func is called, holding off redelivery while a long handler runs.
func KeepAlive(ctx context.Context, msg jetstream.Msg, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := msg.InProgress(); err != nil {
					slog.Debug("extending ack deadline", "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
