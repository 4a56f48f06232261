package pubsub

import "context"

// Listener wraps a broker subscription for callers that consume events one
// at a time (the watcher loop, the log tail, tests).
type Listener[T any] struct {
	ch <-chan Event[T]
}

// NewListener subscribes to broker. The subscription ends when ctx is cancelled.
func NewListener[T any](ctx context.Context, broker *Broker[T]) *Listener[T] {
	return &Listener[T]{ch: broker.Subscribe(ctx)}
}

// Next blocks until the next event arrives, ctx is done, or the subscription
// closes. The boolean is false in the latter two cases.
func (l *Listener[T]) Next(ctx context.Context) (Event[T], bool) {
	select {
	case <-ctx.Done():
		return Event[T]{}, false
	case event, ok := <-l.ch:
		return event, ok
	}
}

// Run calls fn for every event until ctx is done or the subscription closes.
func (l *Listener[T]) Run(ctx context.Context, fn func(Event[T])) {
	for {
		event, ok := l.Next(ctx)
		if !ok {
			return
		}
		fn(event)
	}
}
