// Copyright 2026 The Authgrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher emits changes without blocking the caller. Emitting a
// change must never fail the operation that produced it.
type Publisher interface {
	Publish(change Change)
}

// Subscriber consumes changes delivered by the bus. Implementations
// handle their own failures; the bus only logs them.
type Subscriber interface {
	OnChange(ctx context.Context, change Change)
}

// Bus fans changes out to subscribers from a single dispatcher
// goroutine. Delivery is asynchronous and best-effort: when the buffer
// is full the change is dropped and logged rather than blocking the
// emitting operation.
type Bus struct {
	ch   chan Change
	subs []Subscriber

	closeOnce sync.Once
	done      chan struct{}
}

// NewBus starts the dispatcher. buffer must be > 0.
func NewBus(buffer int, subs ...Subscriber) *Bus {
	b := &Bus{
		ch:   make(chan Change, buffer),
		subs: subs,
		done: make(chan struct{}),
	}
	go b.dispatch()
	return b
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for change := range b.ch {
		for _, s := range b.subs {
			b.deliver(s, change)
		}
	}
}

func (b *Bus) deliver(s Subscriber, change Change) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked",
				"action", change.Action,
				"user_id", change.UserID,
				"panic", r,
			)
		}
	}()
	s.OnChange(context.Background(), change)
}

// Publish enqueues the change. Drops it when the bus is saturated.
func (b *Bus) Publish(change Change) {
	select {
	case b.ch <- change:
	default:
		slog.Warn("event bus full, dropping change",
			"action", change.Action,
			"user_id", change.UserID,
		)
	}
}

// Close stops accepting changes and waits for in-flight deliveries.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.ch) })
	<-b.done
}

// NopPublisher discards all changes. Used in tests and when no
// subscribers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(Change) {}
