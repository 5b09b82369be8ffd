package application

import (
	"time"

	"github.com/cskr/pubsub"
)

const eventBufSize = 32

// NewEventBus returns the pubsub bus ledger events are published on.
// Subscribers pick topics from domain.Topic* and receive the typed
// event structs declared in the domain package.
func NewEventBus() *pubsub.PubSub {
	return pubsub.New(eventBufSize)
}

// SystemClock is the production clock: unix seconds from the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().Unix()
}
