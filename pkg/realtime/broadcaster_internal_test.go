package realtime

import (
	"testing"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/aretw0/holdfast/pkg/events"
	"github.com/aretw0/holdfast/pkg/tokens"
	"github.com/stretchr/testify/assert"
)

func TestEnqueue_FullQueueDropsOnlyThatConnection(t *testing.T) {
	b := NewBroadcaster(events.NewBus(), tokens.New())
	slow := &conn{id: "slow", send: make(chan []byte, 1), done: make(chan struct{})}
	fast := &conn{id: "fast", send: make(chan []byte, 4), done: make(chan struct{})}

	b.enqueue(slow, domain.LockEvent(true))
	b.enqueue(fast, domain.LockEvent(true))
	b.enqueue(slow, domain.LockEvent(false))
	b.enqueue(fast, domain.LockEvent(false))

	select {
	case <-slow.done:
	case <-time.After(time.Second):
		t.Fatal("slow connection should have been dropped")
	}
	select {
	case <-fast.done:
		t.Fatal("fast connection should stay open")
	default:
	}
	assert.Len(t, fast.send, 2)
}

func TestEnqueue_AfterStopIsNoop(t *testing.T) {
	b := NewBroadcaster(events.NewBus(), tokens.New())
	c := &conn{id: "gone", send: make(chan []byte, 1), done: make(chan struct{})}
	c.stop()
	c.stop()

	b.enqueue(c, domain.LockEvent(true))
	assert.Len(t, c.send, 0)
}
