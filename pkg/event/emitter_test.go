package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_SubscriberReceivesEvents(t *testing.T) {
	e := NewEmitter()
	ch := e.Subscribe()

	e.Emit(&JobStarted{Timestamp: time.Now()})

	select {
	case ev := <-ch:
		_, ok := ev.(*JobStarted)
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
}

func TestEmitter_MultipleSubscribers(t *testing.T) {
	e := NewEmitter()
	ch1 := e.Subscribe()
	ch2 := e.Subscribe()

	e.Emit(&BatchClaimed{Queue: "default", Count: 3})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			claimed, ok := ev.(*BatchClaimed)
			require.True(t, ok)
			assert.Equal(t, 3, claimed.Count)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestEmitter_FullSubscriberDoesNotBlock(t *testing.T) {
	e := NewEmitter()
	e.Subscribe() // never read from

	done := make(chan struct{})
	go func() {
		// Overflow the buffer; Emit must never block on the abandoned channel.
		for i := 0; i < DefaultSubscriberBuffer*2; i++ {
			e.Emit(&JobCompleted{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Emit blocked on a full subscriber channel")
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter()
	ch := e.Subscribe()

	e.Unsubscribe(ch)
	e.Emit(&JobStarted{})

	select {
	case <-ch:
		t.Fatal("unsubscribed channel received an event")
	default:
	}
}

func TestEmitter_EmitWithoutSubscribers(t *testing.T) {
	e := NewEmitter()

	// Must not panic or block.
	e.Emit(&EngineStarted{ClientID: "test"})
}
