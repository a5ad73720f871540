package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesNamespace(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Emit(MessageSendAck, MessageEvent{ConversationID: "c1", TempID: "tmp-1", MessageID: "42"})

	select {
	case evt := <-ch:
		assert.Equal(t, MessageSendAck, evt.Kind)
		assert.False(t, evt.Timestamp.IsZero())
		payload, ok := evt.Payload.(MessageEvent)
		require.True(t, ok, "payload type = %T", evt.Payload)
		assert.Equal(t, "42", payload.MessageID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("thread.", 10)
	defer unsub()

	b.Emit(ConversationsUpdated, nil)
	b.Emit(ThreadUpdated, "c1")

	select {
	case evt := <-ch:
		assert.Equal(t, ThreadUpdated, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Emit(StatusChanged, nil)

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("thread.", 1)
	defer unsub()

	b.Emit(ThreadUpdated, "one")
	b.Emit(ThreadUpdated, "two")

	evt := <-ch
	assert.Equal(t, "one", evt.Payload)
	assert.Len(t, ch, 0)
}

func TestNilBusIsNoop(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { b.Emit(ThreadUpdated, "c1") })
}
