package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSendReachesHandlerAndSubscribers(t *testing.T) {
	l := NewLocal()
	received := make(chan Envelope, 1)
	l.Handle(func(env Envelope) { received <- env })

	ch, unsubscribe := l.Subscribe()
	defer unsubscribe()

	l.Send(Envelope{Command: CmdRequestState})

	select {
	case env := <-received:
		assert.Equal(t, CmdRequestState, env.Command)
	case <-time.After(time.Second):
		t.Fatal("handler did not receive envelope")
	}

	select {
	case env := <-ch:
		assert.Equal(t, CmdRequestState, env.Command)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive envelope")
	}
}

func TestLocalSendDoesNotBlockOnFullSubscriber(t *testing.T) {
	l := NewLocal()
	ch, unsubscribe := l.Subscribe()
	defer unsubscribe()

	// Fill the subscriber's buffer without draining it.
	for i := 0; i < 32; i++ {
		l.Send(Envelope{Command: CmdRequestState})
	}
	_ = ch // intentionally left undrained

	done := make(chan struct{})
	go func() {
		l.Send(Envelope{Command: CmdRequestState})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full subscriber channel")
	}
}

func TestChannelBroadcastFallsBackToLocalWithoutRemote(t *testing.T) {
	c := NewChannel()
	received := make(chan Envelope, 1)
	c.Handle(func(env Envelope) { received <- env })

	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Broadcast(Envelope{Command: CmdStateUpdate})

	select {
	case env := <-ch:
		assert.Equal(t, CmdStateUpdate, env.Command)
	case <-time.After(time.Second):
		t.Fatal("local subscriber did not receive broadcast")
	}
	require.False(t, c.RemoteConnected())
}
