package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch Channel) Message {
	t.Helper()
	select {
	case msg, ok := <-ch.Messages():
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func assertNoMessage(t *testing.T, ch Channel) {
	t.Helper()
	select {
	case msg := <-ch.Messages():
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DeliversToAllMembersIncludingSender(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := hub.Open("session")
	b := hub.Open("session")
	defer a.Close()
	defer b.Close()

	msg := Message{Type: TypeTabAnnounce, TabID: "a"}
	require.NoError(t, a.Post(context.Background(), msg))

	assert.Equal(t, msg, receive(t, a))
	assert.Equal(t, msg, receive(t, b))
}

func TestHub_ChannelsAreIsolated(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := hub.Open("one")
	b := hub.Open("two")
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Post(context.Background(), Message{Type: TypeLeadershipClaim, TabID: "a"}))
	receive(t, a)
	assertNoMessage(t, b)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := hub.Open("session")
	b := hub.Open("session")
	defer b.Close()
	assert.Equal(t, 2, hub.Members("session"))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, hub.Members("session"))

	_, ok := <-a.Messages()
	assert.False(t, ok)

	err := a.Post(context.Background(), Message{Type: TypeLeadershipClaim, TabID: "a"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHub_RejectsInvalidMessages(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := hub.Open("session")
	defer a.Close()

	assert.Error(t, a.Post(context.Background(), Message{Type: "bogus", TabID: "a"}))
	assertNoMessage(t, a)
}

func TestHub_FullInboxDropsMessage(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.bufferSize = 1
	a := hub.Open("session")
	defer a.Close()

	require.NoError(t, a.Post(context.Background(), Message{Type: TypeTabAnnounce, TabID: "a"}))
	require.NoError(t, a.Post(context.Background(), Message{Type: TypeLeadershipClaim, TabID: "a"}))

	assert.Equal(t, TypeTabAnnounce, receive(t, a).Type)
	assertNoMessage(t, a)
}
