package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type versionFeed struct {
	mu      sync.Mutex
	version int
}

func (f *versionFeed) set(v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version = v
}

func (f *versionFeed) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := json.Marshal(Message{Type: TypeNotesState, Data: f.version})
	return [][]byte{b}
}

func nextVersion(t *testing.T, c *Client) int {
	t.Helper()
	select {
	case b, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg struct {
			Type string `json:"type"`
			Data int    `json:"data"`
		}
		require.NoError(t, json.Unmarshal(b, &msg))
		assert.Equal(t, TypeNotesState, msg.Type)
		return msg.Data
	case <-time.After(2 * time.Second):
		t.Fatal("no message queued for client")
		return 0
	}
}

func TestHub_SnapshotTakenAtRegistration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	feed := &versionFeed{version: 1}
	client := NewClient(hub, nil, nil, zerolog.Nop())
	client.initial = feed.frames

	// State moves on between accepting the connection and registering it
	feed.set(2)
	hub.OpenCh <- client
	assert.Equal(t, 2, nextVersion(t, client))

	feed.set(3)
	hub.Broadcast(TypeNotesState, 3)
	assert.Equal(t, 3, nextVersion(t, client))
}

func TestHub_RejectsClientsOverLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	for i := 0; i < maxConnections; i++ {
		hub.OpenCh <- NewClient(hub, nil, nil, zerolog.Nop())
	}
	extra := NewClient(hub, nil, nil, zerolog.Nop())
	hub.OpenCh <- extra

	select {
	case _, ok := <-extra.Send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("client over the limit was not closed")
	}
}
