package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlnvch/notesync/cache"
)

func TestMemoryBus_DeliversToSubscribers(t *testing.T) {
	bus := cache.NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	require.NoError(t, bus.Subscribe(ctx, cache.Channel("notes"), func(msg []byte) { got <- string(msg) }))
	require.NoError(t, bus.Subscribe(ctx, cache.Channel("teams"), func(msg []byte) { got <- "wrong channel" }))

	require.NoError(t, bus.Publish(ctx, cache.Channel("notes"), []byte("hello")))

	select {
	case msg := <-got:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	assert.Never(t, func() bool { return len(got) > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestMemoryBus_StopsAfterContextDone(t *testing.T) {
	bus := cache.NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	var count atomic.Int32
	require.NoError(t, bus.Subscribe(ctx, "c", func([]byte) { count.Add(1) }))
	cancel()

	// Give the unsubscribe goroutine time to run
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), "c", []byte("x")))
	assert.Never(t, func() bool { return count.Load() > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "notesync:invalidate:{notes}", cache.Channel("notes"))
}
