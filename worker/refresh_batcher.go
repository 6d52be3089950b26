package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RefreshRequest asks for Fetch to run once at the next tick. Requests with
// the same Key collapse into one.
type RefreshRequest struct {
	Key   string
	Fetch func(ctx context.Context)
}

// RefreshBatcher coalesces bursts of invalidations so each collection is
// re-fetched at most once per tick.
type RefreshBatcher struct {
	RequestCh          chan RefreshRequest
	tickerMilliseconds int
	fetchTimeout       time.Duration
	logger             zerolog.Logger
}

func NewRefreshBatcher(tickerMilliseconds int, logger zerolog.Logger) *RefreshBatcher {
	return &RefreshBatcher{
		RequestCh:          make(chan RefreshRequest, 1024),
		tickerMilliseconds: tickerMilliseconds,
		fetchTimeout:       10 * time.Second,
		logger:             logger.With().Str("component", "refresh-batcher").Logger(),
	}
}

// Schedule queues a re-fetch without blocking. When the queue is full the
// request is dropped; a later invalidation for the same key will cover it.
func (b *RefreshBatcher) Schedule(key string, fetch func(ctx context.Context)) {
	select {
	case b.RequestCh <- RefreshRequest{Key: key, Fetch: fetch}:
	default:
		b.logger.Warn().Str("key", key).Msg("Refresh queue full, dropping request")
	}
}

func (b *RefreshBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	pending := make(map[string]func(ctx context.Context))

	flush := func() {
		for key, fetch := range pending {
			go func(key string, fetch func(ctx context.Context)) {
				ctx, cancel := context.WithTimeout(context.Background(), b.fetchTimeout)
				defer cancel()
				fetch(ctx)
				b.logger.Debug().Str("key", key).Msg("Refreshed collection")
			}(key, fetch)
		}
		pending = make(map[string]func(ctx context.Context))
	}

	for {
		select {
		case req := <-b.RequestCh:
			pending[req.Key] = req.Fetch

			if len(pending) >= 100 {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
