// Package hooks keeps UI-facing collection state in step with the notes API.
// Every successful mutation is followed by a full re-fetch of the collection;
// the server is the only source of truth.
package hooks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"

	"github.com/zlnvch/notesync/cache"
	"github.com/zlnvch/notesync/errors"
)

// State is the snapshot a view renders.
type State[T any] struct {
	Items     []T    `json:"items"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

// Refresher runs a collection re-fetch later, coalescing repeats of key.
type Refresher interface {
	Schedule(key string, fetch func(ctx context.Context))
}

type Options struct {
	// Bus, when set, announces mutations to other processes and receives
	// theirs after Listen is called.
	Bus       cache.Bus
	Refresher Refresher
	Logger    zerolog.Logger
}

type listFunc[T any] func(ctx context.Context, scope string) ([]T, error)

// collection is the shared engine behind Notes, TeamNotes and Teams.
type collection[T any] struct {
	name string
	list listFunc[T]

	mu        sync.Mutex
	scope     string
	state     State[T]
	seq       uint64
	closed    bool
	listeners map[int]func(State[T])
	nextSubId int

	origin    string
	bus       cache.Bus
	refresher Refresher
	logger    zerolog.Logger
}

func newCollection[T any](name string, list listFunc[T], opts Options) *collection[T] {
	return &collection[T]{
		name:      name,
		list:      list,
		state:     State[T]{Items: []T{}},
		listeners: make(map[int]func(State[T])),
		origin:    uuid.Must(uuid.NewV4()).String(),
		bus:       opts.Bus,
		refresher: opts.Refresher,
		logger:    opts.Logger.With().Str("hook", name).Logger(),
	}
}

// State returns a copy of the current state.
func (c *collection[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *collection[T]) snapshotLocked() State[T] {
	items := make([]T, len(c.state.Items))
	copy(items, c.state.Items)
	return State[T]{Items: items, IsLoading: c.state.IsLoading, Error: c.state.Error}
}

func (c *collection[T]) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Subscribe registers fn for every state change and returns a function that
// removes it.
func (c *collection[T]) Subscribe(fn func(State[T])) func() {
	c.mu.Lock()
	id := c.nextSubId
	c.nextSubId++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *collection[T]) notify(state State[T]) {
	c.mu.Lock()
	listeners := make([]func(State[T]), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// SetScope switches the collection to another owner (user or team). The list
// is cleared and, for a non-empty scope, fetched again.
func (c *collection[T]) SetScope(ctx context.Context, scope string) {
	c.mu.Lock()
	if c.closed || c.scope == scope {
		c.mu.Unlock()
		return
	}
	c.scope = scope
	c.seq++
	c.state = State[T]{Items: []T{}}
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
	c.FetchAll(ctx)
}

// FetchAll replaces the list with the server's. Failures are recorded in
// State().Error, never returned. When fetches overlap only the one issued
// last is applied.
func (c *collection[T]) FetchAll(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.scope == "" {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	scope := c.scope
	c.state.IsLoading = true
	c.state.Error = ""
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)

	items, err := c.list(ctx, scope)

	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.state.Error = err.Error()
		c.logger.Warn().Err(err).Str("scope", scope).Msg("Failed to fetch collection")
	} else {
		if items == nil {
			items = []T{}
		}
		c.state.Items = items
	}
	c.state.IsLoading = false
	state = c.snapshotLocked()
	c.mu.Unlock()

	c.notify(state)
}

// Close stops the collection; responses still in flight are discarded.
func (c *collection[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.listeners = make(map[int]func(State[T]))
}

// mutate runs op and, when it succeeds, re-fetches the collection and
// announces the change. A failed op leaves the list untouched.
func (c *collection[T]) mutate(ctx context.Context, op func(ctx context.Context) error) error {
	if err := op(ctx); err != nil {
		return err
	}
	c.FetchAll(ctx)
	c.publish(ctx)
	return nil
}

func (c *collection[T]) publish(ctx context.Context) {
	if c.bus == nil {
		return
	}
	msg, err := json.Marshal(cache.Invalidation{Origin: c.origin, Collection: c.name, Scope: c.Scope()})
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, cache.Channel(c.name), msg); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to publish invalidation")
	}
}

// Listen subscribes to invalidations published by other processes until ctx
// is done. Changes to another scope and our own announcements are ignored.
func (c *collection[T]) Listen(ctx context.Context) error {
	if c.bus == nil {
		return nil
	}
	return c.bus.Subscribe(ctx, cache.Channel(c.name), func(message []byte) {
		var inv cache.Invalidation
		if err := json.Unmarshal(message, &inv); err != nil {
			c.logger.Debug().Err(err).Msg("Ignoring malformed invalidation")
			return
		}
		if inv.Origin == c.origin || inv.Scope != c.Scope() {
			return
		}
		c.Invalidate()
	})
}

// Invalidate schedules a re-fetch through the Refresher, or starts one
// right away when there is none.
func (c *collection[T]) Invalidate() {
	if c.refresher != nil {
		c.refresher.Schedule(c.name+":"+c.Scope(), c.FetchAll)
		return
	}
	go c.FetchAll(context.Background())
}

func checkId(kind, id string) error {
	if id == "" || id == "undefined" {
		return errors.InvalidArgumentf("Invalid %s ID", kind)
	}
	return nil
}
