package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/zlnvch/notesync/errors"
	"github.com/zlnvch/notesync/mq"
)

const (
	KindNote     = "note"
	KindTeamNote = "team_note"
)

type IngestMessage struct {
	Kind   string `json:"kind"`
	TeamId string `json:"team_id,omitempty"`
	Body   string `json:"body"`
}

// NoteCreator is satisfied by hooks.Notes and hooks.TeamNotes.
type NoteCreator interface {
	Create(ctx context.Context, body string) error
}

// TeamNotesFunc returns a creator scoped to teamId.
type TeamNotesFunc func(ctx context.Context, teamId string) NoteCreator

type IngestConsumer struct {
	queue     mq.MessageQueue
	notes     NoteCreator
	teamNotes TeamNotesFunc
	teams     map[string]NoteCreator
	logger    zerolog.Logger
}

func NewIngestConsumer(queue mq.MessageQueue, notes NoteCreator, teamNotes TeamNotesFunc, logger zerolog.Logger) *IngestConsumer {
	return &IngestConsumer{
		queue:     queue,
		notes:     notes,
		teamNotes: teamNotes,
		teams:     make(map[string]NoteCreator),
		logger:    logger.With().Str("component", "ingest").Logger(),
	}
}

const (
	visibilityTimeout = 60
	// Messages still failing after this many deliveries are dropped
	maxReceiveCount = 5
)

// Run consumes the queue until shutdownCtx is done. Messages are deleted once
// handled, and also when they can never succeed; transient failures leave the
// message to reappear after the visibility timeout.
func (c *IngestConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := c.queue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.logger.Warn().Err(err).Msg("Ingest receive error")
			select {
			case <-shutdownCtx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if msg == nil {
			continue
		}

		c.handle(shutdownCtx, msg)
	}
}

func (c *IngestConsumer) handle(shutdownCtx context.Context, msg *mq.Message) {
	// timeout should be a little less than queue visibility timeout
	ctx, cancel := context.WithTimeout(shutdownCtx, (visibilityTimeout-1)*time.Second)
	defer cancel()

	err := c.ingest(ctx, msg.Body)
	switch {
	case err == nil:
		c.logger.Debug().Str("message", msg.Id).Msg("Ingested note")
	case permanent(err):
		c.logger.Warn().Err(err).Str("message", msg.Id).Msg("Dropping invalid ingest message")
	case msg.ReceiveCount >= maxReceiveCount:
		c.logger.Error().Err(err).Int("attempts", msg.ReceiveCount).Msg("Dropping ingest message after repeated failures")
	default:
		c.logger.Warn().Err(err).Str("message", msg.Id).Msg("Ingest failed, will retry")
		return
	}

	if err := c.queue.Delete(context.WithoutCancel(ctx), msg); err != nil {
		c.logger.Warn().Err(err).Msg("Ingest delete error")
	}
}

func (c *IngestConsumer) ingest(ctx context.Context, raw string) error {
	var msg IngestMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return errors.InvalidArgument("malformed ingest message").WithCause(err)
	}

	switch msg.Kind {
	case KindNote:
		return c.notes.Create(ctx, msg.Body)
	case KindTeamNote:
		if msg.TeamId == "" {
			return errors.InvalidArgument("team_id is required for team notes")
		}
		return c.teamCreator(ctx, msg.TeamId).Create(ctx, msg.Body)
	default:
		return errors.InvalidArgumentf("unknown ingest kind %q", msg.Kind)
	}
}

func (c *IngestConsumer) teamCreator(ctx context.Context, teamId string) NoteCreator {
	if tn, ok := c.teams[teamId]; ok {
		return tn
	}
	tn := c.teamNotes(ctx, teamId)
	c.teams[teamId] = tn
	return tn
}

// permanent reports failures that a redelivery cannot fix.
func permanent(err error) bool {
	switch errors.CodeOf(err) {
	case errors.CodeInvalidArgument, errors.CodeValidation:
		return true
	case errors.CodeHTTP:
		status := errors.StatusOf(err)
		return status >= 400 && status < 500 && status != 408 && status != 429
	}
	return false
}
