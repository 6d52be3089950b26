package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// Message is the envelope of every frame on the feed, in both directions.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	TypeSessionState = "session_state"
	TypeNotesState   = "notes_state"
	TypeTeamsState   = "teams_state"
)

// Hub maintains the set of active clients and broadcasts state messages to
// them.
type Hub struct {
	OpenCh      chan *Client
	CloseCh     chan *Client
	BroadcastCh chan []byte
	clients     map[*Client]struct{}
	logger      zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		OpenCh:      make(chan *Client, 256),
		CloseCh:     make(chan *Client, 256),
		BroadcastCh: make(chan []byte, 1024),
		clients:     make(map[*Client]struct{}),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

const maxConnections = 32

// Run owns the client set until shutdownCtx is done.
func (h *Hub) Run(shutdownCtx context.Context) {
	for {
		select {
		case client := <-h.OpenCh:
			if len(h.clients) >= maxConnections {
				h.logger.Warn().Int("max", maxConnections).Msg("Reached max websocket connections")
				client.closeSend()
				continue
			}
			h.clients[client] = struct{}{}
			if client.initial != nil {
				for _, b := range client.initial() {
					client.Enqueue(b)
				}
			}

		case client := <-h.CloseCh:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}

		case message := <-h.BroadcastCh:
			for client := range h.clients {
				if !client.Enqueue(message) {
					// Client is not keeping up
					h.logger.Warn().Msg("Dropping slow websocket client")
					delete(h.clients, client)
					client.closeSend()
				}
			}

		case <-shutdownCtx.Done():
			return
		}
	}
}

// Broadcast queues a message for every connected client. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msgType string, data any) {
	b, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal broadcast")
		return
	}
	select {
	case h.BroadcastCh <- b:
	default:
		h.logger.Warn().Str("type", msgType).Msg("Broadcast queue full, dropping message")
	}
}
