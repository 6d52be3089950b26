package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	Subprotocol    = "notesync-v1"
	refreshTimeout = 15 * time.Second
)

// Feed supplies the current UI state and re-fetches collections on request.
type Feed interface {
	// Snapshot returns one message per state type, sent to new connections.
	Snapshot() []Message
	// Refresh re-fetches "notes", "teams", or both for "all".
	Refresh(ctx context.Context, target string) error
}

type Handler struct {
	Feed   Feed
	Hub    *Hub
	logger zerolog.Logger
}

func NewHandler(feed Feed, hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		Feed:   feed,
		Hub:    hub,
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// NewWsUpgrader accepts same-host requests without an Origin header and
// cross-origin requests from allowedOrigins.
func (h *Handler) NewWsUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
		Subprotocols: []string{Subprotocol},
	}
}

// ServeWS handles websocket requests from the peer.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade ws connection")
		return
	}

	client := NewClient(h.Hub, conn, h.HandleWsMessage, h.logger)
	// The hub takes the snapshot when it registers the client, so the
	// current state always precedes the broadcasts that follow it
	client.initial = h.snapshotFrames
	h.Hub.OpenCh <- client

	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

func (h *Handler) snapshotFrames() [][]byte {
	msgs := h.Feed.Snapshot()
	frames := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		b, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal initial state")
			continue
		}
		frames = append(frames, b)
	}
	return frames
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type refreshMessage struct {
	Target string `json:"target"`
}

type refreshResponse struct {
	Success bool   `json:"success"`
	Target  string `json:"target"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		h.logger.Debug().Err(err).Msg("Invalid JSON")
		return
	}

	switch msg.Type {
	case "refresh":
		var refreshMsg refreshMessage
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &refreshMsg); err != nil {
				h.logger.Debug().Err(err).Msg("Invalid refresh data")
				return
			}
		}
		if refreshMsg.Target == "" {
			refreshMsg.Target = "all"
		}
		h.handleRefresh(client, refreshMsg)

	default:
		h.logger.Debug().Str("type", msg.Type).Msg("Unknown message type")
	}
}

func (h *Handler) handleRefresh(client *Client, refreshMsg refreshMessage) {
	if !client.AllowRefresh() {
		h.reply(client, refreshResponse{Target: refreshMsg.Target, Error: "rate limited"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		resp := refreshResponse{Success: true, Target: refreshMsg.Target}
		if err := h.Feed.Refresh(ctx, refreshMsg.Target); err != nil {
			resp = refreshResponse{Target: refreshMsg.Target, Error: err.Error()}
		}
		h.reply(client, resp)
	}()
}

func (h *Handler) reply(client *Client, resp refreshResponse) {
	b, err := json.Marshal(Message{Type: "refresh_response", Data: resp})
	if err != nil {
		h.logger.Error().Err(err).Msg("Error marshaling response JSON")
		return
	}
	client.Enqueue(b)
}
