// Package gateway exposes the websocket endpoint the chat-transport
// adapter connects to. Inbound frames are transport events dispatched to
// the bot; outbound frames are delivery actions for the adapter to carry
// out. The core stays transport-agnostic: it only ever sees member IDs
// and payloads.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sdmedia/clubbot/internal/transport"
)

// ErrNotConnected is returned when an outbound action is requested while
// no transport adapter is connected. Callers treat delivery as
// best-effort, so this surfaces as an unreachable recipient.
var ErrNotConnected = errors.New("transport gateway not connected")

const writeTimeout = 10 * time.Second

// Dispatcher consumes inbound transport events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev transport.Event) error
}

// actionFrame is one outbound delivery instruction for the adapter.
type actionFrame struct {
	Type        string               `json:"type"`
	RecipientID int64                `json:"recipient_id,omitempty"`
	Text        string               `json:"text,omitempty"`
	Keyboard    [][]transport.Button `json:"keyboard,omitempty"`
	Photos      []string             `json:"photos,omitempty"`
	Caption     string               `json:"caption,omitempty"`
	Proof       *transport.Proof     `json:"proof,omitempty"`
}

// Handler accepts the transport adapter connection and doubles as the
// transport.Sender for the rest of the system. A single adapter is active
// at a time; a newly accepted connection replaces the previous one.
type Handler struct {
	dispatcher Dispatcher
	token      string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewHandler creates a gateway handler authenticated by token. The
// dispatcher may be set later with SetDispatcher: the gateway and the
// event handlers depend on each other, one as input and one as output.
func NewHandler(dispatcher Dispatcher, token string) *Handler {
	return &Handler{dispatcher: dispatcher, token: token}
}

// SetDispatcher plugs in the inbound event consumer. Must be called
// before the handler is mounted.
func (h *Handler) SetDispatcher(dispatcher Dispatcher) {
	h.dispatcher = dispatcher
}

// ServeHTTP upgrades the adapter connection and runs its read loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The adapter is a trusted server-side peer, not a browser.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("gateway accept failed", "error", err)
		return
	}
	slog.Info("transport gateway connected", "remote", r.RemoteAddr)

	h.attach(conn)
	defer h.detach(conn)

	h.readLoop(r.Context(), conn)
}

func (h *Handler) authorized(r *http.Request) bool {
	token := r.Header.Get("Authorization")
	if after, ok := cutBearer(token); ok {
		token = after
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}

func cutBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):], true
	}
	return "", false
}

func (h *Handler) attach(conn *websocket.Conn) {
	h.mu.Lock()
	prev := h.conn
	h.conn = conn
	h.mu.Unlock()

	if prev != nil {
		_ = prev.Close(websocket.StatusNormalClosure, "replaced by new adapter connection")
	}
}

func (h *Handler) detach(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// readLoop decodes inbound event frames and dispatches each concurrently.
// The hosting runtime gives no serialization guarantee, and none is
// needed: the store's per-key atomicity orders same-member operations.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				slog.Info("transport gateway disconnected")
			} else {
				slog.Warn("gateway read failed", "error", err)
			}
			return
		}

		var ev transport.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("gateway received malformed event frame", "error", err)
			continue
		}

		go func(ev transport.Event) {
			if err := h.dispatcher.Dispatch(context.Background(), ev); err != nil {
				slog.Error("event dispatch failed", "type", ev.Type, "sender_id", ev.SenderID, "error", err)
			}
		}(ev)
	}
}

// SendText implements transport.Sender.
func (h *Handler) SendText(ctx context.Context, recipientID int64, text string, keyboard [][]transport.Button) error {
	return h.write(ctx, actionFrame{
		Type:        "send_text",
		RecipientID: recipientID,
		Text:        text,
		Keyboard:    keyboard,
	})
}

// SendAlbum implements transport.Sender.
func (h *Handler) SendAlbum(ctx context.Context, recipientID int64, photos []string, caption string) error {
	return h.write(ctx, actionFrame{
		Type:        "send_album",
		RecipientID: recipientID,
		Photos:      photos,
		Caption:     caption,
	})
}

// ForwardProof implements transport.Sender.
func (h *Handler) ForwardProof(ctx context.Context, operatorChatID int64, proof transport.Proof, caption string, keyboard [][]transport.Button) error {
	p := proof
	return h.write(ctx, actionFrame{
		Type:        "forward_proof",
		RecipientID: operatorChatID,
		Caption:     caption,
		Keyboard:    keyboard,
		Proof:       &p,
	})
}

func (h *Handler) write(ctx context.Context, frame actionFrame) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode action frame: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write action frame: %w", err)
	}
	return nil
}
