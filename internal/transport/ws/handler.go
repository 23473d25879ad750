// Package ws pushes cart state transitions to connected UI clients over a
// WebSocket, so open tabs render loading and error transitions live.
package ws

import (
	"log/slog"
	"net/http"

	"github.com/banerjeearin/storefront/internal/cart"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sessionCookie = "storefront_session"

// stateBuffer bounds the per-connection backlog. The cart is small and only
// the latest state matters, so stale intermediate states may be dropped.
const stateBuffer = 16

type Handler struct {
	carts    *cart.Manager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHandler(carts *cart.Manager, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		carts: carts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With("component", "ws"),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeHTTP upgrades the connection and streams the session's cart state.
// The current state is sent immediately; every transition follows. A client
// without a session cookie is rejected, the REST API issues cookies.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Error(w, "session cookie required", http.StatusUnauthorized)
		return
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		http.Error(w, "invalid session cookie", http.StatusUnauthorized)
		return
	}
	store := h.carts.Store(c.Value)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	h.logger.Info("WebSocket connected", "session_id", c.Value)

	// Subscribe before taking the initial snapshot so a transition landing
	// in between is never missed; the snapshot is at least as new as any
	// notification enqueued ahead of it.
	states := make(chan cart.State, stateBuffer)
	unsubscribe := store.Subscribe(func(state cart.State) {
		select {
		case states <- state:
		default:
			// Slow consumer: drop this transition, a newer one follows.
		}
	})
	select {
	case states <- store.Snapshot():
	default:
		// Buffer already holds newer transitions.
	}

	done := make(chan struct{})
	go h.readUntilClose(conn, done)
	go h.writePump(conn, states, unsubscribe, done, c.Value)
}

// readUntilClose drains inbound frames until the peer closes. The channel is
// push only, inbound payloads are ignored.
func (h *Handler) readUntilClose(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, states <-chan cart.State, unsubscribe func(), done <-chan struct{}, sessionID string) {
	defer func() {
		unsubscribe()
		_ = conn.Close()
		h.logger.Info("WebSocket disconnected", "session_id", sessionID)
	}()

	for {
		select {
		case state := <-states:
			if err := conn.WriteJSON(state); err != nil {
				h.logger.Warn("WebSocket write failed", "error", err)
				return
			}
		case <-done:
			return
		}
	}
}
