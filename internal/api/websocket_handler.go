package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/linkflow-ai/linkflow/internal/engine/events"
	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
)

type websocketHandler struct {
	bus        *events.Bus
	jwtManager *pkgcrypto.JWTManager
	upgrader   websocket.Upgrader
}

func newWebsocketHandler(bus *events.Bus, jwtManager *pkgcrypto.JWTManager) *websocketHandler {
	return &websocketHandler{
		bus:        bus,
		jwtManager: jwtManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// CORS for the upgrade itself is enforced separately by the
			// chi cors middleware on the surrounding handshake request.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades the connection and streams events for one execution
// until the client disconnects or the execution reaches a terminal state
// and the bus closes the subscription.
func (h *websocketHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "missing token")
		return
	}
	if _, err := h.jwtManager.ValidateToken(token); err != nil {
		writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid or expired token")
		return
	}

	executionID, err := uuid.Parse(r.URL.Query().Get("execution_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid execution_id")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	eventCh, unsubscribe := h.bus.SubscribeExecution(executionID)
	defer unsubscribe()

	go h.readPump(conn)
	h.writePump(conn, eventCh)
}

// readPump drains client frames (pings, close) without interpreting them;
// this endpoint is read-only from the client's perspective.
func (h *websocketHandler) readPump(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *websocketHandler) writePump(conn *websocket.Conn, eventCh <-chan events.Event) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-eventCh:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
