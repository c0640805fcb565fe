package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocket message types sent to the client.
const (
	wsMsgStatus = "status"
	wsMsgResult = "result"
	wsMsgError  = "error"
)

const wsWriteWait = 10 * time.Second

// wsMessage is the envelope for every frame sent on a watch connection.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// handleWatch streams a job's status changes over a WebSocket. A status
// frame is sent whenever the observed state changes; once the job is
// terminal a result frame follows and the connection is closed.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")

	// Unknown ids get a plain 404 instead of an upgraded connection.
	first, err := s.jobs.Status(r.Context(), id)
	if err != nil {
		writeJobError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go drainClient(conn, cancel)

	last := newStatusResponse(first)
	if !sendWSMessage(conn, wsMsgStatus, last) {
		return
	}

	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	for !last.Status.Terminal() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		view, err := s.jobs.Status(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				slog.ErrorContext(ctx, "watching job", "task_id", id, "error", err)
				sendWSError(conn, "status unavailable")
			}
			return
		}
		cur := newStatusResponse(view)
		if !statusChanged(last, cur) {
			continue
		}
		last = cur
		if !sendWSMessage(conn, wsMsgStatus, cur) {
			return
		}
	}

	result, err := s.jobs.Result(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "loading result", "task_id", id, "error", err)
		sendWSError(conn, "result unavailable")
		return
	}
	if !sendWSMessage(conn, wsMsgResult, newResultResponse(result)) {
		return
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		time.Now().Add(wsWriteWait))
}

func statusChanged(a, b statusResponse) bool {
	return a.Status != b.Status || a.Progress != b.Progress || !a.UpdatedAt.Equal(b.UpdatedAt)
}

// drainClient reads and discards client frames so control messages are
// processed, and cancels the watch when the client goes away.
func drainClient(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read", "error", err)
			}
			return
		}
	}
}

func sendWSMessage(conn *websocket.Conn, msgType string, data any) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("ws marshal", "error", err)
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(wsMessage{Type: msgType, Data: raw}); err != nil {
		slog.Debug("ws write", "error", err)
		return false
	}
	return true
}

func sendWSError(conn *websocket.Conn, errMsg string) {
	sendWSMessage(conn, wsMsgError, map[string]string{"message": errMsg})
}
