package bulk

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// stream pushes a snapshot of the job on every change until it turns terminal
// or the client goes away.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, jobID string) {
	job, changed, err := h.manager.Watch(jobID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("bulk stream upgrade", slog.Any("error", err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(job); err != nil {
			return
		}
		if job.Status.Terminal() {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
			return
		}
	wait:
		for {
			select {
			case <-changed:
				break wait
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-gone:
				return
			case <-r.Context().Done():
				return
			}
		}
		job, changed, err = h.manager.Watch(jobID)
		if err != nil {
			return
		}
	}
}
