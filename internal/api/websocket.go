package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jorge-barreto/tome/internal/progress"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// watchRun streams a View on every write to the run until it is terminal
// or the client goes away.
func (s *Server) watchRun(c *gin.Context) {
	if s.Hub == nil {
		fail(c, http.StatusNotFound, CodeNotFound, "websocket watch not enabled")
		return
	}
	id := c.Param("id")
	// subscribe before the first read so no write is missed
	updates, unsubscribe := s.Hub.Subscribe(id)
	defer unsubscribe()

	first, err := s.Store.Get(c.Request.Context(), id)
	if err != nil && !errors.Is(err, progress.ErrNotFound) {
		failErr(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log().Warn("websocket upgrade failed", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(snap *progress.Snapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(progress.BuildView(snap, ContentURL(id))); err != nil {
			s.log().Debug("websocket write failed", "run_id", id, "error", err)
			return false
		}
		return !snap.Terminal()
	}

	if first != nil && !send(first) {
		closeNormal(conn)
		return
	}
	for {
		select {
		case snap, open := <-updates:
			if !open {
				return
			}
			if !send(snap) {
				closeNormal(conn)
				return
			}
		case <-gone:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
