package websocket

import (
	"context"
	"net/http"
	"time"

	"filmbox/internal/events"
	"filmbox/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Connect upgrades the request and subscribes the socket to the upload
// channel of the film named in the query. The socket is write-only from the
// server's point of view; reads only service pongs and detect closure.
func (h *Handler) Connect(c *gin.Context) {
	filmID := c.Query("film_id")
	if filmID == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("film_id is required", "INVALID_REQUEST"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.UploadChannel(filmID))
	go client.WriteLoop(ctx)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}

	h.hub.Unregister(client)
}
