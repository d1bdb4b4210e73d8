package websocket

import (
	"time"

	"moviesearch-client/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

// ServeWs runs one relay connection until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, revealInterval time.Duration, factory SessionFactory, log logger.ILogger) {
	client := newClient(hub, c, revealInterval, factory, log)
	select {
	case hub.register <- client:
	case <-hub.quit:
		client.close()
		c.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
