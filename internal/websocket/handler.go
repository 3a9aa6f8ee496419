package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// ServeWs registers a watcher for instanceID and pumps until the run ends or
// the peer goes away. snapshot is written first; a terminal snapshot ends the session.
func ServeWs(hub *Hub, c *websocket.Conn, instanceID string, snapshot func() ([]byte, bool, error)) {
	client := &Client{Hub: hub, Conn: c, InstanceID: instanceID, Send: make(chan []byte, 64)}
	if !hub.attach(client) {
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		c.Close()
		return
	}

	// read after registering so an update landing in between is not lost
	data, terminal, err := snapshot()
	if err == nil {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		err = c.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil || terminal {
		hub.detach(client)
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.Close()
		return
	}

	go client.readPump()
	client.writePump()
}
