package websocket

import (
	"net/http"
	"overlay-server/events"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// HandleEvents streams overlay changes from hub as JSON text frames. The feed
// is one-way; anything the client sends besides control frames is ignored.
func HandleEvents(hub *events.Hub, checkOrigin func(r *http.Request) bool) http.HandlerFunc {
	upgrader := gorilla.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("Event feed upgrade failed")
			return
		}
		defer conn.Close()

		feed, cancel := hub.Subscribe(events.DefaultBuffer)
		defer cancel()

		log := logrus.WithField("remote", r.RemoteAddr)
		log.Debug("Event feed subscriber connected")

		done := make(chan struct{})
		go func() {
			defer close(done)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				log.Debug("Event feed subscriber disconnected")
				return
			case <-r.Context().Done():
				return
			case event, ok := <-feed:
				if !ok {
					_ = conn.WriteControl(gorilla.CloseMessage,
						gorilla.FormatCloseMessage(gorilla.CloseGoingAway, "server shutting down"),
						time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(event); err != nil {
					log.WithError(err).Debug("Event feed write failed")
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(gorilla.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}
}
