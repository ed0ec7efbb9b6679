package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

// Subscriber hands out event feeds.
type Subscriber interface {
	Subscribe(kinds ...events.Kind) (<-chan events.Event, func())
}

// StreamHandler pushes store changes to views over WebSocket. Closing the
// socket unsubscribes.
type StreamHandler struct {
	bus      Subscriber
	upgrader websocket.Upgrader
}

// NewStreamHandler allows the listed origins; an empty list allows any.
func NewStreamHandler(bus Subscriber, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
}

// ServeHTTP upgrades the request. ?kinds=job.updated,inventory.updated narrows
// the feed.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var kinds []events.Kind
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, events.Kind(k))
			}
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	feed, cancel := h.bus.Subscribe(kinds...)
	logger := log.WithFields(log.Fields{"component": "stream", "remote": r.RemoteAddr})
	logger.Debug("subscriber connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
		logger.Debug("subscriber disconnected")
	}()

	for {
		select {
		case <-done:
			return
		case e, ok := <-feed:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(streamWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
