package realtime

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/model"
)

// Handler upgrades authenticated requests to websocket connections.
// The auth middleware must run first.
func (h *Hub) Handler(messenger Messenger, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		if userID == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
			return
		}

		client := &Client{
			hub:       h,
			userID:    userID,
			conn:      conn,
			send:      make(chan []byte, sendBuffer),
			messenger: messenger,
			logger:    h.logger.With("user_id", userID),
		}
		if !h.register(client) {
			client.closeGoingAway()
			return
		}

		client.queue(model.Event{Type: model.EventInfo, Data: "connected"})

		go client.writePump()
		client.readPump(r.Context())
	}
}

// originChecker allows same-origin requests, requests without an Origin
// header and the configured origins. "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
