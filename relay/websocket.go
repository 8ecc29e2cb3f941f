package relay

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wavechat/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// ServeWS upgrades an authenticated HTTP request to a websocket connection
// and attaches it to the relay. The session stays unbound until the client
// sends identify; authentication only gates the upgrade.
func ServeWS(relay *Relay, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middleware.GetUserFromContext(r) == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		NewClient(conn, relay, log).Run()
	}
}
