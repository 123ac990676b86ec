package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/huddle/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs it as a hub
// client for the requesting user. originPatterns extends the same-origin
// check; nil accepts only same-origin browsers.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	logger = logger.With("component", "websocket")
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("accept", "user_id", userID, "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("client connected", "user_id", userID)
		NewClient(hub, conn, userID).Run(r.Context())
		logger.Debug("client disconnected", "user_id", userID)
	}
}
