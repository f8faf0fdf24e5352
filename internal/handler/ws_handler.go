/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which upgrades the HTTP connection to WebSocket,
assigns the new session its identifier, attaches it to the space hub and runs the client lifecycle.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"hzspace/internal/app/gateway"
	"hzspace/internal/pkg/logx"
	"hzspace/internal/pkg/randx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := randx.SessionID()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := gateway.NewClient(sessionID, conn, deps.Hub, deps.Config.SendQueueSize)

		if err := deps.Hub.Attach(sessionID, client); err != nil {
			logx.Warn("WebSocket session rejected by hub.", "session_id", sessionID, "error", err.Error())
			closeMessage := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "space unavailable")
			_ = conn.WriteMessage(websocket.CloseMessage, closeMessage)
			_ = conn.Close()
			return
		}

		go client.WritePump()

		logx.Info("WebSocket connection established and session attached", "session_id", sessionID)

		client.ReadPump()
	}
}
