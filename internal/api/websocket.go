package api

import (
	"net/http"

	"cafeplease/internal/model"
	"cafeplease/internal/ws"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (d Dependencies) wsHandler(w http.ResponseWriter, r *http.Request) {
	if d.Hub == nil {
		d.Log.Error("WebSocket hub not initialized")
		http.Error(w, "WebSocket hub not initialized", http.StatusInternalServerError)
		return
	}

	p, ok, err := d.JWT.FromRequest(r)
	if err != nil || !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	// Team comes from the roster, never from the client.
	users, err := d.Desk.Users(r.Context())
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	user, known := model.UserIndex(users)[p.UserID]
	if !known {
		http.Error(w, "unknown user", http.StatusForbidden)
		return
	}
	who := ws.Identity{UserID: user.ID, Role: user.Role, Team: user.Team()}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Log.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	wsConn := ws.NewConn(conn, d.Hub, who)
	d.Hub.Register(wsConn)
	d.Log.Info("WebSocket connected",
		zap.String("conn", wsConn.ID()),
		zap.String("user_id", who.UserID),
		zap.String("role", string(who.Role)),
	)

	go wsConn.WritePump()
	go wsConn.ReadPump()
}
