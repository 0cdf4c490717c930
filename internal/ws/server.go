package ws

import (
	"log/slog"
	"net/http"

	"easychat/internal/auth"

	"github.com/gorilla/websocket"
)

// credentialVerifier validates a bearer token and returns the identity
// it carries. Implemented by auth.TokenVerifier.
type credentialVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Server owns the websocket endpoint: it gatekeeps the handshake,
// binds the verified identity to the new connection, and runs the
// connection's read loop until it closes.
type Server struct {
	verifier credentialVerifier
	registry *Registry
	router   *Router
	upgrader *websocket.Upgrader
}

func NewServer(verifier credentialVerifier, registry *Registry, router *Router) *Server {
	return &Server{
		verifier: verifier,
		registry: registry,
		router:   router,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // desktop clients send no browser Origin
			},
		},
	}
}

// HandleConnections upgrades an authenticated request into a chat
// connection. The token travels in the "token" query parameter (or
// header); later frames never carry credentials.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("token")
	}
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		slog.Warn("websocket handshake rejected", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade websocket", "error", err)
		return
	}

	conn := newConn(ws, Identity{UserID: claims.UserID, Name: claims.Username})
	s.serve(conn)
}

// serve registers the connection, pumps its frames through the router,
// and deregisters on the way out. It runs on the handler's goroutine:
// one unit of execution per connection, frames processed in receipt
// order.
func (s *Server) serve(conn *Conn) {
	identity := conn.Identity()
	if identity.UserID == 0 {
		// No identity bound; never register such a connection.
		slog.Error("connection without bound identity, closing")
		conn.Close()
		return
	}

	s.registry.Register(identity.UserID, conn)
	slog.Info("user connected",
		"user_id", identity.UserID, "user", identity.Name, "online", s.registry.Count())

	defer func() {
		// Compare-and-remove: if the user reconnected while this
		// connection was still draining, the newer entry stays.
		s.registry.CompareAndRemove(identity.UserID, conn)
		conn.Close()
		slog.Info("user disconnected",
			"user_id", identity.UserID, "user", identity.Name, "online", s.registry.Count())
	}()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("connection error", "user_id", identity.UserID, "error", err)
			}
			return
		}
		s.router.HandleFrame(conn, data)
	}
}
