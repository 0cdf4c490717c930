package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"easychat/internal/api"
	"easychat/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

// NewMux wires the REST and websocket endpoints.
func NewMux(apiHandlers *api.API, wsServer *ws.Server) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/user/register", apiHandlers.RegisterHandler)
	mux.HandleFunc("POST /api/user/login", apiHandlers.LoginHandler)
	mux.HandleFunc("GET /api/user/me", apiHandlers.RequireAuth(apiHandlers.MeHandler))
	mux.HandleFunc("GET /api/message/conversation", apiHandlers.RequireAuth(apiHandlers.ConversationHandler))
	mux.HandleFunc("GET /api/message/group_conversation", apiHandlers.RequireAuth(apiHandlers.GroupConversationHandler))
	mux.HandleFunc("POST /api/file/upload", apiHandlers.RequireAuth(apiHandlers.UploadFileHandler))
	mux.HandleFunc("GET /api/file/{id}", apiHandlers.GetFileHandler)

	// WebSocket endpoint
	mux.HandleFunc("/ws/chat", wsServer.HandleConnections)

	return mux
}

func NewAPIServer(apiHandlers *api.API, wsServer *ws.Server, addr string) *APIServer {
	mux := NewMux(apiHandlers, wsServer)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
