package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-blogchat/internal/auth"
	"github.com/npezzotti/go-blogchat/internal/config"
	"github.com/npezzotti/go-blogchat/internal/database"
	"github.com/npezzotti/go-blogchat/internal/files"
	"github.com/npezzotti/go-blogchat/internal/preview"
	"github.com/npezzotti/go-blogchat/internal/server"
)

type GoChatApp struct {
	log            *log.Logger
	db             database.Repository
	mux            *http.Server
	cs             *server.ChatServer
	auth           *auth.TokenVerifier
	previews       *preview.Service
	allowedOrigins []string
}

func NewGoChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.Repository, previews *preview.Service, cfg *config.Config) *GoChatApp {
	s := &GoChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		auth:           auth.NewTokenVerifier(cfg.SigningKey),
		previews:       previews,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /api/session", s.session)
	mux.HandleFunc("GET /api/chat/categories", s.authMiddleware(s.listCategories))
	mux.HandleFunc("GET /api/chat/{category}/rooms", s.authMiddleware(s.listRooms))
	mux.HandleFunc("POST /api/chat/{category}/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/chat/{category}/{room_id}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("GET /api/chat/{category}/{room_id}/peers", s.authMiddleware(s.getPeers))
	mux.HandleFunc("POST /api/chat/{category}/{room_id}/send", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("GET /api/notifications/count", s.authMiddleware(s.countNotifications))
	mux.HandleFunc("GET /api/notifications/list", s.authMiddleware(s.listNotifications))
	mux.HandleFunc("POST /api/notifications/read", s.authMiddleware(s.markNotificationsRead))
	mux.HandleFunc("POST /api/notifications", s.authMiddleware(s.createNotification))
	mux.HandleFunc("GET /api/preview-url", s.authMiddleware(s.previewURL))
	mux.Handle("GET /files/{name}", files.NewHandler(logger, http.Dir(cfg.FilesDir)))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Range"}),
		handlers.ExposedHeaders([]string{"Content-Range", "Accept-Ranges", "Content-Length"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	if logger != nil {
		h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	}

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *GoChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *GoChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
