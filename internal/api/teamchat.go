package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/teamchat-dev/teamchat/internal/auth"
	"github.com/teamchat-dev/teamchat/internal/config"
	"github.com/teamchat-dev/teamchat/internal/database"
	"github.com/teamchat-dev/teamchat/internal/server"
	"github.com/teamchat-dev/teamchat/internal/stats"
	"github.com/teris-io/shortid"
)

type TeamChatApp struct {
	log            *log.Logger
	db             database.TeamChatRepository
	srv            *http.Server
	cs             *server.ChatServer
	tokens         *auth.TokenService
	stats          stats.StatsProvider
	validate       *validator.Validate
	allowedOrigins []string
	// generateChannelId is a func field so tests can pin channel ids
	generateChannelId func() (string, error)
}

func NewTeamChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.TeamChatRepository,
	tokens *auth.TokenService, sp stats.StatsProvider, cfg *config.Config) *TeamChatApp {
	s := &TeamChatApp{
		log:               logger,
		db:                db,
		cs:                cs,
		tokens:            tokens,
		stats:             sp,
		validate:          validator.New(),
		allowedOrigins:    cfg.AllowedOrigins,
		generateChannelId: shortid.Generate,
	}

	mux.HandleFunc("POST /auth/signup", s.signup)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.Handle("GET /auth/me", s.authMiddleware(s.me))
	mux.HandleFunc("GET /channels", s.listChannels)
	mux.Handle("POST /channels", s.authMiddleware(s.createChannel))
	mux.Handle("POST /channels/{id}/join", s.authMiddleware(s.joinChannel))
	mux.Handle("POST /channels/{id}/leave", s.authMiddleware(s.leaveChannel))
	mux.HandleFunc("GET /channels/{id}/messages", s.getMessages)
	mux.Handle("DELETE /messages/{id}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("GET /users", s.getUsers)
	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.srv = srv
	return s
}

func (s *TeamChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *TeamChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
