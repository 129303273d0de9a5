package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/chatlas-ai/chatlas/internal/api/handlers"
	appMiddleware "github.com/chatlas-ai/chatlas/internal/api/middlewares"
	"github.com/chatlas-ai/chatlas/internal/config"
	"github.com/chatlas-ai/chatlas/internal/core"
	ingestor "github.com/chatlas-ai/chatlas/internal/core/ingestion_engine"
	"github.com/chatlas-ai/chatlas/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, extractor core.TextExtractor, ing *ingestor.DocumentIngestor, chat *services.ChatService, log *zap.Logger) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret, log)
	botHandler := handlers.NewBotHandler(db, log)
	docHandler := handlers.NewDocumentHandler(db, obj, extractor, ing, cfg, log)
	chatHandler := handlers.NewChatHandler(chat, log)
	settingsHandler := handlers.NewSettingsHandler(db, log)
	convHandler := handlers.NewConversationHandler(db, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		// The widget is embedded on customer sites, so chat must accept
		// any origin; credentials stay off for that reason.
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		api.Group(func(public chi.Router) {
			public.Use(appMiddleware.OptionalJWT(cfg.JWTSecret))
			public.Post("/chat/{botID}", chatHandler.Stream)
		})

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/bots", botHandler.Create)
			protected.Get("/bots", botHandler.List)
			protected.Get("/bots/{botID}", botHandler.Get)
			protected.Put("/bots/{botID}", botHandler.Update)
			protected.Delete("/bots/{botID}", botHandler.Delete)

			protected.Post("/bots/{botID}/documents", docHandler.Upload)
			protected.Get("/bots/{botID}/documents", docHandler.List)
			protected.Delete("/documents/{documentID}", docHandler.Delete)

			protected.Get("/bots/{botID}/conversations", convHandler.ListByBot)
			protected.Get("/conversations/{conversationID}/messages", convHandler.Messages)

			protected.Get("/settings/ai", settingsHandler.GetAISettings)
			protected.Put("/settings/ai", settingsHandler.UpdateAISettings)
		})
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
