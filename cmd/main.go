package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/deepclaude/deepclaude/internal/api/v1/handlers"
	chathandlers "github.com/deepclaude/deepclaude/internal/api/v1/handlers/chat"
	wshandlers "github.com/deepclaude/deepclaude/internal/api/v1/handlers/websocket"
	"github.com/deepclaude/deepclaude/internal/api/v1/middleware"
	"github.com/deepclaude/deepclaude/internal/config"
	"github.com/deepclaude/deepclaude/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using process environment")
	}
	configureLogging()

	svcs, err := services.InitializeServices()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svcs.Close()

	r := setupRouter(svcs)

	addr := config.GetServerAddr()
	log.Info().Str("addr", addr).Msg("DeepClaude relay listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func configureLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func setupRouter(svcs *services.Services) *mux.Router {
	relayService := svcs.GetDeepClaudeService()

	r := mux.NewRouter()
	r.HandleFunc("/health", handlers.HandleHealth).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(middleware.RequireAuth())
	api.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		chathandlers.HandleChatCompletions(relayService, w, r)
	}).Methods("POST")
	api.HandleFunc("/chat/ws", func(w http.ResponseWriter, r *http.Request) {
		wshandlers.HandleChatStream(relayService, w, r)
	})

	return r
}
