package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/tictactoe/go/internal/match/gateway"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(services *Services, port string) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Register services
	mux.Handle(services.Match.Handler())
	gateway.NewWebSocketHandler(services.Gateway).RegisterRoutes(mux)

	// Add health check endpoint
	setupHealthCheck(mux, services)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, err := fmt.Fprintf(w, "OK queued=%d sessions=%d\n",
			services.Orchestrator.QueueLen(),
			services.Orchestrator.LiveSessions(),
		)
		if err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
