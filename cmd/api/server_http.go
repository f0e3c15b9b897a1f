package main

import (
	"context"
	"net/http"
	"time"

	config "github.com/NordCoder/KUSeek/internal/config/api"
	"github.com/NordCoder/KUSeek/internal/obs"
	"github.com/rs/cors"
	"go.uber.org/zap"

	authsvc "github.com/NordCoder/KUSeek/internal/services/api/auth"
)

type healthCheck = func(context.Context) error

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, auth *authsvc.Server, health map[string]healthCheck) *http.Server {
	mux := http.NewServeMux()
	auth.Register(mux)
	mux.Handle("GET /metrics", obs.MetricsHandler())
	mux.Handle("GET /healthz", obs.HealthHandler(health))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{authsvc.AccessTokenHeader, "X-CSRFToken", "Content-Type"},
		AllowCredentials: true,
	})

	handler := obs.HTTPMiddleware("kuseek-api")(corsHandler.Handler(mux))

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}
