package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/markline/markline/backend-go/internal/auth"
	"github.com/markline/markline/backend-go/internal/config"
	"github.com/markline/markline/backend-go/internal/docsource"
	"github.com/markline/markline/backend-go/internal/export"
	mw "github.com/markline/markline/backend-go/internal/middleware"
	"github.com/markline/markline/backend-go/internal/session"
	"github.com/markline/markline/backend-go/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool)

	authService := auth.NewService(st, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	provider, err := docsource.NewDirProvider(cfg.DocumentDir)
	if err != nil {
		slog.Error("create document dir", "error", err)
		os.Exit(1)
	}
	docHandler := docsource.NewHandler(st, provider)
	exportHandler := export.NewHandler(st)

	manager := session.NewManager()
	wsHandler := session.NewHandler(st, provider, authService, manager, session.Options{
		MaxRasterDim:   cfg.MaxRasterDim,
		RenderTimeout:  cfg.RenderTimeout,
		HistoryDepth:   cfg.HistoryDepth,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS)

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/documents", docHandler.List).Methods("GET")
	api.HandleFunc("/documents", docHandler.Upload).Methods("POST")
	api.HandleFunc("/documents/{id}", docHandler.Get).Methods("GET")
	api.HandleFunc("/documents/{id}", docHandler.Delete).Methods("DELETE")
	api.HandleFunc("/documents/{id}/file", docHandler.File).Methods("GET")
	api.HandleFunc("/documents/{id}/export", exportHandler.Export).Methods("GET")

	// WebSocket endpoint; token travels in the query string
	r.Handle("/ws/documents/{id}", authService.TokenFromQuery(http.HandlerFunc(wsHandler.ServeWS)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Flush every open session before the listener stops
		manager.Shutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
