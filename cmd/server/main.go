package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/brunobiangulo/docview"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON or YAML)")
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("loading env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	cfg := docview.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = docview.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}

	// Override from environment variables.
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		slog.Error("applying environment", "error", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("DOCVIEW_API_KEY")
	corsOrigins := os.Getenv("DOCVIEW_CORS_ORIGINS")

	engine, err := docview.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:        *addr,
		Handler:     newServer(engine, apiKey, corsOrigins),
		ReadTimeout: 60 * time.Second,
		// Conversion of a large legacy file can take most of a minute.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "conversion", cfg.Conversion.BaseURL != "")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// newServer builds the routed handler with the middleware chain:
// recovery -> cors -> auth -> logging -> mux.
func newServer(engine docview.Engine, apiKey, corsOrigins string) http.Handler {
	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /preview", h.handlePreview)
	mux.HandleFunc("POST /render", h.handleRender)
	mux.HandleFunc("GET /health", h.handleHealth)

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}
