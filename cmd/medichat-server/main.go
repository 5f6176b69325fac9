package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"MediChat/internal/assistant"
	"MediChat/internal/backend"
	"MediChat/internal/cache"
	"MediChat/internal/config"
	"MediChat/internal/server"
	"MediChat/internal/store"
	"MediChat/internal/telemetry"
)

const version = "0.3.0"

const banner = `
    __  ___         ___ ________          __
   /  |/  /__  ____/ (_) ____/ /_  ____ _/ /_
  / /|_/ / _ \/ __  / / /   / __ \/ __ '/ __/
 / /  / /  __/ /_/ / / /___/ / / / /_/ / /_
/_/  /_/\___/\__,_/_/\____/_/ /_/\__,_/\__/
`

func main() {
	cfg := config.LoadServer()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "Reply generator (scripted|openai|ollama)")
	flag.StringVar(&cfg.PromptFile, "prompt", cfg.PromptFile, "YAML prompt file")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "History store (sqlite|memory)")
	flag.StringVar(&cfg.SQLiteDB, "sqlite-db", cfg.SQLiteDB, "SQLite DSN")
	flag.StringVar(&cfg.OllamaModel, "ollama-model", cfg.OllamaModel, "Ollama model specification (format: model:version)")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for log, trace and metric files")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	var console slog.Handler
	if cfg.LogFormat == "json" {
		console = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		console = telemetry.NewConsoleHandler(os.Stdout, level)
	}

	logger, logFile, err := telemetry.InitLogger(telemetry.LoggerOptions{
		Dir:     cfg.LogDir,
		File:    "medichat-server.log",
		Debug:   cfg.Debug,
		Console: console,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logFile.Close()

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, "medichat-server", version, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	system, err := assistant.LoadPrompt(cfg.PromptFile)
	if err != nil {
		return err
	}

	svc, err := assistant.New(assistant.Options{
		Store:        st,
		Generator:    gen,
		Cache:        cache.New(time.Hour),
		System:       system,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger,
		Tracer:       tracer,
		Meter:        meter,
	})
	if err != nil {
		return fmt.Errorf("failed to create assistant: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", gen.Name())
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s\n", cfg.Store)
	fmt.Println()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(svc, cfg.AllowedOrigin, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting medichat-server", "addr", cfg.Addr, "backend", gen.Name(), "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.Server) (store.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		st, err := store.OpenSQLite(cfg.SQLiteDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return st, nil
	case config.StoreMemory:
		return store.NewMemory(cfg.HistoryLimit), nil
	default:
		return nil, fmt.Errorf("unknown store: %s", cfg.Store)
	}
}

func newGenerator(cfg config.Server) (backend.Generator, error) {
	switch cfg.Backend {
	case config.BackendScripted:
		return backend.NewScripted(), nil
	case config.BackendOpenAI:
		return backend.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case config.BackendOllama:
		return backend.NewOllama(cfg.OllamaURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}
