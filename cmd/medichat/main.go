package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"MediChat/internal/chatbot"
	"MediChat/internal/chatclient"
	"MediChat/internal/config"
	"MediChat/internal/render"
	"MediChat/internal/telemetry"
	"MediChat/internal/transport"
)

const version = "0.3.0"

func main() {
	cfg := config.LoadClient()

	flag.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Chat server base URL")
	flag.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport to the server (http|ws)")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-turn timeout, 0 to wait indefinitely")
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

func run(ctx context.Context, cfg config.Client) error {
	logger, logFile, err := telemetry.InitLogger(telemetry.LoggerOptions{
		Dir:   cfg.LogDir,
		File:  "medichat.log",
		Debug: cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logFile.Close()

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, "medichat", version, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	var tr chatclient.Transport
	switch cfg.Transport {
	case config.TransportHTTP:
		tr, err = transport.NewHTTP(cfg.Endpoint, cfg.Timeout, logger)
	case config.TransportWebSocket:
		ws, wsErr := transport.NewWebSocket(cfg.Endpoint, logger)
		if wsErr == nil {
			defer ws.Close()
		}
		tr, err = ws, wsErr
	default:
		err = fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	term := render.NewTerminal(os.Stdout)
	client := chatclient.New(chatclient.Options{
		Transport: tr,
		Renderer:  term,
		Logger:    logger,
		Tracer:    tracer,
		Meter:     meter,
	})

	bot, err := chatbot.NewChatBot(chatbot.Options{
		Client:      client,
		Terminal:    term,
		In:          os.Stdin,
		Out:         os.Stdout,
		Logger:      logger,
		Endpoint:    cfg.Endpoint,
		Transport:   cfg.Transport,
		TurnTimeout: cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}

	return bot.Run(ctx)
}
