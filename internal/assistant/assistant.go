// Package assistant answers chat turns: it keeps per-session history, asks a
// generator for the next output and shapes it into a protocol.Response.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"MediChat/internal/backend"
	"MediChat/internal/cache"
	"MediChat/internal/protocol"
	"MediChat/internal/store"
)

// ErrInvalidRequest is returned when the session id or message is blank
var ErrInvalidRequest = errors.New("session_id and message are required")

// Options configures a Service. Store and Generator are required.
type Options struct {
	Store        store.Store
	Generator    backend.Generator
	Cache        *cache.Cache
	System       string
	HistoryLimit int
	Logger       *slog.Logger
	Tracer       trace.Tracer
	Meter        metric.Meter
}

// Service answers turns for any number of sessions
type Service struct {
	store        store.Store
	gen          backend.Generator
	cache        *cache.Cache
	system       string
	historyLimit int
	logger       *slog.Logger
	tracer       trace.Tracer

	generations metric.Int64Counter

	// per-session locks keep one session's history append-ordered
	locks sync.Map
}

// New creates a Service
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("medichat-server")
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter("medichat-server")
	}
	if opts.System == "" {
		opts.System = DefaultSystemPrompt
	}

	generations, err := opts.Meter.Int64Counter("medichat.generations",
		metric.WithDescription("Assistant outputs produced, by cache hit"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &Service{
		store:        opts.Store,
		gen:          opts.Generator,
		cache:        opts.Cache,
		system:       opts.System,
		historyLimit: opts.HistoryLimit,
		logger:       opts.Logger,
		tracer:       opts.Tracer,
		generations:  generations,
	}, nil
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Reply records message in the session's history and returns the assistant's
// answer. Output that parses as JSON is returned as Structured, anything else
// as Reply.
func (s *Service) Reply(ctx context.Context, sessionID, message string) (protocol.Response, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(message) == "" {
		return protocol.Response{}, ErrInvalidRequest
	}

	ctx, span := s.tracer.Start(ctx, "assistant.reply",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("backend", s.gen.Name()),
		))
	defer span.End()

	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	isNew, err := s.store.EnsureSession(ctx, sessionID, s.gen.Name())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return protocol.Response{}, err
	}
	if isNew {
		s.logger.Info("session started", "session_id", sessionID, "backend", s.gen.Name())
	}

	userMsg := store.Message{Role: backend.RoleUser, Content: message, Timestamp: time.Now()}
	if err := s.store.Append(ctx, sessionID, userMsg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return protocol.Response{}, err
	}

	history, err := s.store.History(ctx, sessionID, s.historyLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return protocol.Response{}, err
	}

	raw, cached, err := s.generate(ctx, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("generation failed", "session_id", sessionID, "error", err)
		return protocol.Response{}, err
	}
	raw = strings.TrimSpace(raw)

	s.generations.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("cached", cached),
		attribute.String("backend", s.gen.Name()),
	))
	span.SetAttributes(attribute.Bool("cached", cached))

	botMsg := store.Message{Role: backend.RoleAssistant, Content: raw, Timestamp: time.Now()}
	if err := s.store.Append(ctx, sessionID, botMsg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return protocol.Response{}, err
	}

	resp := shape(raw)
	s.logger.Debug("reply", "session_id", sessionID, "structured", resp.Structured != nil, "cached", cached)
	return resp, nil
}

func (s *Service) generate(ctx context.Context, history []store.Message) (string, bool, error) {
	var key string
	if s.cache != nil {
		key = cache.GenerateCacheKey(s.system, history)
		if out, ok := s.cache.Get(key); ok {
			return out, true, nil
		}
	}

	out, err := s.gen.Generate(ctx, s.system, history)
	if err != nil {
		return "", false, fmt.Errorf("failed to generate reply: %w", err)
	}

	if s.cache != nil {
		s.cache.Put(key, out)
	}
	return out, false, nil
}

func shape(raw string) protocol.Response {
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed != nil {
		return protocol.Response{Structured: parsed}
	}
	return protocol.Response{Reply: raw}
}
