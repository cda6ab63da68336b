package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"nexus-backend/internal/ai"
	"nexus-backend/internal/analytics"
	"nexus-backend/internal/assistant"
	"nexus-backend/internal/auth"
	"nexus-backend/internal/bootstrap"
	"nexus-backend/internal/config"
	"nexus-backend/internal/db"
	"nexus-backend/internal/journal"
	"nexus-backend/internal/observability"
	"nexus-backend/internal/preferences"
	"nexus-backend/internal/scheduler"
	"nexus-backend/internal/tasks"
)

const cacheGCInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// stores groups the persistence backends. Without a reachable database the
// service runs degraded on in-memory stores.
type stores struct {
	tasks     tasks.Store
	journal   journal.Store
	prefs     preferences.RemoteStore
	users     auth.Store
	analytics analytics.Sink
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stores, *sql.DB) {
	conn, err := db.Connect(ctx, cfg.DBDriver, cfg.ConnString())
	if err == nil {
		err = db.MigrateUp(conn)
	}
	if err != nil {
		logger.Warn("database unavailable, running with in-memory stores", "driver", cfg.DBDriver, "error", err)
		if conn != nil {
			_ = conn.Close()
		}
		return memoryStores(), nil
	}

	ts, err1 := tasks.NewSQLStore(conn)
	js, err2 := journal.NewSQLStore(conn)
	ps, err3 := preferences.NewSQLStore(conn)
	us, err4 := auth.NewSQLStore(conn)
	as, err5 := analytics.NewSQLSink(conn)
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		logger.Warn("sql stores unavailable, running with in-memory stores", "error", err)
		_ = conn.Close()
		return memoryStores(), nil
	}

	logger.Info("connected to database", "driver", cfg.DBDriver)
	return stores{tasks: ts, journal: js, prefs: ps, users: us, analytics: as}, conn
}

func memoryStores() stores {
	return stores{
		tasks:     tasks.NewMemoryStore(),
		journal:   journal.NewMemoryStore(),
		prefs:     preferences.NewMemoryStore(),
		users:     auth.NewMemoryStore(),
		analytics: analytics.NewMemorySink(),
	}
}

// newCompleter returns nil without an API key; the model-backed features
// then answer with their offline fallbacks.
func newCompleter(cfg *config.Config, logger *slog.Logger) ai.Completer {
	if cfg.OpenAIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, assistant features run offline")
		return nil
	}
	client, err := ai.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	if err != nil {
		logger.Warn("model client unavailable, assistant features run offline", "error", err)
		return nil
	}
	return client
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, conn := openStores(ctx, cfg, logger)
	if conn != nil {
		defer conn.Close()
	}

	cache, err := preferences.OpenBadgerCache(cfg.AssetCacheDir, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	events := analytics.NewRecorder(st.analytics)
	model := ai.NewClient(newCompleter(cfg, logger), ai.Options{Location: loc, Metrics: metrics})

	authSvc := auth.NewService(st.users, []byte(cfg.JWTSecret), cfg.SessionTTL)
	taskSvc := tasks.NewService(st.tasks, tasks.Options{Location: loc, Events: events, Metrics: metrics})
	prefSvc := preferences.NewService(st.prefs, cache, model)
	journalSvc := journal.NewService(st.journal, journal.Options{
		Location:  loc,
		Analyzer:  model,
		Languages: prefSvc,
		Events:    events,
	})
	transcripts := assistant.NewTranscripts(time.Now)
	assistantSvc := assistant.NewService(taskSvc, prefSvc, model, transcripts, events)
	bootstrapSvc := bootstrap.NewService(taskSvc, journalSvc, prefSvc)

	taskEvents, stopTaskEvents := authSvc.Subscribe()
	defer stopTaskEvents()
	go taskSvc.ForgetOnSignOut(ctx, taskEvents)

	chatEvents, stopChatEvents := authSvc.Subscribe()
	defer stopChatEvents()
	go transcripts.ResetOnSignOut(ctx, chatEvents)

	sched := scheduler.New(taskSvc, scheduler.LogNotifier{}, nil, metrics)
	if err := sched.Register(ctx); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	go collectCacheGarbage(ctx, cache, logger)

	mux := routes(handlers{
		auth:       authSvc,
		tasks:      taskSvc,
		journal:    journalSvc,
		prefs:      prefSvc,
		assistant:  assistantSvc,
		bootstrap:  bootstrapSvc,
		events:     events,
		limiter:    assistant.NewLimiter(cfg.AssistantRatePerMin, cfg.AssistantBurst),
		metrics:    observability.Handler(reg),
		middleware: auth.NewMiddleware(authSvc),
	})

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type", "Authorization", "Accept-Language", "Idempotency-Key",
			"X-Platform", "X-App-Version", "X-Session-Id", "X-Device-Locale", "X-Source-Event-Key",
		},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           c.Handler(analytics.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.HTTPAddr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func collectCacheGarbage(ctx context.Context, cache *preferences.BadgerCache, logger *slog.Logger) {
	ticker := time.NewTicker(cacheGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cache.RunGC(); err != nil {
				logger.Warn("asset cache gc failed", "error", err)
			}
		}
	}
}
