package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"

	"github.com/arcware-ai/intentq/internal/backend"
	"github.com/arcware-ai/intentq/internal/backend/elastic"
	"github.com/arcware-ai/intentq/internal/backend/httpsource"
	"github.com/arcware-ai/intentq/internal/backend/sqldb"
	"github.com/arcware-ai/intentq/internal/config"
	"github.com/arcware-ai/intentq/internal/db"
	dbMemory "github.com/arcware-ai/intentq/internal/db/memory"
	dbRedis "github.com/arcware-ai/intentq/internal/db/redis"
	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/template"
	logpkg "github.com/arcware-ai/intentq/internal/logger"
	"github.com/arcware-ai/intentq/internal/metrics"
	"github.com/arcware-ai/intentq/internal/repository/embcache"
	"github.com/arcware-ai/intentq/internal/repository/templates"
	chiTransport "github.com/arcware-ai/intentq/internal/transport/chi"
	openaiTransport "github.com/arcware-ai/intentq/internal/transport/openai"
	"github.com/arcware-ai/intentq/internal/usecase/executor"
	extractoruc "github.com/arcware-ai/intentq/internal/usecase/extractor"
	healthuc "github.com/arcware-ai/intentq/internal/usecase/health"
	matcheruc "github.com/arcware-ai/intentq/internal/usecase/matcher"
	retrieveuc "github.com/arcware-ai/intentq/internal/usecase/retrieve"
	"github.com/arcware-ai/intentq/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting intentq API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("domains", len(cfg.Domains)),
		zap.Int("adapters", len(cfg.Adapters)),
	)

	// Embedding cache store
	var store db.Store
	switch cfg.Cache.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
	case "memory", "":
		store = dbMemory.NewStore()
	default:
		logger.Fatal("Unknown cache driver", zap.String("driver", cfg.Cache.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer store.Close()

	ctx, stopWatchers := context.WithCancel(context.Background())
	defer stopWatchers()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache store not ready", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	// Embedder chain — composition root
	vecName, vecCfg := cfg.ActiveVectorizer()
	provName := vecCfg.Provider
	provCfg := cfg.Embedding.Providers[provName]
	logger.Info("Vectorizer selected", zap.String("vectorizer", vecName), zap.String("provider", provName))

	queryEmbedder := buildEmbedder(provName, provCfg, vecCfg, vecCfg.QueryInstruction, store, cfg.Cache.KeyPrefix, logger)
	templateEmbedder := buildEmbedder(provName, provCfg, vecCfg, vecCfg.TemplateInstruction, store, cfg.Cache.KeyPrefix, logger)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	llm := openaiTransport.NewExtractor(&openaiTransport.ExtractorConfig{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Logger:    logger,
	})

	// Template stores, one per knowledge domain
	stores := make(map[string]*templates.Store, len(cfg.Domains))
	var reloaders []chiTransport.Reloader
	for _, dc := range cfg.Domains {
		tplStore := templates.NewStore(templates.StoreConfig{
			DomainName:   dc.Name,
			ConfigPath:   dc.ConfigPath,
			LibraryPaths: dc.TemplateLibraries,
			Embedder:     templateEmbedder,
			Logger:       logger,
		})
		if err := tplStore.Load(ctx); err != nil {
			logger.Fatal("Failed to load template domain",
				zap.String("domain", dc.Name), zap.Error(err))
		}
		logger.Info("Template domain loaded",
			zap.String("domain", dc.Name),
			zap.Int("templates", tplStore.Generation().Len()))
		if dc.WatchTemplates {
			go func(s *templates.Store) {
				if err := s.Watch(ctx); err != nil {
					logger.Error("Template watcher stopped",
						zap.String("domain", s.DomainName()), zap.Error(err))
				}
			}(tplStore)
		}
		stores[dc.Name] = tplStore
		reloaders = append(reloaders, tplStore)
	}

	// Datasource adapters
	adapters, pingers, err := buildAdapters(cfg.Adapters, logger)
	if err != nil {
		logger.Fatal("Failed to build adapters", zap.Error(err))
	}

	pools := executor.NewPools(cfg.Pools.Datasource, cfg.Pools.Embedding, cfg.Pools.LLM)
	engine := executor.NewEngine(adapters, pools)

	matcherSvc := matcheruc.New(queryEmbedder)
	extractorSvc := extractoruc.New(llm)
	retrieveSvc := retrieveuc.New(stores, matcherSvc, extractorSvc, engine, pools, retrieveuc.Settings{
		ConfidenceThreshold: cfg.Matching.ConfidenceThreshold,
		MaxTemplates:        cfg.Matching.MaxTemplates,
	})

	adapterPingers := make([]healthuc.AdapterPinger, len(pingers))
	for i, p := range pingers {
		adapterPingers[i] = p
	}
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(queryEmbedder), adapterPingers)

	server := chiTransport.NewServer(retrieveSvc, reloaders, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopWatchers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	for _, p := range pingers {
		p.close()
	}

	logger.Info("Server stopped gracefully")
}

// adapterPinger names one datasource connection for health checks and
// shutdown.
type adapterPinger struct {
	name string
	conn backend.Connection
}

func (p *adapterPinger) Name() string                   { return p.name }
func (p *adapterPinger) Ping(ctx context.Context) error { return p.conn.Ping(ctx) }
func (p *adapterPinger) close()                         { _ = p.conn.Close() }

// buildAdapters opens one connection per configured adapter and wraps it with
// its fault tolerance settings.
func buildAdapters(configs []config.AdapterConfig, logger *zap.Logger) ([]*executor.Adapter, []*adapterPinger, error) {
	var (
		adapters []*executor.Adapter
		pingers  []*adapterPinger
	)
	for _, ac := range configs {
		conn, err := openConnection(ac)
		if err != nil {
			return nil, nil, fmt.Errorf("adapter %q: %w", ac.Name, err)
		}

		adapters = append(adapters, executor.NewAdapter(conn, executor.AdapterSettings{
			Name:             ac.Name,
			Backend:          template.Backend(ac.Backend),
			Domain:           ac.Domain,
			OperationTimeout: time.Duration(ac.OperationTimeoutSec) * time.Second,
			Breaker: executor.BreakerSettings{
				FailureThreshold:   ac.FailureThreshold,
				RecoveryTimeout:    time.Duration(ac.RecoveryTimeoutSec) * time.Second,
				SuccessThreshold:   ac.SuccessThreshold,
				MaxRecoveryTimeout: time.Duration(ac.MaxRecoveryTimeoutSec) * time.Second,
				ExponentialBackoff: ac.EnableExponentialBackoff,
			},
			Retry: executor.RetrySettings{
				MaxRetries:         ac.MaxRetries,
				Delay:              time.Duration(ac.RetryDelayMS) * time.Millisecond,
				ExponentialBackoff: ac.EnableExponentialBackoff,
			},
			ThreadIsolation:  ac.EnableThreadIsolation,
			ProcessIsolation: ac.EnableProcessIsolation,
		}))
		pingers = append(pingers, &adapterPinger{name: ac.Name, conn: conn})

		logger.Info("Adapter registered",
			zap.String("adapter", ac.Name),
			zap.String("backend", ac.Backend),
			zap.String("domain", ac.Domain))
	}
	return adapters, pingers, nil
}

func openConnection(ac config.AdapterConfig) (backend.Connection, error) {
	switch template.Backend(ac.Backend) {
	case template.BackendSQL:
		driver := ac.Driver
		if driver == "" {
			driver = "sqlite3"
		}
		return sqldb.Open(driver, ac.DSN)
	case template.BackendDuckDB:
		return sqldb.Open("duckdb", ac.DSN)
	case template.BackendElasticsearch:
		return elastic.Open(ac.Addresses, ac.Username, ac.Password)
	case template.BackendHTTP:
		return httpsource.New(time.Duration(ac.OperationTimeoutSec) * time.Second), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", ac.Backend)
	}
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction
func buildEmbedder(
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	instruction string,
	store db.Store,
	keyPrefix string,
	logger *zap.Logger,
) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, keyPrefix, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
