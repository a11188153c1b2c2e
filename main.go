package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ideaforge/pkg/auth"
	"github.com/ekaya-inc/ideaforge/pkg/config"
	"github.com/ekaya-inc/ideaforge/pkg/database"
	"github.com/ekaya-inc/ideaforge/pkg/handlers"
	"github.com/ekaya-inc/ideaforge/pkg/llm"
	"github.com/ekaya-inc/ideaforge/pkg/logging"
	"github.com/ekaya-inc/ideaforge/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ideaforge/pkg/mcp/auth"
	"github.com/ekaya-inc/ideaforge/pkg/mcp/tools"
	"github.com/ekaya-inc/ideaforge/pkg/middleware"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
	"github.com/ekaya-inc/ideaforge/pkg/services"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

const shutdownTimeout = 30 * time.Second

type stores struct {
	ideas       repositories.IdeaRepository
	quotas      repositories.QuotaRepository
	generations repositories.GenerationRepository
	scope       database.ScopeProvider
	close       func()
}

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting ideaforge",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL))

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		logger.Info("Artifact cache enabled", zap.String("addr", cfg.Redis.Addr()))
	}
	cache := services.NewRedisArtifactCache(redisClient, cfg.Redis.ArtifactCacheTTL, logger)

	provider, err := llm.NewClientFromConfig(ctx, &llm.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}
	llmClient := llm.NewResilientClient(provider, llm.ResilientConfig{
		MaxRetries: cfg.Generation.MaxRetries,
		Breaker: llm.CircuitBreakerConfig{
			Threshold:  cfg.Generation.BreakerThreshold,
			ResetAfter: cfg.Generation.BreakerReset,
		},
	}, logger)
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: cfg.Generation.MaxConcurrent}, logger)

	quotaService := services.NewQuotaService(st.quotas, cfg.Generation.DefaultMaxIdeas, logger)
	ideaService := services.NewIdeaService(st.ideas, quotaService, cache, logger)
	ideationService := services.NewIdeationService(st.ideas, quotaService, llmClient, services.IdeationConfig{
		IdeasPerBatch: cfg.Generation.IdeasPerBatch,
		CallTimeout:   cfg.Generation.CallTimeout,
		Temperature:   cfg.LLM.Temperature,
	}, logger)
	codegenConfig := services.DefaultCodegenConfig()
	codegenConfig.CallTimeout = cfg.Generation.CallTimeout
	codegenService := services.NewCodegenService(st.ideas, st.generations, llmClient, pool, cache, codegenConfig, logger)
	generationService := services.NewGenerationService(st.generations, logger)

	validator, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		HMACSecret:         cfg.Auth.JWTSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to create token validator: %w", err)
	}
	defer validator.Close()
	if !cfg.Auth.EnableVerification {
		logger.Warn("JWT verification disabled; tokens are parsed without signature checks")
	}

	authService := auth.NewAuthService(validator, cfg.Auth.CookieName, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	scope := database.WithUserContext(st.scope, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, llmClient.Breaker(), logger).RegisterRoutes(mux)
	handlers.NewIdeasHandler(ideationService, ideaService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewCodeHandler(codegenService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewQuotaHandler(quotaService, logger).RegisterRoutes(mux, authMiddleware, scope)
	handlers.NewGenerationsHandler(generationService, logger).RegisterRoutes(mux, authMiddleware, scope)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(mcp.ServerName, cfg.Version, logger)
		mcpServer.RegisterTools(mcp.ToolDeps{
			Ideas: &tools.IdeaToolDeps{
				Ideation: ideationService,
				Ideas:    ideaService,
				Quota:    quotaService,
				Logger:   logger,
			},
			Code: &tools.CodeToolDeps{
				Codegen: codegenService,
				Logger:  logger,
			},
			Version: cfg.Version,
			Breaker: llmClient.Breaker(),
		})
		mux.Handle("/mcp", mcpServer.Handler(mcpauth.NewMiddleware(authService, logger).RequireAuth, scope))
		logger.Info("MCP endpoint enabled", zap.String("url", cfg.BaseURL+"/mcp"))
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// openStores selects the postgres or in-memory repositories.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Database.Type == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		return &stores{
			ideas:       repositories.NewMemoryIdeaRepository(),
			quotas:      repositories.NewMemoryQuotaRepository(),
			generations: repositories.NewMemoryGenerationRepository(),
			scope:       database.NoopScopeProvider{},
			close:       func() {},
		}, nil
	}

	dbURL := cfg.Database.URL()
	logger.Info("Connecting to database", zap.String("url", logging.SanitizeConnectionString(dbURL)))

	if err := migrate(dbURL, logger); err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, &database.Config{
		URL:            dbURL,
		MaxConnections: cfg.Database.MaxConnections,
		MinConnections: cfg.Database.MaxIdleConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &stores{
		ideas:       repositories.NewIdeaRepository(),
		quotas:      repositories.NewQuotaRepository(),
		generations: repositories.NewGenerationRepository(),
		scope:       database.NewUserScopeProvider(db),
		close:       db.Close,
	}, nil
}

func migrate(dbURL string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return err
	}
	return nil
}
