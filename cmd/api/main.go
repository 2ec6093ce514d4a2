package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/nirajstha/bookpilot/internal/api/router"
	"github.com/nirajstha/bookpilot/internal/appointments"
	"github.com/nirajstha/bookpilot/internal/assistant"
	"github.com/nirajstha/bookpilot/internal/booking"
	appconfig "github.com/nirajstha/bookpilot/internal/config"
	"github.com/nirajstha/bookpilot/internal/identity"
	"github.com/nirajstha/bookpilot/internal/knowledge"
	"github.com/nirajstha/bookpilot/internal/observability/metrics"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bookpilot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(newRedisOptions(cfg))
	defer redisClient.Close()

	assistantMetrics := metrics.NewAssistantMetrics(nil)
	knowledgeMetrics := metrics.NewKnowledgeMetrics(nil)

	// Repositories and retrieval pipeline. The embedder is shared by index and
	// query time so stored vectors always match query vectors.
	apptRepo := appointments.NewRepository(pool)
	identitySvc := identity.NewService(pool)
	embedder := knowledge.NewOpenAIEmbedder(newEmbeddingClient(cfg), cfg.EmbeddingModel)
	store := knowledge.NewStore(pool)
	retriever := knowledge.NewRetriever(embedder, store, logger, knowledgeMetrics)
	gate := knowledge.NewRoleGate(retriever, apptRepo, cfg.RetrievalTopK, logger)
	indexer := knowledge.NewIndexer(apptRepo, embedder, store, logger, knowledgeMetrics)

	llm, closeLLM := buildLLMClient(ctx, cfg, logger)
	defer closeLLM()

	// Conversational surface: QA chain for questions, booking graph and
	// mutation tools for appointment actions, all behind the intent router.
	qa := assistant.NewQAChain(llm, gate, logger, assistantMetrics)
	tools := booking.NewTools(apptRepo, logger)
	graph := booking.NewGraph(apptRepo, tools, logger)
	awaiting := assistant.NewAwaitingStore(redisClient, cfg.AwaitingTTL)
	chatService := assistant.NewService(identitySvc, awaiting, graph, tools, qa, logger, assistantMetrics)

	assistantHandler := assistant.NewHandler(chatService, indexer, logger)
	appointmentsHandler := appointments.NewHandler(apptRepo, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AssistantHandler:    assistantHandler,
		AppointmentsHandler: appointmentsHandler,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		ChatRateLimit:       cfg.ChatRateLimit,
		ChatRateBurst:       cfg.ChatRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newRedisOptions(cfg *appconfig.Config) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// newEmbeddingClient points go-openai at the embedding endpoint, which is
// usually a local Ollama server rather than the completion provider.
func newEmbeddingClient(cfg *appconfig.Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.EmbeddingAPIKey)
	if cfg.EmbeddingBaseURL != "" {
		clientCfg.BaseURL = cfg.EmbeddingBaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// buildLLMClient returns the completion client, wrapped with the Gemini
// fallback when a Gemini key is configured. The returned func releases the
// Gemini connection on shutdown.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (assistant.LLMClient, func()) {
	primary := assistant.NewOpenAILLMClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, float32(cfg.LLMTemperature), cfg.LLMMaxTokens)
	if cfg.GeminiAPIKey == "" {
		return primary, func() {}
	}

	gemini, err := assistant.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("gemini fallback unavailable, using primary only", "error", err)
		return primary, func() {}
	}
	return assistant.NewFallbackLLMClient(primary, gemini, logger), func() {
		if err := gemini.Close(); err != nil {
			logger.Warn("failed to close gemini client", "error", err)
		}
	}
}
