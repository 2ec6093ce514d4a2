package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nirajstha/bookpilot/internal/assistant"
	appconfig "github.com/nirajstha/bookpilot/internal/config"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

func TestNewRedisOptions(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "localhost:6379", RedisPassword: "secret"}

	opts := newRedisOptions(cfg)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Nil(t, opts.TLSConfig)

	cfg.RedisTLS = true
	require.NotNil(t, newRedisOptions(cfg).TLSConfig)
}

func TestBuildLLMClientWithoutGeminiKey(t *testing.T) {
	cfg := &appconfig.Config{LLMModel: "deepseek/deepseek-r1:free"}
	logger := logging.New("error")

	llm, closeLLM := buildLLMClient(context.Background(), cfg, logger)
	defer closeLLM()

	_, ok := llm.(*assistant.OpenAILLMClient)
	require.True(t, ok, "expected plain completion client when no gemini key is set")
}

func TestBuildLLMClientWithGeminiKey(t *testing.T) {
	cfg := &appconfig.Config{
		LLMModel:     "deepseek/deepseek-r1:free",
		GeminiAPIKey: "test-key",
		GeminiModel:  "gemini-2.5-flash",
	}
	logger := logging.New("error")

	llm, closeLLM := buildLLMClient(context.Background(), cfg, logger)
	defer closeLLM()

	_, ok := llm.(*assistant.FallbackLLMClient)
	require.True(t, ok, "expected fallback wrapper when a gemini key is set")
}
