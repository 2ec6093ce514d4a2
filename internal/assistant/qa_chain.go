package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nirajstha/bookpilot/internal/identity"
	"github.com/nirajstha/bookpilot/internal/knowledge"
	"github.com/nirajstha/bookpilot/internal/observability/metrics"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

var qaTracer = otel.Tracer("bookpilot.internal.assistant")

const sourcePreviewLength = 200

// Source is the citation view of a retrieved chunk returned to the client.
type Source struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// filteredRetriever is the role-gated retrieval surface the chain uses.
type filteredRetriever interface {
	FilteredRetrieve(ctx context.Context, query string, caller identity.Caller) ([]knowledge.Chunk, error)
}

// QAChain answers general questions in three steps: rewrite the question into
// standalone form using the chat history, retrieve role-filtered context, and
// generate an answer grounded strictly in that context.
type QAChain struct {
	llm       LLMClient
	retriever filteredRetriever
	logger    *logging.Logger
	metrics   *metrics.AssistantMetrics
}

// NewQAChain builds the conversational QA chain.
func NewQAChain(llm LLMClient, retriever filteredRetriever, logger *logging.Logger, m *metrics.AssistantMetrics) *QAChain {
	if llm == nil {
		panic("assistant: llm client cannot be nil")
	}
	if retriever == nil {
		panic("assistant: retriever cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &QAChain{llm: llm, retriever: retriever, logger: logger, metrics: m}
}

// Answer runs the full rewrite-retrieve-answer pipeline for one question.
func (c *QAChain) Answer(ctx context.Context, history []ChatMessage, question string, caller identity.Caller) (string, []Source, error) {
	ctx, span := qaTracer.Start(ctx, "assistant.qa")
	defer span.End()
	span.SetAttributes(attribute.Int("bookpilot.history_len", len(history)))

	standalone, err := c.rewriteQuestion(ctx, history, question)
	if err != nil {
		span.RecordError(err)
		return "", nil, err
	}

	chunks, err := c.retriever.FilteredRetrieve(ctx, standalone, caller)
	if err != nil {
		span.RecordError(err)
		return "", nil, err
	}

	answer, err := c.generateAnswer(ctx, history, question, chunks)
	if err != nil {
		span.RecordError(err)
		return "", nil, err
	}
	return answer, sourcesFromChunks(chunks), nil
}

// rewriteQuestion folds the chat history into a standalone question. With no
// history there is nothing to resolve and the question passes through as is.
func (c *QAChain) rewriteQuestion(ctx context.Context, history []ChatMessage, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	start := time.Now()
	resp, err := c.llm.Complete(ctx, LLMRequest{
		System:   []string{contextualizePrompt},
		Messages: append(append([]ChatMessage{}, history...), ChatMessage{Role: ChatRoleUser, Content: question}),
	})
	c.metrics.ObserveLLMLatency("rewrite", time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("assistant: question rewrite failed: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return question, nil
	}
	return resp.Text, nil
}

func (c *QAChain) generateAnswer(ctx context.Context, history []ChatMessage, question string, chunks []knowledge.Chunk) (string, error) {
	contents := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		contents = append(contents, chunk.Content)
	}
	system := fmt.Sprintf(groundedAnswerPrompt, strings.Join(contents, "\n\n"))

	start := time.Now()
	resp, err := c.llm.Complete(ctx, LLMRequest{
		System:   []string{system},
		Messages: append(append([]ChatMessage{}, history...), ChatMessage{Role: ChatRoleUser, Content: question}),
	})
	c.metrics.ObserveLLMLatency("answer", time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("assistant: answer generation failed: %w", err)
	}
	return resp.Text, nil
}

func sourcesFromChunks(chunks []knowledge.Chunk) []Source {
	sources := make([]Source, 0, len(chunks))
	for _, chunk := range chunks {
		tag := chunk.Source
		if tag == "" {
			tag = knowledge.SourceSystem
		}
		sources = append(sources, Source{Content: previewContent(chunk.Content), Source: tag})
	}
	return sources
}

func previewContent(content string) string {
	runes := []rune(content)
	if len(runes) <= sourcePreviewLength {
		return content
	}
	return string(runes[:sourcePreviewLength]) + "..."
}
