package metrics

import "github.com/prometheus/client_golang/prometheus"

// AssistantMetrics exposes counters/histograms for chat turns.
type AssistantMetrics struct {
	chatTurns  *prometheus.CounterVec
	llmLatency *prometheus.HistogramVec
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookpilot",
			Subsystem: "assistant",
			Name:      "chat_turns_total",
			Help:      "Total chat turns by routed intent",
		}, []string{"intent", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookpilot",
			Subsystem: "assistant",
			Name:      "llm_latency_seconds",
			Help:      "Latency of completion model calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatTurns, m.llmLatency)
	return m
}

func (m *AssistantMetrics) ObserveTurn(intent, status string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(intent, status).Inc()
}

func (m *AssistantMetrics) ObserveLLMLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(operation).Observe(seconds)
}

// KnowledgeMetrics exposes counters for index runs and retrieval.
type KnowledgeMetrics struct {
	indexRuns     *prometheus.CounterVec
	chunksIndexed prometheus.Counter
	chunkFailures prometheus.Counter
	retrievals    prometheus.Counter
}

func NewKnowledgeMetrics(reg prometheus.Registerer) *KnowledgeMetrics {
	m := &KnowledgeMetrics{
		indexRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookpilot",
			Subsystem: "knowledge",
			Name:      "index_runs_total",
			Help:      "Total reindex runs by outcome",
		}, []string{"status"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookpilot",
			Subsystem: "knowledge",
			Name:      "chunks_indexed_total",
			Help:      "Total chunks written to the document store",
		}),
		chunkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookpilot",
			Subsystem: "knowledge",
			Name:      "chunk_failures_total",
			Help:      "Total chunks skipped due to embed or insert errors",
		}),
		retrievals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bookpilot",
			Subsystem: "knowledge",
			Name:      "retrievals_total",
			Help:      "Total vector retrievals",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.indexRuns, m.chunksIndexed, m.chunkFailures, m.retrievals)
	return m
}

func (m *KnowledgeMetrics) ObserveIndexRun(status string) {
	if m == nil {
		return
	}
	m.indexRuns.WithLabelValues(status).Inc()
}

func (m *KnowledgeMetrics) ObserveChunksIndexed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksIndexed.Add(float64(n))
}

func (m *KnowledgeMetrics) ObserveChunkFailure() {
	if m == nil {
		return
	}
	m.chunkFailures.Inc()
}

func (m *KnowledgeMetrics) ObserveRetrieval() {
	if m == nil {
		return
	}
	m.retrievals.Inc()
}
