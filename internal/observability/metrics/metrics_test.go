package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func TestAssistantMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssistantMetrics(reg)

	m.ObserveTurn("booking", "ok")
	m.ObserveTurn("booking", "ok")
	m.ObserveTurn("question", "error")
	m.ObserveLLMLatency("rewrite", 0.25)

	families := gather(t, reg)
	turns, ok := families["bookpilot_assistant_chat_turns_total"]
	if !ok {
		t.Fatal("chat turns metric not registered")
	}
	var total float64
	for _, metric := range turns.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	if total != 3 {
		t.Fatalf("expected 3 turns observed, got %v", total)
	}
	if _, ok := families["bookpilot_assistant_llm_latency_seconds"]; !ok {
		t.Fatal("llm latency metric not registered")
	}
}

func TestKnowledgeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewKnowledgeMetrics(reg)

	m.ObserveIndexRun("completed")
	m.ObserveChunksIndexed(7)
	m.ObserveChunksIndexed(0) // ignored
	m.ObserveChunkFailure()
	m.ObserveRetrieval()

	families := gather(t, reg)
	chunks := families["bookpilot_knowledge_chunks_indexed_total"]
	if chunks == nil || chunks.GetMetric()[0].GetCounter().GetValue() != 7 {
		t.Fatalf("expected 7 chunks indexed, got %v", chunks)
	}
	failures := families["bookpilot_knowledge_chunk_failures_total"]
	if failures == nil || failures.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected one chunk failure")
	}
}

func TestNilReceiversAreSafe(t *testing.T) {
	var a *AssistantMetrics
	var k *KnowledgeMetrics
	a.ObserveTurn("x", "y")
	a.ObserveLLMLatency("x", 1)
	k.ObserveIndexRun("x")
	k.ObserveChunksIndexed(1)
	k.ObserveChunkFailure()
	k.ObserveRetrieval()
}
