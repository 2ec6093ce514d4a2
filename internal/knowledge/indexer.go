package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nirajstha/bookpilot/internal/appointments"
	"github.com/nirajstha/bookpilot/internal/identity"
	"github.com/nirajstha/bookpilot/internal/observability/metrics"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

var indexTracer = otel.Tracer("bookpilot.internal.knowledge")

// allRoles tags a chunk as visible to every role; the RoleGate still narrows
// appointment-linked chunks to their participants at retrieval time.
var allRoles = []string{identity.RoleUser, identity.RoleAdmin, identity.RoleSuperAdmin}

// recordSource supplies the records the indexer renders into chunks.
type recordSource interface {
	ListUpcoming(ctx context.Context, from time.Time) ([]appointments.Appointment, error)
	ListAvailability(ctx context.Context) ([]appointments.ServiceAvailability, error)
	GetService(ctx context.Context, id string) (*appointments.Service, error)
}

// chunkWriter is the store capability the indexer needs.
type chunkWriter interface {
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
	Insert(ctx context.Context, chunk Chunk, embeddingModel string) error
}

// Indexer renders appointment and availability records into text, embeds the
// windows, and writes chunks to the store. Runs are serialized with an
// in-process mutex: overlapping runs would double-delete and double-insert.
type Indexer struct {
	source   recordSource
	embedder Embedder
	store    chunkWriter
	splitter *Splitter
	logger   *logging.Logger
	metrics  *metrics.KnowledgeMetrics

	mu sync.Mutex
}

// NewIndexer creates an indexer over the given record source and store.
func NewIndexer(source recordSource, embedder Embedder, store chunkWriter, logger *logging.Logger, m *metrics.KnowledgeMetrics) *Indexer {
	if source == nil {
		panic("knowledge: record source cannot be nil")
	}
	if embedder == nil {
		panic("knowledge: embedder cannot be nil")
	}
	if store == nil {
		panic("knowledge: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Indexer{
		source:   source,
		embedder: embedder,
		store:    store,
		splitter: NewSplitter(),
		logger:   logger,
		metrics:  m,
	}
}

// Reindex rebuilds the document store. When force is false and the store
// already has content it is a no-op. A failure on one chunk skips that chunk
// and continues; only orchestration failures abort the run.
func (ix *Indexer) Reindex(ctx context.Context, force bool) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ctx, span := indexTracer.Start(ctx, "knowledge.reindex")
	defer span.End()
	span.SetAttributes(attribute.Bool("bookpilot.force", force))

	if !force {
		count, err := ix.store.Count(ctx)
		if err != nil {
			ix.metrics.ObserveIndexRun("failed")
			return err
		}
		if count > 0 {
			ix.metrics.ObserveIndexRun("skipped")
			ix.logger.Info("reindex skipped, store already populated", "chunks", count)
			return nil
		}
	}

	if err := ix.store.DeleteAll(ctx); err != nil {
		ix.metrics.ObserveIndexRun("failed")
		span.RecordError(err)
		return err
	}

	indexed, failed := 0, 0

	appts, err := ix.source.ListUpcoming(ctx, time.Now().UTC().Truncate(24*time.Hour))
	if err != nil {
		ix.metrics.ObserveIndexRun("failed")
		span.RecordError(err)
		return fmt.Errorf("knowledge: list appointments failed: %w", err)
	}
	serviceTitles := map[string]string{}
	for _, appt := range appts {
		title, ok := serviceTitles[appt.ServiceID]
		if !ok {
			svc, err := ix.source.GetService(ctx, appt.ServiceID)
			if err != nil {
				ix.logger.Warn("skipping appointment with unknown service", "appointment_id", appt.ID, "error", err)
				failed++
				ix.metrics.ObserveChunkFailure()
				continue
			}
			title = svc.Title
			serviceTitles[appt.ServiceID] = title
		}
		n, failures := ix.indexAppointment(ctx, appt, title)
		indexed += n
		failed += failures
	}

	avails, err := ix.source.ListAvailability(ctx)
	if err != nil {
		ix.metrics.ObserveIndexRun("failed")
		span.RecordError(err)
		return fmt.Errorf("knowledge: list availability failed: %w", err)
	}
	for _, avail := range avails {
		n, failures := ix.indexAvailability(ctx, avail)
		indexed += n
		failed += failures
	}

	ix.metrics.ObserveIndexRun("completed")
	ix.metrics.ObserveChunksIndexed(indexed)
	span.SetAttributes(attribute.Int("bookpilot.chunks_indexed", indexed))
	ix.logger.Info("reindex complete", "chunks_indexed", indexed, "chunks_failed", failed)
	return nil
}

// AddContent embeds and stores ad-hoc knowledge without a full reindex, for
// content injected directly by an admin.
func (ix *Indexer) AddContent(ctx context.Context, title, content string, accessLevel []string, metadata map[string]any) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("knowledge: content is required")
	}
	if len(accessLevel) == 0 {
		accessLevel = allRoles
	}
	fullText := content
	if strings.TrimSpace(title) != "" {
		fullText = title + "\n\n" + content
	}
	ok, failed := ix.indexText(ctx, fullText, Chunk{
		AccessLevel: accessLevel,
		Source:      SourceManual,
		Metadata:    metadata,
	})
	ix.metrics.ObserveChunksIndexed(ok)
	if ok == 0 && failed > 0 {
		return fmt.Errorf("knowledge: all %d chunks failed", failed)
	}
	return nil
}

func (ix *Indexer) indexAppointment(ctx context.Context, appt appointments.Appointment, serviceTitle string) (indexed, failed int) {
	dateStr := appt.SelectedDate.Format("2006-01-02")
	content := fmt.Sprintf(
		"Appointment for %s on %s %s by user email: %s name: %s phone: %s",
		serviceTitle, dateStr, appt.SelectedTime, appt.Email, appt.CustomerName, appt.Phone,
	)
	template := Chunk{
		AccessLevel:   allRoles,
		Source:        SourceAppointment,
		AppointmentID: appt.ID,
		ServiceID:     appt.ServiceID,
		Metadata: map[string]any{
			"appointmentId": appt.ID,
			"userId":        appt.UserID,
			"bookedById":    appt.BookedByID,
			"serviceId":     appt.ServiceID,
			"source":        SourceAppointment,
		},
	}
	return ix.indexText(ctx, content, template)
}

func (ix *Indexer) indexAvailability(ctx context.Context, avail appointments.ServiceAvailability) (indexed, failed int) {
	slots := make([]string, 0, len(avail.TimeSlots))
	for _, slot := range avail.TimeSlots {
		slots = append(slots, fmt.Sprintf("from %s to %s", slot.StartTime, slot.EndTime))
	}
	content := fmt.Sprintf("Service %q is available on %s %s.", avail.ServiceTitle, avail.WeekDay, strings.Join(slots, ", "))
	template := Chunk{
		AccessLevel: allRoles,
		Source:      SourceAvailability,
		ServiceID:   avail.ServiceID,
		Metadata: map[string]any{
			"serviceId": avail.ServiceID,
			"weekDay":   avail.WeekDay,
			"source":    SourceAvailability,
		},
	}
	return ix.indexText(ctx, content, template)
}

// indexText splits, embeds, and writes one record's content. The chunk
// template carries access tags and metadata shared by all windows.
func (ix *Indexer) indexText(ctx context.Context, content string, template Chunk) (indexed, failed int) {
	windows := ix.splitter.Split(content)
	if len(windows) == 0 {
		return 0, 0
	}

	vectors, err := ix.embedder.Embed(ctx, windows)
	if err != nil {
		ix.logger.Warn("embedding failed, skipping record", "source", template.Source, "error", err)
		ix.metrics.ObserveChunkFailure()
		return 0, len(windows)
	}

	for i, window := range windows {
		chunk := template
		chunk.ID = uuid.NewString()
		chunk.Content = window
		chunk.Embedding = vectors[i]
		if err := ix.store.Insert(ctx, chunk, ix.embedder.Model()); err != nil {
			ix.logger.Warn("chunk insert failed", "source", template.Source, "error", err)
			ix.metrics.ObserveChunkFailure()
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed
}
