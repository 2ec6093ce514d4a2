package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nirajstha/bookpilot/internal/appointments"
)

type stubRecordSource struct {
	appts    []appointments.Appointment
	avails   []appointments.ServiceAvailability
	services map[string]*appointments.Service
	listErr  error
}

func (s *stubRecordSource) ListUpcoming(ctx context.Context, from time.Time) ([]appointments.Appointment, error) {
	return s.appts, s.listErr
}

func (s *stubRecordSource) ListAvailability(ctx context.Context) ([]appointments.ServiceAvailability, error) {
	return s.avails, nil
}

func (s *stubRecordSource) GetService(ctx context.Context, id string) (*appointments.Service, error) {
	if svc, ok := s.services[id]; ok {
		return svc, nil
	}
	return nil, appointments.ErrServiceNotFound
}

type memChunkWriter struct {
	chunks    []Chunk
	models    []string
	count     int
	deleted   bool
	insertErr error
	countErr  error
}

func (w *memChunkWriter) Count(ctx context.Context) (int, error) {
	return w.count, w.countErr
}

func (w *memChunkWriter) DeleteAll(ctx context.Context) error {
	w.deleted = true
	w.chunks = nil
	return nil
}

func (w *memChunkWriter) Insert(ctx context.Context, chunk Chunk, model string) error {
	if w.insertErr != nil {
		return w.insertErr
	}
	w.chunks = append(w.chunks, chunk)
	w.models = append(w.models, model)
	return nil
}

func fixtureSource() *stubRecordSource {
	date := time.Now().UTC().AddDate(0, 0, 3)
	return &stubRecordSource{
		appts: []appointments.Appointment{
			{
				ID: "a1", ServiceID: "svc1", UserID: "u1", BookedByID: "u1",
				CustomerName: "Jamie", Email: "jamie@example.com", Phone: "555-0100",
				SelectedDate: date, SelectedTime: "10:00",
			},
		},
		avails: []appointments.ServiceAvailability{
			{
				ID: "av1", ServiceID: "svc1", ServiceTitle: "Haircut", WeekDay: appointments.WeekdayMonday,
				TimeSlots: []appointments.TimeSlot{
					{ID: "ts1", StartTime: "10:00", EndTime: "10:30", IsAvailable: true},
				},
			},
		},
		services: map[string]*appointments.Service{
			"svc1": {ID: "svc1", Title: "Haircut"},
		},
	}
}

func TestReindexSkipsWhenNotForcedAndPopulated(t *testing.T) {
	store := &memChunkWriter{count: 12}
	ix := NewIndexer(fixtureSource(), &stubEmbedder{}, store, nil, nil)

	require.NoError(t, ix.Reindex(context.Background(), false))
	require.False(t, store.deleted)
}

func TestReindexForceRebuilds(t *testing.T) {
	store := &memChunkWriter{count: 12}
	ix := NewIndexer(fixtureSource(), &stubEmbedder{model: "mxbai-embed-large"}, store, nil, nil)

	require.NoError(t, ix.Reindex(context.Background(), true))
	require.True(t, store.deleted)
	require.Len(t, store.chunks, 2) // one appointment chunk, one availability chunk

	var appointmentChunk, availabilityChunk *Chunk
	for i := range store.chunks {
		switch store.chunks[i].Source {
		case SourceAppointment:
			appointmentChunk = &store.chunks[i]
		case SourceAvailability:
			availabilityChunk = &store.chunks[i]
		}
	}
	require.NotNil(t, appointmentChunk)
	require.NotNil(t, availabilityChunk)

	require.Equal(t, "a1", appointmentChunk.AppointmentID)
	require.Contains(t, appointmentChunk.Content, "Appointment for Haircut")
	require.Contains(t, appointmentChunk.Content, "10:00")
	require.Equal(t, "u1", appointmentChunk.Metadata["userId"])

	require.Empty(t, availabilityChunk.AppointmentID)
	require.Contains(t, availabilityChunk.Content, `Service "Haircut" is available on MONDAY`)
	require.Contains(t, availabilityChunk.Content, "from 10:00 to 10:30")

	for _, model := range store.models {
		require.Equal(t, "mxbai-embed-large", model)
	}
}

func TestReindexDeterministicChunkCount(t *testing.T) {
	first := &memChunkWriter{}
	second := &memChunkWriter{}
	ix1 := NewIndexer(fixtureSource(), &stubEmbedder{}, first, nil, nil)
	ix2 := NewIndexer(fixtureSource(), &stubEmbedder{}, second, nil, nil)

	require.NoError(t, ix1.Reindex(context.Background(), true))
	require.NoError(t, ix2.Reindex(context.Background(), true))

	require.Equal(t, len(first.chunks), len(second.chunks))
	for i := range first.chunks {
		require.Equal(t, first.chunks[i].Source, second.chunks[i].Source)
		require.Equal(t, first.chunks[i].Content, second.chunks[i].Content)
	}
}

func TestReindexChunkFailureDoesNotAbortRun(t *testing.T) {
	store := &memChunkWriter{insertErr: errors.New("disk full")}
	ix := NewIndexer(fixtureSource(), &stubEmbedder{}, store, nil, nil)

	// Inserts fail per-chunk; the run itself still completes.
	require.NoError(t, ix.Reindex(context.Background(), true))
	require.Empty(t, store.chunks)
}

func TestReindexOrchestrationFailureAborts(t *testing.T) {
	source := fixtureSource()
	source.listErr = errors.New("db unreachable")
	ix := NewIndexer(source, &stubEmbedder{}, &memChunkWriter{}, nil, nil)

	err := ix.Reindex(context.Background(), true)
	require.Error(t, err)
}

func TestReindexSkipsAppointmentWithUnknownService(t *testing.T) {
	source := fixtureSource()
	source.appts = append(source.appts, appointments.Appointment{
		ID: "a2", ServiceID: "ghost-svc",
		SelectedDate: time.Now().AddDate(0, 0, 1), SelectedTime: "09:00",
	})
	store := &memChunkWriter{}
	ix := NewIndexer(source, &stubEmbedder{}, store, nil, nil)

	require.NoError(t, ix.Reindex(context.Background(), true))
	for _, chunk := range store.chunks {
		require.NotEqual(t, "a2", chunk.AppointmentID)
	}
}

func TestAddContent(t *testing.T) {
	store := &memChunkWriter{}
	ix := NewIndexer(fixtureSource(), &stubEmbedder{}, store, nil, nil)

	err := ix.AddContent(context.Background(), "Refund policy",
		"Appointments cancelled 24 hours in advance are fully refundable.",
		nil, map[string]any{"topic": "policy"})
	require.NoError(t, err)
	require.Len(t, store.chunks, 1)
	require.Equal(t, SourceManual, store.chunks[0].Source)
	require.True(t, strings.HasPrefix(store.chunks[0].Content, "Refund policy"))
	require.ElementsMatch(t, allRoles, store.chunks[0].AccessLevel)
}

func TestAddContentRequiresContent(t *testing.T) {
	ix := NewIndexer(fixtureSource(), &stubEmbedder{}, &memChunkWriter{}, nil, nil)
	require.Error(t, ix.AddContent(context.Background(), "title", "   ", nil, nil))
}
