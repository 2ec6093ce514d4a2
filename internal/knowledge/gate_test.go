package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nirajstha/bookpilot/internal/appointments"
	"github.com/nirajstha/bookpilot/internal/identity"
)

type stubRetriever struct {
	chunks []Chunk
	err    error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	return s.chunks, s.err
}

type stubAppointmentReader struct {
	appts map[string]*appointments.Appointment
}

func (s *stubAppointmentReader) GetAppointment(ctx context.Context, id string) (*appointments.Appointment, error) {
	if appt, ok := s.appts[id]; ok {
		return appt, nil
	}
	return nil, appointments.ErrAppointmentNotFound
}

func TestFilteredRetrievePrivilegedBypassesFilter(t *testing.T) {
	retriever := &stubRetriever{chunks: []Chunk{
		{ID: "c1", AppointmentID: "a1"},
		{ID: "c2"},
	}}
	gate := NewRoleGate(retriever, &stubAppointmentReader{}, 5, nil)

	got, err := gate.FilteredRetrieve(context.Background(), "who booked what", identity.Caller{ID: "admin1", Role: identity.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFilteredRetrieveKeepsOnlyParticipantChunks(t *testing.T) {
	retriever := &stubRetriever{chunks: []Chunk{
		{ID: "mine", AppointmentID: "a1"},
		{ID: "theirs", AppointmentID: "a2"},
		{ID: "general"},
	}}
	reader := &stubAppointmentReader{appts: map[string]*appointments.Appointment{
		"a1": {ID: "a1", UserID: "u1", BookedByID: "u1"},
		"a2": {ID: "a2", UserID: "u9", BookedByID: "u9"},
	}}
	gate := NewRoleGate(retriever, reader, 5, nil)

	got, err := gate.FilteredRetrieve(context.Background(), "my appointments", identity.Caller{ID: "u1", Role: identity.RoleUser})
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	require.Contains(t, ids, "mine")
	require.Contains(t, ids, "general")
}

func TestFilteredRetrieveBookedByCounts(t *testing.T) {
	retriever := &stubRetriever{chunks: []Chunk{{ID: "c1", AppointmentID: "a1"}}}
	reader := &stubAppointmentReader{appts: map[string]*appointments.Appointment{
		"a1": {ID: "a1", UserID: "someone-else", BookedByID: "u1"},
	}}
	gate := NewRoleGate(retriever, reader, 5, nil)

	got, err := gate.FilteredRetrieve(context.Background(), "appointment", identity.Caller{ID: "u1", Role: identity.RoleUser})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "c1", got[0].ID)
}

func TestFilteredRetrieveSynthesizesNoAppointmentsChunk(t *testing.T) {
	retriever := &stubRetriever{chunks: []Chunk{
		{ID: "theirs", AppointmentID: "a2"},
	}}
	reader := &stubAppointmentReader{appts: map[string]*appointments.Appointment{
		"a2": {ID: "a2", UserID: "u9", BookedByID: "u9"},
	}}
	gate := NewRoleGate(retriever, reader, 5, nil)

	got, err := gate.FilteredRetrieve(context.Background(), "what appointments do I have", identity.Caller{ID: "u1", Role: identity.RoleUser})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, SourceSystem, got[0].Source)
	require.Equal(t, noAppointmentsContent, got[0].Content)
}

func TestFilteredRetrieveNoSyntheticChunkForUnrelatedQuery(t *testing.T) {
	retriever := &stubRetriever{chunks: nil}
	gate := NewRoleGate(retriever, &stubAppointmentReader{}, 5, nil)

	got, err := gate.FilteredRetrieve(context.Background(), "what are your opening hours", identity.Caller{ID: "u1", Role: identity.RoleUser})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFilteredRetrieveDropsStaleChunks(t *testing.T) {
	retriever := &stubRetriever{chunks: []Chunk{
		{ID: "stale", AppointmentID: "deleted"},
		{ID: "general"},
	}}
	gate := NewRoleGate(retriever, &stubAppointmentReader{}, 5, nil)

	got, err := gate.FilteredRetrieve(context.Background(), "hours", identity.Caller{ID: "u1", Role: identity.RoleUser})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "general", got[0].ID)
}

// Property check from the retrieval contract: everything a USER receives is
// either unlinked or linked to an appointment they participate in.
func TestFilteredRetrieveUserVisibilityInvariant(t *testing.T) {
	retriever := &stubRetriever{chunks: []Chunk{
		{ID: "c1", AppointmentID: "a1"},
		{ID: "c2", AppointmentID: "a2"},
		{ID: "c3", AppointmentID: "a3"},
		{ID: "c4"},
	}}
	reader := &stubAppointmentReader{appts: map[string]*appointments.Appointment{
		"a1": {ID: "a1", UserID: "u1", BookedByID: "u1"},
		"a2": {ID: "a2", UserID: "u2", BookedByID: "u2"},
		"a3": {ID: "a3", UserID: "u3", BookedByID: "u1"},
	}}
	gate := NewRoleGate(retriever, reader, 5, nil)

	got, err := gate.FilteredRetrieve(context.Background(), "appointments", identity.Caller{ID: "u1", Role: identity.RoleUser})
	require.NoError(t, err)
	for _, chunk := range got {
		if chunk.AppointmentID == "" {
			continue
		}
		appt := reader.appts[chunk.AppointmentID]
		require.NotNil(t, appt)
		require.True(t, appt.UserID == "u1" || appt.BookedByID == "u1",
			"chunk %s leaked to non-participant", chunk.ID)
	}
}
