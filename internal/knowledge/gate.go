package knowledge

import (
	"context"
	"errors"
	"strings"

	"github.com/nirajstha/bookpilot/internal/appointments"
	"github.com/nirajstha/bookpilot/internal/identity"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

const (
	defaultTopK = 5

	noAppointmentsContent = "You have no scheduled appointments. Please book an appointment to get started."
)

// chunkRetriever is the retrieval capability the gate wraps.
type chunkRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Chunk, error)
}

// appointmentReader resolves appointment-linked chunks to their participants.
type appointmentReader interface {
	GetAppointment(ctx context.Context, id string) (*appointments.Appointment, error)
}

// RoleGate filters retrieved chunks by caller role. Privileged callers receive
// the raw top-k; regular users only see appointment chunks they participate in.
type RoleGate struct {
	retriever chunkRetriever
	appts     appointmentReader
	logger    *logging.Logger
	topK      int
}

// NewRoleGate wraps a retriever with role-based filtering. topK <= 0 uses the default.
func NewRoleGate(retriever chunkRetriever, appts appointmentReader, topK int, logger *logging.Logger) *RoleGate {
	if retriever == nil {
		panic("knowledge: retriever cannot be nil")
	}
	if appts == nil {
		panic("knowledge: appointment reader cannot be nil")
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RoleGate{retriever: retriever, appts: appts, logger: logger, topK: topK}
}

// FilteredRetrieve retrieves top-k chunks and drops appointment-linked chunks
// the caller may not see. When an unprivileged caller asking about appointments
// ends up with none, a synthetic "no appointments" chunk is appended so the
// completion model has grounded context instead of room to hallucinate.
func (g *RoleGate) FilteredRetrieve(ctx context.Context, query string, caller identity.Caller) ([]Chunk, error) {
	chunks, err := g.retriever.Retrieve(ctx, query, g.topK)
	if err != nil {
		return nil, err
	}
	if caller.Privileged() {
		return chunks, nil
	}

	var (
		kept                []Chunk
		userHasAppointments bool
	)
	for _, chunk := range chunks {
		if chunk.AppointmentID == "" {
			kept = append(kept, chunk)
			continue
		}
		appt, err := g.appts.GetAppointment(ctx, chunk.AppointmentID)
		if err != nil {
			if errors.Is(err, appointments.ErrAppointmentNotFound) {
				// Stale chunk pointing at a deleted appointment; drop it.
				g.logger.Warn("dropping chunk for missing appointment", "appointment_id", chunk.AppointmentID)
				continue
			}
			return nil, err
		}
		if appt.UserID == caller.ID || appt.BookedByID == caller.ID {
			kept = append(kept, chunk)
			userHasAppointments = true
		}
	}

	if !userHasAppointments && mentionsAppointments(query) {
		kept = append(kept, Chunk{
			Content: noAppointmentsContent,
			Source:  SourceSystem,
		})
	}
	return kept, nil
}

func mentionsAppointments(query string) bool {
	return strings.Contains(strings.ToLower(query), "appointment")
}
