package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nirajstha/bookpilot/internal/appointments"
	"github.com/nirajstha/bookpilot/internal/booking"
	"github.com/nirajstha/bookpilot/internal/identity"
	"github.com/nirajstha/bookpilot/internal/observability/metrics"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

var routerTracer = otel.Tracer("bookpilot.internal.assistant")

var ErrUserIDRequired = errors.New("assistant: user id is required")

// Routed intents, used for logging and metrics labels.
const (
	intentCancelFollowUp = "cancel_follow_up"
	intentCancel         = "cancel"
	intentReschedule     = "reschedule"
	intentBooking        = "booking"
	intentQuestion       = "question"
)

// ChatRequest is one inbound chat turn: the running transcript plus the caller.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	UserID   string        `json:"userId"`
}

// ChatResponse is the assistant's reply. Data carries a mutated appointment
// when a tool ran; MissingFields names the slots the caller still owes.
type ChatResponse struct {
	Answer        string   `json:"answer"`
	Data          any      `json:"data,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
	Sources       []Source `json:"sources,omitempty"`
}

// callerResolver resolves a user id to a role-bearing caller.
type callerResolver interface {
	Resolve(ctx context.Context, userID string) (*identity.Caller, error)
}

// bookingGraph runs the slot-filling pipeline to a terminal state.
type bookingGraph interface {
	Run(ctx context.Context, state booking.State) booking.State
}

// mutationTools are the direct appointment mutations the router can trigger.
type mutationTools interface {
	Cancel(ctx context.Context, id string) (*appointments.Appointment, error)
	Reschedule(ctx context.Context, id string, req booking.RescheduleRequest) (*appointments.Appointment, error)
}

// answerer handles general questions via the QA chain.
type answerer interface {
	Answer(ctx context.Context, history []ChatMessage, question string, caller identity.Caller) (string, []Source, error)
}

// awaitingFlags is the pending-cancellation register.
type awaitingFlags interface {
	MarkAwaitingCancellation(ctx context.Context, userID string) error
	ConsumeAwaitingCancellation(ctx context.Context, userID string) (bool, error)
}

// Service is the intent router. Each turn is matched in order: pending
// cancellation follow-up, cancellation, reschedule, booking action, and
// finally the QA chain. Only the first three branches mutate anything.
type Service struct {
	identity callerResolver
	awaiting awaitingFlags
	graph    bookingGraph
	tools    mutationTools
	qa       answerer
	logger   *logging.Logger
	metrics  *metrics.AssistantMetrics
}

// NewService wires the intent router.
func NewService(
	resolver callerResolver,
	awaiting awaitingFlags,
	graph bookingGraph,
	tools mutationTools,
	qa answerer,
	logger *logging.Logger,
	m *metrics.AssistantMetrics,
) *Service {
	if resolver == nil {
		panic("assistant: caller resolver cannot be nil")
	}
	if awaiting == nil {
		panic("assistant: awaiting store cannot be nil")
	}
	if graph == nil {
		panic("assistant: booking graph cannot be nil")
	}
	if tools == nil {
		panic("assistant: mutation tools cannot be nil")
	}
	if qa == nil {
		panic("assistant: qa chain cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		identity: resolver,
		awaiting: awaiting,
		graph:    graph,
		tools:    tools,
		qa:       qa,
		logger:   logger,
		metrics:  m,
	}
}

// HandleMessage routes one chat turn and returns the assistant's reply.
func (s *Service) HandleMessage(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUserIDRequired
	}

	ctx, span := routerTracer.Start(ctx, "assistant.route")
	defer span.End()

	caller, err := s.identity.Resolve(ctx, req.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	message := "Hello!"
	var history []ChatMessage
	if len(req.Messages) > 0 {
		if content := req.Messages[len(req.Messages)-1].Content; content != "" {
			message = content
		}
		history = req.Messages[:len(req.Messages)-1]
	}
	span.SetAttributes(attribute.String("bookpilot.role", caller.Role))

	// 1. Pending cancellation: the caller was asked for an id and the message
	// is nothing but an id-shaped token. The flag is consumed atomically, so
	// only one concurrent turn can claim it.
	if isOpaqueID(message) {
		pending, err := s.awaiting.ConsumeAwaitingCancellation(ctx, caller.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if pending {
			return s.cancelByID(ctx, strings.TrimSpace(message), intentCancelFollowUp)
		}
	}

	lower := strings.ToLower(message)

	// 2. Cancellation intent.
	if strings.Contains(lower, "cancel") {
		id := extractAppointmentID(message)
		if id == "" {
			if err := s.awaiting.MarkAwaitingCancellation(ctx, caller.ID); err != nil {
				span.RecordError(err)
				return nil, err
			}
			s.metrics.ObserveTurn(intentCancel, "missing_fields")
			return &ChatResponse{
				Answer:        "Please provide the appointment ID to cancel.",
				MissingFields: []string{"appointmentId"},
			}, nil
		}
		return s.cancelByID(ctx, id, intentCancel)
	}

	// 3. Reschedule intent: needs an explicit appointment id; only the
	// provided fields are changed.
	if strings.Contains(lower, "reschedule") {
		id := extractAppointmentID(message)
		if id == "" {
			s.metrics.ObserveTurn(intentReschedule, "missing_fields")
			return &ChatResponse{
				Answer:        "Please provide: appointmentId",
				MissingFields: []string{"appointmentId"},
			}, nil
		}
		fields := extractFields(message)
		updated, err := s.tools.Reschedule(ctx, id, booking.RescheduleRequest{
			CustomerName: fields.CustomerName,
			Email:        fields.Email,
			Phone:        fields.Phone,
			ServiceID:    fields.ServiceID,
			SelectedDate: fields.SelectedDate,
			SelectedTime: fields.SelectedTime,
		})
		if err != nil {
			if errors.Is(err, appointments.ErrAppointmentNotFound) {
				s.metrics.ObserveTurn(intentReschedule, "not_found")
				return &ChatResponse{Answer: "Appointment not found. Please check the ID and try again."}, nil
			}
			span.RecordError(err)
			s.metrics.ObserveTurn(intentReschedule, "error")
			return nil, err
		}
		s.metrics.ObserveTurn(intentReschedule, "ok")
		return &ChatResponse{Answer: "Appointment rescheduled successfully!", Data: updated}, nil
	}

	// 4. Booking action.
	if isAppointmentAction(message) {
		return s.runBooking(ctx, message, *caller)
	}

	// 5. General question.
	answer, sources, err := s.qa.Answer(ctx, history, message, *caller)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveTurn(intentQuestion, "error")
		return nil, err
	}
	s.metrics.ObserveTurn(intentQuestion, "ok")
	return &ChatResponse{Answer: answer, Sources: sources}, nil
}

func (s *Service) runBooking(ctx context.Context, message string, caller identity.Caller) (*ChatResponse, error) {
	// Privileged callers may book on behalf of another user.
	beneficiary := caller.ID
	if caller.Privileged() {
		if target := extractTargetUser(message); target != "" {
			beneficiary = target
		}
	}

	fields := extractFields(message)
	result := s.graph.Run(ctx, booking.State{
		UserID:       beneficiary,
		ServiceID:    fields.ServiceID,
		SelectedDate: fields.SelectedDate,
		SelectedTime: fields.SelectedTime,
		CustomerName: fields.CustomerName,
		Email:        fields.Email,
		Phone:        fields.Phone,
		BookedByID:   caller.ID,
		CreatedByID:  caller.ID,
	})

	switch {
	case len(result.MissingFields) > 0:
		s.metrics.ObserveTurn(intentBooking, "missing_fields")
		return &ChatResponse{
			Answer:        "Please provide: " + strings.Join(result.MissingFields, ", "),
			MissingFields: result.MissingFields,
		}, nil
	case result.Confirmed:
		s.metrics.ObserveTurn(intentBooking, "ok")
		answer := "Your appointment has been booked successfully!"
		if caller.Privileged() {
			answer = "Appointment booked successfully!"
		}
		return &ChatResponse{Answer: answer, Data: result.Appointment}, nil
	default:
		s.logger.Warn("booking attempt failed", "user_id", caller.ID, "error", result.Error)
		s.metrics.ObserveTurn(intentBooking, "error")
		return &ChatResponse{Answer: result.Error}, nil
	}
}

func (s *Service) cancelByID(ctx context.Context, id, intent string) (*ChatResponse, error) {
	cancelled, err := s.tools.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, appointments.ErrAppointmentNotFound) {
			s.metrics.ObserveTurn(intent, "not_found")
			return &ChatResponse{Answer: "Appointment not found. Please check the ID and try again."}, nil
		}
		s.metrics.ObserveTurn(intent, "error")
		return nil, err
	}
	s.metrics.ObserveTurn(intent, "ok")
	if intent == intentCancelFollowUp {
		return &ChatResponse{
			Answer: fmt.Sprintf("Appointment (ID: **%s**) has been **successfully canceled**. Let me know if you need further assistance!", id),
			Data:   cancelled,
		}, nil
	}
	return &ChatResponse{Answer: "Appointment cancelled successfully!", Data: cancelled}, nil
}
