package booking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nirajstha/bookpilot/internal/appointments"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

var graphTracer = otel.Tracer("bookpilot.internal.booking")

// User-facing terminal messages for availability failures.
const (
	msgAvailabilityNotFound = "Service or availability not found for the selected day."
	msgSlotNotAvailable     = "Requested time slot is not available."
	msgFullyBooked          = "Slot is fully booked."
	msgBookingFailed        = "Booking failed. Please try again later."
)

// scheduleReader is the read surface the availability check needs.
type scheduleReader interface {
	GetService(ctx context.Context, id string) (*appointments.Service, error)
	AvailabilityForWeekday(ctx context.Context, serviceID, weekday string) (*appointments.ServiceAvailability, error)
	CountAppointmentsAt(ctx context.Context, serviceID string, date time.Time, timeOfDay string) (int, error)
}

// booker submits the validated booking.
type booker interface {
	Book(ctx context.Context, req BookRequest) (*appointments.Appointment, error)
}

// Graph is the slot-filling booking pipeline: collectService, collectDateTime,
// checkAvailability, confirmDetails, bookAppointment, with handleError as the
// terminal step for failures. Every step is total: failures are recorded in
// State.Error, missing inputs in State.MissingFields, and the run halts there.
type Graph struct {
	schedules scheduleReader
	tools     booker
	logger    *logging.Logger
}

// NewGraph builds the booking graph over the schedule reader and booking tool.
func NewGraph(schedules scheduleReader, tools booker, logger *logging.Logger) *Graph {
	if schedules == nil {
		panic("booking: schedule reader cannot be nil")
	}
	if tools == nil {
		panic("booking: booking tool cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Graph{schedules: schedules, tools: tools, logger: logger}
}

// Run executes the pipeline over the given state and returns the terminal
// state. Re-invoke with the accumulated state once missing fields are filled.
func (g *Graph) Run(ctx context.Context, state State) State {
	ctx, span := graphTracer.Start(ctx, "booking.graph")
	defer span.End()

	steps := []func(ctx context.Context, s State) State{
		g.collectService,
		g.collectDateTime,
		g.checkAvailability,
		g.confirmDetails,
		g.bookAppointment,
	}
	for _, step := range steps {
		state = step(ctx, state)
		if state.Error != "" {
			state = g.handleError(ctx, state)
			break
		}
		if len(state.MissingFields) > 0 {
			break
		}
	}

	span.SetAttributes(
		attribute.Bool("bookpilot.confirmed", state.Confirmed),
		attribute.Int("bookpilot.missing_fields", len(state.MissingFields)),
	)
	return state
}

func (g *Graph) collectService(ctx context.Context, s State) State {
	// Clear any stale list from a previous run so resumption works.
	s.MissingFields = nil
	if s.ServiceID == "" {
		s.MissingFields = []string{"serviceId"}
	}
	return s
}

func (g *Graph) collectDateTime(ctx context.Context, s State) State {
	var missing []string
	if s.SelectedDate == "" {
		missing = append(missing, "selectedDate")
	}
	if s.SelectedTime == "" {
		missing = append(missing, "selectedTime")
	}
	s.MissingFields = missing
	return s
}

// checkAvailability validates the requested slot against the service's stored
// schedule and capacity. Required fields are re-checked here so the step stays
// safe if invoked with a state that skipped the collection steps.
func (g *Graph) checkAvailability(ctx context.Context, s State) State {
	var missing []string
	if s.ServiceID == "" {
		missing = append(missing, "serviceId")
	}
	if s.SelectedDate == "" {
		missing = append(missing, "selectedDate")
	}
	if s.SelectedTime == "" {
		missing = append(missing, "selectedTime")
	}
	if len(missing) > 0 {
		s.MissingFields = missing
		return s
	}

	date, err := normalizeDate(s.SelectedDate)
	if err != nil {
		s.Error = err.Error()
		return s
	}

	avail, err := g.schedules.AvailabilityForWeekday(ctx, s.ServiceID, appointments.WeekdayFromTime(date))
	if err != nil {
		if errors.Is(err, appointments.ErrAvailabilityNotFound) || errors.Is(err, appointments.ErrServiceNotFound) {
			s.Error = msgAvailabilityNotFound
			return s
		}
		g.logger.Error("availability lookup failed", "service_id", s.ServiceID, "error", err)
		s.Error = msgBookingFailed
		return s
	}

	var slot *appointments.TimeSlot
	for i := range avail.TimeSlots {
		if avail.TimeSlots[i].StartTime == s.SelectedTime && avail.TimeSlots[i].IsAvailable {
			slot = &avail.TimeSlots[i]
			break
		}
	}
	if slot == nil {
		s.Error = msgSlotNotAvailable
		return s
	}

	svc, err := g.schedules.GetService(ctx, s.ServiceID)
	if err != nil {
		if errors.Is(err, appointments.ErrServiceNotFound) {
			s.Error = msgAvailabilityNotFound
			return s
		}
		g.logger.Error("service lookup failed", "service_id", s.ServiceID, "error", err)
		s.Error = msgBookingFailed
		return s
	}
	if svc.MaxBookings != nil {
		count, err := g.schedules.CountAppointmentsAt(ctx, s.ServiceID, date, s.SelectedTime)
		if err != nil {
			g.logger.Error("capacity count failed", "service_id", s.ServiceID, "error", err)
			s.Error = msgBookingFailed
			return s
		}
		if count >= *svc.MaxBookings {
			s.Error = msgFullyBooked
			return s
		}
	}
	return s
}

func (g *Graph) confirmDetails(ctx context.Context, s State) State {
	// Real confirmation UX lives outside the graph; the flag just has to be
	// explicit so callers can branch on it.
	if !s.Confirmed {
		s.Confirmed = false
	}
	return s
}

func (g *Graph) bookAppointment(ctx context.Context, s State) State {
	created, err := g.tools.Book(ctx, BookRequest{
		UserID:       s.UserID,
		ServiceID:    s.ServiceID,
		SelectedDate: s.SelectedDate,
		SelectedTime: s.SelectedTime,
		CustomerName: s.CustomerName,
		Email:        s.Email,
		Phone:        s.Phone,
		Message:      s.Message,
		Status:       s.Status,
		BookedByID:   s.BookedByID,
		CreatedByID:  s.CreatedByID,
		IsForSelf:    s.IsForSelf,
	})
	if err != nil {
		s.Error = err.Error()
		return s
	}
	s.Confirmed = true
	s.Appointment = created
	s.Status = created.Status
	return s
}

// handleError is the distinct terminal step for failed runs. It only logs;
// callers branch on State.Error.
func (g *Graph) handleError(ctx context.Context, s State) State {
	g.logger.Warn("booking run failed", "user_id", s.UserID, "error", s.Error)
	return s
}
