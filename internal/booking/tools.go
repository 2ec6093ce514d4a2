package booking

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nirajstha/bookpilot/internal/appointments"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

var toolTracer = otel.Tracer("bookpilot.internal.booking")

// dateLayouts are the user-entered date formats the tools accept.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

// repository is the persistence surface the mutation tools need.
type repository interface {
	GetAppointment(ctx context.Context, id string) (*appointments.Appointment, error)
	CreateAppointment(ctx context.Context, appt *appointments.Appointment) (*appointments.Appointment, error)
	UpdateAppointment(ctx context.Context, appt *appointments.Appointment) (*appointments.Appointment, error)
	UpdateAppointmentFields(ctx context.Context, id string, patch appointments.ReschedulePatch) (*appointments.Appointment, error)
}

// BookRequest carries the fields of a booking attempt. Optional fields left
// blank are default-filled before the create is submitted.
type BookRequest struct {
	UserID       string
	ServiceID    string
	SelectedDate string
	SelectedTime string
	CustomerName string
	Email        string
	Phone        string
	Message      string
	Status       string
	BookedByID   string
	CreatedByID  string
	IsForSelf    *bool
}

// RescheduleRequest carries the changed fields of a reschedule. Blank fields
// are treated as unchanged and are not sent.
type RescheduleRequest struct {
	CustomerName string
	Email        string
	Phone        string
	ServiceID    string
	SelectedDate string
	SelectedTime string
}

// Tools performs the appointment mutations the assistant can trigger.
type Tools struct {
	repo   repository
	logger *logging.Logger
	now    func() time.Time
}

// NewTools creates the mutation tools over the given repository.
func NewTools(repo repository, logger *logging.Logger) *Tools {
	if repo == nil {
		panic("booking: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Tools{repo: repo, logger: logger, now: time.Now}
}

// Book normalizes the date, fills defaults, and creates the appointment.
func (t *Tools) Book(ctx context.Context, req BookRequest) (*appointments.Appointment, error) {
	ctx, span := toolTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(attribute.String("bookpilot.service_id", req.ServiceID))

	date, err := normalizeDate(req.SelectedDate)
	if err != nil {
		return nil, err
	}

	appt := &appointments.Appointment{
		ServiceID:    req.ServiceID,
		UserID:       req.UserID,
		BookedByID:   fallback(req.BookedByID, req.UserID),
		CreatedByID:  fallback(req.CreatedByID, req.UserID),
		CustomerName: req.CustomerName,
		Email:        req.Email,
		Phone:        req.Phone,
		SelectedDate: date,
		SelectedTime: req.SelectedTime,
		Message:      req.Message,
		IsForSelf:    req.IsForSelf == nil || *req.IsForSelf,
		Status:       fallback(req.Status, appointments.StatusScheduled),
	}
	created, err := t.repo.CreateAppointment(ctx, appt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	t.logger.Info("appointment booked",
		"appointment_id", created.ID, "service_id", created.ServiceID, "user_id", created.UserID)
	return created, nil
}

// Reschedule updates only the provided fields of an existing appointment.
// A blank date or time means "unchanged".
func (t *Tools) Reschedule(ctx context.Context, id string, req RescheduleRequest) (*appointments.Appointment, error) {
	ctx, span := toolTracer.Start(ctx, "booking.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("bookpilot.appointment_id", id))

	if id == "" {
		return nil, fmt.Errorf("booking: appointment id is required")
	}

	var patch appointments.ReschedulePatch
	if req.CustomerName != "" {
		patch.CustomerName = &req.CustomerName
	}
	if req.Email != "" {
		patch.Email = &req.Email
	}
	if req.Phone != "" {
		patch.Phone = &req.Phone
	}
	if req.ServiceID != "" {
		patch.ServiceID = &req.ServiceID
	}
	if req.SelectedDate != "" {
		date, err := normalizeDate(req.SelectedDate)
		if err != nil {
			return nil, err
		}
		patch.SelectedDate = &date
	}
	if req.SelectedTime != "" {
		patch.SelectedTime = &req.SelectedTime
	}

	updated, err := t.repo.UpdateAppointmentFields(ctx, id, patch)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	t.logger.Info("appointment rescheduled", "appointment_id", id)
	return updated, nil
}

// Cancel fetches the appointment, marks it CANCELLED with a cancellation
// timestamp, and resubmits the full record. The write schema requires every
// column, so this is a fetch-merge-submit, not a patch. Cancelling an
// already-cancelled appointment resubmits the same record and succeeds.
func (t *Tools) Cancel(ctx context.Context, id string) (*appointments.Appointment, error) {
	ctx, span := toolTracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("bookpilot.appointment_id", id))

	appt, err := t.repo.GetAppointment(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	appt.Status = appointments.StatusCancelled
	if appt.CancelledAt == nil {
		now := t.now().UTC()
		appt.CancelledAt = &now
	}

	updated, err := t.repo.UpdateAppointment(ctx, appt)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	t.logger.Info("appointment cancelled", "appointment_id", id)
	return updated, nil
}

// normalizeDate parses a user-entered date and pins it to UTC midnight.
func normalizeDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("booking: invalid date format: %q", raw)
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
