package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it in tests.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and writes the shared booking schema.
type Repository struct {
	db db
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool db) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

const appointmentColumns = `id, service_id, user_id, booked_by_id, created_by_id,
	customer_name, email, phone, selected_date, selected_time, message,
	is_for_self, status, resource_id, cancelled_at, created_at`

// GetAppointment fetches one appointment by id.
func (r *Repository) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return appt, nil
}

// CreateAppointment inserts a new appointment row. A missing id is generated.
func (r *Repository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	query := `
		INSERT INTO appointments (id, service_id, user_id, booked_by_id, created_by_id,
			customer_name, email, phone, selected_date, selected_time, message,
			is_for_self, status, resource_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''))
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		appt.ID,
		appt.ServiceID,
		appt.UserID,
		appt.BookedByID,
		appt.CreatedByID,
		appt.CustomerName,
		appt.Email,
		appt.Phone,
		appt.SelectedDate,
		appt.SelectedTime,
		appt.Message,
		appt.IsForSelf,
		appt.Status,
		appt.ResourceID,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}
	appt.CreatedAt = createdAt
	return appt, nil
}

// UpdateAppointment overwrites the full record. The backend schema requires
// every column on write, so callers submit the merged record, not a patch.
func (r *Repository) UpdateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET service_id = $2, user_id = $3, booked_by_id = $4, created_by_id = $5,
			customer_name = $6, email = $7, phone = $8, selected_date = $9,
			selected_time = $10, message = $11, is_for_self = $12, status = $13,
			resource_id = NULLIF($14, ''), cancelled_at = $15
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		appt.ID,
		appt.ServiceID,
		appt.UserID,
		appt.BookedByID,
		appt.CreatedByID,
		appt.CustomerName,
		appt.Email,
		appt.Phone,
		appt.SelectedDate,
		appt.SelectedTime,
		appt.Message,
		appt.IsForSelf,
		appt.Status,
		appt.ResourceID,
		appt.CancelledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("appointments: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}

// ReschedulePatch holds the optional fields of a partial reschedule.
// Nil fields are left unchanged.
type ReschedulePatch struct {
	CustomerName *string
	Email        *string
	Phone        *string
	ServiceID    *string
	SelectedDate *time.Time
	SelectedTime *string
}

// UpdateAppointmentFields applies a partial update for a reschedule.
func (r *Repository) UpdateAppointmentFields(ctx context.Context, id string, patch ReschedulePatch) (*Appointment, error) {
	sets := make([]string, 0, 6)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.CustomerName != nil {
		add("customer_name", *patch.CustomerName)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.ServiceID != nil {
		add("service_id", *patch.ServiceID)
	}
	if patch.SelectedDate != nil {
		add("selected_date", *patch.SelectedDate)
	}
	if patch.SelectedTime != nil {
		add("selected_time", *patch.SelectedTime)
	}
	if len(sets) == 0 {
		return r.GetAppointment(ctx, id)
	}

	query := `UPDATE appointments SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + appointmentColumns
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: partial update failed: %w", err)
	}
	return appt, nil
}

// CountAppointmentsAt counts bookings for a service at an exact date and time.
// Cancelled appointments do not hold capacity.
func (r *Repository) CountAppointmentsAt(ctx context.Context, serviceID string, date time.Time, timeOfDay string) (int, error) {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE service_id = $1 AND selected_date::date = $2::date AND selected_time = $3
			AND status <> $4
	`
	var count int
	if err := r.db.QueryRow(ctx, query, serviceID, date, timeOfDay, StatusCancelled).Scan(&count); err != nil {
		return 0, fmt.Errorf("appointments: count failed: %w", err)
	}
	return count, nil
}

// GetService fetches a service by id.
func (r *Repository) GetService(ctx context.Context, id string) (*Service, error) {
	query := `
		SELECT id, title, description, price, estimated_duration, max_bookings
		FROM services WHERE id = $1
	`
	var svc Service
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&svc.ID,
		&svc.Title,
		&svc.Description,
		&svc.Price,
		&svc.EstimatedDuration,
		&svc.MaxBookings,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("appointments: select service failed: %w", err)
	}
	return &svc, nil
}

// AvailabilityForWeekday loads a service's availability row and slots for one weekday.
func (r *Repository) AvailabilityForWeekday(ctx context.Context, serviceID, weekday string) (*ServiceAvailability, error) {
	query := `
		SELECT sa.id, sa.service_id, s.title, sa.week_day,
			ts.id, ts.start_time, ts.end_time, ts.is_available
		FROM service_availability sa
		JOIN services s ON s.id = sa.service_id
		LEFT JOIN time_slots ts ON ts.availability_id = sa.id
		WHERE sa.service_id = $1 AND sa.week_day = $2
		ORDER BY ts.start_time
	`
	rows, err := r.db.Query(ctx, query, serviceID, weekday)
	if err != nil {
		return nil, fmt.Errorf("appointments: select availability failed: %w", err)
	}
	defer rows.Close()

	var avail *ServiceAvailability
	for rows.Next() {
		var (
			id, svcID, title, day      string
			slotID, startTime, endTime *string
			isAvailable                *bool
		)
		if err := rows.Scan(&id, &svcID, &title, &day, &slotID, &startTime, &endTime, &isAvailable); err != nil {
			return nil, fmt.Errorf("appointments: scan availability failed: %w", err)
		}
		if avail == nil {
			avail = &ServiceAvailability{ID: id, ServiceID: svcID, ServiceTitle: title, WeekDay: day}
		}
		if slotID != nil {
			avail.TimeSlots = append(avail.TimeSlots, TimeSlot{
				ID:          *slotID,
				StartTime:   deref(startTime),
				EndTime:     deref(endTime),
				IsAvailable: isAvailable != nil && *isAvailable,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: availability rows failed: %w", err)
	}
	if avail == nil {
		return nil, ErrAvailabilityNotFound
	}
	return avail, nil
}

// ListAvailability returns every availability row with its slots, for indexing.
func (r *Repository) ListAvailability(ctx context.Context) ([]ServiceAvailability, error) {
	query := `
		SELECT sa.id, sa.service_id, s.title, sa.week_day,
			ts.id, ts.start_time, ts.end_time, ts.is_available
		FROM service_availability sa
		JOIN services s ON s.id = sa.service_id
		LEFT JOIN time_slots ts ON ts.availability_id = sa.id
		ORDER BY sa.id, ts.start_time
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("appointments: list availability failed: %w", err)
	}
	defer rows.Close()

	var (
		out     []ServiceAvailability
		current *ServiceAvailability
	)
	for rows.Next() {
		var (
			id, svcID, title, day      string
			slotID, startTime, endTime *string
			isAvailable                *bool
		)
		if err := rows.Scan(&id, &svcID, &title, &day, &slotID, &startTime, &endTime, &isAvailable); err != nil {
			return nil, fmt.Errorf("appointments: scan availability failed: %w", err)
		}
		if current == nil || current.ID != id {
			out = append(out, ServiceAvailability{ID: id, ServiceID: svcID, ServiceTitle: title, WeekDay: day})
			current = &out[len(out)-1]
		}
		if slotID != nil {
			current.TimeSlots = append(current.TimeSlots, TimeSlot{
				ID:          *slotID,
				StartTime:   deref(startTime),
				EndTime:     deref(endTime),
				IsAvailable: isAvailable != nil && *isAvailable,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: availability rows failed: %w", err)
	}
	return out, nil
}

// ListUpcoming returns appointments whose date is on or after from, for indexing.
func (r *Repository) ListUpcoming(ctx context.Context, from time.Time) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments WHERE selected_date >= $1 ORDER BY selected_date`
	return r.listAppointments(ctx, query, from)
}

// ListForUser returns the caller's full appointment history, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments WHERE user_id = $1 ORDER BY selected_date DESC`
	return r.listAppointments(ctx, query, userID)
}

func (r *Repository) listAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows failed: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt       Appointment
		resourceID *string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.ServiceID,
		&appt.UserID,
		&appt.BookedByID,
		&appt.CreatedByID,
		&appt.CustomerName,
		&appt.Email,
		&appt.Phone,
		&appt.SelectedDate,
		&appt.SelectedTime,
		&appt.Message,
		&appt.IsForSelf,
		&appt.Status,
		&resourceID,
		&appt.CancelledAt,
		&appt.CreatedAt,
	); err != nil {
		return nil, err
	}
	appt.ResourceID = deref(resourceID)
	return &appt, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
