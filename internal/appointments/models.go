package appointments

import (
	"errors"
	"strings"
	"time"
)

// Appointment status values. Cancellation is a status transition, never a delete.
const (
	StatusScheduled = "SCHEDULED"
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"
)

// Weekday values as stored in service_availability rows.
const (
	WeekdayMonday    = "MONDAY"
	WeekdayTuesday   = "TUESDAY"
	WeekdayWednesday = "WEDNESDAY"
	WeekdayThursday  = "THURSDAY"
	WeekdayFriday    = "FRIDAY"
	WeekdaySaturday  = "SATURDAY"
	WeekdaySunday    = "SUNDAY"
)

var (
	ErrAppointmentNotFound  = errors.New("appointments: appointment not found")
	ErrServiceNotFound      = errors.New("appointments: service not found")
	ErrAvailabilityNotFound = errors.New("appointments: availability not found")
)

// Appointment is a booked visit for a service.
type Appointment struct {
	ID           string     `json:"id"`
	ServiceID    string     `json:"serviceId"`
	UserID       string     `json:"userId"`
	BookedByID   string     `json:"bookedById"`
	CreatedByID  string     `json:"createdById"`
	CustomerName string     `json:"customerName"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	SelectedDate time.Time  `json:"selectedDate"`
	SelectedTime string     `json:"selectedTime"`
	Message      string     `json:"message"`
	IsForSelf    bool       `json:"isForSelf"`
	Status       string     `json:"status"`
	ResourceID   string     `json:"resourceId,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Service is a bookable offering. MaxBookings is nil when capacity is unbounded.
type Service struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	Price             float64 `json:"price"`
	EstimatedDuration int     `json:"estimatedDuration"`
	MaxBookings       *int    `json:"maxBookings,omitempty"`
}

// TimeSlot is one bookable window inside an availability row.
type TimeSlot struct {
	ID          string `json:"id"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable bool   `json:"isAvailable"`
}

// ServiceAvailability lists a service's slots for one weekday.
// ServiceTitle is denormalized from the join for rendering.
type ServiceAvailability struct {
	ID           string     `json:"id"`
	ServiceID    string     `json:"serviceId"`
	ServiceTitle string     `json:"serviceTitle"`
	WeekDay      string     `json:"weekDay"`
	TimeSlots    []TimeSlot `json:"timeSlots"`
}

// WeekdayFromTime maps a calendar date to the stored weekday value.
func WeekdayFromTime(t time.Time) string {
	return strings.ToUpper(t.Weekday().String())
}
