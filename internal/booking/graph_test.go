package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nirajstha/bookpilot/internal/appointments"
)

type fakeSchedules struct {
	service  *appointments.Service
	avail    map[string]*appointments.ServiceAvailability // keyed by weekday
	count    int
	countErr error
}

func (f *fakeSchedules) GetService(ctx context.Context, id string) (*appointments.Service, error) {
	if f.service == nil {
		return nil, appointments.ErrServiceNotFound
	}
	return f.service, nil
}

func (f *fakeSchedules) AvailabilityForWeekday(ctx context.Context, serviceID, weekday string) (*appointments.ServiceAvailability, error) {
	if avail, ok := f.avail[weekday]; ok {
		return avail, nil
	}
	return nil, appointments.ErrAvailabilityNotFound
}

func (f *fakeSchedules) CountAppointmentsAt(ctx context.Context, serviceID string, date time.Time, timeOfDay string) (int, error) {
	return f.count, f.countErr
}

type fakeBooker struct {
	booked []BookRequest
	result *appointments.Appointment
	err    error
}

func (f *fakeBooker) Book(ctx context.Context, req BookRequest) (*appointments.Appointment, error) {
	f.booked = append(f.booked, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &appointments.Appointment{ID: "new-appt", Status: appointments.StatusScheduled}, nil
}

func mondaySchedules() *fakeSchedules {
	return &fakeSchedules{
		service: &appointments.Service{ID: "svc1", Title: "Haircut"},
		avail: map[string]*appointments.ServiceAvailability{
			appointments.WeekdayMonday: {
				ID: "av1", ServiceID: "svc1", WeekDay: appointments.WeekdayMonday,
				TimeSlots: []appointments.TimeSlot{
					{ID: "ts1", StartTime: "10:00", EndTime: "10:30", IsAvailable: true},
					{ID: "ts2", StartTime: "11:00", EndTime: "11:30", IsAvailable: false},
				},
			},
		},
	}
}

func TestGraphMissingServiceHaltsWithExactFields(t *testing.T) {
	booker := &fakeBooker{}
	g := NewGraph(mondaySchedules(), booker, nil)

	got := g.Run(context.Background(), State{UserID: "u1", SelectedDate: "2025-07-07", SelectedTime: "10:00"})
	require.Equal(t, []string{"serviceId"}, got.MissingFields)
	require.False(t, got.Confirmed)
	require.Empty(t, got.Error)
	require.Empty(t, booker.booked)
}

func TestGraphMissingDateTimeHaltsWithExactFields(t *testing.T) {
	booker := &fakeBooker{}
	g := NewGraph(mondaySchedules(), booker, nil)

	got := g.Run(context.Background(), State{UserID: "u1", ServiceID: "svc1"})
	require.Equal(t, []string{"selectedDate", "selectedTime"}, got.MissingFields)
	require.Empty(t, booker.booked)
}

func TestGraphMissingOnlyTime(t *testing.T) {
	booker := &fakeBooker{}
	g := NewGraph(mondaySchedules(), booker, nil)

	got := g.Run(context.Background(), State{UserID: "u1", ServiceID: "svc1", SelectedDate: "2025-07-07"})
	require.Equal(t, []string{"selectedTime"}, got.MissingFields)
	require.Empty(t, booker.booked)
}

// 2025-07-05 is a Saturday; the service only has Monday availability.
func TestGraphNoAvailabilityForSelectedDay(t *testing.T) {
	booker := &fakeBooker{}
	g := NewGraph(mondaySchedules(), booker, nil)

	got := g.Run(context.Background(), State{
		UserID: "u1", ServiceID: "svc1", SelectedDate: "2025-07-05", SelectedTime: "10:00",
	})
	require.Equal(t, msgAvailabilityNotFound, got.Error)
	require.False(t, got.Confirmed)
	require.Empty(t, booker.booked)
}

func TestGraphSlotNotOpen(t *testing.T) {
	booker := &fakeBooker{}
	g := NewGraph(mondaySchedules(), booker, nil)

	// 11:00 exists but is flagged unavailable.
	got := g.Run(context.Background(), State{
		UserID: "u1", ServiceID: "svc1", SelectedDate: "2025-07-07", SelectedTime: "11:00",
	})
	require.Equal(t, msgSlotNotAvailable, got.Error)
	require.Empty(t, booker.booked)
}

func TestGraphSlotFullyBooked(t *testing.T) {
	schedules := mondaySchedules()
	max := 2
	schedules.service.MaxBookings = &max
	schedules.count = 2
	booker := &fakeBooker{}
	g := NewGraph(schedules, booker, nil)

	got := g.Run(context.Background(), State{
		UserID: "u1", ServiceID: "svc1", SelectedDate: "2025-07-07", SelectedTime: "10:00",
	})
	require.Equal(t, msgFullyBooked, got.Error)
	require.Empty(t, booker.booked)
}

func TestGraphUnboundedCapacitySkipsCount(t *testing.T) {
	schedules := mondaySchedules()
	schedules.countErr = errors.New("must not be called")
	booker := &fakeBooker{}
	g := NewGraph(schedules, booker, nil)

	got := g.Run(context.Background(), State{
		UserID: "u1", ServiceID: "svc1", SelectedDate: "2025-07-07", SelectedTime: "10:00",
	})
	require.Empty(t, got.Error)
	require.True(t, got.Confirmed)
}

func TestGraphBooksAndMergesResult(t *testing.T) {
	booker := &fakeBooker{result: &appointments.Appointment{
		ID: "appt-42", Status: appointments.StatusScheduled, ServiceID: "svc1",
	}}
	g := NewGraph(mondaySchedules(), booker, nil)

	got := g.Run(context.Background(), State{
		UserID: "u1", ServiceID: "svc1", SelectedDate: "2025-07-07", SelectedTime: "10:00",
		CustomerName: "Jamie", Email: "jamie@example.com",
	})
	require.True(t, got.Confirmed)
	require.Empty(t, got.Error)
	require.NotNil(t, got.Appointment)
	require.Equal(t, "appt-42", got.Appointment.ID)
	require.Equal(t, appointments.StatusScheduled, got.Status)

	require.Len(t, booker.booked, 1)
	require.Equal(t, "u1", booker.booked[0].UserID)
	require.Equal(t, "Jamie", booker.booked[0].CustomerName)
}

func TestGraphBookingFailureLandsInErrorState(t *testing.T) {
	booker := &fakeBooker{err: errors.New("insert failed")}
	g := NewGraph(mondaySchedules(), booker, nil)

	got := g.Run(context.Background(), State{
		UserID: "u1", ServiceID: "svc1", SelectedDate: "2025-07-07", SelectedTime: "10:00",
	})
	require.False(t, got.Confirmed)
	require.Equal(t, "insert failed", got.Error)
}

func TestGraphInvalidDateIsAnErrorState(t *testing.T) {
	booker := &fakeBooker{}
	g := NewGraph(mondaySchedules(), booker, nil)

	got := g.Run(context.Background(), State{
		UserID: "u1", ServiceID: "svc1", SelectedDate: "not a date", SelectedTime: "10:00",
	})
	require.Contains(t, got.Error, "invalid date format")
	require.Empty(t, booker.booked)
}

func TestGraphResumesWithAccumulatedState(t *testing.T) {
	booker := &fakeBooker{}
	g := NewGraph(mondaySchedules(), booker, nil)

	first := g.Run(context.Background(), State{UserID: "u1", ServiceID: "svc1"})
	require.Equal(t, []string{"selectedDate", "selectedTime"}, first.MissingFields)

	// The caller supplies the missing values and re-invokes with the same
	// state; the graph clears the stale missing-fields list itself.
	first.SelectedDate = "2025-07-07"
	first.SelectedTime = "10:00"
	second := g.Run(context.Background(), first)
	require.True(t, second.Confirmed)
	require.Empty(t, second.MissingFields)
}
