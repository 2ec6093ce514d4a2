package booking

import "github.com/nirajstha/bookpilot/internal/appointments"

// State is the record threaded through the booking graph. Raw user input is
// kept as strings; dates are normalized only when the booking is submitted.
// The graph never suspends: a caller holding a State with MissingFields set
// re-invokes the graph once the missing values have been collected.
type State struct {
	UserID       string `json:"userId"`
	ServiceID    string `json:"serviceId"`
	SelectedDate string `json:"selectedDate"`
	SelectedTime string `json:"selectedTime"`
	CustomerName string `json:"customerName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Message      string `json:"message"`
	Status       string `json:"status"`
	BookedByID   string `json:"bookedById"`
	CreatedByID  string `json:"createdById"`
	IsForSelf    *bool  `json:"isForSelf,omitempty"`

	MissingFields []string `json:"missingFields,omitempty"`
	Confirmed     bool     `json:"confirmed"`
	Error         string   `json:"error,omitempty"`

	// Appointment is the created record, set when Confirmed is true.
	Appointment *appointments.Appointment `json:"appointment,omitempty"`
}

// Terminal reports whether the graph has nothing left to do with this state.
func (s State) Terminal() bool {
	return s.Confirmed || s.Error != "" || len(s.MissingFields) > 0
}
