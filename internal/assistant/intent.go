package assistant

import (
	"regexp"
	"strings"
)

// Message heuristics. Labeled fields look like "serviceid: svc1"; values run to
// the next comma, newline, or labeled field.
var (
	opaqueIDPattern      = regexp.MustCompile(`^[a-zA-Z0-9]{20,}$`)
	appointmentIDPattern = regexp.MustCompile(`(?i)appointmentid[:=]\s*([^\s,]+)`)
	forUserPattern       = regexp.MustCompile(`(?i)for user (\w+)`)
	datePattern          = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{2}/\d{2}/\d{4}\b`)
	timePattern          = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	labelPattern         = regexp.MustCompile(`(?i)\b(customername|email|phone|serviceid|selecteddate|selectedtime|appointmentid)[:=]`)

	fieldPatterns = map[string]*regexp.Regexp{
		"customername": regexp.MustCompile(`(?i)customername[:=]\s*([^,\n]+)`),
		"email":        regexp.MustCompile(`(?i)email[:=]\s*([^,\n]+)`),
		"phone":        regexp.MustCompile(`(?i)phone[:=]\s*([^,\n]+)`),
		"serviceid":    regexp.MustCompile(`(?i)serviceid[:=]\s*([^,\n]+)`),
		"selecteddate": regexp.MustCompile(`(?i)selecteddate[:=]\s*([^,\n]+)`),
		"selectedtime": regexp.MustCompile(`(?i)selectedtime[:=]\s*([^,\n]+)`),
	}

	actionKeywords = []string{"book", "schedule", "reschedule", "cancel", "make an appointment"}
)

// ExtractedFields holds the labeled values parsed out of a chat message.
// Absent fields are empty strings.
type ExtractedFields struct {
	CustomerName string
	Email        string
	Phone        string
	ServiceID    string
	SelectedDate string
	SelectedTime string
}

// isAppointmentAction reports whether the message looks like a booking,
// reschedule, or cancellation action rather than a question.
func isAppointmentAction(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range actionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return datePattern.MatchString(message) || timePattern.MatchString(message)
}

// isOpaqueID reports whether the message is nothing but an id-shaped token.
func isOpaqueID(message string) bool {
	return opaqueIDPattern.MatchString(strings.TrimSpace(message))
}

// extractAppointmentID pulls a labeled appointment id out of the message,
// or returns "".
func extractAppointmentID(message string) string {
	if m := appointmentIDPattern.FindStringSubmatch(message); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractTargetUser parses a "for user <id>" token, or returns "".
func extractTargetUser(message string) string {
	if m := forUserPattern.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	return ""
}

// extractFields parses every labeled booking field present in the message.
func extractFields(message string) ExtractedFields {
	return ExtractedFields{
		CustomerName: extractField(message, "customername"),
		Email:        extractField(message, "email"),
		Phone:        extractField(message, "phone"),
		ServiceID:    extractField(message, "serviceid"),
		SelectedDate: extractField(message, "selecteddate"),
		SelectedTime: extractField(message, "selectedtime"),
	}
}

func extractField(message, name string) string {
	m := fieldPatterns[name].FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	value := m[1]
	// Fields may be space-separated rather than comma-separated; cut the
	// capture at the next label so one value does not swallow the rest.
	if loc := labelPattern.FindStringIndex(value); loc != nil {
		value = value[:loc[0]]
	}
	return strings.TrimSpace(value)
}
