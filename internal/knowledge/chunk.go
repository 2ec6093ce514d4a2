package knowledge

// Chunk sources. System chunks are synthesized at retrieval time and never stored.
const (
	SourceAppointment  = "appointment"
	SourceAvailability = "service_availability"
	SourceManual       = "manual"
	SourceSystem       = "system"
)

// Chunk is the atomic unit of retrieval: a slice of source text, its embedding,
// and the access tags controlling who may see it.
type Chunk struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	Embedding     []float32      `json:"-"`
	AccessLevel   []string       `json:"accessLevel"`
	Source        string         `json:"source"`
	AppointmentID string         `json:"appointmentId,omitempty"`
	ServiceID     string         `json:"serviceId,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`

	// Distance is the vector distance to the query; populated on retrieval only.
	Distance float64 `json:"distance,omitempty"`
}
