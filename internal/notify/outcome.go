package notify

import "fmt"

// Status classifies a single delivery attempt.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Skip and failure reasons recorded on outcomes and metric labels.
const (
	ReasonUnknownUser  = "unknown_user"
	ReasonNoToken      = "no_token"
	ReasonInvalidToken = "invalid_token"
	ReasonLookupError  = "lookup_error"
	ReasonTransport    = "transport_error"
)

// Outcome is the result of notifying one recipient.
type Outcome struct {
	Email  string
	Status Status
	Reason string
}

// Report aggregates outcomes for a sweep or a fan-out.
type Report struct {
	Sent    int
	Skipped int
	Failed  int
}

// Add records one outcome.
func (r *Report) Add(o Outcome) {
	switch o.Status {
	case StatusSent:
		r.Sent++
	case StatusSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Merge folds other into r.
func (r *Report) Merge(other Report) {
	r.Sent += other.Sent
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// Attempts is the number of recipients processed.
func (r Report) Attempts() int {
	return r.Sent + r.Skipped + r.Failed
}

func (r Report) String() string {
	return fmt.Sprintf("sent=%d skipped=%d failed=%d", r.Sent, r.Skipped, r.Failed)
}
