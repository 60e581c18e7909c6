// Package events defines the activity event payloads carried through the outbox.
package events

import "time"

// Event type names used as outbox event_type and Kafka header values.
const (
	TypeActivityCreated       = "activity.created"
	TypeActivityStatusChanged = "activity.status_changed"
)

// ActivityCreated is emitted when a new activity row is stored, including regenerated occurrences.
type ActivityCreated struct {
	ActivityID string     `json:"activity_id"`
	Name       string     `json:"name"`
	OwnerID    string     `json:"owner_id"`
	FamilyID   string     `json:"family_id,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RecurOn    *time.Time `json:"recur_on,omitempty"`
}

// ActivityStatusChanged tracks status transitions (pending, in_progress, done).
type ActivityStatusChanged struct {
	ActivityID     string    `json:"activity_id"`
	Name           string    `json:"name"`
	OwnerID        string    `json:"owner_id"`
	FamilyID       string    `json:"family_id,omitempty"`
	PreviousStatus string    `json:"previous_status"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}
