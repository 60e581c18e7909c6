package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an activity.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusInProgress, StatusDone:
		return s, nil
	default:
		return "", fmt.Errorf("unknown activity status %q", raw)
	}
}

// Label returns the user-facing (pt-BR) name of the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "pendente"
	case StatusInProgress:
		return "em andamento"
	case StatusDone:
		return "concluído"
	}
	return string(s)
}

// Activity is a household task or reminder.
type Activity struct {
	ID          string
	Name        string
	Description string
	Type        string
	Priority    string
	Notes       string
	Location    string
	Attachments []string
	Status      Status
	OwnerID     string
	// FamilyID is empty for personal activities.
	FamilyID  string
	CreatedAt time.Time
	ExpiresAt *time.Time
	RecurOn   *time.Time
	UpdatedAt time.Time
}

// HasFamily reports whether the activity is owned by a family group.
func (a Activity) HasFamily() bool {
	return a.FamilyID != ""
}

// Validate checks the recurrence invariant: RecurOn never precedes CreatedAt on the calendar.
func (a Activity) Validate(loc *time.Location) error {
	if a.RecurOn == nil {
		return nil
	}
	if DaysBetween(a.CreatedAt, *a.RecurOn, loc) < 0 {
		return fmt.Errorf("activity %s: recur_on %s is before created_at %s", a.ID,
			a.RecurOn.Format(time.DateOnly), a.CreatedAt.Format(time.DateOnly))
	}
	return nil
}

// Family is a named group owning activities and a chat room.
type Family struct {
	ID   string
	Name string
}

// User is a member of the service.
type User struct {
	ID    string
	Name  string
	Email string
	// PushToken is empty when the user cannot receive push notifications.
	PushToken string
}

// Member is a user's membership in a family.
type Member struct {
	User    User
	IsAdmin bool
}

// ChatMessage is a persisted message posted to a family room.
type ChatMessage struct {
	ID        string
	Content   string
	CreatedAt time.Time
	SenderID  string
	RoomID    string
}
