// Package domain defines the business objects and ports of the activity service.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrFamilyNotFound is returned when a family cannot be located.
	ErrFamilyNotFound = errors.New("family not found")
	// ErrUserNotFound is returned when a user cannot be located.
	ErrUserNotFound = errors.New("user not found")
)

// ActivityRepository captures persistence operations for activities.
type ActivityRepository interface {
	FindAll(ctx context.Context) ([]Activity, error)
	FindByID(ctx context.Context, id string) (*Activity, error)
	Save(ctx context.Context, activity Activity) error
	ExistsByID(ctx context.Context, id string) (bool, error)
	DeleteByID(ctx context.Context, id string) error
	ListByFamily(ctx context.Context, familyID string) ([]Activity, error)
	ListPersonalByOwnerEmail(ctx context.Context, email string) ([]Activity, error)
}

// FamilyRepository looks up families and their memberships.
type FamilyRepository interface {
	FindByID(ctx context.Context, id string) (*Family, error)
	ListMembers(ctx context.Context, familyID string) ([]Member, error)
}

// UserRepository looks up users.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// ChatRepository persists chat messages.
type ChatRepository interface {
	Save(ctx context.Context, msg ChatMessage) error
	FindAllByRoom(ctx context.Context, roomID string) ([]ChatMessage, error)
}

// Service orchestrates activity workflows that are not driven by the scheduler.
type Service struct {
	repo ActivityRepository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo ActivityRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, id string) (*Activity, error) {
	activity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ChangeStatus moves an activity to the given status. The change notification is
// emitted downstream from the persisted outbox event.
func (s *Service) ChangeStatus(ctx context.Context, id string, status Status) (*Activity, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	activity, err := s.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity.Status == status {
		return activity, nil
	}
	activity.Status = status
	activity.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, *activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// DeleteActivity removes an activity, returning ErrActivityNotFound for unknown ids.
func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	exists, err := s.repo.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrActivityNotFound
	}
	return s.repo.DeleteByID(ctx, id)
}

// FamilyActivities lists the activities shared with a family.
func (s *Service) FamilyActivities(ctx context.Context, familyID string) ([]Activity, error) {
	return s.repo.ListByFamily(ctx, familyID)
}

// PersonalActivities lists the activities owned by email that belong to no family.
func (s *Service) PersonalActivities(ctx context.Context, email string) ([]Activity, error) {
	return s.repo.ListPersonalByOwnerEmail(ctx, email)
}
