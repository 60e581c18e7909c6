// Package notify resolves who should hear about an activity and delivers best-effort push
// notifications to them.
package notify

import (
	"context"
	"fmt"

	"example.com/shareactivities/internal/domain"
)

// Recipient is a user that should receive a notification.
type Recipient struct {
	Name  string
	Email string
}

// Resolver maps an activity to its audience: every family member for family activities,
// otherwise the owning user alone.
type Resolver struct {
	families domain.FamilyRepository
	users    domain.UserRepository
}

// NewResolver constructs a Resolver.
func NewResolver(families domain.FamilyRepository, users domain.UserRepository) *Resolver {
	return &Resolver{families: families, users: users}
}

// Resolve returns the recipients of activity. A family with no members yields an empty slice.
func (r *Resolver) Resolve(ctx context.Context, activity domain.Activity) ([]Recipient, error) {
	if activity.HasFamily() {
		return r.FamilyMembers(ctx, activity.FamilyID)
	}

	owner, err := r.users.FindByID(ctx, activity.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("resolve owner %s: %w", activity.OwnerID, err)
	}
	if owner == nil {
		return nil, fmt.Errorf("resolve owner %s: %w", activity.OwnerID, domain.ErrUserNotFound)
	}
	return []Recipient{{Name: owner.Name, Email: owner.Email}}, nil
}

// FamilyMembers lists every member of a family as recipients.
func (r *Resolver) FamilyMembers(ctx context.Context, familyID string) ([]Recipient, error) {
	members, err := r.families.ListMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list members of family %s: %w", familyID, err)
	}
	out := make([]Recipient, 0, len(members))
	for _, m := range members {
		out = append(out, Recipient{Name: m.User.Name, Email: m.User.Email})
	}
	return out, nil
}
