// Package memory provides in-process repositories used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"example.com/shareactivities/internal/domain"
)

// Store implements every domain repository over maps guarded by one mutex.
type Store struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	families   map[string]domain.Family
	members    map[string][]domain.Member
	users      map[string]domain.User
	messages   map[string][]domain.ChatMessage
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities: make(map[string]domain.Activity),
		families:   make(map[string]domain.Family),
		members:    make(map[string][]domain.Member),
		users:      make(map[string]domain.User),
		messages:   make(map[string][]domain.ChatMessage),
	}
}

// Activities exposes the store as an ActivityRepository.
func (s *Store) Activities() domain.ActivityRepository { return activityRepo{s} }

// Families exposes the store as a FamilyRepository.
func (s *Store) Families() domain.FamilyRepository { return familyRepo{s} }

// Users exposes the store as a UserRepository.
func (s *Store) Users() domain.UserRepository { return userRepo{s} }

// Chat exposes the store as a ChatRepository.
func (s *Store) Chat() domain.ChatRepository { return chatRepo{s} }

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutFamily inserts or replaces a family and its members.
func (s *Store) PutFamily(f domain.Family, members ...domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[f.ID] = f
	s.members[f.ID] = append([]domain.Member(nil), members...)
}

// PutActivity inserts or replaces an activity.
func (s *Store) PutActivity(a domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[a.ID] = cloneActivity(a)
}

type activityRepo struct{ s *Store }

func (r activityRepo) FindAll(_ context.Context) ([]domain.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Activity, 0, len(r.s.activities))
	for _, a := range r.s.activities {
		out = append(out, cloneActivity(a))
	}
	sortActivities(out)
	return out, nil
}

func (r activityRepo) FindByID(_ context.Context, id string) (*domain.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.activities[id]
	if !ok {
		return nil, nil
	}
	c := cloneActivity(a)
	return &c, nil
}

func (r activityRepo) Save(_ context.Context, a domain.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.activities[a.ID] = cloneActivity(a)
	return nil
}

func (r activityRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.activities[id]
	return ok, nil
}

func (r activityRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.activities, id)
	return nil
}

func (r activityRepo) ListByFamily(_ context.Context, familyID string) ([]domain.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Activity
	for _, a := range r.s.activities {
		if a.FamilyID == familyID {
			out = append(out, cloneActivity(a))
		}
	}
	sortActivities(out)
	return out, nil
}

func (r activityRepo) ListPersonalByOwnerEmail(_ context.Context, email string) ([]domain.Activity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ownerID string
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			ownerID = u.ID
			break
		}
	}
	if ownerID == "" {
		return nil, nil
	}
	var out []domain.Activity
	for _, a := range r.s.activities {
		if a.OwnerID == ownerID && !a.HasFamily() {
			out = append(out, cloneActivity(a))
		}
	}
	sortActivities(out)
	return out, nil
}

type familyRepo struct{ s *Store }

func (r familyRepo) FindByID(_ context.Context, id string) (*domain.Family, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.families[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (r familyRepo) ListMembers(_ context.Context, familyID string) ([]domain.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if _, ok := r.s.families[familyID]; !ok {
		return nil, domain.ErrFamilyNotFound
	}
	return append([]domain.Member(nil), r.s.members[familyID]...), nil
}

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

type chatRepo struct{ s *Store }

func (r chatRepo) Save(_ context.Context, msg domain.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages[msg.RoomID] = append(r.s.messages[msg.RoomID], msg)
	return nil
}

func (r chatRepo) FindAllByRoom(_ context.Context, roomID string) ([]domain.ChatMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.ChatMessage(nil), r.s.messages[roomID]...), nil
}

func cloneActivity(a domain.Activity) domain.Activity {
	if a.Attachments != nil {
		a.Attachments = append([]string(nil), a.Attachments...)
	}
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		a.ExpiresAt = &t
	}
	if a.RecurOn != nil {
		t := *a.RecurOn
		a.RecurOn = &t
	}
	return a
}

func sortActivities(list []domain.Activity) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
