package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNotFound is returned when no profile has the requested id.
	ErrNotFound = errors.New("profile not found")
	// ErrEmailTaken is returned when creating a profile with an email that
	// is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// Store defines the persistence operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	InsertProfile(p Profile) (Profile, error)
	GetProfile(id int64) (Profile, error)
	GetProfileByEmail(email string) (Profile, error)
	ListProfiles() ([]Profile, error)
	SearchProfiles(query string) ([]Profile, error)
	UpdateProfile(p Profile) error
	DeleteProfile(id int64) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager applies the profile rules on top of a Store: unique emails on
// create, partial updates, and the top-skills ranking.
type Manager struct {
	store  Store
	clock  Clock
	logger *slog.Logger
}

// NewManager creates a Manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:  store,
		clock:  realClock{},
		logger: slog.Default(),
	}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store Store, clock Clock) *Manager {
	m := NewManager(store)
	m.clock = clock
	return m
}

// List returns every profile in insertion order. Never returns nil.
func (m *Manager) List() ([]Profile, error) {
	profiles, err := m.store.ListProfiles()
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	return profiles, nil
}

// Get returns the profile with the given id or ErrNotFound.
func (m *Manager) Get(id int64) (Profile, error) {
	p, err := m.store.GetProfile(id)
	if err != nil {
		return Profile{}, fmt.Errorf("getting profile %d: %w", id, err)
	}
	return p, nil
}

// Search returns profiles whose name, email, or skills contain query,
// case-insensitively. Never returns nil.
func (m *Manager) Search(query string) ([]Profile, error) {
	profiles, err := m.store.SearchProfiles(query)
	if err != nil {
		return nil, fmt.Errorf("searching profiles: %w", err)
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	return profiles, nil
}

// Create stores a new profile. Returns ErrEmailTaken if the email is
// already registered.
func (m *Manager) Create(req CreateRequest) (Profile, error) {
	_, err := m.store.GetProfileByEmail(req.Email)
	if err == nil {
		return Profile{}, ErrEmailTaken
	}
	if !errors.Is(err, ErrNotFound) {
		return Profile{}, fmt.Errorf("checking email: %w", err)
	}

	now := m.clock.Now().UTC()
	p, err := m.store.InsertProfile(Profile{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Bio:       req.Bio,
		Skills:    req.Skills,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Profile{}, fmt.Errorf("creating profile: %w", err)
	}
	m.logger.Debug("profile created", "id", p.ID, "email", p.Email)
	return p, nil
}

// Update applies the non-nil fields of req to the profile with the given id
// and bumps its updated_at.
func (m *Manager) Update(id int64, req UpdateRequest) (Profile, error) {
	p, err := m.store.GetProfile(id)
	if err != nil {
		return Profile{}, fmt.Errorf("getting profile %d: %w", id, err)
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.Bio != nil {
		p.Bio = *req.Bio
	}
	if req.Skills != nil {
		p.Skills = *req.Skills
	}
	p.UpdatedAt = m.clock.Now().UTC()

	if err := m.store.UpdateProfile(p); err != nil {
		return Profile{}, fmt.Errorf("updating profile %d: %w", id, err)
	}
	m.logger.Debug("profile updated", "id", id)
	return p, nil
}

// Delete removes the profile with the given id or returns ErrNotFound.
func (m *Manager) Delete(id int64) error {
	if err := m.store.DeleteProfile(id); err != nil {
		return fmt.Errorf("deleting profile %d: %w", id, err)
	}
	m.logger.Debug("profile deleted", "id", id)
	return nil
}

// TopSkills ranks skills across all stored profiles.
func (m *Manager) TopSkills(limit int) ([]SkillCount, error) {
	profiles, err := m.store.ListProfiles()
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	skills := TopSkills(profiles, limit)
	if skills == nil {
		skills = []SkillCount{}
	}
	return skills, nil
}
