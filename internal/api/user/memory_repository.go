package user

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

var _ ProfileRepo = (*MemoryProfileRepo)(nil)

// MemoryProfileRepo is an in-process ProfileRepo enforcing the same unique
// id and username constraints as the users table.
type MemoryProfileRepo struct {
	mu   sync.Mutex
	byID map[string]types.Profile

	// FailWrites, when set, is returned by InsertProfile and UpsertProfile.
	FailWrites error
}

func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{byID: make(map[string]types.Profile)}
}

func (m *MemoryProfileRepo) GetProfileByID(_ context.Context, id string) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("profile id=%s: %w", id, types.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryProfileRepo) GetProfileByUsername(_ context.Context, username string) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Username == username {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("profile username=%s: %w", username, types.ErrNotFound)
}

func (m *MemoryProfileRepo) usernameTakenLocked(username, exceptID string) bool {
	for id, p := range m.byID {
		if p.Username == username && id != exceptID {
			return true
		}
	}
	return false
}

func (m *MemoryProfileRepo) InsertProfile(_ context.Context, p types.Profile) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return nil, m.FailWrites
	}
	if _, ok := m.byID[p.ID]; ok || m.usernameTakenLocked(p.Username, "") {
		return nil, fmt.Errorf("profile %s: %w", p.Username, types.ErrConflict)
	}
	p.CreatedAt = time.Now().UTC()
	m.byID[p.ID] = p
	return &p, nil
}

func (m *MemoryProfileRepo) UpsertProfile(_ context.Context, p types.Profile) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return nil, m.FailWrites
	}
	if m.usernameTakenLocked(p.Username, p.ID) {
		return nil, fmt.Errorf("profile %s: %w", p.Username, types.ErrConflict)
	}
	if existing, ok := m.byID[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = time.Now().UTC()
	}
	m.byID[p.ID] = p
	return &p, nil
}

func (m *MemoryProfileRepo) ListProfiles(_ context.Context) ([]types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Profile, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a profile row, leaving its identity behind as a ghost.
func (m *MemoryProfileRepo) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

// Len reports how many profiles are stored.
func (m *MemoryProfileRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
