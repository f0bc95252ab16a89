package profiles

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mcdev12/tictactoe/go/internal/models"
)

// MemoryStore keeps profiles in process. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]models.Profile)}
}

func (m *MemoryStore) CreateProfile(_ context.Context, p *models.Profile) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, p.ID)
	}
	m.profiles[p.ID] = *p
	out := *p
	return &out, nil
}

func (m *MemoryStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return ErrNotFound
	}
	m.profiles[p.ID] = *p
	return nil
}

func (m *MemoryStore) Top(_ context.Context, limit int) ([]*models.Profile, error) {
	ranked := m.ranked()
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*models.Profile, 0, len(ranked))
	for i := range ranked {
		out = append(out, &ranked[i])
	}
	return out, nil
}

func (m *MemoryStore) Position(_ context.Context, id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return 0, ErrNotFound
	}
	pos := 1
	for _, other := range m.profiles {
		if other.Rating > p.Rating {
			pos++
		}
	}
	return pos, nil
}

func (m *MemoryStore) ranked() []models.Profile {
	m.mu.RLock()
	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
