package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"GoldPledge/internal/model"
)

// MemoryRepository keeps everything in maps. It backs tests and STORE=memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	rates   map[int]model.GoldRate
	schemes map[int]model.InterestScheme
	users   map[int]model.User
	nextID  int
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rates:   make(map[int]model.GoldRate),
		schemes: make(map[int]model.InterestScheme),
		users:   make(map[int]model.User),
		now:     time.Now,
	}
}

func (r *MemoryRepository) id() int {
	r.nextID++
	return r.nextID
}

func (r *MemoryRepository) ListGoldRates(_ context.Context) ([]model.GoldRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.GoldRate, 0, len(r.rates))
	for _, gr := range r.rates {
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InterestSchemeID != out[j].InterestSchemeID {
			return out[i].InterestSchemeID < out[j].InterestSchemeID
		}
		return out[i].Purity < out[j].Purity
	})
	return out, nil
}

func (r *MemoryRepository) GetGoldRate(_ context.Context, purity model.Purity, schemeID int) (model.GoldRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if gr, ok := r.findRate(purity, schemeID); ok {
		return gr, nil
	}
	return model.GoldRate{}, fmt.Errorf("gold rate %s/%d: %w", purity, schemeID, model.ErrNotFound)
}

func (r *MemoryRepository) findRate(purity model.Purity, schemeID int) (model.GoldRate, bool) {
	for _, gr := range r.rates {
		if gr.Purity == purity && gr.InterestSchemeID == schemeID {
			return gr, true
		}
	}
	return model.GoldRate{}, false
}

func (r *MemoryRepository) UpsertGoldRate(_ context.Context, purity model.Purity, schemeID int, ratePerGram float64) (model.GoldRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemes[schemeID]; !ok {
		return model.GoldRate{}, fmt.Errorf("upsert gold rate %s/%d: %w", purity, schemeID, model.ErrNotFound)
	}
	gr, ok := r.findRate(purity, schemeID)
	if !ok {
		gr = model.GoldRate{ID: r.id(), Purity: purity, InterestSchemeID: schemeID}
	}
	gr.RatePerGram = ratePerGram
	gr.UpdatedAt = r.now().UTC()
	r.rates[gr.ID] = gr
	return gr, nil
}

func (r *MemoryRepository) DeleteGoldRate(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rates[id]; !ok {
		return fmt.Errorf("delete gold rate: %w", model.ErrNotFound)
	}
	delete(r.rates, id)
	return nil
}

func (r *MemoryRepository) ListInterestSchemes(_ context.Context) ([]model.InterestScheme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.InterestScheme, 0, len(r.schemes))
	for _, s := range r.schemes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate < out[j].Rate })
	return out, nil
}

func (r *MemoryRepository) GetInterestScheme(_ context.Context, id int) (model.InterestScheme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemes[id]
	if !ok {
		return model.InterestScheme{}, fmt.Errorf("interest scheme %d: %w", id, model.ErrNotFound)
	}
	return s, nil
}

func (r *MemoryRepository) CreateInterestScheme(_ context.Context, rate float64, label string) (model.InterestScheme, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := model.InterestScheme{ID: r.id(), Rate: rate, Label: label}
	r.schemes[s.ID] = s
	return s, nil
}

func (r *MemoryRepository) UpdateInterestScheme(_ context.Context, s model.InterestScheme) (model.InterestScheme, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemes[s.ID]; !ok {
		return model.InterestScheme{}, fmt.Errorf("interest scheme %d: %w", s.ID, model.ErrNotFound)
	}
	r.schemes[s.ID] = s
	return s, nil
}

func (r *MemoryRepository) DeleteInterestScheme(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemes[id]; !ok {
		return fmt.Errorf("delete interest scheme: %w", model.ErrNotFound)
	}
	delete(r.schemes, id)
	for rid, gr := range r.rates {
		if gr.InterestSchemeID == id {
			delete(r.rates, rid)
		}
	}
	return nil
}

func (r *MemoryRepository) CreateUser(_ context.Context, username, passwordHash string, role model.Role) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return model.User{}, fmt.Errorf("create user %s: %w", username, ErrConflict)
		}
	}
	u := model.User{ID: r.id(), Username: username, PasswordHash: passwordHash, Role: role}
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryRepository) GetUser(_ context.Context, id int) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return u, nil
}

func (r *MemoryRepository) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("user %s: %w", username, model.ErrNotFound)
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) UpdateUser(_ context.Context, u model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return model.User{}, fmt.Errorf("user %d: %w", u.ID, model.ErrNotFound)
	}
	for _, other := range r.users {
		if other.ID != u.ID && other.Username == u.Username {
			return model.User{}, fmt.Errorf("update user: %w", ErrConflict)
		}
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryRepository) DeleteUser(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("delete user: %w", model.ErrNotFound)
	}
	delete(r.users, id)
	return nil
}
