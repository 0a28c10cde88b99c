package credpool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store used in tests and credential-less local
// runs. It mirrors the relational store's atomic-update semantics under
// a single mutex.
type MemStore struct {
	mu    sync.Mutex
	creds map[string]*Credential
}

// NewMemStore creates an empty in-memory credential store.
func NewMemStore() *MemStore {
	return &MemStore{creds: make(map[string]*Credential)}
}

var errNotFound = fmt.Errorf("credential not found")

func (s *MemStore) Create(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *cred
	s.creds[cred.ID] = &clone
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return nil, errNotFound
	}
	clone := *cred
	return &clone, nil
}

func (s *MemStore) Update(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[cred.ID]; !ok {
		return errNotFound
	}
	clone := *cred
	s.creds[cred.ID] = &clone
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[id]; !ok {
		return errNotFound
	}
	delete(s.creds, id)
	return nil
}

func (s *MemStore) ListByPlatform(ctx context.Context, platform string) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Credential
	for _, cred := range s.creds {
		if cred.Platform == platform {
			out = append(out, *cred)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastUsedAt, out[j].LastUsedAt
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	return out, nil
}

func (s *MemStore) MarkSelected(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return errNotFound
	}
	cred.Status = StatusHealthy
	cred.CooldownUntil = nil
	cred.UseCount++
	t := now
	cred.LastUsedAt = &t
	return nil
}

func (s *MemStore) IncrementSuccess(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return errNotFound
	}
	cred.SuccessCount++
	return nil
}

func (s *MemStore) IncrementError(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return 0, errNotFound
	}
	cred.ErrorCount++
	return cred.ErrorCount, nil
}

func (s *MemStore) SetCooldown(ctx context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return errNotFound
	}
	cred.Status = StatusCooldown
	t := until
	cred.CooldownUntil = &t
	return nil
}

func (s *MemStore) SetStatus(ctx context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[id]
	if !ok {
		return errNotFound
	}
	cred.Status = status
	return nil
}

func (s *MemStore) Stats(ctx context.Context, platform string) (*PoolStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &PoolStats{
		Platform: platform,
		ByStatus: make(map[Status]int64),
	}
	for _, cred := range s.creds {
		if cred.Platform != platform {
			continue
		}
		stats.Total++
		stats.ByStatus[cred.Status]++
		stats.UseCount += cred.UseCount
		stats.SuccessCount += cred.SuccessCount
		stats.ErrorCount += cred.ErrorCount
	}
	return stats, nil
}
