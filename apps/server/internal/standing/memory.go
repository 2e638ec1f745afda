package standing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"parley-lite/conversation"
)

type memoryKey struct {
	playerID uint64
	npcID    string
}

type memoryService struct {
	mu    sync.RWMutex
	store map[memoryKey]*Standing
}

func NewMemoryService() Service {
	return &memoryService{store: make(map[memoryKey]*Standing)}
}

func (s *memoryService) Close() error { return nil }

func (s *memoryService) Get(_ context.Context, playerID uint64, npcID string) (*Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if existing := s.store[memoryKey{playerID, npcID}]; existing != nil {
		return clone(existing), nil
	}
	return emptyStanding(playerID, npcID), nil
}

func (s *memoryService) List(_ context.Context, playerID uint64) ([]Standing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Standing, 0)
	for k, st := range s.store {
		if k.playerID == playerID {
			out = append(out, *clone(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NPCID < out[j].NPCID })
	return out, nil
}

func (s *memoryService) Apply(_ context.Context, playerID uint64, npcID string, outcome *conversation.Outcome) (*Standing, error) {
	if playerID == 0 || npcID == "" {
		return nil, fmt.Errorf("invalid standing key %d/%q", playerID, npcID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{playerID, npcID}
	st := s.store[key]
	if st == nil {
		st = emptyStanding(playerID, npcID)
	} else {
		st = clone(st)
	}
	if err := apply(st, outcome, time.Now()); err != nil {
		return nil, err
	}
	s.store[key] = st
	return clone(st), nil
}

func clone(s *Standing) *Standing {
	cp := *s
	cp.GoalsCompleted = append([]string{}, s.GoalsCompleted...)
	return &cp
}
