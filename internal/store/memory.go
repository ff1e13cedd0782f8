package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
)

// MemoryStore keeps stats in process. Used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	stats   map[string]*PlayerStats
	games   []GameRecord
	nextID  uint
	closed  bool
	nowFunc func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stats:   make(map[string]*PlayerStats),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) RecordResults(_ context.Context, lobbyCode string, results []engine.PlayerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	now := s.nowFunc()
	for _, r := range results {
		key := playerKey(r)
		st, ok := s.stats[key]
		if !ok {
			s.nextID++
			st = &PlayerStats{ID: s.nextID, PlayerKey: key, CreatedAt: now}
			s.stats[key] = st
		}
		st.Name = displayName(r)
		st.UpdatedAt = now
		applyResult(st, r)
	}
	s.games = append(s.games, GameRecord{
		ID:         uint(len(s.games) + 1),
		LobbyCode:  lobbyCode,
		WinnerName: winnerName(results),
		Players:    len(results),
		FinishedAt: now,
	})
	return nil
}

// Leaderboard ranks by wins, then fewer games played, then name.
func (s *MemoryStore) Leaderboard(_ context.Context, limit int) ([]PlayerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	out := make([]PlayerStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GamesWon != out[j].GamesWon {
			return out[i].GamesWon > out[j].GamesWon
		}
		if out[i].GamesPlayed != out[j].GamesPlayed {
			return out[i].GamesPlayed < out[j].GamesPlayed
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Games() []GameRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GameRecord, len(s.games))
	copy(out, s.games)
	return out
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
