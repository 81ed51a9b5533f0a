package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/park285/chess-arena/internal/domain"
)

// memrepo는 DATABASE_URL이 없을 때 쓰는 프로세스 내 기록 저장소.
type memrepo struct {
	mu     sync.RWMutex
	nextID int64
	byUUID map[string]*domain.ArenaGame
}

func NewMemoryRepository() Repository {
	return &memrepo{byUUID: make(map[string]*domain.ArenaGame)}
}

func (m *memrepo) SaveGame(ctx context.Context, g *domain.ArenaGame) error {
	if g == nil {
		return errors.New("nil arena game payload")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneGame(g)
	if prev, ok := m.byUUID[g.GameUUID]; ok {
		cp.ID = prev.ID
	} else {
		m.nextID++
		cp.ID = m.nextID
	}
	m.byUUID[g.GameUUID] = cp
	return nil
}

func (m *memrepo) RecentGames(ctx context.Context, limit int) ([]*domain.ArenaGame, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	all := make([]*domain.ArenaGame, 0, len(m.byUUID))
	for _, g := range m.byUUID {
		all = append(all, cloneGame(g))
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].EndedAt.Equal(all[j].EndedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].EndedAt.After(all[j].EndedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memrepo) GetGame(ctx context.Context, gameUUID string) (*domain.ArenaGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.byUUID[gameUUID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return cloneGame(g), nil
}

func (m *memrepo) ModelRecords(ctx context.Context) ([]domain.ModelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make(map[string]*domain.ModelRecord)
	get := func(model string) *domain.ModelRecord {
		rec, ok := records[model]
		if !ok {
			rec = &domain.ModelRecord{Model: model}
			records[model] = rec
		}
		return rec
	}
	for _, g := range m.byUUID {
		w, b := get(g.WhiteModel), get(g.BlackModel)
		w.Games++
		b.Games++
		w.Fallbacks += g.WhiteFallbacks
		b.Fallbacks += g.BlackFallbacks
		switch g.Result {
		case "1-0":
			w.Wins++
			b.Losses++
		case "0-1":
			b.Wins++
			w.Losses++
		case "1/2-1/2":
			w.Draws++
			b.Draws++
		}
	}

	out := make([]domain.ModelRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

func (m *memrepo) Close() error { return nil }

func cloneGame(g *domain.ArenaGame) *domain.ArenaGame {
	cp := *g
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &cp
}
