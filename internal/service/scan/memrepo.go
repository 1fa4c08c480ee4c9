package scan

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/ChessSnap-PDF/internal/domain"
)

// memrepo is a development-only in-memory repository implementation used when no DB is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID    int64
	bySession map[string][]*domain.Analysis // sessionHash -> slice (append, latest last)
}

func NewMemoryRepository() Repository {
	return &memrepo{bySession: make(map[string][]*domain.Analysis)}
}

func (m *memrepo) InsertAnalysis(ctx context.Context, analysis *domain.Analysis) (int64, error) {
	if analysis == nil {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	copy := *analysis
	copy.ID = m.nextID
	m.bySession[analysis.SessionHash] = append(m.bySession[analysis.SessionHash], &copy)
	return copy.ID, nil
}

func (m *memrepo) GetRecentAnalyses(ctx context.Context, sessionHash string, limit int) ([]*domain.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.bySession[sessionHash]
	if len(list) == 0 {
		return []*domain.Analysis{}, nil
	}
	items := append([]*domain.Analysis(nil), list...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].DetectedAt.Equal(items[j].DetectedAt) {
			return items[i].DetectedAt.After(items[j].DetectedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
