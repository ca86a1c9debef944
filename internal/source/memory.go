package source

import (
	"context"
	"sort"
	"sync"

	"github.com/korimako/scentcover/internal/domain"
)

// Memory is a thread-safe in-memory Source, used by tests, the track
// simulator, and as the backing store for the file source.
type Memory struct {
	mu    sync.RWMutex
	names map[string]string
	data  map[string][]domain.Measurement // ascending by sequence
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{
		names: make(map[string]string),
		data:  make(map[string][]domain.Measurement),
	}
}

// Add inserts measurements, keeping each tracker's slice ordered by sequence.
func (s *Memory) Add(ms ...domain.Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	touched := make(map[string]struct{})
	for _, m := range ms {
		s.data[m.SourceID] = append(s.data[m.SourceID], m)
		if m.SourceName != "" {
			s.names[m.SourceID] = m.SourceName
		} else if _, ok := s.names[m.SourceID]; !ok {
			s.names[m.SourceID] = m.SourceID
		}
		touched[m.SourceID] = struct{}{}
	}
	for id := range touched {
		list := s.data[id]
		sort.Slice(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
	}
}

func (s *Memory) ListSources(_ context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]Info, 0, len(s.names))
	for id, name := range s.names {
		infos = append(infos, Info{ID: id, Name: name})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (s *Memory) All(_ context.Context, sourceID string) ([]domain.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Measurement(nil), s.data[sourceID]...), nil
}

func (s *Memory) NewerThan(_ context.Context, sourceID string, afterSeq int64) ([]domain.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.data[sourceID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].Sequence > afterSeq })
	return append([]domain.Measurement(nil), list[idx:]...), nil
}

func (s *Memory) Latest(_ context.Context, sourceID string) (domain.Measurement, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.data[sourceID]
	if len(list) == 0 {
		return domain.Measurement{}, false, nil
	}
	return list[len(list)-1], true, nil
}
