package aggregator

import (
	"sort"
	"sync"

	"github.com/korimako/scentcover/internal/domain"
	"github.com/korimako/scentcover/internal/source"
)

// polygonStore memoizes detection polygons keyed by (source, sequence) and
// tracks each source's watermark. Polygons are immutable once inserted
// (measurements never change), so the store only ever grows.
type polygonStore struct {
	mu         sync.RWMutex
	polys      map[string]map[int64]domain.DetectionPolygon
	order      map[string][]int64 // ascending sequence numbers per source
	watermarks map[string]int64
	names      map[string]string
}

func newPolygonStore() *polygonStore {
	return &polygonStore{
		polys:      make(map[string]map[int64]domain.DetectionPolygon),
		order:      make(map[string][]int64),
		watermarks: make(map[string]int64),
		names:      make(map[string]string),
	}
}

// watermark returns the highest sequence memoized for a source (0 if none).
func (s *polygonStore) watermark(sourceID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermarks[sourceID]
}

// insert memoizes a batch of polygons for one source and then advances the
// watermark. The watermark moves only after every polygon is stored, so a
// crash mid-batch re-fetches the unprocessed tail instead of skipping it.
// Polygons at or below the current watermark are ignored (replay safety).
// Returns the number of polygons actually inserted.
func (s *polygonStore) insert(info source.Info, batch []domain.DetectionPolygon) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info.Name != "" {
		s.names[info.ID] = info.Name
	} else if _, ok := s.names[info.ID]; !ok {
		s.names[info.ID] = info.ID
	}

	bySeq := s.polys[info.ID]
	if bySeq == nil {
		bySeq = make(map[int64]domain.DetectionPolygon)
		s.polys[info.ID] = bySeq
	}

	inserted := 0
	highest := s.watermarks[info.ID]
	for _, p := range batch {
		if p.Sequence <= s.watermarks[info.ID] {
			continue
		}
		if _, dup := bySeq[p.Sequence]; dup {
			continue
		}
		bySeq[p.Sequence] = p
		s.order[info.ID] = append(s.order[info.ID], p.Sequence)
		inserted++
		if p.Sequence > highest {
			highest = p.Sequence
		}
	}
	if inserted > 0 {
		sort.Slice(s.order[info.ID], func(i, j int) bool {
			return s.order[info.ID][i] < s.order[info.ID][j]
		})
		s.watermarks[info.ID] = highest
	}
	return inserted
}

// all returns every stored polygon across all sources.
func (s *polygonStore) all() []domain.DetectionPolygon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DetectionPolygon
	for id := range s.polys {
		out = append(out, s.bySourceLocked(id)...)
	}
	return out
}

// bySource returns one source's polygons in ascending sequence order.
func (s *polygonStore) bySource(sourceID string) []domain.DetectionPolygon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySourceLocked(sourceID)
}

func (s *polygonStore) bySourceLocked(sourceID string) []domain.DetectionPolygon {
	seqs := s.order[sourceID]
	out := make([]domain.DetectionPolygon, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, s.polys[sourceID][seq])
	}
	return out
}

// latest returns the highest-sequence polygon for a source.
func (s *polygonStore) latest(sourceID string) (domain.DetectionPolygon, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seqs := s.order[sourceID]
	if len(seqs) == 0 {
		return domain.DetectionPolygon{}, false
	}
	return s.polys[sourceID][seqs[len(seqs)-1]], true
}

// SourceStatus summarizes one tracked source for consumers.
type SourceStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Watermark    int64  `json:"watermark"`
	PolygonCount int    `json:"polygon_count"`
}

// statuses lists every known source, sorted by ID.
func (s *polygonStore) statuses() []SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SourceStatus, 0, len(s.names))
	for id, name := range s.names {
		out = append(out, SourceStatus{
			ID:           id,
			Name:         name,
			Watermark:    s.watermarks[id],
			PolygonCount: len(s.polys[id]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
