package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korimako/scentcover/internal/domain"
	"github.com/korimako/scentcover/internal/source"
)

func poly(sourceID string, seq int64) domain.DetectionPolygon {
	return domain.DetectionPolygon{
		SourceID:  sourceID,
		Sequence:  seq,
		Timestamp: time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second),
		AreaM2:    float64(seq) * 100,
	}
}

func TestStore_InsertAdvancesWatermark(t *testing.T) {
	s := newPolygonStore()
	info := source.Info{ID: "tracker-01", Name: "Alpha"}

	n := s.insert(info, []domain.DetectionPolygon{poly("tracker-01", 1), poly("tracker-01", 2)})
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), s.watermark("tracker-01"))

	n = s.insert(info, []domain.DetectionPolygon{poly("tracker-01", 3)})
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(3), s.watermark("tracker-01"))
}

func TestStore_ReplayBelowWatermarkIgnored(t *testing.T) {
	s := newPolygonStore()
	info := source.Info{ID: "tracker-01"}

	s.insert(info, []domain.DetectionPolygon{poly("tracker-01", 1), poly("tracker-01", 2)})
	n := s.insert(info, []domain.DetectionPolygon{poly("tracker-01", 1), poly("tracker-01", 2)})

	assert.Zero(t, n)
	assert.Equal(t, int64(2), s.watermark("tracker-01"))
	assert.Len(t, s.bySource("tracker-01"), 2)
}

func TestStore_DuplicateWithinBatchIgnored(t *testing.T) {
	s := newPolygonStore()
	info := source.Info{ID: "tracker-01"}

	n := s.insert(info, []domain.DetectionPolygon{poly("tracker-01", 5), poly("tracker-01", 5)})
	assert.Equal(t, 1, n)
	assert.Len(t, s.bySource("tracker-01"), 1)
}

func TestStore_BySourceOrdered(t *testing.T) {
	s := newPolygonStore()
	info := source.Info{ID: "tracker-01"}

	// Out-of-order arrival within one batch still stores everything above the
	// watermark; reads come back in sequence order.
	s.insert(info, []domain.DetectionPolygon{poly("tracker-01", 3), poly("tracker-01", 1), poly("tracker-01", 2)})

	got := s.bySource("tracker-01")
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Sequence)
	assert.Equal(t, int64(2), got[1].Sequence)
	assert.Equal(t, int64(3), got[2].Sequence)
}

func TestStore_AllSpansSources(t *testing.T) {
	s := newPolygonStore()
	s.insert(source.Info{ID: "a"}, []domain.DetectionPolygon{poly("a", 1)})
	s.insert(source.Info{ID: "b"}, []domain.DetectionPolygon{poly("b", 1), poly("b", 2)})

	assert.Len(t, s.all(), 3)
}

func TestStore_Latest(t *testing.T) {
	s := newPolygonStore()
	info := source.Info{ID: "tracker-01"}

	_, ok := s.latest("tracker-01")
	assert.False(t, ok)

	s.insert(info, []domain.DetectionPolygon{poly("tracker-01", 1), poly("tracker-01", 4)})
	p, ok := s.latest("tracker-01")
	require.True(t, ok)
	assert.Equal(t, int64(4), p.Sequence)
}

func TestStore_Statuses(t *testing.T) {
	s := newPolygonStore()
	s.insert(source.Info{ID: "b", Name: "Bravo"}, []domain.DetectionPolygon{poly("b", 2)})
	s.insert(source.Info{ID: "a"}, []domain.DetectionPolygon{poly("a", 1)})

	got := s.statuses()
	require.Len(t, got, 2)
	assert.Equal(t, SourceStatus{ID: "a", Name: "a", Watermark: 1, PolygonCount: 1}, got[0])
	assert.Equal(t, SourceStatus{ID: "b", Name: "Bravo", Watermark: 2, PolygonCount: 1}, got[1])
}
