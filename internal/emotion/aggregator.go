package emotion

import (
	"github.com/myrjola/hotline/internal/models"
	"slices"
	"sync"
	"time"
)

// Aggregator holds the latest snapshot and the full timeline for one interview.
//
// It is safe for one writer and any number of concurrent readers.
type Aggregator struct {
	mu       sync.RWMutex
	latest   *models.EmotionSnapshot
	timeline []models.EmotionSnapshot
	now      func() time.Time
}

// NewAggregator creates an Aggregator. A nil now defaults to time.Now.
func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		mu:       sync.RWMutex{},
		latest:   nil,
		timeline: nil,
		now:      now,
	}
}

// Update aggregates predictions into a new snapshot and records it.
//
// Empty updates are ignored so that silence does not erase the last known state.
func (a *Aggregator) Update(predictions []models.EmotionPrediction) (models.EmotionSnapshot, bool) {
	if len(predictions) == 0 {
		return models.EmotionSnapshot{}, false
	}
	snapshot := Aggregate(predictions, a.now().UTC())

	a.mu.Lock()
	defer a.mu.Unlock()
	a.latest = &snapshot
	a.timeline = append(a.timeline, snapshot)
	return snapshot, true
}

// Latest returns the most recent snapshot, or false before the first update.
func (a *Aggregator) Latest() (models.EmotionSnapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.latest == nil {
		return models.EmotionSnapshot{}, false
	}
	return *a.latest, true
}

// Timeline returns a copy of every recorded snapshot in arrival order.
func (a *Aggregator) Timeline() []models.EmotionSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.timeline)
}
