package predict

import (
	"sync"

	"github.com/review3/liveness-cam/pkg/types"
)

// Store is the single slot holding the most recent detection list. It is
// written only by the prediction loop and read only by the render loop; each
// write replaces the list wholesale.
//
// Writes are tagged with a session epoch. Stopping a session bumps the epoch,
// so a prediction response that resolves after stop carries a stale epoch and
// cannot resurrect the slot. Within one epoch the last write wins, matching
// the overlap semantics of the prediction timer.
type Store struct {
	mu         sync.RWMutex
	epoch      uint64
	detections []types.Detection
}

// NewStore creates an empty detection store.
func NewStore() *Store {
	return &Store{}
}

// Begin clears the slot, advances the epoch and returns it. Called when a
// session starts; the returned epoch tags every write of that session.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.detections = nil
	return s.epoch
}

// Invalidate clears the slot and advances the epoch so in-flight writes from
// the previous session are discarded. Called on stop.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.detections = nil
}

// Replace installs a new detection list if epoch is still current. Returns
// whether the write was applied.
func (s *Store) Replace(epoch uint64, detections []types.Detection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.detections = detections
	return true
}

// Clear empties the slot if epoch is still current. Used on failed cycles:
// prefer drawing nothing over drawing stale boxes.
func (s *Store) Clear(epoch uint64) bool {
	return s.Replace(epoch, nil)
}

// Snapshot returns a copy of the current detection list.
func (s *Store) Snapshot() []types.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.detections) == 0 {
		return nil
	}
	out := make([]types.Detection, len(s.detections))
	copy(out, s.detections)
	return out
}

// Len returns the number of detections currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.detections)
}
