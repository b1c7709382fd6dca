package concurrent

import "sync"

// Slice is a mutex-guarded append-only slice. The ingestion loop uses it to
// collect metadata rows from parallel message workers without coordinating
// result ordering up front.
type Slice[V any] struct {
	mu     sync.RWMutex
	values []V
}

func NewSlice[V any]() *Slice[V] {
	return &Slice[V]{}
}

func (s *Slice[V]) Append(values ...V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = append(s.values, values...)
}

func (s *Slice[V]) Length() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.values)
}

// All returns a copy of the collected values.
func (s *Slice[V]) All() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]V(nil), s.values...)
}

func (s *Slice[V]) Range(f func(index int, value V) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, v := range s.values {
		if !f(i, v) {
			break
		}
	}
}
