package engine

// OrderedSet keeps unique values in first-insertion order.
//
// The zero value is ready to use.
type OrderedSet[T comparable] struct {
	seen   map[T]struct{}
	values []T
}

// Add inserts v unless it is already present.
// Returns true if v was added.
func (s *OrderedSet[T]) Add(v T) bool {
	if s.seen == nil {
		s.seen = make(map[T]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
	return true
}

// Contains reports whether v has been added.
func (s *OrderedSet[T]) Contains(v T) bool {
	_, ok := s.seen[v]
	return ok
}

// Len returns the number of distinct values.
func (s *OrderedSet[T]) Len() int {
	return len(s.values)
}

// Values returns a copy of the values in insertion order.
// Never returns nil.
func (s *OrderedSet[T]) Values() []T {
	out := make([]T, len(s.values))
	copy(out, s.values)
	return out
}
