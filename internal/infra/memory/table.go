package memory

import (
	"sync"

	"evaly-service/internal/domain"
)

// table is a mutex-guarded map that remembers insertion order, which stands in for the
// creation-time index of the document store.
type table[T any] struct {
	mu    sync.RWMutex
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) insert(id string, row T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func (t *table[T]) get(id string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, domain.ErrNotFound
	}
	return row, nil
}

func (t *table[T]) update(id string, row T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return domain.ErrNotFound
	}
	t.rows[id] = row
	return nil
}

// filter returns matching rows in insertion order.
func (t *table[T]) filter(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []T
	for _, id := range t.order {
		if row := t.rows[id]; keep(row) {
			out = append(out, row)
		}
	}
	return out
}
