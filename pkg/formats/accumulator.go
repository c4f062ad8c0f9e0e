package formats

// Accumulator collects values under keys that may repeat. Join returns the
// entry a new item with key should be added to, creating one with create when
// none qualifies. Push always opens a new entry.
type Accumulator[K comparable, V any] interface {
	Join(key K, create func() V) V
	Push(key K, value V)
	Values() []V
	Len() int
}

// NewAccumulator returns a GroupedAccumulator when join is set and an
// OrderedAccumulator otherwise.
func NewAccumulator[K comparable, V any](join bool) Accumulator[K, V] {
	if join {
		return &GroupedAccumulator[K, V]{index: make(map[K]int)}
	}
	return &OrderedAccumulator[K, V]{}
}

// GroupedAccumulator joins an item into the most recent entry with the same
// key, no matter how many other entries were opened since.
type GroupedAccumulator[K comparable, V any] struct {
	values []V
	index  map[K]int
}

// Join implements Accumulator.
func (a *GroupedAccumulator[K, V]) Join(key K, create func() V) V {
	if i, ok := a.index[key]; ok {
		return a.values[i]
	}
	v := create()
	a.Push(key, v)
	return v
}

// Push implements Accumulator.
func (a *GroupedAccumulator[K, V]) Push(key K, value V) {
	a.index[key] = len(a.values)
	a.values = append(a.values, value)
}

// Values returns the entries in the order they were opened.
func (a *GroupedAccumulator[K, V]) Values() []V { return a.values }

// Len returns the number of entries.
func (a *GroupedAccumulator[K, V]) Len() int { return len(a.values) }

// OrderedAccumulator joins an item only into the final entry, and only when
// the keys match. Interleaved keys therefore keep their original order.
type OrderedAccumulator[K comparable, V any] struct {
	values  []V
	lastKey K
}

// Join implements Accumulator.
func (a *OrderedAccumulator[K, V]) Join(key K, create func() V) V {
	if len(a.values) > 0 && a.lastKey == key {
		return a.values[len(a.values)-1]
	}
	v := create()
	a.Push(key, v)
	return v
}

// Push implements Accumulator.
func (a *OrderedAccumulator[K, V]) Push(key K, value V) {
	a.lastKey = key
	a.values = append(a.values, value)
}

// Values returns the entries in the order they were opened.
func (a *OrderedAccumulator[K, V]) Values() []V { return a.values }

// Len returns the number of entries.
func (a *OrderedAccumulator[K, V]) Len() int { return len(a.values) }
