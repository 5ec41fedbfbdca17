package values

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownKey is returned when a key was never bound by any widget.
var ErrUnknownKey = errors.New("unknown binding key")

// Key names one logical device value. Keys are unique per dashboard.
type Key string

// slot holds one binding with its version counter and the observer handles
// interested in it. Observers are fixed at registration time and never
// mutated afterwards.
type slot struct {
	key       Key
	value     Value
	version   uint64
	observers []int
}

// Store maps binding keys to current values with change tracking. The table
// is filled during dashboard construction and sealed before the first tick;
// writes after sealing are O(1) lookups against the fixed table. The store is
// mutated only from the single driving goroutine, so it carries no locks.
type Store struct {
	slots  map[Key]*slot
	order  []Key
	sealed bool
	dirty  map[int]struct{}
}

// NewStore creates an empty store sized for the expected key count.
func NewStore(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{
		slots: make(map[Key]*slot, capacity),
		order: make([]Key, 0, capacity),
		dirty: make(map[int]struct{}, capacity),
	}
}

// Register creates the slot for a key if it does not exist yet. Registration
// happens implicitly through widget bindings during construction; after Seal
// the table is fixed.
func (s *Store) Register(key Key) error {
	if key == "" {
		return fmt.Errorf("binding key must not be empty")
	}
	if s.sealed {
		return fmt.Errorf("store is sealed, cannot register %q", key)
	}
	if _, ok := s.slots[key]; ok {
		return nil
	}
	s.slots[key] = &slot{key: key}
	s.order = append(s.order, key)
	return nil
}

// Observe records that the given observer handle must be marked dirty when
// key changes. Only valid before Seal.
func (s *Store) Observe(key Key, observer int) error {
	sl, ok := s.slots[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if s.sealed {
		return fmt.Errorf("store is sealed, cannot observe %q", key)
	}
	sl.observers = append(sl.observers, observer)
	return nil
}

// Seal freezes the key table. Set fails for unknown keys from here on.
func (s *Store) Seal() {
	s.sealed = true
}

// Len reports the number of registered keys.
func (s *Store) Len() int { return len(s.slots) }

// Keys returns the keys in registration order.
func (s *Store) Keys() []Key {
	out := make([]Key, len(s.order))
	copy(out, s.order)
	return out
}

// Set stores a new value, bumps the version counter and marks every
// observing widget dirty. It returns the previous version.
func (s *Store) Set(key Key, v Value) (uint64, error) {
	sl, ok := s.slots[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := CheckFinite(v); err != nil {
		return sl.version, fmt.Errorf("set %q: %w", key, err)
	}
	prev := sl.version
	sl.value = v
	sl.version++
	for _, obs := range sl.observers {
		s.dirty[obs] = struct{}{}
	}
	return prev, nil
}

// Get returns the current value and its version. Unset slots report a
// KindUnset value at version zero.
func (s *Store) Get(key Key) (Value, uint64) {
	sl, ok := s.slots[key]
	if !ok {
		return Value{}, 0
	}
	return sl.value, sl.version
}

// Version returns the write counter for a key without touching the value.
func (s *Store) Version(key Key) uint64 {
	sl, ok := s.slots[key]
	if !ok {
		return 0
	}
	return sl.version
}

// IsUnset reports whether the key exists but was never written.
func (s *Store) IsUnset(key Key) bool {
	sl, ok := s.slots[key]
	if !ok {
		return true
	}
	return sl.version == 0
}

// Has reports whether the key is registered.
func (s *Store) Has(key Key) bool {
	_, ok := s.slots[key]
	return ok
}

// MarkDirty flags an observer without a value write; used for style
// mutations, which dirty a widget exactly like a bound value change.
func (s *Store) MarkDirty(observer int) {
	s.dirty[observer] = struct{}{}
}

// DrainDirty returns the observers dirtied since the last drain, in
// ascending order, and clears the set.
func (s *Store) DrainDirty() []int {
	if len(s.dirty) == 0 {
		return nil
	}
	out := make([]int, 0, len(s.dirty))
	for obs := range s.dirty {
		out = append(out, obs)
	}
	for obs := range s.dirty {
		delete(s.dirty, obs)
	}
	sort.Ints(out)
	return out
}
