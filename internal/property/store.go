package property

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Definition creates one property.
type Definition struct {
	Name       string
	Value      Value
	Permission Permission

	// Bounds limits client writes of numeric kinds.
	Bounds *Bounds

	// Choices limits client writes of string kinds. Matching ignores case
	// and the stored value uses the spelling from Choices.
	Choices []string

	// Check runs after parsing, bounds and choices.
	Check func(Value) error
}

// Property is a point-in-time copy of one entry.
type Property struct {
	Name       string
	Value      Value
	Permission Permission
	Bounds     *Bounds
	Choices    []string
	Version    uint64
	UpdatedAt  time.Time
}

// Kind returns the property's kind.
func (p Property) Kind() Kind {
	return p.Value.Kind
}

// MarshalJSON flattens the typed value.
func (p Property) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name       string     `json:"name"`
		Kind       Kind       `json:"kind"`
		Value      any        `json:"value"`
		Permission Permission `json:"permission"`
		Bounds     *Bounds    `json:"bounds,omitempty"`
		Choices    []string   `json:"choices,omitempty"`
		Version    uint64     `json:"version"`
		UpdatedAt  time.Time  `json:"updated_at"`
	}{
		Name:       p.Name,
		Kind:       p.Value.Kind,
		Value:      p.Value.Interface(),
		Permission: p.Permission,
		Bounds:     p.Bounds,
		Choices:    p.Choices,
		Version:    p.Version,
		UpdatedAt:  p.UpdatedAt,
	})
}

// Update is one hardware reading for Apply. A non-zero IfVersion makes the
// update conditional on the entry still being at that version.
type Update struct {
	Name      string
	Value     Value
	IfVersion uint64
}

type entry struct {
	def       Definition
	value     Value
	version   uint64
	updatedAt time.Time
}

func (e *entry) snapshot() Property {
	return Property{
		Name:       e.def.Name,
		Value:      e.value,
		Permission: e.def.Permission,
		Bounds:     e.def.Bounds,
		Choices:    e.def.Choices,
		Version:    e.version,
		UpdatedAt:  e.updatedAt,
	}
}

// Store maps property names to typed, versioned values.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Reads take a shared lock; every commit takes the exclusive lock.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	version uint64
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Define adds a property. Names are unique and the value's kind becomes the
// property's kind for its lifetime.
func (s *Store) Define(d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidValue)
	}
	switch d.Value.Kind {
	case KindInteger, KindFloat, KindBool, KindString:
	default:
		return fmt.Errorf("%w: %s has kind %q", ErrKindMismatch, d.Name, d.Value.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.Name)
	}
	s.entries[d.Name] = &entry{
		def:       d,
		value:     d.Value,
		version:   1,
		updatedAt: s.now(),
	}
	s.version++
	return nil
}

// Len returns the number of properties.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Version returns a counter that moves whenever any entry changes.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot copies every property, sorted by name.
func (s *Store) Snapshot() []Property {
	s.mu.RLock()
	out := make([]Property, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns one property.
func (s *Store) Get(name string) (Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return Property{}, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return e.snapshot(), nil
}

// Validate checks a client write without committing it. It returns the
// parsed value ready for the hardware write.
func (s *Store) Validate(name, raw string) (Value, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	var def Definition
	if ok {
		def = e.def
	}
	s.mu.RUnlock()

	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	if def.Permission != ReadWrite {
		return Value{}, fmt.Errorf("%w: %s", ErrReadOnlyProperty, name)
	}

	v, err := Parse(def.Value.Kind, raw)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", name, err)
	}

	if def.Bounds != nil {
		if f, isNum := v.Number(); isNum && v.Kind != KindBool && !def.Bounds.Contains(f) {
			return Value{}, fmt.Errorf("%w: %s=%s outside [%g, %g]",
				ErrInvalidValue, name, raw, def.Bounds.Min, def.Bounds.Max)
		}
	}

	if len(def.Choices) > 0 && v.Kind == KindString {
		matched := false
		for _, c := range def.Choices {
			if strings.EqualFold(c, v.Str) {
				v.Str = c
				matched = true
				break
			}
		}
		if !matched {
			return Value{}, fmt.Errorf("%w: %s=%q not one of %s",
				ErrInvalidValue, name, v.Str, strings.Join(def.Choices, ","))
		}
	}

	if def.Check != nil {
		if err := def.Check(v); err != nil {
			return Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, name, err)
		}
	}

	return v, nil
}

// Set commits a value regardless of permission. It reports whether the
// stored value changed.
func (s *Store) Set(name string, v Value) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	if e.value.Kind != v.Kind {
		return false, fmt.Errorf("%w: %s is %s, got %s", ErrKindMismatch, name, e.value.Kind, v.Kind)
	}
	if e.value.Equal(v) {
		return false, nil
	}
	s.commit(e, v)
	return true, nil
}

// Apply commits a batch of readings in one critical section and returns the
// properties that changed. Unknown names, kind mismatches, unchanged values
// and stale conditional updates are skipped.
func (s *Store) Apply(updates []Update) []Property {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []Property
	for _, u := range updates {
		e, ok := s.entries[u.Name]
		if !ok || e.value.Kind != u.Value.Kind {
			continue
		}
		if u.IfVersion != 0 && e.version != u.IfVersion {
			continue
		}
		if e.value.Equal(u.Value) {
			continue
		}
		s.commit(e, u.Value)
		changed = append(changed, e.snapshot())
	}
	return changed
}

// commit stores v. Callers hold s.mu exclusively.
func (s *Store) commit(e *entry, v Value) {
	e.value = v
	e.version++
	e.updatedAt = s.now()
	s.version++
}
