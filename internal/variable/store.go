package variable

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Limits for names and stored string values.
const (
	// MaxNameLen is the maximum length of a variable name.
	MaxNameLen = 32

	// MaxStringLen is the maximum length of a stored string value.
	// Longer values are silently truncated.
	MaxStringLen = 64
)

// Kind identifies the type of a variable value.
type Kind int

// Variable kinds.
const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

// String returns the kind name for logging and API responses.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged variable value. Exactly one payload field is
// meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Int returns an integer Value.
func Int(v int64) Value { return Value{Kind: KindInt, Int: v} }

// Float returns a float Value.
func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// String returns a string Value, truncated to MaxStringLen.
func String(v string) Value {
	if len(v) > MaxStringLen {
		v = v[:MaxStringLen]
	}
	return Value{Kind: KindString, Str: v}
}

// Format renders the value the way placeholder expansion inserts it:
// bools as true/false, ints in decimal, floats with two decimal places,
// strings verbatim.
func (v Value) Format() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return fmt.Sprintf("%.2f", v.Float)
	case KindString:
		return v.Str
	default:
		return ""
	}
}

// ChangeFunc is invoked after a variable is set or removed.
// A removal is signalled with ok=false.
type ChangeFunc func(name string, v Value, ok bool)

// Store holds named typed variables.
type Store struct {
	mu       sync.RWMutex
	vars     map[string]Value
	onChange ChangeFunc
}

// NewStore creates an empty variable store.
func NewStore() *Store {
	return &Store{
		vars: make(map[string]Value),
	}
}

// OnChange registers a notification hook invoked after every successful
// Set or Unregister. Only one hook is supported; a later call replaces
// the earlier one. The hook runs outside the store lock.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Set stores a value under the given name, creating the variable if it
// does not exist. String values are silently truncated to MaxStringLen.
func (s *Store) Set(name string, v Value) error {
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if v.Kind == KindString && len(v.Str) > MaxStringLen {
		v.Str = v.Str[:MaxStringLen]
	}

	s.mu.Lock()
	s.vars[name] = v
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(name, v, true)
	}
	return nil
}

// SetBool stores a boolean variable.
func (s *Store) SetBool(name string, v bool) error { return s.Set(name, Bool(v)) }

// SetInt stores an integer variable.
func (s *Store) SetInt(name string, v int64) error { return s.Set(name, Int(v)) }

// SetFloat stores a float variable.
func (s *Store) SetFloat(name string, v float64) error { return s.Set(name, Float(v)) }

// SetString stores a string variable, truncating to MaxStringLen.
func (s *Store) SetString(name, v string) error { return s.Set(name, String(v)) }

// Get returns the value of a variable.
//
// Returns ErrNotFound if the variable does not exist.
func (s *Store) Get(name string) (Value, error) {
	s.mu.RLock()
	v, ok := s.vars[name]
	s.mu.RUnlock()
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return v, nil
}

// Exists reports whether a variable is present.
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	_, ok := s.vars[name]
	s.mu.RUnlock()
	return ok
}

// Unregister removes a variable.
//
// Returns ErrNotFound if the variable does not exist.
func (s *Store) Unregister(name string) error {
	s.mu.Lock()
	_, ok := s.vars[name]
	if ok {
		delete(s.vars, name)
	}
	fn := s.onChange
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if fn != nil {
		fn(name, Value{}, false)
	}
	return nil
}

// List returns a snapshot of all variables, sorted by name.
func (s *Store) List() []NamedValue {
	s.mu.RLock()
	out := make([]NamedValue, 0, len(s.vars))
	for name, v := range s.vars {
		out = append(out, NamedValue{Name: name, Value: v})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NamedValue pairs a variable name with its value for listings.
type NamedValue struct {
	Name  string
	Value Value
}
