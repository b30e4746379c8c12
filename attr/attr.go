// Package attr provides the typed, observable key/value store attached to
// every node and frame.
//
// Keys keep their insertion order so that a store can be serialized in a
// stable way. Once a key exists its kind is fixed: writing a value of another
// kind fails with a TypeMismatchError. Observers subscribed to a key are
// called synchronously after every successful write of that key.
package attr

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrTypeMismatch is matched by every TypeMismatchError.
	ErrTypeMismatch = errors.New("attribute type mismatch")
	// ErrNotFound is returned when a key is not present.
	ErrNotFound = errors.New("attribute not found")
)

// TypeMismatchError is returned when a value is read or written as a kind
// other than the one it holds.
type TypeMismatchError struct {
	Key  string
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%v: want %v, got %v", ErrTypeMismatch, e.Want, e.Got)
	}
	return fmt.Sprintf("%v: %q want %v, got %v", ErrTypeMismatch, e.Key, e.Want, e.Got)
}

// Is allows errors.Is(err, ErrTypeMismatch).
func (e *TypeMismatchError) Is(err error) bool {
	return err == ErrTypeMismatch
}

// ObserverFunc is called after a key is written.
type ObserverFunc func(key string, v Value)

type observer struct {
	id int
	fn ObserverFunc
}

// Store is an ordered map of attributes. It's safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	keys      []string
	values    map[string]Value
	observers map[string][]observer
	next      int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		values:    make(map[string]Value),
		observers: make(map[string][]observer),
	}
}

// Declare adds a key with its default value if it's not present yet.
// Declared keys fix the kind for later writes.
func (s *Store) Declare(key string, v Value) *Store {
	s.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
		s.values[key] = v
	}
	s.mu.Unlock()
	return s
}

// Set writes a value. New keys are appended, existing keys keep their kind.
func (s *Store) Set(key string, v Value) error {
	if !v.Valid() {
		return errors.Errorf("attribute %q: invalid value", key)
	}
	s.mu.Lock()
	old, ok := s.values[key]
	if ok && !compatible(old.kind, v.kind) {
		s.mu.Unlock()
		return &TypeMismatchError{Key: key, Want: old.kind, Got: v.kind}
	}
	if ok && old.kind == Float && v.kind == Int {
		v = FloatValue(float64(v.i))
	}
	if !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
	obs := make([]observer, len(s.observers[key]))
	copy(obs, s.observers[key])
	s.mu.Unlock()

	for _, o := range obs {
		o.fn(key, v)
	}
	return nil
}

// SetInt writes an integer.
func (s *Store) SetInt(key string, v int) error {
	return s.Set(key, IntValue(v))
}

// SetFloat writes a floating point number.
func (s *Store) SetFloat(key string, v float64) error {
	return s.Set(key, FloatValue(v))
}

// SetString writes a string.
func (s *Store) SetString(key string, v string) error {
	return s.Set(key, StringValue(v))
}

// SetNumbers writes a list of numbers.
func (s *Store) SetNumbers(key string, v ...float64) error {
	return s.Set(key, NumbersValue(v...))
}

// SetHandle writes an opaque handle.
func (s *Store) SetHandle(key string, v interface{}) error {
	return s.Set(key, HandleValue(v))
}

// Get returns the value for key.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Valid reports whether key is present.
func (s *Store) Valid(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Int reads an integer.
func (s *Store) Int(key string) (int, error) {
	v, ok := s.Get(key)
	if !ok {
		return 0, notFound(key)
	}
	i, err := v.Int()
	return i, keyed(key, err)
}

// Float reads a number.
func (s *Store) Float(key string) (float64, error) {
	v, ok := s.Get(key)
	if !ok {
		return 0, notFound(key)
	}
	f, err := v.Float()
	return f, keyed(key, err)
}

// String reads a string.
func (s *Store) String(key string) (string, error) {
	v, ok := s.Get(key)
	if !ok {
		return "", notFound(key)
	}
	str, err := v.Str()
	return str, keyed(key, err)
}

// Numbers reads a list of numbers.
func (s *Store) Numbers(key string) ([]float64, error) {
	v, ok := s.Get(key)
	if !ok {
		return nil, notFound(key)
	}
	n, err := v.Numbers()
	return n, keyed(key, err)
}

// Handle reads an opaque handle.
func (s *Store) Handle(key string) (interface{}, error) {
	v, ok := s.Get(key)
	if !ok {
		return nil, notFound(key)
	}
	h, err := v.Handle()
	return h, keyed(key, err)
}

// IntOr reads an integer, falling back to def when absent or of another kind.
func (s *Store) IntOr(key string, def int) int {
	if i, err := s.Int(key); err == nil {
		return i
	}
	return def
}

// FloatOr reads a number, falling back to def when absent or of another kind.
func (s *Store) FloatOr(key string, def float64) float64 {
	if f, err := s.Float(key); err == nil {
		return f
	}
	return def
}

// StringOr reads a string, falling back to def when absent or of another kind.
func (s *Store) StringOr(key string, def string) string {
	if str, err := s.String(key); err == nil {
		return str
	}
	return def
}

// Delete removes key. Observers stay attached.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Len returns number of keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Each calls fn for every key in insertion order.
func (s *Store) Each(fn func(key string, v Value)) {
	s.mu.RLock()
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	values := make([]Value, len(keys))
	for i, k := range keys {
		values[i] = s.values[k]
	}
	s.mu.RUnlock()
	for i := range keys {
		fn(keys[i], values[i])
	}
}

// Subscribe attaches fn to key. The returned function detaches it.
func (s *Store) Subscribe(key string, fn ObserverFunc) (cancel func()) {
	s.mu.Lock()
	s.next++
	id := s.next
	s.observers[key] = append(s.observers[key], observer{id: id, fn: fn})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		obs := s.observers[key]
		for i := range obs {
			if obs[i].id == id {
				s.observers[key] = append(obs[:i], obs[i+1:]...)
				return
			}
		}
	}
}

// Clone returns a copy of keys and values. Observers are not copied.
func (s *Store) Clone() *Store {
	c := New()
	if s == nil {
		return c
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c.keys = make([]string, len(s.keys))
	copy(c.keys, s.keys)
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

func notFound(key string) error {
	return errors.Wrapf(ErrNotFound, "%q", key)
}

func keyed(key string, err error) error {
	if e, ok := err.(*TypeMismatchError); ok {
		e.Key = key
	}
	return err
}
