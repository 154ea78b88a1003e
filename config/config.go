// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package config is a copy-on-write key-value store with dot-delimited keys.
// Readers hold an immutable Snapshot; every update publishes a new one.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cast"
)

var ErrNotFound = errors.New("config key not found")

type Snapshot struct {
	values  map[string]interface{}
	prefix  string
	version uint64
}

// Domain returns a view in which keys are relative to prefix.
func (s *Snapshot) Domain(prefix string) *Snapshot {
	return &Snapshot{
		values:  s.values,
		prefix:  s.full(prefix) + ".",
		version: s.version,
	}
}
func (s *Snapshot) Version() uint64 {
	return s.version
}
func (s *Snapshot) Prefix() string {
	return strings.TrimSuffix(s.prefix, ".")
}

func (s *Snapshot) full(key string) string {
	return s.prefix + strings.ToLower(key)
}

func (s *Snapshot) Lookup(key string) (interface{}, bool) {
	v, ok := s.values[s.full(key)]
	return v, ok
}
func (s *Snapshot) Has(key string) bool {
	_, ok := s.Lookup(key)
	return ok
}

func (s *Snapshot) get(key string) (interface{}, error) {
	v, ok := s.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.full(key))
	}
	return v, nil
}

func (s *Snapshot) String(key string) (string, error) {
	v, err := s.get(key)
	if err != nil {
		return "", err
	}
	return cast.ToStringE(v)
}
func (s *Snapshot) Int(key string) (int, error) {
	v, err := s.get(key)
	if err != nil {
		return 0, err
	}
	return cast.ToIntE(v)
}
func (s *Snapshot) Int64(key string) (int64, error) {
	v, err := s.get(key)
	if err != nil {
		return 0, err
	}
	return cast.ToInt64E(v)
}
func (s *Snapshot) Bool(key string) (bool, error) {
	v, err := s.get(key)
	if err != nil {
		return false, err
	}
	return cast.ToBoolE(v)
}

// Duration accepts a duration string ("250us") or an integer count of ns.
func (s *Snapshot) Duration(key string) (time.Duration, error) {
	v, err := s.get(key)
	if err != nil {
		return 0, err
	}
	return cast.ToDurationE(v)
}
func (s *Snapshot) Strings(key string) ([]string, error) {
	v, err := s.get(key)
	if err != nil {
		return nil, err
	}
	return cast.ToStringSliceE(v)
}

// StringOr and friends return def when key is absent. A malformed value is
// still an error.
func (s *Snapshot) StringOr(key string, def string) (string, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.String(key)
}
func (s *Snapshot) BoolOr(key string, def bool) (bool, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Bool(key)
}
func (s *Snapshot) DurationOr(key string, def time.Duration) (time.Duration, error) {
	if !s.Has(key) {
		return def, nil
	}
	return s.Duration(key)
}

// Keys lists every key below the domain, relative and sorted.
func (s *Snapshot) Keys() []string {
	var keys []string
	for k := range s.values {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, k[len(s.prefix):])
		}
	}
	sort.Strings(keys)
	return keys
}

// Children lists the immediate sub-domains, sorted.
func (s *Snapshot) Children() []string {
	seen := make(map[string]struct{})
	var children []string
	for _, k := range s.Keys() {
		i := strings.IndexByte(k, '.')
		if i < 0 {
			continue
		}
		c := k[:i]
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			children = append(children, c)
		}
	}
	return children
}

/************************************************************************/
type Store struct {
	cur  atomic.Pointer[Snapshot]
	mu   sync.Mutex
	subs map[int]func(*Snapshot)
	next int
}

// NewStore flattens nested maps into dot-delimited keys.
func NewStore(values map[string]interface{}) *Store {
	st := &Store{subs: make(map[int]func(*Snapshot))}
	flat := make(map[string]interface{})
	flatten(flat, "", values)
	st.cur.Store(&Snapshot{values: flat, version: 1})
	return st
}

func flatten(dst map[string]interface{}, prefix string, src map[string]interface{}) {
	for k, v := range src {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		switch m := v.(type) {
		case map[string]interface{}:
			flatten(dst, key, m)
		case map[interface{}]interface{}:
			flatten(dst, key, cast.ToStringMap(m))
		default:
			dst[key] = v
		}
	}
}

func (st *Store) Snapshot() *Snapshot {
	return st.cur.Load()
}

// Update publishes a snapshot with values merged over the current one and
// hands it to every subscriber.
func (st *Store) Update(values map[string]interface{}) *Snapshot {
	st.mu.Lock()
	old := st.cur.Load()
	flat := make(map[string]interface{}, len(old.values)+len(values))
	for k, v := range old.values {
		flat[k] = v
	}
	flatten(flat, "", values)
	s := &Snapshot{values: flat, version: old.version + 1}
	st.cur.Store(s)
	subs := make([]func(*Snapshot), 0, len(st.subs))
	for i := 0; i < st.next; i++ {
		if fn, ok := st.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	st.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
	return s
}
func (st *Store) Set(key string, v interface{}) *Snapshot {
	return st.Update(map[string]interface{}{key: v})
}

// Subscribe registers fn for future snapshots. The returned func
// unsubscribes.
func (st *Store) Subscribe(fn func(*Snapshot)) func() {
	st.mu.Lock()
	defer st.mu.Unlock()
	id := st.next
	st.next++
	st.subs[id] = fn
	return func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		delete(st.subs, id)
	}
}
