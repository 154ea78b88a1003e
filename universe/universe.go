// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

// Package universe maps venue-local symbol names to persistent instrument
// ids.
package universe

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"my/mdbook/bookmux"
	"my/mdbook/config"
	"my/mdbook/errs"
	"my/mdbook/feed"
)

// Entry is one instrument of a universe file:
//
//	- id: 1001
//	  symbols: {XNAS: AAPL, EDGA: AAPL}
type Entry struct {
	Id      uint64            `yaml:"id"`
	Symbols map[string]string `yaml:"symbols"`
}

type key struct {
	venue feed.Venue
	name  string
}

type Universe struct {
	byName map[key]uint64
	byId   map[uint64]map[feed.Venue]string
}

var _ bookmux.InstrumentMap = &Universe{}

func New() *Universe {
	return &Universe{
		byName: make(map[key]uint64),
		byId:   make(map[uint64]map[feed.Venue]string),
	}
}

// Add maps name at venue to id, replacing an earlier mapping of the name.
func (u *Universe) Add(venue feed.Venue, name string, id uint64) {
	k := key{venue, strings.ToUpper(name)}
	if old, ok := u.byName[k]; ok {
		delete(u.byId[old], venue)
	}
	u.byName[k] = id
	if u.byId[id] == nil {
		u.byId[id] = make(map[feed.Venue]string)
	}
	u.byId[id][venue] = k.name
}

func (u *Universe) Instrument(venue feed.Venue, name string) (uint64, bool) {
	id, ok := u.byName[key{venue, strings.ToUpper(name)}]
	return id, ok
}

// Symbol is the reverse lookup.
func (u *Universe) Symbol(venue feed.Venue, id uint64) (string, bool) {
	name, ok := u.byId[id][venue]
	return name, ok
}

func (u *Universe) Instruments() []uint64 {
	ids := make([]uint64, 0, len(u.byId))
	for id := range u.byId {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (u *Universe) Len() int {
	return len(u.byName)
}

// Read adds the entries of a YAML universe.
func (u *Universe) Read(r io.Reader) (err error) {
	defer errs.PassE(&err)
	var entries []Entry
	errs.CheckE(yaml.NewDecoder(r).Decode(&entries))
	for _, e := range entries {
		for mic, name := range e.Symbols {
			venue, err := feed.VenueFromMIC(mic)
			errs.CheckE(err)
			u.Add(venue, name, e.Id)
		}
	}
	return
}

func (u *Universe) ReadFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := u.Read(f); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// FromConfig builds a universe from the "universe" domain: an optional
// file, then map.<MIC>.<SYMBOL> entries overriding it.
func FromConfig(s *config.Snapshot) (*Universe, error) {
	u := New()
	s = s.Domain("universe")
	if s.Has("file") {
		name, err := s.String("file")
		if err != nil {
			return nil, err
		}
		if err := u.ReadFile(name); err != nil {
			return nil, err
		}
	}
	m := s.Domain("map")
	for _, mic := range m.Children() {
		venue, err := feed.VenueFromMIC(strings.ToUpper(mic))
		if err != nil {
			return nil, err
		}
		vs := m.Domain(mic)
		for _, sym := range vs.Keys() {
			id, err := vs.Int64(sym)
			if err != nil {
				return nil, fmt.Errorf("universe.map.%s.%s: %w", mic, sym, err)
			}
			u.Add(venue, sym, uint64(id))
		}
	}
	return u, nil
}
