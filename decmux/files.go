// Copyright (c) Ilia Kravets, 2016. All rights reserved. PROVIDED "AS IS"
// WITHOUT ANY WARRANTY, EXPRESS OR IMPLIED. See LICENSE file for details.

package decmux

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"my/mdbook/config"
	"my/mdbook/feed"
)

type LatencyOverride struct {
	Match   *regexp.Regexp
	Latency time.Duration
}

// Latencies assigns each capture an artificial delay. The first override
// matching the base name of the file wins.
type Latencies struct {
	Default   time.Duration
	Overrides []LatencyOverride
}

func (l Latencies) For(file string) time.Duration {
	base := filepath.Base(file)
	for _, o := range l.Overrides {
		if o.Match.MatchString(base) {
			return o.Latency
		}
	}
	return l.Default
}

// LatenciesFromConfig reads replay.latency.default and
// replay.latency.overrides, a list of {match, latency}.
func LatenciesFromConfig(s *config.Snapshot) (l Latencies, err error) {
	s = s.Domain("replay.latency")
	if l.Default, err = s.DurationOr("default", 0); err != nil {
		return
	}
	v, ok := s.Lookup("overrides")
	if !ok {
		return
	}
	list, err := cast.ToSliceE(v)
	if err != nil {
		return l, fmt.Errorf("replay.latency.overrides: %w", err)
	}
	for i, e := range list {
		m, err := cast.ToStringMapE(e)
		if err != nil {
			return l, fmt.Errorf("replay.latency.overrides[%d]: %w", i, err)
		}
		re, err := regexp.Compile(cast.ToString(m["match"]))
		if err != nil {
			return l, fmt.Errorf("replay.latency.overrides[%d]: %w", i, err)
		}
		lat, err := cast.ToDurationE(m["latency"])
		if err != nil {
			return l, fmt.Errorf("replay.latency.overrides[%d]: %w", i, err)
		}
		l.Overrides = append(l.Overrides, LatencyOverride{Match: re, Latency: lat})
	}
	return
}

const dateLayout = "20060102"

// FindFiles looks in every directory of the search path, and in its
// YYYYMMDD subdirectory, for captures whose name carries the date and
// ends with a match of pattern.
func FindFiles(searchPath []string, date time.Time, pattern string) ([]string, error) {
	re, err := regexp.Compile("(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	day := date.Format(dateLayout)
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range searchPath {
		for _, d := range []string{dir, filepath.Join(dir, day)} {
			entries, err := os.ReadDir(d)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() || !strings.Contains(name, day) || !re.MatchString(name) {
					continue
				}
				path := filepath.Join(d, name)
				if _, ok := seen[path]; ok {
					continue
				}
				seen[path] = struct{}{}
				files = append(files, path)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// FilesFromConfig selects the captures of the date for every venue listed
// under replay.files.<MIC>, searching replay.search_path. A venue that
// cannot be resolved is returned among the skipped errors and left out.
func FilesFromConfig(s *config.Snapshot, date time.Time) (res map[feed.Venue][]string, skipped []error, err error) {
	s = s.Domain("replay")
	searchPath, err := s.Strings("search_path")
	if err != nil {
		return nil, nil, err
	}
	files := s.Domain("files")
	res = make(map[feed.Venue][]string)
	for _, mic := range files.Keys() {
		venue, err := feed.VenueFromMIC(mic)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("replay.files.%s: %w", mic, err))
			continue
		}
		pattern, err := files.String(mic)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("replay.files.%s: %w", mic, err))
			continue
		}
		fs, err := FindFiles(searchPath, date, pattern)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("replay.files.%s: %w", mic, err))
			continue
		}
		res[venue] = fs
	}
	return res, skipped, nil
}
