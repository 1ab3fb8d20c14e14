// MIT License
//
// Copyright (c) 2026 Eboreg
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package refdata

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/pterm/pterm"
)

// Entry is one classification rule from a reference dataset file. Entries
// are matched in file order with unanchored regex search; the first match
// wins.
type Entry struct {
	Name     string `json:"name"`
	Pattern  string `json:"pattern"`
	Category string `json:"category"`

	regex *regexp.Regexp
}

// Matches reports whether the entry's pattern matches value anywhere.
func (e *Entry) Matches(value string) bool {
	return e.regex != nil && e.regex.MatchString(value)
}

type datasetFile struct {
	Entries []Entry `json:"entries"`
}

// Store loads and caches reference datasets (bots.json, apps.json, etc.)
// from a directory. Loaded categories are cached for the process lifetime;
// there is no runtime invalidation. Construct one Store at startup and pass
// it into request-handling code.
type Store struct {
	dir    string
	logger *pterm.Logger
	mu     sync.RWMutex
	cache  map[string][]Entry
}

// NewStore creates a reference-data store reading from dir.
func NewStore(dir string, logger *pterm.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
		cache:  make(map[string][]Entry),
	}
}

// Category returns the ordered rule list for a category name ("bots",
// "apps", "libraries", "browsers", "devices", "referrers"). A missing or
// malformed file degrades to an empty list so classification falls back to
// "no match" instead of failing.
func (s *Store) Category(name string) []Entry {
	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached
	}

	entries := s.load(name)

	s.mu.Lock()
	// A concurrent first access may have loaded the same file; both results
	// are identical, last write wins.
	s.cache[name] = entries
	s.mu.Unlock()

	return entries
}

// Match returns the first entry in the category matching value, or nil.
func (s *Store) Match(category, value string) *Entry {
	entries := s.Category(category)
	for i := range entries {
		if entries[i].Matches(value) {
			return &entries[i]
		}
	}
	return nil
}

func (s *Store) load(name string) []Entry {
	path := filepath.Join(s.dir, name+".json")

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read reference dataset",
				s.logger.Args("category", name, "path", path, "error", err))
		}
		return []Entry{}
	}

	var file datasetFile
	if err := json.Unmarshal(raw, &file); err != nil {
		s.logger.Warn("Malformed reference dataset",
			s.logger.Args("category", name, "path", path, "error", err))
		return []Entry{}
	}

	entries := make([]Entry, 0, len(file.Entries))
	for _, entry := range file.Entries {
		regex, err := regexp.Compile(entry.Pattern)
		if err != nil {
			s.logger.Warn("Skipping reference entry with invalid pattern",
				s.logger.Args("category", name, "name", entry.Name, "pattern", entry.Pattern, "error", err))
			continue
		}
		entry.regex = regex
		entries = append(entries, entry)
	}

	s.logger.Debug("Loaded reference dataset",
		s.logger.Args("category", name, "entries", len(entries)))

	return entries
}
