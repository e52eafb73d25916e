// Package history remembers which topics earlier runs already summarized.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
)

// DayLayout names the dated output directories.
const DayLayout = "2006-01-02"

// Set holds URLs and URL-less titles seen in prior summaries.
type Set struct {
	URLs   map[string]struct{}
	Titles map[string]struct{}
	Files  int
}

func newSet() *Set {
	return &Set{URLs: map[string]struct{}{}, Titles: map[string]struct{}{}}
}

// Len is the number of remembered keys.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.URLs) + len(s.Titles)
}

// Contains reports whether t was summarized before.
func (s *Set) Contains(t news.Topic) bool {
	if s == nil {
		return false
	}
	if t.URL != "" {
		_, ok := s.URLs[t.URL]
		return ok
	}
	_, ok := s.Titles[t.Title]
	return ok
}

type summaryFile struct {
	Topics []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"topics"`
}

// Scan reads <root>/<YYYY-MM-DD>/summary.json for days within retainDays of now.
// retainDays 0 means every directory. Unreadable files are skipped.
func Scan(root string, retainDays int, now time.Time) (*Set, error) {
	log := logger.Component("history")
	set := newSet()

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}
		return set, fmt.Errorf("read output root: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !inWindow(e.Name(), retainDays, now) {
			continue
		}

		path := filepath.Join(root, e.Name(), "summary.json")
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn("summary unreadable", "path", path, "error", err)
			}
			continue
		}

		var sf summaryFile
		if err := json.Unmarshal(data, &sf); err != nil {
			log.Warn("summary malformed, skipping", "path", path, "error", err)
			continue
		}

		set.Files++
		for _, t := range sf.Topics {
			switch {
			case t.URL != "":
				set.URLs[t.URL] = struct{}{}
			case t.Title != "":
				set.Titles[t.Title] = struct{}{}
			}
		}
	}

	log.Debug("history scanned", "files", set.Files, "keys", set.Len())
	return set, nil
}

func inWindow(name string, retainDays int, now time.Time) bool {
	age, ok := DayAge(name, now)
	if !ok {
		return retainDays == 0
	}
	return retainDays == 0 || age <= retainDays
}

// DayAge is the number of calendar days between a dated directory name and
// now's local date. ok is false when name is not a date.
func DayAge(name string, now time.Time) (age int, ok bool) {
	day, err := time.Parse(DayLayout, name)
	if err != nil {
		return 0, false
	}
	// Both sides in UTC so DST shifts do not change the day count.
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(today.Sub(day).Hours() / 24), true
}

// Filter drops topics already in set. When every topic would be dropped the
// pool is returned unchanged so the run still has candidates.
func Filter(set *Set, topics []news.Topic) []news.Topic {
	if set.Len() == 0 || len(topics) == 0 {
		return topics
	}

	kept := make([]news.Topic, 0, len(topics))
	for _, t := range topics {
		if !set.Contains(t) {
			kept = append(kept, t)
		}
	}

	if len(kept) == 0 {
		logger.Component("history").Warn("every candidate was summarized before, allowing repeats", "candidates", len(topics))
		return topics
	}
	return kept
}
