// Package output lays out the dated artifact directories of each run.
package output

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/deusflow/dailybrief/internal/history"
	"github.com/deusflow/dailybrief/internal/logger"
)

const (
	LatestDir = "latest"
	latestTmp = "latest.tmp"
)

// Store writes run artifacts under root.
type Store struct {
	root       string
	retainDays int
}

func NewStore(root string, retainDays int) *Store {
	return &Store{root: root, retainDays: retainDays}
}

func (s *Store) Root() string { return s.root }

// Day is the directory name for now.
func Day(now time.Time) string {
	return now.Format(history.DayLayout)
}

// DayDir creates and returns <root>/<YYYY-MM-DD>.
func (s *Store) DayDir(now time.Time) (string, error) {
	dir := filepath.Join(s.root, Day(now))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create day dir: %w", err)
	}
	return dir, nil
}

// WriteJSON writes v as two-space indented UTF-8 JSON without HTML escaping.
func (s *Store) WriteJSON(dir, name string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return s.WriteText(dir, name, buf.String())
}

// WriteText writes text to dir/name.
func (s *Store) WriteText(dir, name, text string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// WriteChecksum writes final.sha256 next to the video: bare lowercase hex.
func (s *Store) WriteChecksum(videoPath string) (string, error) {
	sum, err := SHA256File(videoPath)
	if err != nil {
		return "", err
	}
	return s.WriteText(filepath.Dir(videoPath), "final.sha256", sum)
}

// SHA256File hashes a file.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PublishLatest replaces <root>/latest with a copy of dayDir. The copy is
// staged in latest.tmp and renamed into place.
func (s *Store) PublishLatest(dayDir string) (string, error) {
	latest := filepath.Join(s.root, LatestDir)
	tmp := filepath.Join(s.root, latestTmp)

	if err := os.RemoveAll(tmp); err != nil {
		return "", fmt.Errorf("clear staging dir: %w", err)
	}
	if err := copyTree(dayDir, tmp); err != nil {
		os.RemoveAll(tmp)
		return "", fmt.Errorf("stage latest: %w", err)
	}
	if err := os.RemoveAll(latest); err != nil {
		return "", fmt.Errorf("remove old latest: %w", err)
	}
	if err := os.Rename(tmp, latest); err != nil {
		return "", fmt.Errorf("publish latest: %w", err)
	}
	return latest, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Prune removes dated directories older than the retention window. latest and
// directories whose names are not dates are kept. retainDays 0 disables pruning.
func (s *Store) Prune(now time.Time) ([]string, error) {
	if s.retainDays <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output root: %w", err)
	}

	log := logger.Component("output")

	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		age, ok := history.DayAge(e.Name(), now)
		if !ok || age <= s.retainDays {
			continue
		}
		path := filepath.Join(s.root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn("prune failed", "dir", path, "error", err)
			continue
		}
		removed = append(removed, e.Name())
	}
	if len(removed) > 0 {
		log.Info("pruned old output", "dirs", removed)
	}
	return removed, nil
}
