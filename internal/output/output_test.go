package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPruneKeepsLatestAndUnknownNames(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"2020-01-01", "latest", "notes", "2025-06-10"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	removed, err := NewStore(root, 30).Prune(now)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 1 || removed[0] != "2020-01-01" {
		t.Errorf("Expected only 2020-01-01 removed, got %v", removed)
	}
	for _, name := range []string{"latest", "notes", "2025-06-10"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("Expected %s to be kept: %v", name, err)
		}
	}
}

func TestPruneAcrossDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	root := t.TempDir()
	for _, name := range []string{"2025-03-08", "2025-03-09"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	// Clocks sprang forward on 2025-03-09, so local midnights are 47h apart.
	now := time.Date(2025, 3, 10, 0, 30, 0, 0, loc)
	removed, err := NewStore(root, 1).Prune(now)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 1 || removed[0] != "2025-03-08" {
		t.Errorf("Expected 2025-03-08 (two days old) removed, got %v", removed)
	}
}

func TestPruneDisabled(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "2020-01-01"), 0o755)
	removed, err := NewStore(root, 0).Prune(time.Now())
	if err != nil || len(removed) != 0 {
		t.Errorf("Expected nothing removed, got %v err=%v", removed, err)
	}
}

func TestWriteJSONKeepsUnicodeAndHTML(t *testing.T) {
	s := NewStore(t.TempDir(), 0)
	dir, err := s.DayDir(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dir) != "2025-01-02" {
		t.Errorf("Unexpected day dir %s", dir)
	}

	path, err := s.WriteJSON(dir, "summary.json", map[string]string{"title": "人工智能 <b>&</b>"})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	want := "{\n  \"title\": \"人工智能 <b>&</b>\"\n}\n"
	if string(data) != want {
		t.Errorf("Expected %q, got %q", want, data)
	}
}

func TestWriteChecksum(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "final.mp4")
	os.WriteFile(video, []byte("abc"), 0o644)

	path, err := NewStore(dir, 0).WriteChecksum(video)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("Unexpected checksum %q", data)
	}
	if filepath.Base(path) != "final.sha256" {
		t.Errorf("Unexpected path %s", path)
	}
}

func TestPublishLatestReplacesContents(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, 0)

	stale := filepath.Join(root, LatestDir, "old.txt")
	os.MkdirAll(filepath.Dir(stale), 0o755)
	os.WriteFile(stale, []byte("old"), 0o644)

	day := filepath.Join(root, "2025-01-02")
	os.MkdirAll(filepath.Join(day, "sub"), 0o755)
	os.WriteFile(filepath.Join(day, "script.txt"), []byte("1. A: a"), 0o644)
	os.WriteFile(filepath.Join(day, "sub", "x.txt"), []byte("x"), 0o644)

	latest, err := s.PublishLatest(day)
	if err != nil {
		t.Fatalf("PublishLatest: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Expected stale files to be removed")
	}
	data, err := os.ReadFile(filepath.Join(latest, "script.txt"))
	if err != nil || !strings.HasPrefix(string(data), "1. A") {
		t.Errorf("Expected copied script, got %q err=%v", data, err)
	}
	if _, err := os.Stat(filepath.Join(latest, "sub", "x.txt")); err != nil {
		t.Errorf("Expected nested copy: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, latestTmp)); !os.IsNotExist(err) {
		t.Error("Expected staging dir to be gone")
	}
}
