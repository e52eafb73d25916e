package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deusflow/dailybrief/internal/news"
)

func writeSummary(t *testing.T, root, dir, body string) {
	t.Helper()
	p := filepath.Join(root, dir)
	if err := os.MkdirAll(p, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(p, "summary.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestScanRespectsWindow(t *testing.T) {
	root := t.TempDir()
	writeSummary(t, root, "2026-03-09", `{"topics":[{"title":"recent","url":"https://a.example"}]}`)
	writeSummary(t, root, "2026-01-01", `{"topics":[{"title":"old","url":"https://old.example"}]}`)

	set, err := Scan(root, 30, now)
	if err != nil {
		t.Fatal(err)
	}
	if !set.Contains(news.Topic{URL: "https://a.example"}) {
		t.Error("expected recent URL in set")
	}
	if set.Contains(news.Topic{URL: "https://old.example"}) {
		t.Error("expected old URL outside the window")
	}

	all, err := Scan(root, 0, now)
	if err != nil {
		t.Fatal(err)
	}
	if !all.Contains(news.Topic{URL: "https://old.example"}) {
		t.Error("expected unbounded window to include old URL")
	}
}

func TestScanUnparseableNamesAndBadJSON(t *testing.T) {
	root := t.TempDir()
	writeSummary(t, root, "latest", `{"topics":[{"title":"from latest","url":"https://latest.example"}]}`)
	writeSummary(t, root, "2026-03-08", `{not json`)
	writeSummary(t, root, "2026-03-07", `{"topics":[{"title":"No URL here"}]}`)

	bounded, err := Scan(root, 30, now)
	if err != nil {
		t.Fatal(err)
	}
	if bounded.Contains(news.Topic{URL: "https://latest.example"}) {
		t.Error("unparseable dir should be skipped under a bounded window")
	}
	if !bounded.Contains(news.Topic{Title: "No URL here"}) {
		t.Error("expected title key for URL-less entry")
	}
	if bounded.Files != 1 {
		t.Errorf("expected 1 readable file, got %d", bounded.Files)
	}

	unbounded, err := Scan(root, 0, now)
	if err != nil {
		t.Fatal(err)
	}
	if !unbounded.Contains(news.Topic{URL: "https://latest.example"}) {
		t.Error("unparseable dir should be included under an unbounded window")
	}
}

func TestScanMissingRootIsEmpty(t *testing.T) {
	set, err := Scan(filepath.Join(t.TempDir(), "nope"), 30, now)
	if err != nil || set.Len() != 0 {
		t.Errorf("expected empty set, got %v %v", set, err)
	}
}

func TestFilterDropsSeenTopics(t *testing.T) {
	set := newSet()
	set.URLs["https://seen.example"] = struct{}{}
	set.Titles["Seen title"] = struct{}{}

	pool := []news.Topic{
		{Title: "a", URL: "https://seen.example"},
		{Title: "Seen title"},
		{Title: "Seen title", URL: "https://new.example"},
	}
	got := Filter(set, pool)
	if len(got) != 1 || got[0].URL != "https://new.example" {
		t.Errorf("unexpected filter result: %+v", got)
	}
}

func TestFilterNeverEmptiesPool(t *testing.T) {
	set := newSet()
	set.URLs["https://a.example"] = struct{}{}
	pool := []news.Topic{{Title: "a", URL: "https://a.example"}}

	got := Filter(set, pool)
	if len(got) != 1 {
		t.Errorf("expected unfiltered pool, got %+v", got)
	}
}

func TestDayAgeIgnoresDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	now := time.Date(2025, 3, 31, 0, 15, 0, 0, loc)
	if age, ok := DayAge("2025-03-29", now); !ok || age != 2 {
		t.Errorf("Expected age 2, got %d ok=%v", age, ok)
	}
	if _, ok := DayAge("latest", now); ok {
		t.Error("Expected non-date name to be rejected")
	}
}
