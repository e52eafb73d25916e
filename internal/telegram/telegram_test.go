package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/summarize"
)

func testBundle() summarize.Bundle {
	return summarize.Bundle{
		Topics: []summarize.TopicSummary{
			{Title: "Rust <2024> edition", Source: "Hacker News", URL: "https://example.com/a?x=1&y=2", Summary: "Ships today."},
			{Title: "人工智能", Source: "China News", Summary: "新模型发布。"},
		},
		Narration: "1. Rust: Ships today.",
		Hashtags:  []string{"#AI", "#Tech"},
	}
}

func TestFormatMessageEscapesAndFallsBackToTopicURL(t *testing.T) {
	topics := []news.Topic{{URL: "https://example.com/a"}, {URL: "https://example.cn/b", Source: "China News"}}
	msg := FormatMessage(testBundle(), topics, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), false)

	for _, want := range []string{
		"<b>AI Daily Brief</b> | 2025-01-02",
		"<b>1. Rust &lt;2024&gt; edition</b>",
		`<a href="https://example.com/a?x=1&amp;y=2">Read more</a> · Hacker News`,
		`<a href="https://example.cn/b">Read more</a>`,
		"Hashtags: #AI #Tech",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in:\n%s", want, msg)
		}
	}

	zh := FormatMessage(testBundle(), topics, time.Now(), true)
	if !strings.Contains(zh, "AI 每日简报") || !strings.Contains(zh, "阅读全文") {
		t.Errorf("Expected Chinese headings in:\n%s", zh)
	}
}

func TestSplitKeepsChunksUnderLimit(t *testing.T) {
	para := strings.Repeat("字", 30)
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	chunks := Split(text, 70)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	for _, c := range chunks {
		if n := len([]rune(c)); n > 70 {
			t.Errorf("Chunk too long: %d", n)
		}
	}

	if got := Split("short", MaxMessageLen); len(got) != 1 || got[0] != "short" {
		t.Errorf("Expected single chunk, got %q", got)
	}
	hard := Split(strings.Repeat("a", 25), 10)
	if len(hard) != 3 || hard[2] != "aaaaa" {
		t.Errorf("Expected hard cut, got %q", hard)
	}
}

func TestDeliverPostsHTMLMessage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("TOKEN", "42", 1)
	c.BaseURL = srv.URL
	if !c.Deliver(context.Background(), testBundle(), nil) {
		t.Fatal("Expected delivery to succeed")
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "HTML" {
		t.Errorf("Unexpected payload %v", got)
	}
}

func TestSendMessageRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("T", "1", 3)
	c.BaseURL = srv.URL
	c.RetryDelay = time.Millisecond
	if err := c.SendMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestSendMessageDoesNotRetryBadRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New("T", "1", 5)
	c.BaseURL = srv.URL
	c.RetryDelay = time.Millisecond
	err := c.SendMessage(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("Expected API error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single attempt, got %d", calls)
	}
}

func TestDeliverWithoutCredentials(t *testing.T) {
	if New("", "", 1).Deliver(context.Background(), testBundle(), nil) {
		t.Error("Expected false without credentials")
	}
}
