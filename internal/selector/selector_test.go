package selector

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/deusflow/dailybrief/internal/llm"
	"github.com/deusflow/dailybrief/internal/metrics"
	"github.com/deusflow/dailybrief/internal/news"
)

func pool() []news.Topic {
	return []news.Topic{
		{Title: "a", Score: 5, Source: "Reddit r/artificial"},
		{Title: "b", Score: 50, Source: "Hacker News"},
		{Title: "c", Score: 20, Source: "China News"},
		{Title: "d", Score: 50, Source: "Twitter"},
	}
}

func reply(s string) llm.Backend {
	return llm.Func(func(ctx context.Context, req llm.Request) (string, error) { return s, nil })
}

func TestSelectUsesModelIndices(t *testing.T) {
	s := New(reply("```json\n{\"selected_indices\":[2,9,2,-1,0,1],\"reasoning\":\"diverse\"}\n```"), Options{AI: true, MaxTopics: 2}, metrics.New())
	res := s.Select(context.Background(), pool())

	if res.Mode != ModeAI {
		t.Fatalf("Expected ai mode, got %q", res.Mode)
	}
	if !reflect.DeepEqual(res.Indices, []int{2, 0}) {
		t.Errorf("Expected [2 0], got %v", res.Indices)
	}
	if res.Reasoning != "diverse" {
		t.Errorf("Expected reasoning to be kept, got %q", res.Reasoning)
	}
	got := res.Topics(pool())
	if got[0].Title != "c" || got[1].Title != "a" {
		t.Errorf("Unexpected topics: %+v", got)
	}
}

func TestSelectFallsBackToScoreOrder(t *testing.T) {
	cases := map[string]llm.Backend{
		"error": llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
			return "", errors.New("quota")
		}),
		"garbage":      reply("I would pick the second one"),
		"empty":        reply(`{"selected_indices":[],"reasoning":"none"}`),
		"out_of_range": reply(`{"selected_indices":[7,8]}`),
	}
	for name, backend := range cases {
		m := metrics.New()
		res := New(backend, Options{AI: true, MaxTopics: 3}, m).Select(context.Background(), pool())
		if res.Mode != ModeFallback {
			t.Errorf("%s: expected fallback mode, got %q", name, res.Mode)
		}
		if !reflect.DeepEqual(res.Indices, []int{1, 3, 2}) {
			t.Errorf("%s: expected stable score order [1 3 2], got %v", name, res.Indices)
		}
		if m.SelectorFallbacks != 1 {
			t.Errorf("%s: expected one fallback counted, got %d", name, m.SelectorFallbacks)
		}
	}
}

func TestSelectIdentityWithoutBackend(t *testing.T) {
	res := New(nil, Options{AI: true, MaxTopics: 2}, metrics.New()).Select(context.Background(), pool())
	if res.Mode != ModeIdentity || !reflect.DeepEqual(res.Indices, []int{0, 1}) {
		t.Errorf("Expected identity [0 1], got %s %v", res.Mode, res.Indices)
	}

	res = New(reply(`{"selected_indices":[3]}`), Options{AI: false}, metrics.New()).Select(context.Background(), pool())
	if !reflect.DeepEqual(res.Indices, []int{0, 1, 2, 3}) {
		t.Errorf("Expected the whole pool when the cap is 0, got %v", res.Indices)
	}
}

func TestSelectEmptyPool(t *testing.T) {
	res := New(reply(`{}`), Options{AI: true, MaxTopics: 3}, metrics.New()).Select(context.Background(), nil)
	if len(res.Indices) != 0 {
		t.Errorf("Expected no indices, got %v", res.Indices)
	}
}

func TestPromptListsCandidatesAndKeywords(t *testing.T) {
	var seen llm.Request
	backend := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
		seen = req
		return `{"selected_indices":[1]}`, nil
	})
	New(backend, Options{AI: true, MaxTopics: 3, Keywords: []string{"agents", "open source"}}, metrics.New()).
		Select(context.Background(), pool())

	for _, want := range []string{"at most 3 topics", "agents, open source", `"index": 3`, `"source": "China News"`, `"comments_count": 0`} {
		if !strings.Contains(seen.Prompt, want) {
			t.Errorf("Expected prompt to contain %q:\n%s", want, seen.Prompt)
		}
	}
	if !seen.JSON {
		t.Error("Expected a JSON response hint")
	}
}

func TestPromptKeepsHTMLUnescaped(t *testing.T) {
	topics := []news.Topic{{Title: "R&D <agents>", Source: "Hacker News", Score: 7}}
	got, err := Prompt(topics, []string{"agents", "LLM"}, 3)
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	for _, want := range []string{
		"Select at most 3 topics",
		"Priority keywords: agents, LLM",
		`"title": "R&D <agents>"`,
		`"index": 0`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in prompt:\n%s", want, got)
		}
	}
}
