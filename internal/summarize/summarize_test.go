package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode"

	"golang.org/x/text/encoding/charmap"

	"github.com/deusflow/dailybrief/internal/llm"
	"github.com/deusflow/dailybrief/internal/metrics"
	"github.com/deusflow/dailybrief/internal/news"
)

func sampleTopics() []news.Topic {
	return []news.Topic{
		{Title: "Open agents ship", URL: "https://a.example", Source: "Reddit r/artificial", Score: 42, CommentsCount: 7,
			Content: "Agents are now shipping in production.", Comments: []news.Comment{{Author: "bob", Text: "Great progress for tooling."}}},
		{Title: "LLM benchmark drama", URL: "https://b.example", Source: "Hacker News", Score: 120, CommentsCount: 40},
		{Title: "人工智能产业新政策发布", URL: "https://cn.example/1", Source: "China News", Score: 100, Excerpt: "国务院发布新政策。"},
	}
}

func TestFallbackThreeTopicsNumberedInOrder(t *testing.T) {
	topics := sampleTopics()
	b := Fallback(topics, false)

	if len(b.Topics) != 3 || len(b.Captions) != 3 {
		t.Fatalf("expected 3 topics and captions, got %d/%d", len(b.Topics), len(b.Captions))
	}

	entries := strings.Split(strings.TrimSpace(b.Narration), "\n\n")
	if len(entries) != 3 {
		t.Fatalf("expected 3 narration entries, got %d: %q", len(entries), b.Narration)
	}
	for i, e := range entries {
		prefix := fmt.Sprintf("%d. %s: ", i+1, topics[i].Title)
		if !strings.HasPrefix(e, prefix) {
			t.Errorf("entry %d: expected prefix %q, got %q", i, prefix, e)
		}
	}

	zh := b.Topics[2].Summary
	if !strings.HasPrefix(zh, "人工智能产业新政策发布。文章内容：国务院发布新政策。...") {
		t.Errorf("unexpected Chinese summary: %q", zh)
	}
	for _, r := range zh {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			t.Errorf("Chinese summary contains Latin framing: %q", zh)
			break
		}
	}
	if b.Topics[2].KeyPoints[0] != "评分：100分" {
		t.Errorf("unexpected Chinese key point: %v", b.Topics[2].KeyPoints)
	}

	en := b.Topics[0].Summary
	want := "Open agents ship. Article preview: Agents are now shipping in production.... This topic has 42 upvotes and 7 comments. The community is actively discussing this, with one user noting: Great progress for tooling...."
	if en != want {
		t.Errorf("unexpected English summary:\n got %q\nwant %q", en, want)
	}
	if !strings.Contains(b.Topics[1].Summary, "showing strong community interest") {
		t.Errorf("expected no-preview template, got %q", b.Topics[1].Summary)
	}
}

func TestFallbackCaptionsAreFixedSegments(t *testing.T) {
	b := Fallback(sampleTopics(), false)
	for i, c := range b.Captions {
		if c.StartS != float64(8*i) || c.EndS != float64(8*(i+1)) {
			t.Errorf("caption %d: unexpected times %v-%v", i, c.StartS, c.EndS)
		}
		if c.StartS >= c.EndS {
			t.Errorf("caption %d: start must be before end", i)
		}
		if !strings.HasPrefix(c.Text, fmt.Sprintf("%d. ", i+1)) || !strings.HasSuffix(c.Text, "...") {
			t.Errorf("caption %d: unexpected text %q", i, c.Text)
		}
	}
	if strings.Join(b.Hashtags, " ") != "#AI #TechNews #MachineLearning #DailyBrief" {
		t.Errorf("unexpected hashtags: %v", b.Hashtags)
	}
}

func TestFallbackBilingualFillsBothSummaries(t *testing.T) {
	b := Fallback(sampleTopics()[:1], true)
	ts := b.Topics[0]
	if ts.SummaryEN != ts.Summary || ts.SummaryZH != ts.Summary {
		t.Errorf("expected bilingual copies, got %+v", ts)
	}
}

func TestRepairFencedReplyWithTrailingGarbage(t *testing.T) {
	raw := "```json\n{\"topics\":[{\"title\":\"A\",\"summary\":\"s\"}],\"narration\":\"1. A: s\"}\n```x"
	b, step, ok := Repair(raw)
	if !ok {
		t.Fatal("expected recovery")
	}
	if step != "brace_extract" {
		t.Errorf("expected brace_extract, got %q", step)
	}
	if len(b.Topics) != 1 || b.Topics[0].Title != "A" {
		t.Errorf("unexpected bundle: %+v", b)
	}
}

func TestRepairSteps(t *testing.T) {
	cases := map[string]struct {
		raw  string
		step string
	}{
		"direct":  {`{"narration":"hi"}`, "direct"},
		"fenced":  {"```json\n{\"narration\":\"hi\"}\n```", "strip_fences"},
		"prose":   {`Sure! Here it is: {"narration":"hi"} Hope it helps.`, "brace_extract"},
		"numbers": {`{"captions":[{"start_s":"1.5","end_s":4,"text":"x"}],"topics":[]}`, "direct"},
	}
	for name, c := range cases {
		_, step, ok := Repair(c.raw)
		if !ok || step != c.step {
			t.Errorf("%s: expected step %q, got %q (ok=%v)", name, c.step, step, ok)
		}
	}
}

func TestRepairMojibake(t *testing.T) {
	good := `{"narration":"1. 人工智能: 摘要"}`
	garbled, err := charmap.ISO8859_1.NewDecoder().String(good)
	if err != nil {
		t.Fatal(err)
	}
	b, step, ok := Repair(garbled)
	if !ok {
		t.Fatal("expected recovery")
	}
	if step != "mojibake" {
		t.Errorf("expected mojibake step, got %q", step)
	}
	if b.Narration != "1. 人工智能: 摘要" {
		t.Errorf("expected re-decoded narration, got %q", b.Narration)
	}
}

func TestFixMojibakeRestoresUTF8(t *testing.T) {
	garbled, _ := charmap.ISO8859_1.NewDecoder().String("中文")
	fixed, ok := FixMojibake(garbled)
	if !ok || fixed != "中文" {
		t.Errorf("expected 中文, got %q (ok=%v)", fixed, ok)
	}
	if _, ok := FixMojibake("café"); ok {
		t.Error("genuine latin-1 text must not be re-decoded")
	}
}

func TestRepairRejectsWrongShape(t *testing.T) {
	for _, raw := range []string{`{"foo":1}`, `[1,2,3]`, `not json at all`, `{"topics":"nope"}`} {
		if _, _, ok := Repair(raw); ok {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
}

func TestNormalizePadsBackfillsAndFixesCaptions(t *testing.T) {
	topics := sampleTopics()
	parsed := Bundle{
		Topics: []TopicSummary{{Summary: "Model-written summary."}},
		Captions: []Caption{
			{StartS: 10, EndS: 5, Text: "second"},
			{StartS: 0, EndS: 4, Text: "first"},
		},
	}
	b := Normalize(parsed, topics, false)

	if len(b.Topics) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(b.Topics))
	}
	if b.Topics[0].Title != topics[0].Title || b.Topics[0].URL != topics[0].URL || b.Topics[0].Source != topics[0].Source {
		t.Errorf("expected backfilled metadata, got %+v", b.Topics[0])
	}
	if b.Topics[0].Summary != "Model-written summary." {
		t.Errorf("model summary must be kept, got %q", b.Topics[0].Summary)
	}
	if b.Topics[2].Title != topics[2].Title || !strings.Contains(b.Topics[2].Summary, "该话题") {
		t.Errorf("expected padded fallback entry, got %+v", b.Topics[2])
	}
	if b.Captions[0].Text != "first" || b.Captions[1].EndS != 13 {
		t.Errorf("unexpected captions: %+v", b.Captions)
	}
	if !strings.HasPrefix(b.Narration, "1. Open agents ship: Model-written summary.") {
		t.Errorf("expected narration rebuilt from topics, got %q", b.Narration)
	}
	if len(b.Hashtags) == 0 {
		t.Error("expected default hashtags")
	}
	if len(parsed.Captions) != 2 || parsed.Captions[0].Text != "second" {
		t.Error("input bundle was mutated")
	}
}

func TestNormalizeTrimsExtraTopicsAndBilingualCopies(t *testing.T) {
	topics := sampleTopics()[:1]
	parsed := Bundle{Topics: []TopicSummary{{Summary: "one"}, {Summary: "two"}}, Narration: "x"}
	b := Normalize(parsed, topics, true)
	if len(b.Topics) != 1 {
		t.Fatalf("expected trim to 1, got %d", len(b.Topics))
	}
	if b.Topics[0].SummaryEN != "one" || b.Topics[0].SummaryZH != "one" {
		t.Errorf("expected bilingual copies, got %+v", b.Topics[0])
	}
}

func TestEngineFallsBackOnBackendError(t *testing.T) {
	backend := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("503")
	})
	m := metrics.New()
	e := NewEngine(backend, Options{}, m)

	b, step := e.SummarizeStep(context.Background(), sampleTopics())
	if step != StepFallback || len(b.Topics) != 3 {
		t.Errorf("expected fallback bundle, got step %q with %d topics", step, len(b.Topics))
	}
	if m.SummaryFallbacks != 1 {
		t.Errorf("expected fallback to be counted, got %d", m.SummaryFallbacks)
	}
}

func TestEngineUsesRepairedReply(t *testing.T) {
	var seen llm.Request
	backend := llm.Func(func(ctx context.Context, req llm.Request) (string, error) {
		seen = req
		return "```json\n{\"topics\":[{\"title\":\"T1\",\"summary\":\"S1\"},{\"title\":\"T2\",\"summary\":\"S2\"},{\"title\":\"T3\",\"summary\":\"S3\"}],\"narration\":\"N\",\"captions\":[{\"start_s\":0,\"end_s\":5,\"text\":\"c\"}],\"hashtags\":\"#AI #News\"}\n```", nil
	})
	e := NewEngine(backend, Options{SentenceBudget: 5}, metrics.New())

	b, step := e.SummarizeStep(context.Background(), sampleTopics())
	if step != "strip_fences" {
		t.Errorf("expected strip_fences, got %q", step)
	}
	if b.Narration != "N" || len(b.Topics) != 3 || b.Topics[1].URL != "https://b.example" {
		t.Errorf("unexpected bundle: %+v", b)
	}
	if len(b.Hashtags) != 2 || b.Hashtags[1] != "#News" {
		t.Errorf("expected hashtags split from string, got %v", b.Hashtags)
	}
	if !seen.JSON || !strings.Contains(seen.System, "fewer than 5 sentences") || !strings.Contains(seen.Prompt, "人工智能产业新政策发布") {
		t.Errorf("unexpected request: %+v", seen)
	}
}

func TestEngineWithoutBackendIsDeterministic(t *testing.T) {
	e := NewEngine(nil, Options{}, metrics.New())
	a := e.Summarize(context.Background(), sampleTopics())
	b := e.Summarize(context.Background(), sampleTopics())
	if a.Narration != b.Narration {
		t.Error("expected identical narration across runs")
	}
}
