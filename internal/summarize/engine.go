package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/deusflow/dailybrief/internal/llm"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/metrics"
	"github.com/deusflow/dailybrief/internal/news"
)

// StepFallback names the terminal deterministic step.
const StepFallback = "fallback"

type Options struct {
	SentenceBudget int
	Bilingual      bool
	Temperature    float64
	MaxTokens      int
}

type Engine struct {
	backend llm.Backend
	opts    Options
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewEngine builds an engine. A nil backend means the deterministic generator only.
func NewEngine(backend llm.Backend, opts Options, m *metrics.Metrics) *Engine {
	if opts.SentenceBudget <= 0 {
		opts.SentenceBudget = 5
	}
	if m == nil {
		m = metrics.Global
	}
	return &Engine{backend: backend, opts: opts, metrics: m, log: logger.Component("summarize")}
}

// Summarize never fails: any backend or parse problem ends in the deterministic bundle.
func (e *Engine) Summarize(ctx context.Context, topics []news.Topic) Bundle {
	b, _ := e.SummarizeStep(ctx, topics)
	return b
}

// SummarizeStep also reports which repair step produced the bundle.
func (e *Engine) SummarizeStep(ctx context.Context, topics []news.Topic) (Bundle, string) {
	if e.backend == nil {
		e.metrics.RecordRepairStep(StepFallback)
		return Fallback(topics, e.opts.Bilingual), StepFallback
	}

	raw, err := e.complete(ctx, topics)
	if err != nil {
		e.log.Warn("summarizer backend failed, using deterministic summary", "backend", e.backend.Name(), "error", err)
		e.metrics.RecordRepairStep(StepFallback)
		return Fallback(topics, e.opts.Bilingual), StepFallback
	}

	b, step, ok := Repair(raw)
	if !ok {
		e.log.Warn("summarizer reply unrecoverable, using deterministic summary",
			"backend", e.backend.Name(), "length", len(raw), "head", news.Truncate(raw, 200))
		e.metrics.RecordRepairStep(StepFallback)
		return Fallback(topics, e.opts.Bilingual), StepFallback
	}

	e.log.Info("summary parsed", "step", step, "topics", len(b.Topics), "captions", len(b.Captions))
	e.metrics.RecordRepairStep(step)
	return Normalize(b, topics, e.opts.Bilingual), step
}

func (e *Engine) complete(ctx context.Context, topics []news.Topic) (string, error) {
	prompt, err := UserPrompt(topics)
	if err != nil {
		return "", err
	}
	raw, err := e.backend.Complete(ctx, llm.Request{
		System:      SystemPrompt(e.opts.SentenceBudget, e.opts.Bilingual),
		Prompt:      prompt,
		JSON:        true,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return raw, nil
}

// Normalize aligns a parsed bundle with the input topics: one summary per
// topic by position, backfilled metadata, and valid ordered captions.
func Normalize(b Bundle, topics []news.Topic, bilingual bool) Bundle {
	out := b.Clone()
	fb := Fallback(topics, bilingual)

	if len(out.Topics) > len(topics) {
		out.Topics = out.Topics[:len(topics)]
	}
	for i := len(out.Topics); i < len(topics); i++ {
		out.Topics = append(out.Topics, fb.Topics[i])
	}

	for i := range out.Topics {
		ts := &out.Topics[i]
		src := topics[i]
		if ts.URL == "" {
			ts.URL = src.URL
		}
		if strings.TrimSpace(ts.Title) == "" {
			ts.Title = src.Title
		}
		if strings.TrimSpace(ts.Source) == "" {
			ts.Source = src.Source
		}
		if ts.Text() == "" {
			ts.Summary = fb.Topics[i].Summary
		}
		if ts.Summary == "" {
			ts.Summary = ts.Text()
		}
		if bilingual {
			if ts.SummaryEN == "" {
				ts.SummaryEN = ts.Summary
			}
			if ts.SummaryZH == "" {
				ts.SummaryZH = ts.Summary
			}
		}
		if len(ts.KeyPoints) == 0 {
			ts.KeyPoints = fb.Topics[i].KeyPoints
		}
	}

	if strings.TrimSpace(out.Narration) == "" {
		out.Narration = NarrationFrom(out.Topics)
	}

	if len(out.Captions) == 0 {
		out.Captions = fb.Captions
	}
	out.Captions = FixCaptions(out.Captions)

	if len(out.Hashtags) == 0 {
		out.Hashtags = append(StringList(nil), DefaultHashtags...)
	}
	return out
}

// NarrationFrom renders the numbered narration for topic summaries.
func NarrationFrom(topics []TopicSummary) string {
	var sb strings.Builder
	for i, t := range topics {
		fmt.Fprintf(&sb, "%d. %s: %s\n\n", i+1, t.Title, t.Text())
	}
	return sb.String()
}

// FixCaptions repairs end_s <= start_s to start_s + 3 and orders by start_s.
func FixCaptions(captions []Caption) []Caption {
	out := make([]Caption, len(captions))
	for i, c := range captions {
		if c.StartS < 0 {
			c.StartS = 0
		}
		if c.EndS <= c.StartS {
			c.EndS = c.StartS + 3
		}
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartS < out[j].StartS })
	return out
}
