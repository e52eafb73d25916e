// Package selector picks the topics that go into a brief.
package selector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/deusflow/dailybrief/internal/llm"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/metrics"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/summarize"
)

const (
	ModeAI       = "ai"
	ModeFallback = "fallback"
	ModeIdentity = "identity"
)

// Result holds pool indices in priority order.
type Result struct {
	Indices   []int  `json:"selected_indices"`
	Reasoning string `json:"reasoning,omitempty"`
	Mode      string `json:"mode"`
}

// Topics returns the selected topics in result order.
func (r Result) Topics(pool []news.Topic) []news.Topic {
	out := make([]news.Topic, 0, len(r.Indices))
	for _, i := range r.Indices {
		if i >= 0 && i < len(pool) {
			out = append(out, pool[i])
		}
	}
	return out
}

type Options struct {
	// AI enables model-driven selection when a backend is present.
	AI          bool
	MaxTopics   int
	Keywords    []string
	Temperature float64
	MaxTokens   int
}

type Selector struct {
	backend llm.Backend
	opts    Options
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(backend llm.Backend, opts Options, m *metrics.Metrics) *Selector {
	if m == nil {
		m = metrics.Global
	}
	return &Selector{backend: backend, opts: opts, metrics: m, log: logger.Component("selector")}
}

// Select never fails; AI problems degrade to a score ranking.
func (s *Selector) Select(ctx context.Context, pool []news.Topic) Result {
	res := s.selectMode(ctx, pool)
	s.metrics.AddTopicsSelected(len(res.Indices))
	s.log.Info("topics selected", "mode", res.Mode, "pool", len(pool), "selected", len(res.Indices))
	return res
}

func (s *Selector) selectMode(ctx context.Context, pool []news.Topic) Result {
	if len(pool) == 0 {
		return Result{Indices: []int{}, Mode: ModeIdentity}
	}
	if !s.opts.AI || s.backend == nil {
		return Identity(len(pool), s.opts.MaxTopics)
	}

	limit := s.opts.MaxTopics
	if limit <= 0 || limit > len(pool) {
		limit = len(pool)
	}

	prompt, err := Prompt(pool, s.opts.Keywords, limit)
	if err != nil {
		s.log.Warn("selection prompt failed, ranking by score", "error", err)
		return s.fallback(pool, limit)
	}
	raw, err := s.backend.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		JSON:        true,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		s.log.Warn("selection request failed, ranking by score", "error", err)
		return s.fallback(pool, limit)
	}

	reply, step, err := summarize.Decode[aiReply](raw)
	if err != nil {
		s.log.Warn("selection reply unparseable, ranking by score", "head", news.Truncate(raw, 200))
		return s.fallback(pool, limit)
	}

	indices := Sanitize(reply.SelectedIndices, len(pool), limit)
	if len(indices) == 0 {
		s.log.Warn("selection reply had no usable indices, ranking by score", "raw_indices", reply.SelectedIndices)
		return s.fallback(pool, limit)
	}
	s.log.Debug("selection reply parsed", "step", step)
	return Result{Indices: indices, Reasoning: reply.Reasoning, Mode: ModeAI}
}

func (s *Selector) fallback(pool []news.Topic, limit int) Result {
	s.metrics.IncrementSelectorFallbacks()
	return Result{Indices: ByScore(pool, limit), Mode: ModeFallback}
}

// Identity selects the first max items, or all of them when max is 0.
func Identity(n, max int) Result {
	if max <= 0 || max > n {
		max = n
	}
	idx := make([]int, max)
	for i := range idx {
		idx[i] = i
	}
	return Result{Indices: idx, Mode: ModeIdentity}
}

// ByScore returns the indices of the n highest-scoring topics. Ties keep pool order.
func ByScore(pool []news.Topic, n int) []int {
	idx := make([]int, len(pool))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return pool[idx[a]].Score > pool[idx[b]].Score })
	if n > 0 && n < len(idx) {
		idx = idx[:n]
	}
	return idx
}

// Sanitize drops out-of-range and repeated indices and caps the list.
func Sanitize(raw []int, poolLen, limit int) []int {
	seen := make(map[int]bool, len(raw))
	out := make([]int, 0, len(raw))
	for _, i := range raw {
		if i < 0 || i >= poolLen || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

type aiReply struct {
	SelectedIndices []int  `json:"selected_indices"`
	Reasoning       string `json:"reasoning"`
}

const systemPrompt = `You are an editor choosing stories for a short daily AI and technology brief.
Prefer topics that are newsworthy, substantive and diverse in source. Avoid near-duplicates.
Respond with a single JSON object and nothing else:
{"selected_indices": [int, ...], "reasoning": string}`

type candidate struct {
	Index         int    `json:"index"`
	Title         string `json:"title"`
	Source        string `json:"source"`
	Score         int    `json:"score"`
	CommentsCount int    `json:"comments_count"`
	Excerpt       string `json:"excerpt,omitempty"`
}

// Prompt lists every candidate with the priority keywords and the selection cap.
func Prompt(pool []news.Topic, keywords []string, max int) (string, error) {
	cands := make([]candidate, len(pool))
	for i, t := range pool {
		cands[i] = candidate{
			Index:         i,
			Title:         t.Title,
			Source:        t.Source,
			Score:         t.Score,
			CommentsCount: t.CommentsCount,
			Excerpt:       news.Truncate(t.Excerpt, 200),
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cands); err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Select at most %d topics by index, most important first.\n", max)
	if len(keywords) > 0 {
		fmt.Fprintf(&sb, "Priority keywords: %s\n", strings.Join(keywords, ", "))
	}
	sb.WriteString("CANDIDATES:\n")
	sb.Write(buf.Bytes())
	return sb.String(), nil
}
