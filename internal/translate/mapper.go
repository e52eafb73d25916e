package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deusflow/dailybrief/internal/llm"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/metrics"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/storage"
	"github.com/deusflow/dailybrief/internal/summarize"
)

// IndexMap records, for each original position, the position in the sent
// payload, or -1 when the item was not sent.
type IndexMap struct {
	Topics   []int
	Captions []int
}

// Sent reports how many topics and captions were sent.
func (m IndexMap) Sent() (topics, captions int) {
	for _, p := range m.Topics {
		if p >= 0 {
			topics++
		}
	}
	for _, p := range m.Captions {
		if p >= 0 {
			captions++
		}
	}
	return topics, captions
}

// Payload is the batched translation request body.
type Payload struct {
	Narration string         `json:"narration"`
	Topics    []PayloadTopic `json:"topics"`
	Captions  []string       `json:"captions"`
}

type PayloadTopic struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// NeedsTranslation reports whether text is non-empty and not yet in the target script.
func NeedsTranslation(text, target string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return !news.InScript(text, target)
}

// BuildPayload selects the fields that need translation and records where they came from.
// A topic is skipped when its title or summary is already in the target script.
func BuildPayload(b summarize.Bundle, target string) (Payload, IndexMap) {
	p := Payload{Topics: []PayloadTopic{}, Captions: []string{}}
	m := IndexMap{Topics: make([]int, len(b.Topics)), Captions: make([]int, len(b.Captions))}

	var narration []string
	for i, t := range b.Topics {
		summary := t.Text()
		skip := alreadyTarget(t.Title, target) || alreadyTarget(summary, target) ||
			!NeedsTranslation(t.Title, target) && !NeedsTranslation(summary, target)
		if skip {
			m.Topics[i] = -1
			continue
		}
		m.Topics[i] = len(p.Topics)
		p.Topics = append(p.Topics, PayloadTopic{Title: t.Title, Summary: summary})
		narration = append(narration, fmt.Sprintf("%d. %s: %s", i+1, t.Title, summary))
	}
	p.Narration = strings.Join(narration, "\n\n")

	for i, c := range b.Captions {
		if !NeedsTranslation(c.Text, target) {
			m.Captions[i] = -1
			continue
		}
		m.Captions[i] = len(p.Captions)
		p.Captions = append(p.Captions, c.Text)
	}
	return p, m
}

func alreadyTarget(text, target string) bool {
	return news.InScript(text, target)
}

// Empty reports whether nothing needs translating.
func (p Payload) Empty() bool {
	return p.Narration == "" && len(p.Topics) == 0 && len(p.Captions) == 0
}

// Reply is the batched translation response.
type Reply struct {
	Narration *string `json:"narration"`
	Topics    []struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	} `json:"topics"`
	Captions []string `json:"captions"`
}

// Apply maps a batch reply back onto a copy of b. Missing or empty entries keep the original text.
// The reply narration covers sent topics only, so when some topics were
// skipped the narration is rebuilt from every topic instead.
func Apply(b summarize.Bundle, m IndexMap, reply Reply) summarize.Bundle {
	out := b.Clone()
	skipped := false
	for i := range out.Topics {
		if i >= len(m.Topics) {
			break
		}
		pos := m.Topics[i]
		if pos < 0 {
			skipped = true
			continue
		}
		if pos >= len(reply.Topics) {
			continue
		}
		tr := reply.Topics[pos]
		if s := SanitizeAIText(tr.Title); s != "" {
			out.Topics[i].Title = s
		}
		if s := SanitizeAIText(tr.Summary); s != "" {
			out.Topics[i].Summary = s
		}
	}
	for i := range out.Captions {
		if i >= len(m.Captions) {
			break
		}
		pos := m.Captions[i]
		if pos < 0 || pos >= len(reply.Captions) {
			continue
		}
		if s := SanitizeAIText(reply.Captions[pos]); s != "" {
			out.Captions[i].Text = s
		}
	}

	switch {
	case skipped:
		out.Narration = summarize.NarrationFrom(out.Topics)
	case reply.Narration != nil && strings.TrimSpace(*reply.Narration) != "":
		out.Narration = SanitizeAIText(*reply.Narration)
	}
	return out
}

// Mapper translates bundles. A nil batch backend skips the batched call;
// a nil field translator disables per-field translation.
type Mapper struct {
	batch     llm.Backend
	field     Translator
	cache     storage.TranslationCache
	maxTokens int
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewMapper(batch llm.Backend, field Translator, cache storage.TranslationCache, maxTokens int, m *metrics.Metrics) *Mapper {
	if m == nil {
		m = metrics.Global
	}
	return &Mapper{
		batch:     batch,
		field:     field,
		cache:     cache,
		maxTokens: maxTokens,
		metrics:   m,
		log:       logger.Component("translate"),
	}
}

// Translate returns a translated copy of b; b itself is never modified.
// With nothing to translate, or no translator configured, b is returned unchanged.
func (mp *Mapper) Translate(ctx context.Context, b summarize.Bundle, target string) summarize.Bundle {
	payload, index := BuildPayload(b, target)
	if payload.Empty() {
		mp.log.Info("nothing to translate", "target", target)
		return b
	}
	if mp.batch == nil && mp.field == nil {
		return b
	}

	if mp.batch != nil {
		out, err := mp.translateBatch(ctx, b, payload, index, target)
		if err == nil {
			topics, captions := index.Sent()
			mp.log.Info("batch translation applied", "target", target, "topics", topics, "captions", captions)
			mp.metrics.IncrementSuccessfulTranslations()
			return out
		}
		mp.log.Warn("batch translation failed, translating per field", "error", err)
	}
	if mp.field == nil {
		mp.metrics.IncrementFailedTranslations()
		return b
	}
	return mp.translateFields(ctx, b, target)
}

func (mp *Mapper) translateBatch(ctx context.Context, b summarize.Bundle, p Payload, m IndexMap, target string) (summarize.Bundle, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return summarize.Bundle{}, fmt.Errorf("encode payload: %w", err)
	}

	raw, err := mp.batch.Complete(ctx, llm.Request{
		System: fmt.Sprintf("You are a translation assistant. Translate the provided JSON into %s preserving meaning and formatting. "+
			"Return only valid JSON with keys: narration, topics (list of {title, summary}), captions (list of strings). "+
			"Keep every list the same length and order.", LanguageName(target)),
		Prompt:      "INPUT_JSON:\n" + buf.String(),
		JSON:        true,
		Temperature: 0.1,
		MaxTokens:   mp.maxTokens,
	})
	if err != nil {
		return summarize.Bundle{}, fmt.Errorf("complete: %w", err)
	}

	reply, step, err := summarize.Decode[Reply](raw)
	if err != nil {
		return summarize.Bundle{}, fmt.Errorf("decode reply: %w", err)
	}
	mp.log.Debug("batch reply parsed", "step", step)
	return Apply(b, m, reply), nil
}

// translateFields translates narration, titles, summaries and captions one by one.
// A failed field keeps its original text.
func (mp *Mapper) translateFields(ctx context.Context, b summarize.Bundle, target string) summarize.Bundle {
	out := b.Clone()
	changed := false

	for i := range out.Topics {
		t := &out.Topics[i]
		if alreadyTarget(t.Title, target) || alreadyTarget(t.Text(), target) {
			continue
		}
		if s, ok := mp.translateField(ctx, t.Title, target); ok {
			t.Title = s
			changed = true
		}
		if s, ok := mp.translateField(ctx, t.Text(), target); ok {
			t.Summary = s
			changed = true
		}
	}

	if NeedsTranslation(out.Narration, target) {
		if s, ok := mp.translateField(ctx, out.Narration, target); ok {
			out.Narration = s
		}
	} else if changed {
		out.Narration = summarize.NarrationFrom(out.Topics)
	}

	for i := range out.Captions {
		if s, ok := mp.translateField(ctx, out.Captions[i].Text, target); ok {
			out.Captions[i].Text = s
		}
	}
	return out
}

func (mp *Mapper) translateField(ctx context.Context, text, target string) (string, bool) {
	if !NeedsTranslation(text, target) {
		return "", false
	}

	if mp.cache != nil {
		cached, ok, err := mp.cache.GetTranslation(ctx, target, text)
		if err != nil {
			mp.log.Warn("translation cache read failed", "error", err)
		} else if ok {
			mp.metrics.IncrementCachedTranslations()
			return cached, true
		}
	}

	translated, err := mp.field.Translate(ctx, text, target)
	if err != nil || strings.TrimSpace(translated) == "" {
		mp.metrics.IncrementFailedTranslations()
		mp.log.Warn("field translation failed", "translator", mp.field.Name(), "text", news.Truncate(text, 60), "error", err)
		return "", false
	}
	translated = SanitizeAIText(translated)
	mp.metrics.IncrementSuccessfulTranslations()

	if mp.cache != nil {
		if err := mp.cache.PutTranslation(ctx, target, text, translated, mp.field.Name()); err != nil {
			mp.log.Warn("translation cache write failed", "error", err)
		}
	}
	return translated, true
}

// MergeBilingual stores a translated bundle's narration and summaries in the
// *_zh fields of a copy of orig.
func MergeBilingual(orig, translated summarize.Bundle) summarize.Bundle {
	out := orig.Clone()
	out.NarrationZH = translated.Narration
	for i := range out.Topics {
		if i < len(translated.Topics) {
			out.Topics[i].SummaryZH = translated.Topics[i].Text()
		}
	}
	return out
}
