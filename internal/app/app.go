// Package app runs one daily brief: fetch, select, enrich, summarize,
// translate, write artifacts, deliver and render.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/dailybrief/internal/cache"
	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/enrich"
	"github.com/deusflow/dailybrief/internal/history"
	"github.com/deusflow/dailybrief/internal/llm"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/media"
	"github.com/deusflow/dailybrief/internal/metrics"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/output"
	"github.com/deusflow/dailybrief/internal/ratelimit"
	"github.com/deusflow/dailybrief/internal/selector"
	"github.com/deusflow/dailybrief/internal/sources"
	"github.com/deusflow/dailybrief/internal/storage"
	"github.com/deusflow/dailybrief/internal/summarize"
	"github.com/deusflow/dailybrief/internal/translate"
)

// Options overrides collaborators, mostly for tests. Zero values use the
// real implementations.
type Options struct {
	Metrics     *metrics.Metrics
	Aggregator  *sources.Aggregator
	Backend     llm.Backend
	ContentFunc enrich.ContentFunc
	Runner      media.Runner
	FindFFmpeg  func() (string, error)
	Channels    []Channel
	Now         func() time.Time
}

// RunOptions controls one run.
type RunOptions struct {
	// RunID is generated when empty.
	RunID  string
	DryRun bool
}

// Result is what a run reports back to the CLI and the HTTP server.
type Result struct {
	RunID         string          `json:"run_id"`
	Day           string          `json:"day"`
	DayDir        string          `json:"day_dir"`
	Fetched       int             `json:"fetched"`
	Selected      int             `json:"selected"`
	SelectionMode string          `json:"selection_mode"`
	RepairStep    string          `json:"repair_step"`
	Translated    string          `json:"translated,omitempty"`
	Artifacts     []string        `json:"artifacts"`
	Video         string          `json:"video,omitempty"`
	Latest        string          `json:"latest,omitempty"`
	Deliveries    map[string]bool `json:"deliveries,omitempty"`
	DryRun        bool            `json:"dry_run,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
}

type Pipeline struct {
	cfg        *config.Config
	metrics    *metrics.Metrics
	aggregator *sources.Aggregator
	backend    llm.Backend
	selector   *selector.Selector
	enricher   *enrich.Enricher
	engine     *summarize.Engine
	mapper     *translate.Mapper
	store      storage.Store
	output     *output.Store
	synth      *media.Synthesizer
	renderer   *media.Renderer
	findFFmpeg func() (string, error)
	channels   []Channel
	contents   *cache.Cache[string]
	now        func() time.Time
	ownBackend bool
}

// New wires a pipeline from cfg. Close releases the backend, storage and cache.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, error) {
	m := opts.Metrics
	if m == nil {
		m = metrics.Global
	}
	p := &Pipeline{
		cfg:        cfg,
		metrics:    m,
		aggregator: opts.Aggregator,
		backend:    opts.Backend,
		output:     output.NewStore(cfg.Output.RootDir, cfg.Output.RetainDays),
		synth:      media.NewSynthesizer(),
		renderer:   media.NewRenderer(),
		findFFmpeg: opts.FindFFmpeg,
		now:        opts.Now,
		contents:   cache.New[string](enrich.ContentTTL),
	}
	if p.aggregator == nil {
		p.aggregator = sources.FromConfig(cfg.Sources)
	}
	if p.findFFmpeg == nil {
		p.findFFmpeg = media.FindFFmpeg
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.renderer.Timeout = cfg.Video.RenderTimeout()
	if opts.Runner != nil {
		p.synth.Runner = opts.Runner
		p.renderer.Runner = opts.Runner
	}

	if opts.Backend == nil {
		limiter := ratelimit.New(cfg.Summarizer.MaxRequestsPerDay, 0)
		b, err := llm.New(ctx, cfg.Summarizer, limiter)
		if err != nil {
			p.contents.Close()
			return nil, fmt.Errorf("create summarizer backend: %w", err)
		}
		p.backend = b
		p.ownBackend = true
	}

	store, err := openStore(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.store = store

	temperature, maxTokens := llmParams(cfg.Summarizer)
	sel := cfg.Sources.AITopicSelection
	p.selector = selector.New(p.backend, selector.Options{
		AI:          sel.Enabled,
		MaxTopics:   sel.MaxTopicsToSelect,
		Keywords:    sel.PriorityKeywords,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, m)

	p.enricher = enrich.New(p.aggregator, p.contents, enrich.Options{
		UserAgent:     cfg.Sources.UserAgent,
		Timeout:       cfg.Sources.Timeout(),
		CommentsLimit: cfg.Sources.CommentsLimit,
	})
	if opts.ContentFunc != nil {
		p.enricher.WithContentFunc(opts.ContentFunc)
	}

	p.engine = summarize.NewEngine(p.backend, summarize.Options{
		SentenceBudget: cfg.Summarizer.SummarySentenceCount,
		Bilingual:      cfg.Summarizer.Bilingual,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
	}, m)

	if cfg.Translation.Enabled {
		p.mapper = newMapper(cfg, p.backend, translationCache(p.store), maxTokens, m)
	}

	p.channels = opts.Channels
	if p.channels == nil {
		p.channels = channelsFromConfig(cfg)
	}
	return p, nil
}

// Close releases resources held by the pipeline.
func (p *Pipeline) Close() {
	if p.ownBackend {
		llm.Close(p.backend)
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			logger.Component("app").Warn("close storage failed", "error", err)
		}
	}
	p.contents.Close()
}

func llmParams(cfg config.SummarizerConfig) (float64, int) {
	if cfg.Backend == "gemini" {
		return cfg.Gemini.Temperature, cfg.Gemini.MaxTokens
	}
	return cfg.OpenAICompatible.Temperature, cfg.OpenAICompatible.MaxTokens
}

func newMapper(cfg *config.Config, backend llm.Backend, tc storage.TranslationCache, maxTokens int, m *metrics.Metrics) *translate.Mapper {
	if cfg.Translation.Provider == "google" {
		return translate.NewMapper(nil, translate.NewGoogleTranslator(cfg.Sources.Timeout()), tc, maxTokens, m)
	}
	if backend == nil {
		return translate.NewMapper(nil, nil, tc, maxTokens, m)
	}
	return translate.NewMapper(backend, translate.NewLLMTranslator(backend, maxTokens), tc, maxTokens, m)
}

// Run executes the pipeline once. Source, enrichment, LLM and delivery problems
// degrade; artifact writes and video rendering failures are returned.
func (p *Pipeline) Run(ctx context.Context, ro RunOptions) (Result, error) {
	start := time.Now()
	runID := ro.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	now := p.now()
	log := logger.Component("app").With("run_id", runID)
	res := Result{RunID: runID, Day: output.Day(now), DryRun: ro.DryRun}

	err := p.run(ctx, log, now, ro, &res)
	res.DurationMS = time.Since(start).Milliseconds()
	p.metrics.RecordProcessingTime(time.Since(start))
	if err != nil {
		p.metrics.SetError(err.Error())
		log.Error("run failed", "error", err, "duration", time.Since(start))
		return res, err
	}
	p.metrics.SetLastRun(runID)
	log.Info("run completed", "day_dir", res.DayDir, "selected", res.Selected, "duration", time.Since(start))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, now time.Time, ro RunOptions, res *Result) error {
	dayDir, err := p.output.DayDir(now)
	if err != nil {
		return err
	}
	res.DayDir = dayDir

	// 1) fetch
	bySource := p.aggregator.FetchAll(ctx)
	for _, name := range p.aggregator.Names() {
		log.Info("source fetched", "source", name, "topics", len(bySource[name]))
	}
	pool := p.aggregator.Flatten(bySource)
	res.Fetched = len(pool)
	p.metrics.AddTopicsFetched(len(pool))

	// 2) history
	if p.cfg.Summarizer.SkipAlreadySummarized && len(pool) > 0 {
		pool = p.filterHistory(log, now, pool)
	}

	// 3) select
	sel := p.selector.Select(ctx, pool)
	selected := sel.Topics(pool)
	res.Selected = len(selected)
	res.SelectionMode = sel.Mode
	if sel.Reasoning != "" {
		log.Info("selection reasoning", "reasoning", news.Truncate(sel.Reasoning, 300))
	}

	// 4) enrich
	topics := news.Merge(selected, p.enricher.Enrich(ctx, selected))
	if err := p.write(res, func() (string, error) { return p.output.WriteJSON(dayDir, "topics.json", topicsOrEmpty(topics)) }); err != nil {
		return err
	}

	// 5) summarize
	bundle, step := p.engine.SummarizeStep(ctx, topics)
	res.RepairStep = step

	// 6) translate
	var translated *summarize.Bundle
	lang := p.cfg.Translation.TargetLang
	if p.mapper != nil && len(topics) > 0 {
		tb := p.mapper.Translate(ctx, bundle, lang)
		translated = &tb
		res.Translated = lang
		if p.cfg.Summarizer.Bilingual {
			bundle = translate.MergeBilingual(bundle, tb)
		}
	}

	if err := p.writeBundle(res, dayDir, "", bundle); err != nil {
		return err
	}
	if translated != nil {
		if err := p.writeBundle(res, dayDir, lang, *translated); err != nil {
			return err
		}
	}

	// 7) deliver
	if ro.DryRun {
		log.Info("dry run, skipping delivery")
	} else if len(topics) == 0 {
		log.Warn("no topics selected, skipping delivery")
	} else {
		res.Deliveries = p.deliver(ctx, log, res, bundle, translated, topics)
	}

	// 8) media
	if p.cfg.Video.Enabled && len(topics) > 0 {
		video, err := p.renderVideo(ctx, log, dayDir, bundle)
		if err != nil {
			return err
		}
		res.Video = video
		res.Artifacts = append(res.Artifacts, video)
	} else if p.cfg.Video.Enabled {
		log.Warn("no topics selected, skipping video")
	}

	// 9) latest + retention
	if p.cfg.Output.WriteLatest {
		latest, err := p.output.PublishLatest(dayDir)
		if err != nil {
			return err
		}
		res.Latest = latest
	}
	if _, err := p.output.Prune(now); err != nil {
		log.Warn("prune failed", "error", err)
	}
	return nil
}

func (p *Pipeline) filterHistory(log *slog.Logger, now time.Time, pool []news.Topic) []news.Topic {
	set, err := history.Scan(p.output.Root(), p.cfg.Output.RetainDays, now)
	if err != nil {
		log.Warn("history scan failed, not filtering", "error", err)
		return pool
	}
	filtered := history.Filter(set, pool)
	p.metrics.AddHistoryFiltered(len(pool) - len(filtered))
	log.Info("history filter applied", "known", set.Len(), "before", len(pool), "after", len(filtered))
	return filtered
}

func (p *Pipeline) write(res *Result, fn func() (string, error)) error {
	path, err := fn()
	if err != nil {
		return err
	}
	res.Artifacts = append(res.Artifacts, path)
	return nil
}

// writeBundle writes summary.json and script.txt, or their .<lang> variants.
func (p *Pipeline) writeBundle(res *Result, dayDir, lang string, b summarize.Bundle) error {
	summaryName, scriptName := "summary.json", "script.txt"
	if lang != "" {
		summaryName = "summary." + lang + ".json"
		scriptName = "script." + lang + ".txt"
	}
	if err := p.write(res, func() (string, error) { return p.output.WriteJSON(dayDir, summaryName, b) }); err != nil {
		return err
	}
	return p.write(res, func() (string, error) { return p.output.WriteText(dayDir, scriptName, b.Narration) })
}

func (p *Pipeline) renderVideo(ctx context.Context, log *slog.Logger, dayDir string, b summarize.Bundle) (string, error) {
	ffmpeg, err := p.findFFmpeg()
	if err != nil {
		return "", fmt.Errorf("render video: %w", err)
	}

	voice, err := p.synth.Synthesize(ctx, p.cfg.TTS, b.Narration, dayDir)
	if err != nil {
		log.Warn("tts failed, rendering with silence", "backend", p.cfg.TTS.Backend, "error", err)
		voice = ""
	}

	srt, err := media.WriteSRT(b.Captions, dayDir)
	if err != nil {
		return "", err
	}

	cmd, err := media.BuildRenderCommand(p.cfg.Video, ffmpeg, voice, srt, dayDir, media.SilenceDuration(b.Captions, len(b.Topics)))
	if err != nil {
		return "", err
	}
	log.Debug("ffmpeg command", "cmd", cmd.String())

	video, err := p.renderer.Render(ctx, cmd)
	if err != nil {
		return "", err
	}
	checksum, err := p.output.WriteChecksum(video)
	if err != nil {
		return "", err
	}
	log.Info("video rendered", "path", video, "checksum_file", checksum)
	return video, nil
}

func topicsOrEmpty(t []news.Topic) []news.Topic {
	if t == nil {
		return []news.Topic{}
	}
	return t
}

// IsChinese reports whether lang names a Chinese variant.
func IsChinese(lang string) bool {
	lang = strings.ToLower(lang)
	return lang == "zh" || strings.HasPrefix(lang, "zh-")
}
