// Package enrich loads article text and comments for the selected topics.
package enrich

import (
	"context"
	"log/slog"
	"time"

	"github.com/deusflow/dailybrief/internal/cache"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/scraper"
	"github.com/deusflow/dailybrief/internal/sources"
)

// ContentTTL bounds how long a fetched article is reused across runs of one process.
const ContentTTL = 6 * time.Hour

// CommentSources resolves the comment loader of a topic's originating source.
type CommentSources interface {
	CommentFetcher(origin string) (sources.CommentFetcher, bool)
}

// ContentFunc fetches the readable text of an article.
type ContentFunc func(ctx context.Context, url, userAgent string, timeout time.Duration) (string, error)

type Options struct {
	UserAgent     string
	Timeout       time.Duration
	CommentsLimit int
}

type Enricher struct {
	comments CommentSources
	fetch    ContentFunc
	contents *cache.Cache[string]
	opts     Options
	log      *slog.Logger
}

// New builds an enricher. contents may be shared between runs; nil disables memoisation.
func New(cs CommentSources, contents *cache.Cache[string], opts Options) *Enricher {
	return &Enricher{
		comments: cs,
		fetch:    scraper.FetchArticleContent,
		contents: contents,
		opts:     opts,
		log:      logger.Component("enrich"),
	}
}

// WithContentFunc replaces the article fetcher.
func (e *Enricher) WithContentFunc(f ContentFunc) *Enricher {
	e.fetch = f
	return e
}

// Enrich returns one record per selected topic, keyed by topic key.
// Failures leave the content or comments empty.
func (e *Enricher) Enrich(ctx context.Context, selected []news.Topic) map[string]news.Enrichment {
	out := make(map[string]news.Enrichment, len(selected))
	for _, t := range selected {
		rec := news.Enrichment{
			Content:  e.content(ctx, t),
			Comments: e.loadComments(ctx, t),
		}
		e.log.Info("topic enriched", "title", news.Truncate(t.Title, 60),
			"content_chars", len([]rune(rec.Content)), "comments", len(rec.Comments))
		out[t.Key()] = rec
	}
	return out
}

func (e *Enricher) content(ctx context.Context, t news.Topic) string {
	if t.URL == "" {
		return ""
	}
	key := cache.Key("content", t.URL)
	if e.contents != nil {
		if text, ok := e.contents.Get(key); ok {
			return text
		}
	}

	text, err := e.fetch(ctx, t.URL, e.opts.UserAgent, e.opts.Timeout)
	if err != nil {
		e.log.Warn("article fetch failed", "url", t.URL, "error", err)
		return ""
	}
	if e.contents != nil && text != "" {
		e.contents.Set(key, text)
	}
	return text
}

func (e *Enricher) loadComments(ctx context.Context, t news.Topic) []news.Comment {
	if e.comments == nil || e.opts.CommentsLimit <= 0 {
		return []news.Comment{}
	}
	cf, ok := e.comments.CommentFetcher(t.Origin)
	if !ok {
		return []news.Comment{}
	}
	comments, err := cf.FetchComments(ctx, t, e.opts.CommentsLimit)
	if err != nil {
		e.log.Warn("comment fetch failed", "source", t.Origin, "title", news.Truncate(t.Title, 60), "error", err)
		return []news.Comment{}
	}
	if comments == nil {
		comments = []news.Comment{}
	}
	return comments
}
