package sources

import (
	"context"
	"strings"
	"time"

	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/rss"
	"github.com/deusflow/dailybrief/internal/scraper"
)

// ChinaNews reads the China News RSS feeds. Items keep feed order.
type ChinaNews struct {
	RSSURLs     []string
	Limit       int
	PoliteDelay time.Duration
	userAgent   string
	timeout     time.Duration
}

func NewChinaNews(urls []string, limit int, userAgent string, timeout, delay time.Duration) *ChinaNews {
	return &ChinaNews{
		RSSURLs:     urls,
		Limit:       limit,
		PoliteDelay: delay,
		userAgent:   userAgent,
		timeout:     timeout,
	}
}

func (c *ChinaNews) Name() string { return "chinanews" }

func (c *ChinaNews) Fetch(ctx context.Context) ([]news.Topic, error) {
	log := logger.Component("sources").With("source", c.Name())
	var topics []news.Topic

	for i, u := range c.RSSURLs {
		if i > 0 {
			if err := sleepCtx(ctx, c.PoliteDelay); err != nil {
				return topics, err
			}
		}
		feed, err := rss.Fetch(ctx, u, c.userAgent, c.timeout)
		if err != nil {
			log.Warn("feed fetch failed", "url", u, "error", err)
			continue
		}

		items := feed.Items
		if c.Limit > 0 && len(items) > c.Limit {
			items = items[:c.Limit]
		}
		for _, it := range items {
			if it == nil || strings.TrimSpace(it.Title) == "" || it.Link == "" {
				continue
			}
			topics = append(topics, news.Topic{
				Title:   strings.TrimSpace(it.Title),
				URL:     it.Link,
				Score:   100,
				Source:  "China News",
				Author:  "China News",
				Excerpt: news.Truncate(scraper.HTMLToText(it.Description), maxExcerptLen),
				Origin:  c.Name(),
			})
		}
		log.Debug("feed fetched", "url", u, "items", len(items))
	}
	return topics, nil
}
