package sources

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/scraper"
)

var moltbookSkipHrefs = []string{"login", "signup", "register", "terms", "privacy", "settings"}

// Moltbook scrapes post-like links from the hot pages.
type Moltbook struct {
	HotURLs     []string
	FetchLimit  int
	PoliteDelay time.Duration
	userAgent   string
	timeout     time.Duration
}

func NewMoltbook(urls []string, limit int, userAgent string, timeout, delay time.Duration) *Moltbook {
	return &Moltbook{
		HotURLs:     urls,
		FetchLimit:  limit,
		PoliteDelay: delay,
		userAgent:   userAgent,
		timeout:     timeout,
	}
}

func (m *Moltbook) Name() string { return "moltbook" }

func (m *Moltbook) Fetch(ctx context.Context) ([]news.Topic, error) {
	log := logger.Component("sources").With("source", m.Name())
	seen := map[string]bool{}
	var topics []news.Topic

	for i, page := range m.HotURLs {
		if i > 0 {
			if err := sleepCtx(ctx, m.PoliteDelay); err != nil {
				return topics, err
			}
		}
		doc, err := scraper.FetchDocument(ctx, page, m.userAgent, m.timeout)
		if err != nil {
			log.Warn("hot page fetch failed", "url", page, "error", err)
			continue
		}
		base, err := url.Parse(page)
		if err != nil {
			continue
		}

		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if m.FetchLimit > 0 && len(topics) >= m.FetchLimit {
				return false
			}
			href, _ := a.Attr("href")
			text := strings.TrimSpace(a.Text())
			if utf8.RuneCountInString(text) < 12 || strings.HasPrefix(href, "#") || skipHref(href) {
				return true
			}
			ref, err := url.Parse(href)
			if err != nil {
				return true
			}
			full := base.ResolveReference(ref).String()
			if seen[full] {
				return true
			}
			seen[full] = true
			topics = append(topics, news.Topic{
				Title:  news.Truncate(text, 140),
				URL:    full,
				Source: "Moltbook",
				Origin: m.Name(),
			})
			return true
		})
	}
	return topics, nil
}

func skipHref(href string) bool {
	lower := strings.ToLower(href)
	for _, bad := range moltbookSkipHrefs {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}
