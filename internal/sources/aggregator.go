package sources

import (
	"context"
	"sort"
	"time"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
)

// Order is the fixed iteration order of the known sources.
var Order = []string{"reddit", "hackernews", "twitter", "chinanews", "moltbook"}

// keepOrder lists sources whose items have no meaningful score.
var keepOrder = map[string]bool{"chinanews": true, "moltbook": true}

// Aggregator fans out to every enabled source and trims each result.
type Aggregator struct {
	fetchers []Fetcher
	topN     map[string]int
	defTopN  int
}

// NewAggregator wraps the given fetchers. topN overrides defaultTopN per source name.
func NewAggregator(fetchers []Fetcher, defaultTopN int, topN map[string]int) *Aggregator {
	ordered := make([]Fetcher, 0, len(fetchers))
	for _, name := range Order {
		for _, f := range fetchers {
			if f.Name() == name {
				ordered = append(ordered, f)
			}
		}
	}
	for _, f := range fetchers {
		if !known(f.Name()) {
			ordered = append(ordered, f)
		}
	}
	if topN == nil {
		topN = map[string]int{}
	}
	return &Aggregator{fetchers: ordered, topN: topN, defTopN: defaultTopN}
}

// FromConfig builds the aggregator for every enabled source in cfg.
func FromConfig(cfg config.SourcesConfig) *Aggregator {
	timeout := cfg.Timeout()
	delay := cfg.PoliteDelay()
	var fetchers []Fetcher

	if cfg.Reddit.Enabled {
		fetchers = append(fetchers, NewReddit(cfg.Reddit.Subreddits, cfg.Reddit.LimitPerSubreddit, cfg.Reddit.TimeFilter, cfg.UserAgent, timeout, delay))
	}
	if cfg.HackerNews.Enabled {
		fetchers = append(fetchers, NewHackerNews(cfg.HackerNews.APIURL, cfg.HackerNews.MaxStories, cfg.UserAgent, timeout))
	}
	if cfg.Twitter.Enabled {
		fetchers = append(fetchers, NewTwitter(config.Secret(cfg.Twitter.BearerTokenEnv), cfg.Twitter.SearchQueries, cfg.Twitter.MaxTweetsPerQuery, timeout, delay))
	}
	if cfg.ChinaNews.Enabled {
		fetchers = append(fetchers, NewChinaNews(cfg.ChinaNews.RSSURLs, cfg.ChinaNews.Limit, cfg.UserAgent, timeout, delay))
	}
	if cfg.Moltbook.Enabled {
		fetchers = append(fetchers, NewMoltbook(cfg.Moltbook.HotURLs, cfg.Moltbook.FetchLimit, cfg.UserAgent, timeout, delay))
	}

	topN := map[string]int{}
	if cfg.ChinaNews.TopN > 0 {
		topN["chinanews"] = cfg.ChinaNews.TopN
	}
	return NewAggregator(fetchers, cfg.TopNPerSource, topN)
}

func known(name string) bool {
	for _, n := range Order {
		if n == name {
			return true
		}
	}
	return false
}

// Names returns the enabled source names in iteration order.
func (a *Aggregator) Names() []string {
	names := make([]string, len(a.fetchers))
	for i, f := range a.fetchers {
		names[i] = f.Name()
	}
	return names
}

// FetchAll runs every source in order. A failing source yields an empty list.
func (a *Aggregator) FetchAll(ctx context.Context) map[string][]news.Topic {
	log := logger.Component("sources")
	out := make(map[string][]news.Topic, len(a.fetchers))

	for _, f := range a.fetchers {
		start := time.Now()
		topics, err := f.Fetch(ctx)
		if err != nil {
			log.Warn("source failed", "source", f.Name(), "error", err)
		}
		topics = a.trim(f.Name(), topics)
		out[f.Name()] = topics
		log.Info("source fetched", "source", f.Name(), "topics", len(topics), "took", time.Since(start).Round(time.Millisecond))
	}
	return out
}

func (a *Aggregator) trim(name string, topics []news.Topic) []news.Topic {
	if topics == nil {
		return []news.Topic{}
	}
	if !keepOrder[name] {
		sort.SliceStable(topics, func(i, j int) bool { return topics[i].Score > topics[j].Score })
	}
	n := a.defTopN
	if v, ok := a.topN[name]; ok {
		n = v
	}
	if n > 0 && len(topics) > n {
		topics = topics[:n]
	}
	return topics
}

// Flatten concatenates per-source results in iteration order.
func (a *Aggregator) Flatten(results map[string][]news.Topic) []news.Topic {
	var all []news.Topic
	for _, name := range a.Names() {
		all = append(all, results[name]...)
	}
	return all
}

// CommentFetcher returns the comment loader of the source that produced a topic.
func (a *Aggregator) CommentFetcher(origin string) (CommentFetcher, bool) {
	for _, f := range a.fetchers {
		if f.Name() != origin {
			continue
		}
		cf, ok := f.(CommentFetcher)
		return cf, ok
	}
	return nil, false
}
