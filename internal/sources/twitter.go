package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
)

const twitterSearchURL = "https://api.twitter.com/2/tweets/search/recent"

// Twitter searches recent tweets. Without a bearer token it returns nothing.
type Twitter struct {
	SearchURL   string
	Queries     []string
	MaxResults  int
	PoliteDelay time.Duration
	token       string
	http        httpClient
}

func NewTwitter(token string, queries []string, maxResults int, timeout, delay time.Duration) *Twitter {
	return &Twitter{
		SearchURL:   twitterSearchURL,
		Queries:     queries,
		MaxResults:  maxResults,
		PoliteDelay: delay,
		token:       token,
		http: httpClient{
			timeout: timeout,
			headers: map[string]string{"Authorization": "Bearer " + token},
		},
	}
}

func (t *Twitter) Name() string { return "twitter" }

type tweetSearch struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (t *Twitter) Fetch(ctx context.Context) ([]news.Topic, error) {
	log := logger.Component("sources").With("source", t.Name())
	if strings.TrimSpace(t.token) == "" {
		log.Warn("twitter disabled: no bearer token")
		return nil, nil
	}

	var topics []news.Topic
	for i, query := range t.Queries {
		if i > 0 {
			if err := sleepCtx(ctx, t.PoliteDelay); err != nil {
				return topics, err
			}
		}
		got, err := t.search(ctx, query)
		if err != nil {
			log.Warn("search failed", "query", query, "error", err)
			continue
		}
		topics = append(topics, got...)
	}
	return topics, nil
}

func (t *Twitter) search(ctx context.Context, query string) ([]news.Topic, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("max_results", fmt.Sprint(t.MaxResults))
	q.Set("tweet.fields", "public_metrics,author_id,created_at")

	var res tweetSearch
	if err := t.http.getJSON(ctx, t.SearchURL+"?"+q.Encode(), &res); err != nil {
		return nil, err
	}

	topics := make([]news.Topic, 0, len(res.Data))
	for _, tw := range res.Data {
		m := tw.PublicMetrics
		topics = append(topics, news.Topic{
			Title:         news.Truncate(tw.Text, 100) + "...",
			URL:           "https://twitter.com/i/web/status/" + tw.ID,
			Score:         m.LikeCount + 2*m.RetweetCount,
			Source:        "Twitter",
			Author:        tw.AuthorID,
			Excerpt:       news.Truncate(tw.Text, maxExcerptLen),
			CommentsCount: m.ReplyCount,
			ExternalID:    tw.ID,
			Origin:        t.Name(),
		})
	}
	return topics, nil
}
