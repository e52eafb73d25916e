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

const redditBaseURL = "https://www.reddit.com"

// Reddit reads hot posts through the public JSON listing API.
type Reddit struct {
	BaseURL     string
	Subreddits  []string
	Limit       int
	TimeFilter  string
	PoliteDelay time.Duration
	http        httpClient
}

func NewReddit(subreddits []string, limit int, timeFilter, userAgent string, timeout, delay time.Duration) *Reddit {
	return &Reddit{
		BaseURL:     redditBaseURL,
		Subreddits:  subreddits,
		Limit:       limit,
		TimeFilter:  timeFilter,
		PoliteDelay: delay,
		http:        httpClient{userAgent: userAgent, timeout: timeout},
	}
}

func (r *Reddit) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string `json:"title"`
	Permalink   string `json:"permalink"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`
	Author      string `json:"author"`
	Selftext    string `json:"selftext"`
	Stickied    bool   `json:"stickied"`
	Body        string `json:"body"`
}

// Fetch reads every configured subreddit; a failing subreddit is skipped.
func (r *Reddit) Fetch(ctx context.Context) ([]news.Topic, error) {
	log := logger.Component("sources").With("source", r.Name())
	var topics []news.Topic

	for i, sub := range r.Subreddits {
		if i > 0 {
			if err := sleepCtx(ctx, r.PoliteDelay); err != nil {
				return topics, err
			}
		}
		got, err := r.fetchSubreddit(ctx, sub)
		if err != nil {
			log.Warn("subreddit fetch failed", "subreddit", sub, "error", err)
			continue
		}
		log.Debug("subreddit fetched", "subreddit", sub, "posts", len(got))
		topics = append(topics, got...)
	}
	return topics, nil
}

func (r *Reddit) fetchSubreddit(ctx context.Context, sub string) ([]news.Topic, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(r.Limit))
	q.Set("t", r.TimeFilter)
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?%s", strings.TrimRight(r.BaseURL, "/"), url.PathEscape(sub), q.Encode())

	var listing redditListing
	if err := r.http.getJSON(ctx, endpoint, &listing); err != nil {
		return nil, err
	}

	var topics []news.Topic
	for _, child := range listing.Data.Children {
		p := child.Data
		if p.Stickied {
			continue
		}
		link := p.URL
		if p.Permalink != "" {
			link = strings.TrimRight(r.BaseURL, "/") + p.Permalink
		}
		author := p.Author
		if author == "" {
			author = "[deleted]"
		}
		topics = append(topics, news.Topic{
			Title:         p.Title,
			URL:           link,
			Score:         p.Score,
			Source:        "Reddit r/" + sub,
			Author:        author,
			Excerpt:       news.Truncate(p.Selftext, maxExcerptLen),
			CommentsCount: p.NumComments,
			Origin:        r.Name(),
		})
	}
	return topics, nil
}

// FetchComments reads the top-level comments of a post.
func (r *Reddit) FetchComments(ctx context.Context, topic news.Topic, limit int) ([]news.Comment, error) {
	if topic.URL == "" {
		return nil, nil
	}
	endpoint := strings.TrimRight(topic.URL, "/") + ".json?limit=30"

	var listings []redditListing
	if err := r.http.getJSON(ctx, endpoint, &listings); err != nil {
		return nil, err
	}
	if len(listings) < 2 {
		return nil, nil
	}

	children := listings[1].Data.Children
	if limit > 0 && len(children) > limit {
		children = children[:limit]
	}

	var comments []news.Comment
	for _, c := range children {
		if c.Kind != "t1" {
			continue
		}
		body := c.Data.Body
		if len(body) <= minCommentLen {
			continue
		}
		author := c.Data.Author
		if author == "" {
			author = "[deleted]"
		}
		comments = append(comments, news.Comment{
			Author: author,
			Text:   news.Truncate(body, maxCommentLen),
			Score:  c.Data.Score,
		})
	}
	return comments, nil
}
