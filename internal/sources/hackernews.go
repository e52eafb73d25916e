package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/scraper"
)

// HackerNews reads top stories from the Firebase API and keeps AI-related ones.
type HackerNews struct {
	APIURL     string
	MaxStories int
	// ItemDelay separates item requests.
	ItemDelay time.Duration
	http      httpClient
}

func NewHackerNews(apiURL string, maxStories int, userAgent string, timeout time.Duration) *HackerNews {
	return &HackerNews{
		APIURL:     strings.TrimRight(apiURL, "/"),
		MaxStories: maxStories,
		ItemDelay:  100 * time.Millisecond,
		http:       httpClient{userAgent: userAgent, timeout: timeout},
	}
}

func (h *HackerNews) Name() string { return "hackernews" }

type hnItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Kids        []int  `json:"kids"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

func (h *HackerNews) item(ctx context.Context, id int) (hnItem, error) {
	var it hnItem
	err := h.http.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.APIURL, id), &it)
	return it, err
}

func (h *HackerNews) Fetch(ctx context.Context) ([]news.Topic, error) {
	log := logger.Component("sources").With("source", h.Name())

	var ids []int
	if err := h.http.getJSON(ctx, h.APIURL+"/topstories.json", &ids); err != nil {
		return nil, err
	}
	if h.MaxStories > 0 && len(ids) > h.MaxStories {
		ids = ids[:h.MaxStories]
	}

	var topics []news.Topic
	for i, id := range ids {
		if i > 0 {
			if err := sleepCtx(ctx, h.ItemDelay); err != nil {
				return topics, err
			}
		}
		it, err := h.item(ctx, id)
		if err != nil {
			log.Debug("story fetch failed", "id", id, "error", err)
			continue
		}
		if !news.ContainsAny(it.Title, news.AIKeywords) {
			continue
		}
		link := it.URL
		if link == "" {
			link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", id)
		}
		topics = append(topics, news.Topic{
			Title:         it.Title,
			URL:           link,
			Score:         it.Score,
			Source:        "Hacker News",
			Author:        it.By,
			Excerpt:       news.Truncate(scraper.HTMLToText(it.Text), maxExcerptLen),
			CommentsCount: it.Descendants,
			ExternalID:    strconv.Itoa(id),
			Origin:        h.Name(),
		})
	}
	log.Debug("AI-related stories found", "count", len(topics), "scanned", len(ids))
	return topics, nil
}

// FetchComments reads the direct replies of a story.
func (h *HackerNews) FetchComments(ctx context.Context, topic news.Topic, limit int) ([]news.Comment, error) {
	id, err := storyID(topic)
	if err != nil {
		return nil, err
	}
	story, err := h.item(ctx, id)
	if err != nil {
		return nil, err
	}

	kids := story.Kids
	if limit > 0 && len(kids) > limit {
		kids = kids[:limit]
	}

	var comments []news.Comment
	for i, kid := range kids {
		if i > 0 {
			if err := sleepCtx(ctx, h.ItemDelay); err != nil {
				return comments, err
			}
		}
		c, err := h.item(ctx, kid)
		if err != nil || c.Deleted || c.Dead {
			continue
		}
		if len(c.Text) <= minCommentLen {
			continue
		}
		comments = append(comments, news.Comment{
			Author: c.By,
			Text:   news.Truncate(scraper.HTMLToText(c.Text), maxCommentLen),
		})
	}
	return comments, nil
}

func storyID(topic news.Topic) (int, error) {
	raw := topic.ExternalID
	if raw == "" {
		if i := strings.Index(topic.URL, "item?id="); i >= 0 {
			raw = strings.SplitN(topic.URL[i+len("item?id="):], "&", 2)[0]
		}
	}
	if raw == "" {
		return 0, fmt.Errorf("no story id for %q", topic.Title)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("bad story id %q: %w", raw, err)
	}
	return id, nil
}
