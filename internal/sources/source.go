// Package sources fetches candidate topics from the configured sites.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deusflow/dailybrief/internal/news"
)

// Fetcher returns the candidate topics of one source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]news.Topic, error)
}

// CommentFetcher loads community comments for a topic produced by the same source.
type CommentFetcher interface {
	FetchComments(ctx context.Context, topic news.Topic, limit int) ([]news.Comment, error)
}

const (
	minCommentLen = 10
	maxCommentLen = 500
	maxExcerptLen = 300
)

// httpClient carries the shared request settings of every adapter.
type httpClient struct {
	userAgent string
	timeout   time.Duration
	headers   map[string]string
}

func (c httpClient) getJSON(ctx context.Context, url string, out any) error {
	client := &http.Client{Timeout: c.timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: HTTP %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
