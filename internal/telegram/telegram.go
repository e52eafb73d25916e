package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/retry"
	"github.com/deusflow/dailybrief/internal/summarize"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	// MaxMessageLen is the Bot API limit for one sendMessage text, in characters.
	MaxMessageLen = 4096
)

// Client posts briefs to one chat through the Bot API.
type Client struct {
	BaseURL     string
	Token       string
	ChatID      string
	MaxAttempts int
	RetryDelay  time.Duration
	HTTP        *http.Client
}

func New(token, chatID string, maxAttempts int) *Client {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Client{
		BaseURL:     DefaultBaseURL,
		Token:       token,
		ChatID:      chatID,
		MaxAttempts: maxAttempts,
		RetryDelay:  2 * time.Second,
		HTTP:        &http.Client{Timeout: 30 * time.Second},
	}
}

// FromConfig resolves the bot token and chat id from the environment.
func FromConfig(cfg config.TelegramConfig) *Client {
	return New(config.Secret(cfg.BotTokenEnv), config.Secret(cfg.ChatIDEnv), cfg.MaxAttempts)
}

func (c *Client) Name() string { return "telegram" }

// SendMessage sends text as HTML, split into chunks that fit one message.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if c.Token == "" || c.ChatID == "" {
		return fmt.Errorf("telegram token or chat id not set")
	}
	log := logger.Component("telegram")

	chunks := Split(text, MaxMessageLen)
	for i, chunk := range chunks {
		cfg := retry.RetryConfig{
			MaxAttempts: c.MaxAttempts,
			Delay:       c.RetryDelay,
			Backoff:     true,
			OnRetry: func(attempt int, err error) {
				log.Warn("send failed, retrying", "attempt", attempt, "max", c.MaxAttempts, "error", err)
			},
		}
		err := retry.WithRetry(ctx, cfg, func() error {
			return c.sendOnce(ctx, chunk)
		})
		if err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	log.Info("message sent", "chunks", len(chunks))
	return nil
}

func (c *Client) sendOnce(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.BaseURL, "/"), c.Token)

	payload := map[string]interface{}{
		"chat_id":                  c.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post sendMessage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

// Deliver sends the English brief. Failures are logged and reported as false.
func (c *Client) Deliver(ctx context.Context, b summarize.Bundle, topics []news.Topic) bool {
	return c.deliver(ctx, FormatMessage(b, topics, time.Now(), false))
}

// DeliverChinese sends a translated bundle with Chinese headings.
func (c *Client) DeliverChinese(ctx context.Context, b summarize.Bundle, topics []news.Topic) bool {
	return c.deliver(ctx, FormatMessage(b, topics, time.Now(), true))
}

func (c *Client) deliver(ctx context.Context, text string) bool {
	if c.Token == "" || c.ChatID == "" {
		logger.Component("telegram").Warn("telegram credentials missing, skipping")
		return false
	}
	if err := c.SendMessage(ctx, text); err != nil {
		logger.Component("telegram").Error("telegram delivery failed", "error", err)
		return false
	}
	return true
}

// FormatMessage renders the brief as Telegram HTML.
func FormatMessage(b summarize.Bundle, topics []news.Topic, now time.Time, chinese bool) string {
	var sb strings.Builder

	title, more, tags := "AI Daily Brief", "Read more", "Hashtags"
	if chinese {
		title, more, tags = "AI 每日简报", "阅读全文", "标签"
	}
	fmt.Fprintf(&sb, "<b>%s</b> | %s\n\n", title, now.Format("2006-01-02"))

	for i, ts := range b.Topics {
		fmt.Fprintf(&sb, "<b>%d. %s</b>\n", i+1, html.EscapeString(ts.Title))
		if text := strings.TrimSpace(ts.Text()); text != "" {
			sb.WriteString(html.EscapeString(text))
			sb.WriteString("\n")
		}
		url := ts.URL
		if url == "" && i < len(topics) {
			url = topics[i].URL
		}
		source := ts.Source
		if source == "" && i < len(topics) {
			source = topics[i].Source
		}
		if url != "" {
			fmt.Fprintf(&sb, "<a href=\"%s\">%s</a>", html.EscapeString(url), more)
			if source != "" {
				fmt.Fprintf(&sb, " · %s", html.EscapeString(source))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(b.Hashtags) > 0 {
		fmt.Fprintf(&sb, "%s: %s\n", tags, html.EscapeString(strings.Join(b.Hashtags, " ")))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Split cuts text into pieces of at most limit characters, preferring
// paragraph then line boundaries.
func Split(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	rest := text
	for utf8.RuneCountInString(rest) > limit {
		head := prefixRunes(rest, limit)
		cut := strings.LastIndex(head, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(head, "\n")
		}
		if cut <= 0 {
			cut = len(head)
		}
		chunks = append(chunks, strings.TrimRight(rest[:cut], "\n"))
		rest = strings.TrimLeft(rest[cut:], "\n")
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
