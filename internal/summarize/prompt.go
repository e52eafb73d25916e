package summarize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/deusflow/dailybrief/internal/news"
)

// SystemPrompt is the instruction sent with every summarization request.
func SystemPrompt(sentenceBudget int, bilingual bool) string {
	if sentenceBudget < 2 {
		sentenceBudget = 2
	}
	maxSentences := sentenceBudget - 1

	bilingualRule := ""
	if bilingual {
		bilingualRule = `
5. For every topic also provide "summary_en" (English) and "summary_zh" (Simplified Chinese) with the same content.
`
	}

	return fmt.Sprintf(`You are an engaging news summarizer for AI and tech topics.

INPUT: a JSON array of hot topics from Reddit, Hacker News, China News and other sources. Each topic has
a title, url, source, score, comment count, an excerpt, the full article content when available, and
community comments.

LANGUAGE RULE:
- Topics from Chinese sources (China News, Chinese websites) are summarized in Chinese (中文).
- All other topics are summarized in English.

Your task:
1. For EACH topic, in the order received, write a summary of fewer than %[1]d sentences (at most %[2]d) that
   explains the key points of the article content, prioritizing it over comments, and mentions notable
   community reactions.
2. Write a narration script as a numbered list, one topic per entry, separated by a blank line:
   "1. <Topic Title>: <Summary>"
3. Create on-screen captions synchronized with the narration, one or more per topic, with increasing
   start times in seconds.
4. Do NOT include URLs, emails, phone numbers, API keys, passwords or personal data.
%[3]s
Respond with a single JSON object and nothing else:
{
  "topics": [{"title": string, "source": string, "summary": string, "key_points": [string]}],
  "narration": string,
  "captions": [{"start_s": number, "end_s": number, "text": string}],
  "hashtags": [string]
}
`, sentenceBudget, maxSentences, bilingualRule)
}

type promptTopic struct {
	Index         int            `json:"index"`
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	Source        string         `json:"source"`
	Score         int            `json:"score"`
	CommentsCount int            `json:"comments_count"`
	Excerpt       string         `json:"excerpt,omitempty"`
	Content       string         `json:"content,omitempty"`
	Comments      []news.Comment `json:"comments,omitempty"`
}

// UserPrompt serializes the topics as the request payload.
func UserPrompt(topics []news.Topic) (string, error) {
	payload := make([]promptTopic, len(topics))
	for i, t := range topics {
		payload[i] = promptTopic{
			Index:         i,
			Title:         t.Title,
			URL:           t.URL,
			Source:        t.Source,
			Score:         t.Score,
			CommentsCount: t.CommentsCount,
			Excerpt:       t.Excerpt,
			Content:       t.Content,
			Comments:      t.Comments,
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("encode topics: %w", err)
	}
	return "INPUT:\n" + buf.String(), nil
}
