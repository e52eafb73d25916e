// Package translate maps a summary bundle into another language while keeping
// every topic and caption at its original position.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/dailybrief/internal/llm"
	"github.com/deusflow/dailybrief/internal/news"
)

// Translator translates one text field.
type Translator interface {
	Name() string
	Translate(ctx context.Context, text, target string) (string, error)
}

var langNames = map[string]string{
	"zh": "Simplified Chinese (zh)",
	"en": "English (en)",
	"ja": "Japanese (ja)",
	"uk": "Ukrainian (uk)",
	"da": "Danish (da)",
}

// LanguageName is the human name used in prompts.
func LanguageName(code string) string {
	if n, ok := langNames[strings.ToLower(code)]; ok {
		return n
	}
	return code
}

// LLMTranslator translates through the configured text-generation backend.
type LLMTranslator struct {
	backend   llm.Backend
	maxTokens int
}

func NewLLMTranslator(backend llm.Backend, maxTokens int) *LLMTranslator {
	return &LLMTranslator{backend: backend, maxTokens: maxTokens}
}

func (t *LLMTranslator) Name() string { return t.backend.Name() }

func (t *LLMTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	if text == "" {
		return "", nil
	}
	out, err := t.backend.Complete(ctx, llm.Request{
		System: fmt.Sprintf("You are a translation assistant. Translate user content to %s preserving meaning and formatting. "+
			"Return only the translation, without notes or comments.", LanguageName(target)),
		Prompt:      text,
		Temperature: 0.1,
		MaxTokens:   t.maxTokens,
	})
	if err != nil {
		return "", err
	}
	out = SanitizeAIText(out)
	if out == "" {
		return "", errors.New("empty translation")
	}
	return out, nil
}

const (
	googleTranslateURL = "https://translate.googleapis.com/translate_a/single"
	googleMaxChars     = 4000
)

// GoogleTranslator uses the public translate_a endpoint. It needs no key.
type GoogleTranslator struct {
	BaseURL string
	client  *http.Client
}

func NewGoogleTranslator(timeout time.Duration) *GoogleTranslator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleTranslator{BaseURL: googleTranslateURL, client: &http.Client{Timeout: timeout}}
}

func (g *GoogleTranslator) Name() string { return "google" }

func (g *GoogleTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	if text == "" {
		return "", nil
	}
	text = news.Truncate(text, googleMaxChars)

	tl := target
	if strings.EqualFold(tl, "zh") {
		tl = "zh-CN"
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", "auto")
	params.Set("tl", tl)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("google translate returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	translation, err := parseGoogleTranslateResponse(body)
	if err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if translation == "" {
		return "", errors.New("empty translation")
	}
	return translation, nil
}

// parseGoogleTranslateResponse joins the sentence chunks of a translate_a reply.
// The reply is an array whose first element lists [translated, original, ...] pairs.
func parseGoogleTranslateResponse(body []byte) (string, error) {
	var response []interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	chunks, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, chunk := range chunks {
		if pair, ok := chunk.([]interface{}); ok && len(pair) > 0 {
			if translated, ok := pair[0].(string); ok {
				result.WriteString(translated)
			}
		}
	}
	return result.String(), nil
}
