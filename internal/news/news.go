package news

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Comment is one community reply attached to a topic.
type Comment struct {
	Author string `json:"author"`
	Text   string `json:"text"`
	Score  int    `json:"score"`
}

// Topic is a candidate news item as returned by a source adapter.
// Content and Comments stay empty until Merge attaches an Enrichment.
type Topic struct {
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Score         int       `json:"score"`
	Source        string    `json:"source"`
	Author        string    `json:"author"`
	Excerpt       string    `json:"excerpt"`
	CommentsCount int       `json:"comments_count"`
	Content       string    `json:"content,omitempty"`
	Comments      []Comment `json:"comments"`

	// ExternalID is the source-native identifier (HN item id, tweet id).
	ExternalID string `json:"-"`
	// Origin names the adapter that produced the topic ("reddit", "hackernews", ...).
	Origin string `json:"-"`
}

// Key is the dedupe key of a topic: its URL, or its title when no URL is known.
func (t Topic) Key() string {
	if t.URL != "" {
		return t.URL
	}
	return t.Title
}

// Enrichment holds the data fetched for a selected topic after selection.
type Enrichment struct {
	Content  string
	Comments []Comment
}

// Merge returns copies of topics with their enrichment records attached.
// Topics without a record are returned unchanged.
func Merge(topics []Topic, enrichments map[string]Enrichment) []Topic {
	out := make([]Topic, len(topics))
	for i, t := range topics {
		if e, ok := enrichments[t.Key()]; ok {
			t.Content = e.Content
			if len(e.Comments) > 0 {
				t.Comments = append([]Comment(nil), e.Comments...)
			}
		}
		if t.Comments == nil {
			t.Comments = []Comment{}
		}
		out[i] = t
	}
	return out
}

// AIKeywords is the title filter applied to Hacker News stories.
var AIKeywords = []string{
	"ai", "agent", "llm", "gpt", "artificial intelligence", "machine learning", "ml",
	"neural", "chatbot", "claude", "openai", "anthropic", "deepmind", "langchain",
}

var (
	wordRegexMu    sync.Mutex
	wordRegexCache = map[string]*regexp.Regexp{}
)

// ContainsAny reports whether text contains one of keywords.
// Phrases match as substrings, short tokens (<= 3 chars) as whole words so
// "ai" does not match "said", longer tokens as substrings.
func ContainsAny(text string, keywords []string) bool {
	text = strings.ToLower(text)

	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}

		if strings.Contains(k, " ") {
			if strings.Contains(text, k) {
				return true
			}
			continue
		}

		if len(k) <= 3 {
			if wordRegex(k).MatchString(text) {
				return true
			}
			continue
		}

		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func wordRegex(k string) *regexp.Regexp {
	wordRegexMu.Lock()
	defer wordRegexMu.Unlock()
	re, ok := wordRegexCache[k]
	if !ok {
		re = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		wordRegexCache[k] = re
	}
	return re
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// HasCJK reports whether s contains a character in the CJK unified ideographs block.
func HasCJK(s string) bool {
	for _, r := range s {
		if r >= '一' && r <= '鿿' {
			return true
		}
	}
	return false
}

// Target languages whose script can be told apart from English by Unicode
// range alone. Japanese is detected by kana so Chinese text does not count.
var targetScripts = map[string][]*unicode.RangeTable{
	"zh": {unicode.Han},
	"ja": {unicode.Hiragana, unicode.Katakana},
	"ko": {unicode.Hangul},
	"ru": {unicode.Cyrillic},
	"uk": {unicode.Cyrillic},
	"bg": {unicode.Cyrillic},
	"el": {unicode.Greek},
	"ar": {unicode.Arabic},
	"he": {unicode.Hebrew},
	"hi": {unicode.Devanagari},
	"th": {unicode.Thai},
}

func baseLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}

// HasTargetScript reports whether lang ("zh", "zh-CN", "ja", ...) has a script
// that InScript can detect.
func HasTargetScript(lang string) bool {
	_, ok := targetScripts[baseLang(lang)]
	return ok
}

// InScript reports whether s contains a character of lang's script. It is
// false for languages without a known script.
func InScript(s, lang string) bool {
	tables := targetScripts[baseLang(lang)]
	if len(tables) == 0 {
		return false
	}
	for _, r := range s {
		if unicode.IsOneOf(tables, r) {
			return true
		}
	}
	return false
}

// IsChineseSource reports whether a topic should be summarized in Chinese.
func IsChineseSource(t Topic) bool {
	if strings.Contains(t.Source, "China") || strings.Contains(strings.ToLower(t.Source), "chinanews") {
		return true
	}
	return HasCJK(t.Title)
}
