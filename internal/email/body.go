package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/summarize"
)

// Content is what goes into one brief email.
type Content struct {
	Date           time.Time
	Bundle         summarize.Bundle
	Topics         []news.Topic
	IncludeTopics  bool
	IncludeSummary bool
	Chinese        bool
}

type labels struct {
	Title, Date, Summary, Hashtags, TopTopics, Source, Score, Comments, Excerpt, ReadMore, Footer string
}

var englishLabels = labels{
	Title:     "AI Daily Brief",
	Date:      "Date",
	Summary:   "AI Summary",
	Hashtags:  "Hashtags",
	TopTopics: "Top %d Topics",
	Source:    "Source",
	Score:     "Score",
	Comments:  "Comments",
	Excerpt:   "Excerpt",
	ReadMore:  "Read More →",
	Footer:    "This email was generated automatically by AI Daily Bot",
}

var chineseLabels = labels{
	Title:     "AI 每日简报",
	Date:      "日期",
	Summary:   "AI 摘要",
	Hashtags:  "标签",
	TopTopics: "今日 %d 大热点",
	Source:    "来源",
	Score:     "热度",
	Comments:  "评论",
	Excerpt:   "摘录",
	ReadMore:  "阅读全文 →",
	Footer:    "本邮件由 AI Daily Bot 自动生成",
}

func (c Content) labels() labels {
	if c.Chinese {
		return chineseLabels
	}
	return englishLabels
}

func (c Content) narration() string {
	if c.Chinese && c.Bundle.NarrationZH != "" {
		return c.Bundle.NarrationZH
	}
	return c.Bundle.Narration
}

func (c Content) dateString() string {
	if c.Chinese {
		return c.Date.Format("2006年1月2日")
	}
	return c.Date.Format("January 02, 2006")
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return news.Truncate(s, n) + "..."
}

func topicTitle(c Content, i int, t news.Topic) string {
	if i < len(c.Bundle.Topics) && c.Bundle.Topics[i].Title != "" && c.Chinese {
		return c.Bundle.Topics[i].Title
	}
	if t.Title == "" {
		return "No title"
	}
	return t.Title
}

// Text renders the plain-text alternative.
func Text(c Content) string {
	l := c.labels()
	rule := strings.Repeat("=", 60)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n%s\n%s: %s\n\n", strings.ToUpper(l.Title), rule, l.Date, c.dateString())

	if c.IncludeSummary {
		if n := strings.TrimSpace(c.narration()); n != "" {
			fmt.Fprintf(&sb, "%s\n%s\n%s\n\n", strings.ToUpper(l.Summary), rule, n)
		}
		if len(c.Bundle.Hashtags) > 0 {
			fmt.Fprintf(&sb, "%s: %s\n\n", l.Hashtags, strings.Join(c.Bundle.Hashtags, " "))
		}
	}

	if c.IncludeTopics && len(c.Topics) > 0 {
		fmt.Fprintf(&sb, "%s\n%s\n\n", strings.ToUpper(fmt.Sprintf(l.TopTopics, len(c.Topics))), rule)
		for i, t := range c.Topics {
			fmt.Fprintf(&sb, "#%d: %s\n", i+1, topicTitle(c, i, t))
			fmt.Fprintf(&sb, "%s: %s\n", l.Source, orDefault(t.Source, "Unknown"))
			fmt.Fprintf(&sb, "%s: %d | %s: %d\n", l.Score, t.Score, l.Comments, t.CommentsCount)
			if ex := excerpt(t.Excerpt, 150); ex != "" {
				fmt.Fprintf(&sb, "%s: %s\n", l.Excerpt, ex)
			}
			fmt.Fprintf(&sb, "URL: %s\n%s\n\n", orDefault(t.URL, "#"), strings.Repeat("-", 60))
		}
	}

	fmt.Fprintf(&sb, "\n%s\n%s\n", rule, l.Footer)
	return sb.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

type htmlTopic struct {
	Index    int
	Title    string
	Source   string
	Score    int
	Comments int
	Excerpt  string
	URL      string
}

type htmlView struct {
	L         labels
	Date      string
	Narration string
	Hashtags  string
	TopTitle  string
	Topics    []htmlTopic
}

var htmlTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
.container { background: white; border-radius: 8px; padding: 30px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
h1 { color: #e01b24; margin-top: 0; border-bottom: 3px solid #e01b24; padding-bottom: 10px; }
h2 { color: #00d4aa; margin-top: 25px; }
.topic { background: #f8f9fa; border-left: 4px solid #e01b24; padding: 15px; margin: 15px 0; border-radius: 4px; }
.topic-title { font-weight: bold; font-size: 16px; color: #1a1a1b; margin-bottom: 8px; }
.topic-meta { font-size: 14px; color: #666; margin: 5px 0; }
.source { display: inline-block; background: #e01b24; color: white; padding: 3px 8px; border-radius: 12px; font-size: 12px; font-weight: bold; }
.summary { background: #f0f8ff; border-left: 4px solid #00d4aa; padding: 15px; margin: 15px 0; border-radius: 4px; white-space: pre-wrap; }
.footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; font-size: 12px; color: #666; text-align: center; }
a { color: #00d4aa; text-decoration: none; }
</style>
</head>
<body>
<div class="container">
<h1>{{.L.Title}}</h1>
<p><strong>{{.L.Date}}:</strong> {{.Date}}</p>
{{- if .Narration}}
<h2>{{.L.Summary}}</h2>
<div class="summary">{{.Narration}}</div>
{{- end}}
{{- if .Hashtags}}
<p><strong>{{.L.Hashtags}}:</strong> {{.Hashtags}}</p>
{{- end}}
{{- if .Topics}}
<h2>{{.TopTitle}}</h2>
{{- range .Topics}}
<div class="topic">
<div class="topic-title">#{{.Index}}: {{.Title}}</div>
<div class="topic-meta"><span class="source">{{.Source}}</span> • {{$.L.Score}} {{.Score}} • {{$.L.Comments}} {{.Comments}}</div>
{{- if .Excerpt}}
<p style="margin-top: 10px; font-size: 14px; color: #555;">{{.Excerpt}}</p>
{{- end}}
<div style="margin-top: 10px;"><a href="{{.URL}}" target="_blank">{{$.L.ReadMore}}</a></div>
</div>
{{- end}}
{{- end}}
<div class="footer"><p>{{.L.Footer}}</p></div>
</div>
</body>
</html>
`))

// HTML renders the HTML alternative. All values are escaped by html/template.
func HTML(c Content) (string, error) {
	l := c.labels()
	v := htmlView{L: l, Date: c.dateString()}

	if c.IncludeSummary {
		v.Narration = strings.TrimSpace(c.narration())
		v.Hashtags = strings.Join(c.Bundle.Hashtags, " ")
	}
	if c.IncludeTopics && len(c.Topics) > 0 {
		v.TopTitle = fmt.Sprintf(l.TopTopics, len(c.Topics))
		for i, t := range c.Topics {
			v.Topics = append(v.Topics, htmlTopic{
				Index:    i + 1,
				Title:    topicTitle(c, i, t),
				Source:   orDefault(t.Source, "Unknown"),
				Score:    t.Score,
				Comments: t.CommentsCount,
				Excerpt:  excerpt(t.Excerpt, 200),
				URL:      orDefault(t.URL, "#"),
			})
		}
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render html email: %w", err)
	}
	return buf.String(), nil
}
