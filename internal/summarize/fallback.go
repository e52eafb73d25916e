package summarize

import (
	"fmt"
	"strings"

	"github.com/deusflow/dailybrief/internal/news"
)

const captionSegmentS = 8.0

// DefaultHashtags are attached to every deterministic bundle.
var DefaultHashtags = StringList{"#AI", "#TechNews", "#MachineLearning", "#DailyBrief"}

// Fallback builds a bundle from topic metadata alone. It never fails.
func Fallback(topics []news.Topic, bilingual bool) Bundle {
	b := Bundle{
		Topics:   make([]TopicSummary, 0, len(topics)),
		Captions: make([]Caption, 0, len(topics)),
		Hashtags: append(StringList(nil), DefaultHashtags...),
	}

	var narration strings.Builder
	for i, t := range topics {
		n := i + 1
		ts := fallbackTopic(t, bilingual)
		b.Topics = append(b.Topics, ts)

		fmt.Fprintf(&narration, "%d. %s: %s\n\n", n, t.Title, ts.Summary)

		b.Captions = append(b.Captions, Caption{
			StartS: captionSegmentS * float64(i),
			EndS:   captionSegmentS * float64(n),
			Text:   fmt.Sprintf("%d. %s...", n, news.Truncate(t.Title, 50)),
		})
	}
	b.Narration = narration.String()
	return b
}

func fallbackTopic(t news.Topic, bilingual bool) TopicSummary {
	chinese := news.IsChineseSource(t)

	preview := ""
	if t.Content != "" {
		preview = news.Truncate(t.Content, 300)
	} else if t.Excerpt != "" {
		preview = news.Truncate(t.Excerpt, 200)
	}

	insight := ""
	if len(t.Comments) > 0 {
		top := news.Truncate(t.Comments[0].Text, 100)
		if chinese {
			insight = fmt.Sprintf(" 社区正在积极讨论此话题，有用户指出：%s...", top)
		} else {
			insight = fmt.Sprintf(" The community is actively discussing this, with one user noting: %s...", top)
		}
	}

	var summary string
	var points StringList
	if chinese {
		if preview != "" {
			summary = fmt.Sprintf("%s。文章内容：%s... 该话题获得了%d点赞和%d条评论。%s", t.Title, preview, t.Score, t.CommentsCount, insight)
		} else {
			summary = fmt.Sprintf("%s。该话题获得了%d点赞和%d条评论，显示出社区的强烈关注。%s", t.Title, t.Score, t.CommentsCount, insight)
		}
		points = StringList{
			fmt.Sprintf("评分：%d分", t.Score),
			fmt.Sprintf("评论：%d条", t.CommentsCount),
			"引发热烈讨论",
		}
	} else {
		if preview != "" {
			summary = fmt.Sprintf("%s. Article preview: %s... This topic has %d upvotes and %d comments.%s", t.Title, preview, t.Score, t.CommentsCount, insight)
		} else {
			summary = fmt.Sprintf("%s. This topic has %d upvotes and %d comments, showing strong community interest.%s", t.Title, t.Score, t.CommentsCount, insight)
		}
		points = StringList{
			fmt.Sprintf("Score: %d points", t.Score),
			fmt.Sprintf("Comments: %d", t.CommentsCount),
			"Generating active discussion",
		}
	}

	ts := TopicSummary{
		Title:     t.Title,
		Source:    t.Source,
		URL:       t.URL,
		Summary:   summary,
		KeyPoints: points,
	}
	if bilingual {
		ts.SummaryEN = summary
		ts.SummaryZH = summary
	}
	return ts
}
