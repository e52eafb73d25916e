// Package summarize turns selected topics into a summary bundle: per-topic
// summaries, a narration script, timed captions and hashtags.
package summarize

import (
	"encoding/json"
	"strconv"
	"strings"
)

type Caption struct {
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
	Text   string  `json:"text"`
}

// UnmarshalJSON accepts times given as numbers or numeric strings.
func (c *Caption) UnmarshalJSON(data []byte) error {
	var raw struct {
		StartS any    `json:"start_s"`
		EndS   any    `json:"end_s"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.StartS = seconds(raw.StartS)
	c.EndS = seconds(raw.EndS)
	c.Text = raw.Text
	return nil
}

func seconds(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// StringList decodes from a JSON array or from a single whitespace/comma separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var arr []any
	if err := json.Unmarshal(data, &arr); err == nil {
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			switch x := v.(type) {
			case string:
				if s := strings.TrimSpace(x); s != "" {
					out = append(out, s)
				}
			case nil:
			default:
				b, _ := json.Marshal(x)
				out = append(out, string(b))
			}
		}
		*l = out
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' })
	return nil
}

type TopicSummary struct {
	Title     string     `json:"title"`
	Source    string     `json:"source"`
	URL       string     `json:"url"`
	Summary   string     `json:"summary,omitempty"`
	SummaryEN string     `json:"summary_en,omitempty"`
	SummaryZH string     `json:"summary_zh,omitempty"`
	KeyPoints StringList `json:"key_points"`
}

// Text is the best available summary text.
func (t TopicSummary) Text() string {
	switch {
	case t.Summary != "":
		return t.Summary
	case t.SummaryEN != "":
		return t.SummaryEN
	default:
		return t.SummaryZH
	}
}

// Bundle is the structured summarization result. Topics[i] belongs to the
// i-th selected topic.
type Bundle struct {
	Topics      []TopicSummary `json:"topics"`
	Narration   string         `json:"narration"`
	NarrationZH string         `json:"narration_zh,omitempty"`
	Captions    []Caption      `json:"captions"`
	Hashtags    StringList     `json:"hashtags"`
}

// Clone returns a deep copy.
func (b Bundle) Clone() Bundle {
	out := b
	out.Topics = make([]TopicSummary, len(b.Topics))
	for i, t := range b.Topics {
		t.KeyPoints = append(StringList(nil), t.KeyPoints...)
		out.Topics[i] = t
	}
	out.Captions = append([]Caption(nil), b.Captions...)
	out.Hashtags = append(StringList(nil), b.Hashtags...)
	return out
}
