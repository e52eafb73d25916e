package summarize

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnparseable is returned when no repair step yields acceptable JSON.
var ErrUnparseable = errors.New("response is not recoverable JSON")

// RepairStep is one fallible transform of a raw model reply.
// Apply returns false when the step does not apply to the text.
type RepairStep struct {
	Name  string
	Apply func(string) (string, bool)
}

// RepairSteps run in order; each step works on the output of the previous one.
var RepairSteps = []RepairStep{
	{Name: "direct", Apply: func(s string) (string, bool) { return strings.TrimSpace(s), true }},
	{Name: "strip_fences", Apply: StripFences},
	{Name: "mojibake", Apply: FixMojibake},
	{Name: "brace_extract", Apply: ExtractBraces},
}

// StripFences removes leading ```json / ``` and trailing ``` markers.
func StripFences(s string) (string, bool) {
	out := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(out, "```json"):
		out = out[len("```json"):]
	case strings.HasPrefix(out, "```JSON"):
		out = out[len("```JSON"):]
	case strings.HasPrefix(out, "```"):
		out = out[3:]
	}
	out = strings.TrimSpace(out)
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)
	return out, out != strings.TrimSpace(s)
}

var mojibakeEncoders = []*charmap.Charmap{charmap.ISO8859_1, charmap.Windows1252}

// FixMojibake reverses UTF-8 text that was decoded as latin-1 or windows-1252.
func FixMojibake(s string) (string, bool) {
	for _, cm := range mojibakeEncoders {
		if fixed, ok := redecode(cm.NewEncoder(), s); ok {
			return fixed, true
		}
	}
	return s, false
}

func redecode(enc *encoding.Encoder, s string) (string, bool) {
	raw, err := enc.String(s)
	if err != nil || raw == s {
		return "", false
	}
	if !utf8.ValidString(raw) {
		return "", false
	}
	return raw, true
}

// ExtractBraces keeps the text from the first '{' to the last '}'.
func ExtractBraces(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s, false
	}
	out := s[start : end+1]
	return out, out != s
}

// Decode runs the repair steps until raw unmarshals into a JSON object of type T.
// It returns the name of the step that succeeded.
func Decode[T any](raw string) (T, string, error) {
	return decodeWith[T](raw, isObject)
}

func decodeWith[T any](raw string, accept func([]byte) bool) (T, string, error) {
	var zero T
	text := raw
	for _, step := range RepairSteps {
		next, applied := step.Apply(text)
		if !applied {
			continue
		}
		text = next

		data := []byte(text)
		if !accept(data) {
			continue
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			continue
		}
		// Garbled text is often still valid JSON; prefer the re-decoded form.
		if fixed, ok := FixMojibake(text); ok && accept([]byte(fixed)) {
			var fv T
			if json.Unmarshal([]byte(fixed), &fv) == nil {
				return fv, "mojibake", nil
			}
		}
		return v, step.Name, nil
	}
	return zero, "", ErrUnparseable
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{' && json.Valid(data)
}

// isBundleShape accepts a JSON object carrying a topics array or a narration string.
func isBundleShape(data []byte) bool {
	if !isObject(data) {
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	if t, ok := probe["topics"]; ok {
		t = bytes.TrimSpace(t)
		if len(t) > 0 && t[0] == '[' {
			return true
		}
	}
	if n, ok := probe["narration"]; ok {
		var s string
		if json.Unmarshal(n, &s) == nil {
			return true
		}
	}
	return false
}

// Repair recovers a bundle from a raw model reply. The returned string names
// the repair step that succeeded.
func Repair(raw string) (Bundle, string, bool) {
	b, step, err := decodeWith[Bundle](raw, isBundleShape)
	if err != nil {
		return Bundle{}, "", false
	}
	return b, step, true
}
