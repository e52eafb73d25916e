package media

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deusflow/dailybrief/internal/summarize"
)

// WriteSRT writes <outDir>/captions.srt. Sequence numbers follow caption
// position, so skipped empty captions leave gaps.
func WriteSRT(captions []summarize.Caption, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outDir, "captions.srt")
	if err := os.WriteFile(path, []byte(RenderSRT(captions)), 0o644); err != nil {
		return "", fmt.Errorf("write srt: %w", err)
	}
	return path, nil
}

// RenderSRT formats captions as SubRip text.
func RenderSRT(captions []summarize.Caption) string {
	var lines []string
	for i, c := range captions {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		end := c.EndS
		if end <= c.StartS {
			end = c.StartS + 3
		}
		lines = append(lines,
			strconv.Itoa(i+1),
			SRTTime(c.StartS)+" --> "+SRTTime(end),
			text,
			"",
		)
	}
	return strings.Join(lines, "\n")
}

// SRTTime formats seconds as HH:MM:SS,mmm.
func SRTTime(seconds float64) string {
	ms := int64(math.Round(seconds * 1000))
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", s/3600, (s%3600)/60, s%60, ms)
}
