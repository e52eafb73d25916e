package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/summarize"
)

// SecondsPerTopic is the silent-video length per topic when captions carry no timing.
const SecondsPerTopic = 8.0

// SilenceDuration is the video length used when there is no voice track: the
// end of the last caption, or SecondsPerTopic per topic.
func SilenceDuration(captions []summarize.Caption, topics int) float64 {
	var end float64
	for _, c := range captions {
		if c.EndS > end {
			end = c.EndS
		}
	}
	if end > 0 {
		return end
	}
	if topics < 1 {
		topics = 1
	}
	return SecondsPerTopic * float64(topics)
}

// BuildRenderCommand assembles the ffmpeg invocation for final.mp4. It only
// touches the filesystem to check that inputs exist. silence bounds the output
// length when voicePath is missing or empty, since every input is then endless.
func BuildRenderCommand(cfg config.VideoConfig, ffmpegPath, voicePath, srtPath, outDir string, silence float64) (Command, error) {
	var inputs []string

	if cfg.BackgroundImage != "" {
		bg, err := existingFile(cfg.BackgroundImage)
		if err != nil {
			return Command{}, fmt.Errorf("background_image not found: %w", err)
		}
		inputs = append(inputs, "-loop", "1", "-i", bg)
	} else {
		inputs = append(inputs, "-f", "lavfi", "-i",
			fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", cfg.BackgroundColor, cfg.Width, cfg.Height, cfg.FPS))
	}

	silent := true
	if info, err := os.Stat(voicePath); voicePath != "" && err == nil && info.Size() > 0 {
		inputs = append(inputs, "-i", voicePath)
		silent = false
	} else {
		inputs = append(inputs, "-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo")
	}
	if silent && silence <= 0 {
		silence = SecondsPerTopic
	}

	music := ""
	if cfg.BackgroundMusic != "" {
		m, err := existingFile(cfg.BackgroundMusic)
		if err != nil {
			return Command{}, fmt.Errorf("background_music not found: %w", err)
		}
		music = m
		inputs = append(inputs, "-i", music)
	}

	style := []string{
		"Fontsize=" + strconv.Itoa(cfg.Captions.FontSize),
		"MarginV=" + strconv.Itoa(cfg.Captions.MarginV),
		"Outline=2",
		"Shadow=1",
		"Alignment=2",
	}
	if font := strings.ReplaceAll(cfg.Captions.Font, "'", ""); font != "" {
		style = append(style, "Fontname="+font)
	}

	srt, err := filepath.Abs(srtPath)
	if err != nil {
		return Command{}, fmt.Errorf("resolve srt path: %w", err)
	}
	srt = strings.ReplaceAll(srt, `\`, "/")
	vf := fmt.Sprintf("subtitles='%s':force_style='%s'", srt, strings.Join(style, ","))

	args := []string{"-y"}
	args = append(args, inputs...)
	args = append(args,
		"-vf", vf,
		"-r", strconv.Itoa(cfg.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "22",
	)
	if music != "" {
		volume := strconv.FormatFloat(cfg.BackgroundMusicVolume, 'f', -1, 64)
		args = append(args,
			"-filter_complex", fmt.Sprintf("[2:a]volume=%s[bgm];[1:a][bgm]amix=inputs=2:duration=longest:dropout_transition=2[aout]", volume),
			"-map", "0:v",
			"-map", "[aout]",
		)
	} else {
		args = append(args, "-map", "0:v", "-map", "1:a")
	}
	if silent {
		args = append(args, "-t", strconv.FormatFloat(silence, 'f', 3, 64))
	}
	args = append(args, "-shortest", filepath.Join(outDir, "final.mp4"))

	return Command{Path: ffmpegPath, Args: args}, nil
}

func existingFile(p string) (string, error) {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// Renderer runs render commands. A positive Timeout bounds each render.
type Renderer struct {
	Runner  Runner
	Timeout time.Duration
}

func NewRenderer() *Renderer {
	return &Renderer{Runner: ExecRunner{}}
}

// Render runs cmd and returns the output path (its last argument).
func (r *Renderer) Render(ctx context.Context, cmd Command) (string, error) {
	if len(cmd.Args) == 0 {
		return "", fmt.Errorf("empty render command")
	}
	out := cmd.Args[len(cmd.Args)-1]
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	logger.Component("media").Info("rendering video", "out", out, "timeout", r.Timeout)
	if err := r.Runner.Run(ctx, cmd); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("render video: timed out after %s: %w", r.Timeout, err)
		}
		return "", fmt.Errorf("render video: %w", err)
	}
	return out, nil
}
