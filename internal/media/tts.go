package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
)

// Synthesizer writes narration audio with the configured TTS backend.
type Synthesizer struct {
	Runner Runner
	// LookPath resolves backend binaries; tests replace it.
	LookPath func(string) (string, error)
}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{Runner: ExecRunner{}, LookPath: exec.LookPath}
}

// Synthesize writes <outDir>/voice.<fmt> and returns its path.
func Synthesize(ctx context.Context, cfg config.TTSConfig, text, outDir string) (string, error) {
	return NewSynthesizer().Synthesize(ctx, cfg, text, outDir)
}

func (s *Synthesizer) Synthesize(ctx context.Context, cfg config.TTSConfig, text, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	format := cfg.AudioFormat
	if format == "" {
		format = "mp3"
	}
	out := filepath.Join(outDir, "voice."+format)

	var cmd Command
	switch cfg.Backend {
	case "none":
		// ffmpeg substitutes silence for an empty voice file
		if err := os.WriteFile(out, nil, 0o644); err != nil {
			return "", fmt.Errorf("write placeholder: %w", err)
		}
		return out, nil

	case "edge_tts":
		bin, err := s.LookPath("edge-tts")
		if err != nil {
			return "", fmt.Errorf("edge-tts not found in PATH: %w", err)
		}
		e := cfg.EdgeTTS
		cmd = Command{Path: bin, Args: []string{
			"--voice", e.Voice,
			"--rate=" + e.Rate,
			"--volume=" + e.Volume,
			"--text", text,
			"--write-media", out,
		}}

	case "espeak":
		if format != "wav" {
			return "", fmt.Errorf("espeak backend requires audio_format: wav, got %q", format)
		}
		bin, err := s.LookPath("espeak-ng")
		if err != nil {
			return "", fmt.Errorf("espeak-ng not found in PATH: %w", err)
		}
		rate := cfg.Espeak.Rate
		if rate <= 0 {
			rate = 170
		}
		cmd = Command{Path: bin, Args: []string{"-s", strconv.Itoa(rate), "-w", out, text}}

	default:
		return "", fmt.Errorf("unknown TTS backend %q", cfg.Backend)
	}

	logger.Component("media").Info("synthesizing narration", "backend", cfg.Backend, "chars", len([]rune(text)), "out", out)
	if err := s.Runner.Run(ctx, cmd); err != nil {
		return "", fmt.Errorf("synthesize speech: %w", err)
	}
	return out, nil
}
