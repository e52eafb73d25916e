// Package media turns a summary bundle into narration audio, subtitles and a video.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrFFmpegNotFound is returned when ffmpeg is not on PATH.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

const stderrTail = 4000

// Command is an external process invocation built ahead of execution.
type Command struct {
	Path string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run waits for the process. A non-zero exit returns an error carrying the
// last 4000 bytes of stderr.
func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := stderr.Bytes()
		if len(tail) > stderrTail {
			tail = tail[len(tail)-stderrTail:]
		}
		return fmt.Errorf("%s failed: %w\n%s", c.Path, err, tail)
	}
	return nil
}

// FindFFmpeg resolves the ffmpeg binary.
func FindFFmpeg() (string, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", ErrFFmpegNotFound
	}
	return path, nil
}
