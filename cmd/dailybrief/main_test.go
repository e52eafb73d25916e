package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/deusflow/dailybrief/internal/app"
	"github.com/deusflow/dailybrief/internal/config"
)

func TestRunLockedRefusesHeldLock(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Output.RootDir = t.TempDir()

	held := flock.New(filepath.Join(cfg.Output.RootDir, ".dailybrief.lock"))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("Expected to take the lock, got ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	_, err = runLocked(context.Background(), cfg, app.RunOptions{DryRun: true})
	if !errors.Is(err, errLocked) {
		t.Errorf("Expected errLocked, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "dailybrief ") {
		t.Errorf("Unexpected version output %q", out.String())
	}
}
