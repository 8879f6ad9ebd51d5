package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rescale/interlink-transfers/internal/config"
	"github.com/rescale/interlink-transfers/internal/logging"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	AddCommands(root)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// writeConfig saves cfg to a temporary transfers.conf and returns its path.
func writeConfig(t *testing.T, cfg *config.SimConfig) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transfers.conf")
	if err := config.SaveSimConfig(cfg, path); err != nil {
		t.Fatalf("SaveSimConfig: %v", err)
	}
	return path
}

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func fastConfig() *config.SimConfig {
	cfg := config.NewSimConfig()
	cfg.Engine.ChunkSize = 100
	cfg.Engine.RateBytesPerSec = 0
	cfg.Engine.PollIntervalMs = 1
	cfg.Display.RefreshMs = 50
	cfg.Simulation.MinSize = 1000
	cfg.Simulation.MaxSize = 2000
	return cfg
}

func TestSizeCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"size", "1500", "2000000"}, "0.00 / 2 MB\n"},
		{[]string{"size", "500", "500"}, "500 / 500 B\n"},
		{[]string{"size", "1.25MB", "2.5MB"}, "1.25 / 2.50 MB\n"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestSizeCommandRejectsGarbage(t *testing.T) {
	if _, _, err := execute(t, "size", "lots", "100"); err == nil {
		t.Error("expected error for unparsable size")
	}
	if _, _, err := execute(t, "size", "100"); err == nil {
		t.Error("expected error for missing argument")
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "interlink-transfers v") {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigInitShowPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "transfers.conf")

	out, _, err := execute(t, "config", "path", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "does not exist") {
		t.Errorf("path output before init = %q", out)
	}

	if _, _, err := execute(t, "config", "init", "--config", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config init did not write %s: %v", path, err)
	}

	out, _, err = execute(t, "config", "init", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("second init should refuse without --force: %q", out)
	}

	out, _, err = execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Chunk Size:    256000 bytes", "Mode:    bars", "Uploads:      3"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulateCommand(t *testing.T) {
	path := writeConfig(t, fastConfig())

	out, stderr, err := execute(t, "simulate", "--config", path, "--uploads", "2", "--downloads", "1", "--seed", "7")
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !strings.Contains(out, "3 transfers: 3 completed, 0 failed, 0 cancelled, 0 interrupted") {
		t.Errorf("summary = %q", out)
	}
	// Not a terminal: the board prints one line per phase change, and the
	// last frame is drawn after every transfer ended.
	for _, want := range []string{"[upload] upload-02.dat: Finishing transfer", "[download] download-01.dat: Finishing transfer"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("display output missing %q:\n%s", want, stderr)
		}
	}
}

func TestSimulateCommandInvalidConfig(t *testing.T) {
	path := writeConfig(t, fastConfig())
	_, _, err := execute(t, "simulate", "--config", path, "--mode", "fancy")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("err = %v, want invalid configuration", err)
	}
}

func TestRunSimulationFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.Simulation.Uploads, cfg.Simulation.Downloads = 2, 2
	cfg.Simulation.FailureRate = 1
	cfg.Display.Mode = config.DisplaySummary

	var w bytes.Buffer
	res, err := runSimulation(context.Background(), cfg, simulateOptions{seed: 3}, &w, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 4 || res.Failed != 4 {
		t.Errorf("result = %+v, want 4 failed", res)
	}
}

func TestRunSimulationCancelOne(t *testing.T) {
	cfg := fastConfig()
	cfg.Engine.RateBytesPerSec = 10_000
	cfg.Simulation.MinSize, cfg.Simulation.MaxSize = 10_000, 10_000
	cfg.Simulation.Uploads, cfg.Simulation.Downloads = 1, 1

	var w bytes.Buffer
	res, err := runSimulation(context.Background(), cfg, simulateOptions{cancelOne: true, seed: 1}, &w, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if res.Cancelled != 1 || res.Completed != 1 {
		t.Errorf("result = %+v, want 1 cancelled and 1 completed", res)
	}
}

func TestRunSimulationPauseResume(t *testing.T) {
	cfg := fastConfig()
	cfg.Engine.ChunkSize = 500
	cfg.Engine.RateBytesPerSec = 10_000
	cfg.Simulation.MinSize, cfg.Simulation.MaxSize = 5_000, 5_000
	cfg.Simulation.Uploads, cfg.Simulation.Downloads = 1, 1

	var w bytes.Buffer
	start := time.Now()
	res, err := runSimulation(context.Background(), cfg, simulateOptions{pauseAfter: 150 * time.Millisecond, seed: 2}, &w, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if res.Completed != 2 {
		t.Errorf("result = %+v, want 2 completed", res)
	}
	// 500ms of transfer; the in-flight chunk eats part of the 150ms pause.
	if elapsed := time.Since(start); elapsed < 550*time.Millisecond {
		t.Errorf("run took %v, pause had no effect", elapsed)
	}
}

func TestRunSimulationContextCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.Engine.RateBytesPerSec = 1000
	cfg.Simulation.MinSize, cfg.Simulation.MaxSize = 1_000_000, 1_000_000

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var w bytes.Buffer
	res, err := runSimulation(ctx, cfg, simulateOptions{seed: 4}, &w, logging.NewNopLogger())
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if res.Interrupted != res.Total {
		t.Errorf("result = %+v, want every transfer interrupted", res)
	}
}

func TestRunSimulationLogsFailuresAtInfo(t *testing.T) {
	cfg := fastConfig()
	cfg.Simulation.Uploads, cfg.Simulation.Downloads = 1, 0
	cfg.Simulation.FailureRate = 1
	cfg.Display.Mode = config.DisplaySummary

	var w bytes.Buffer
	var logs lockedBuffer
	if _, err := runSimulation(context.Background(), cfg, simulateOptions{seed: 5}, &w, logging.NewLogger(&logs)); err != nil {
		t.Fatal(err)
	}
	out := logs.String()
	if !strings.Contains(out, "upload-01.dat") {
		t.Errorf("failed transfer not logged:\n%s", out)
	}
	if strings.Contains(out, "cleared") {
		t.Errorf("debug output at info level:\n%s", out)
	}
}

func TestRunSimulationClearsFinishedEntries(t *testing.T) {
	logging.SetGlobalLevel(zerolog.DebugLevel)
	defer logging.SetGlobalLevel(zerolog.InfoLevel)

	cfg := fastConfig()
	cfg.Simulation.Uploads, cfg.Simulation.Downloads = 2, 2
	cfg.Simulation.FailureRate = 0.5
	cfg.Display.Mode = config.DisplaySummary

	var w bytes.Buffer
	var logs lockedBuffer
	res, err := runSimulation(context.Background(), cfg, simulateOptions{seed: 6}, &w, logging.NewLogger(&logs))
	if err != nil {
		t.Fatal(err)
	}
	if res.Completed+res.Failed != 4 {
		t.Fatalf("result = %+v", res)
	}
	if out := logs.String(); !strings.Contains(out, "cleared 4 finished transfers, 0 left") {
		t.Errorf("missing clear-up log line:\n%s", out)
	}
	if !strings.Contains(w.String(), "[summary] 100%") && res.Completed > 0 {
		t.Errorf("summary never reached 100%%:\n%s", w.String())
	}
}
