package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dsmmcken/pmp/internal/engine"
)

func resetFlags() {
	libunwindFlag = false
	framepointerFlag = false
	maxFlag = 1
	freqFlag = 1
	tuiFlag = false
	pprofFlag = ""
	configFlag = ""
	verboseFlag = false
}

func TestFlagsRegistered(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"libunwind", "framepointer", "max", "freq", "tui", "pprof", "config", "verbose"} {
		if root.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag not registered", name)
		}
	}
}

func TestMissingPidArgIsBadArgs(t *testing.T) {
	resetFlags()
	root := NewRootCmd()
	root.SetArgs([]string{})

	err := root.Execute()
	if !errors.Is(err, engine.ErrBadArgs) {
		t.Fatalf("expected ErrBadArgs for missing pid, got %v", err)
	}
}

func TestNonNumericPidIsBadArgs(t *testing.T) {
	resetFlags()
	root := NewRootCmd()
	root.SetArgs([]string{"not-a-pid"})

	err := root.Execute()
	if !errors.Is(err, engine.ErrBadArgs) {
		t.Fatalf("expected ErrBadArgs for non-numeric pid, got %v", err)
	}
}

func TestTUIRejectedInSingleSampleMode(t *testing.T) {
	resetFlags()
	root := NewRootCmd()
	root.SetArgs([]string{"--tui", "1"})

	err := root.Execute()
	if !errors.Is(err, engine.ErrBadArgs) {
		t.Fatalf("expected ErrBadArgs for --tui with --max=1, got %v", err)
	}
}

func TestResolveConfigDefaults(t *testing.T) {
	resetFlags()
	root := NewRootCmd()

	cfg, err := resolveConfig(root)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Method != engine.MethodLibrary || cfg.Freq != 1 || cfg.Max != 1 {
		t.Fatalf("got (%v, %d, %d), want (MethodLibrary, 1, 1)", cfg.Method, cfg.Freq, cfg.Max)
	}
	if cfg.FrameLimit != engine.DefaultFrameLimit {
		t.Fatalf("got FrameLimit %d, want %d", cfg.FrameLimit, engine.DefaultFrameLimit)
	}
}

func TestResolveConfigFileSuppliesDefaults(t *testing.T) {
	resetFlags()
	path := filepath.Join(t.TempDir(), "pmp.toml")
	if err := os.WriteFile(path, []byte("method = \"frame_pointer\"\nfreq = 10\nmax = 30\nframe_limit = 40\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := NewRootCmd()
	configFlag = path
	cfg, err := resolveConfig(root)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Method != engine.MethodFramePointer || cfg.Freq != 10 || cfg.Max != 30 {
		t.Fatalf("got (%v, %d, %d), want (MethodFramePointer, 10, 30)", cfg.Method, cfg.Freq, cfg.Max)
	}
	if cfg.FrameLimit != 40 {
		t.Fatalf("got FrameLimit %d, want the file's 40", cfg.FrameLimit)
	}
}

func TestResolveConfigExplicitFlagWinsOverFile(t *testing.T) {
	resetFlags()
	path := filepath.Join(t.TempDir(), "pmp.toml")
	if err := os.WriteFile(path, []byte("freq = 10\nmax = 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := NewRootCmd()
	if err := root.ParseFlags([]string{"--freq=5", "--config=" + path}); err != nil {
		t.Fatal(err)
	}

	cfg, err := resolveConfig(root)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Freq != 5 {
		t.Fatalf("explicit --freq=5 should win over the file's 10, got %d", cfg.Freq)
	}
	if cfg.Max != 30 {
		t.Fatalf("unset --max should take the file's 30, got %d", cfg.Max)
	}
}

func TestResolveConfigRejectsUnknownMethod(t *testing.T) {
	resetFlags()
	path := filepath.Join(t.TempDir(), "pmp.toml")
	if err := os.WriteFile(path, []byte("method = \"astrology\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := NewRootCmd()
	configFlag = path
	if _, err := resolveConfig(root); !errors.Is(err, engine.ErrBadArgs) {
		t.Fatalf("expected ErrBadArgs for unknown method, got %v", err)
	}
}
