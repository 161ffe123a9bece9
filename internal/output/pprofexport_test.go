package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/pprof/profile"
	"github.com/dsmmcken/pmp/internal/engine"
)

func TestWritePprofRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pprof")
	entries := []engine.HistEntry{
		{Key: "sleep:b:a:main", Count: 5},
		{Key: "futex_wait:main", Count: 2},
	}

	if err := WritePprof(path, entries, 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	prof, err := profile.Parse(f)
	if err != nil {
		t.Fatalf("profile.Parse: %v", err)
	}

	if len(prof.Sample) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(prof.Sample))
	}

	var total int64
	for _, s := range prof.Sample {
		total += s.Value[0]
	}
	if total != 7 {
		t.Fatalf("expected total sample value 7, got %d", total)
	}

	// sleep:b:a:main should produce 4 distinct functions shared across
	// no other sample, futex_wait:main 2, with "main" deduplicated.
	names := make(map[string]bool)
	for _, fn := range prof.Function {
		names[fn.Name] = true
	}
	for _, want := range []string{"sleep", "b", "a", "main", "futex_wait"} {
		if !names[want] {
			t.Errorf("expected function %q in profile, got %v", want, names)
		}
	}
	if len(prof.Function) != 5 {
		t.Fatalf("expected 5 distinct functions (main deduplicated), got %d", len(prof.Function))
	}
}
