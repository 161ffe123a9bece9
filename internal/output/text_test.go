package output

import (
	"strings"
	"testing"
	"time"

	"github.com/dsmmcken/pmp/internal/engine"
)

func TestReportSampleFormat(t *testing.T) {
	var b strings.Builder
	r := &TextReporter{W: &b}

	r.ReportSample(42, []engine.ResolvedFrame{
		{Frame: engine.Frame{IP: 0x401000, SP: 0x7fff1000}, Name: "main", Offset: 16},
	})

	got := b.String()
	if !strings.Contains(got, "Thread: 42\n") {
		t.Fatalf("missing thread header: %q", got)
	}
	if !strings.Contains(got, "ip = 401000 <main>+16\n") {
		t.Fatalf("frame line malformed: %q", got)
	}
	if strings.Contains(got, "sp = ") {
		t.Fatalf("sp line should only appear in verbose mode: %q", got)
	}
}

func TestReportSampleVerboseIncludesSP(t *testing.T) {
	var b strings.Builder
	r := &TextReporter{W: &b, Verbose: true}

	r.ReportSample(1, []engine.ResolvedFrame{
		{Frame: engine.Frame{IP: 0x1000, SP: 0x2000}, Name: "f", Offset: 0},
	})

	if !strings.Contains(b.String(), "sp = 2000\n") {
		t.Fatalf("expected sp line in verbose mode: %q", b.String())
	}
}

func TestReportAggregateFormat(t *testing.T) {
	var b strings.Builder
	r := &TextReporter{W: &b}

	entries := []engine.HistEntry{
		{Key: "sleep:b:a:main", Count: 30},
	}
	r.ReportAggregate(entries, 30, 10*time.Second, 2*time.Second)

	got := b.String()
	if !strings.Contains(got, "30  100.0%  sleep:b:a:main\n") {
		t.Fatalf("aggregate line malformed: %q", got)
	}
	if !strings.Contains(got, "Target process suspended 20.0% of 10.00 seconds\n") {
		t.Fatalf("suspend summary malformed: %q", got)
	}
}
