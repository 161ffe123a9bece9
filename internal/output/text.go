// Package output formats the Sampler's results for a terminal. It is
// deliberately the only package that knows the exact on-screen text;
// internal/engine only ever hands it typed data.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dsmmcken/pmp/internal/engine"
)

// TextReporter implements engine.Reporter by writing the single-sample
// and aggregate-report text formats to W.
type TextReporter struct {
	W       io.Writer
	Verbose bool // also print "sp = <hex>" per frame
}

// ReportSample prints one thread's frames in single-sample mode.
func (r *TextReporter) ReportSample(tid int, frames []engine.ResolvedFrame) {
	fmt.Fprintln(r.W)
	fmt.Fprintf(r.W, "Thread: %d\n", tid)
	for _, f := range frames {
		fmt.Fprintf(r.W, "ip = %x <%s>+%d\n", f.IP, f.Name, f.Offset)
		if r.Verbose {
			fmt.Fprintf(r.W, "sp = %x\n", f.SP)
		}
	}
}

// ReportAggregate prints an aggregated top-20 report at a report boundary.
func (r *TextReporter) ReportAggregate(entries []engine.HistEntry, total int, elapsed, suspend time.Duration) {
	fmt.Fprintln(r.W)
	for _, e := range entries {
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(e.Count) / float64(total)
		}
		fmt.Fprintf(r.W, "  %d  %.1f%%  %s\n", e.Count, pct, e.Key)
	}
	suspendPct := 0.0
	if elapsed > 0 {
		suspendPct = 100 * suspend.Seconds() / elapsed.Seconds()
	}
	fmt.Fprintf(r.W, "Target process suspended %.1f%% of %.2f seconds\n", suspendPct, elapsed.Seconds())
}
