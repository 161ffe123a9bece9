package engine

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// ResolvedFrame is one captured frame plus its resolved symbol, exactly
// what single-sample mode prints.
type ResolvedFrame struct {
	Frame
	Name   string
	Offset uint64
}

// Reporter receives the Sampler's output. Formatting the text itself —
// the CLI front end's job — is deliberately not this package's
// concern; Reporter is the seam internal/output hangs off of.
type Reporter interface {
	// ReportSample is called once per thread, only in single-sample mode
	// (Config.Max == 1).
	ReportSample(tid int, frames []ResolvedFrame)
	// ReportAggregate is called at every report-boundary sample.
	ReportAggregate(entries []HistEntry, total int, elapsed, suspend time.Duration)
}

// Sampler is the outer loop: freeze, unwind every thread, thaw, resolve
// symbols, update the histogram, evict volatile pages, report, sleep.
type Sampler struct {
	engine   *Engine
	reporter Reporter
	start    time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSampler builds a Sampler bound to e and reporting through r.
func NewSampler(e *Engine, r Reporter) *Sampler {
	return &Sampler{engine: e, reporter: r, start: time.Now(), stop: make(chan struct{})}
}

// Stop asks Run to return after the sample in flight, if any. Safe to
// call from another goroutine and more than once. The target is never
// left frozen: Run only checks the stop signal between samples.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run drives the configured number of samples (or forever, if Max==0),
// sleeping 1/Freq seconds between samples. It returns nil once the last
// sample is taken or Stop is called, and a non-nil error only on a fatal
// error from the Thread Freezer; per-sample errors are handled inline
// and never abort the loop.
func (s *Sampler) Run() error {
	period := time.Duration(float64(time.Second) / float64(s.engine.Config.Freq))
	for i := 0; s.engine.Config.Max == 0 || i < s.engine.Config.Max; i++ {
		select {
		case <-s.stop:
			return nil
		default:
		}
		if err := s.runOnce(i); err != nil {
			return err
		}
		if s.engine.Config.Max != 0 && i+1 == s.engine.Config.Max {
			break
		}
		// The timer is driven by the Go runtime's timer wheel, not a raw
		// nanosleep syscall, so it already restarts across EINTR.
		timer := time.NewTimer(period)
		select {
		case <-s.stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
	return nil
}

func (s *Sampler) runOnce(index int) error {
	e := s.engine
	t0 := time.Now()

	attached, err := e.freezer.Freeze()
	if err != nil {
		return err
	}

	tids := make([]int, 0, len(attached))
	for tid := range attached {
		tids = append(tids, tid)
	}
	sort.Ints(tids)

	type captured struct {
		tid    int
		frames []Frame
	}
	results := make([]captured, 0, len(tids))

	unwinder := e.unwinderFor(e.Config)
	for _, tid := range tids {
		ti, ok := e.threads[tid]
		if !ok {
			ti = &ThreadInfo{tid: tid}
			e.threads[tid] = ti
		}
		frames, uerr := unwinder.Unwind(e.target, ti, e.Config.FrameLimit)
		if uerr != nil {
			e.Log.WithField("tid", tid).Debugf("backtrace truncated: %v", uerr)
		}
		ti.LastFrames = frames
		results = append(results, captured{tid: tid, frames: frames})
	}

	e.freezer.Thaw()
	e.suspendTime += time.Since(t0).Seconds()

	// Destroy per-thread state for tids present last sample but absent
	// from this one.
	for tid, ti := range e.threads {
		if _, stillPresent := attached[tid]; !stillPresent {
			ti.destroy()
			delete(e.threads, tid)
		}
	}

	singleSample := e.Config.Max == 1
	for _, c := range results {
		resolved := make([]ResolvedFrame, 0, len(c.frames))
		names := make([]string, 0, len(c.frames))
		for _, f := range c.frames {
			name, offset := e.symbols.Resolve(f.IP)
			resolved = append(resolved, ResolvedFrame{Frame: f, Name: name, Offset: offset})
			names = append(names, name)
		}
		e.histogram.add(strings.Join(names, ":"))
		if singleSample && s.reporter != nil {
			s.reporter.ReportSample(c.tid, resolved)
		}
	}

	e.memory.evictVolatile()

	if !singleSample && s.reporter != nil && (index+1)%e.Config.Freq == 0 {
		elapsed := time.Since(s.start)
		suspend := time.Duration(e.suspendTime * float64(time.Second))
		s.reporter.ReportAggregate(e.histogram.Top(20), e.histogram.Total(), elapsed, suspend)
	}

	return nil
}
