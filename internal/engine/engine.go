// Package engine implements the remote stack sampling engine: thread
// freezing, a paged remote-memory cache, two interchangeable unwinders,
// symbol memoization, and the sampler/aggregator loop that ties them
// together. There are no package-level mutable globals: every piece of
// cross-sample state (attached tids, cached pages, read-only ranges,
// per-thread handles, resolved symbols) lives on the Engine and is
// threaded through by reference.
package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// pageSize is the Linux page size this tool assumes. The frame
	// pointer walker and remote memory reader both only ever need
	// 4096-byte alignment, true for every architecture Linux supports
	// on the page-table layout level relevant here.
	pageSize = 4096

	// pageMask clears the low 12 bits of an address to get its page base.
	pageMask = ^uint64(pageSize - 1)

	// wordSize is the width of one machine word on the (currently
	// x86_64-only) target.
	wordSize = 8
)

// Method selects which unwinding strategy the Sampler uses.
type Method int

const (
	// MethodLibrary delegates to the DWARF unwinding library (libunwind)
	// via internal/libunwind. This is the default: it tolerates
	// frame-pointer-omitted code.
	MethodLibrary Method = iota
	// MethodFramePointer walks the saved-frame-pointer chain directly.
	// x86_64 only; requires the target to be built with frame pointers.
	MethodFramePointer
)

func (m Method) String() string {
	switch m {
	case MethodLibrary:
		return "library"
	case MethodFramePointer:
		return "frame_pointer"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps the CLI's two mutually exclusive boolean flags onto a
// Method, defaulting to MethodLibrary.
func ParseMethod(libunwind, framepointer bool) (Method, error) {
	switch {
	case libunwind && framepointer:
		return 0, fmt.Errorf("%w: --libunwind and --framepointer are mutually exclusive", ErrBadArgs)
	case framepointer:
		return MethodFramePointer, nil
	default:
		return MethodLibrary, nil
	}
}

// Config holds the sampler's tunable parameters, validated once at
// startup. Zero Config is not valid; use NewConfig or set every field
// explicitly.
type Config struct {
	Method     Method
	Freq       int // samples per second, >= 1
	Max        int // total samples; 0 = run forever
	FrameLimit int // hard per-stack frame cap
}

// DefaultFrameLimit is the fixed cap on frames per stack.
const DefaultFrameLimit = 20

// NewConfig builds and validates a Config from CLI-shaped inputs.
func NewConfig(method Method, freq, max int) (Config, error) {
	if freq < 1 {
		return Config{}, fmt.Errorf("%w: --freq must be >= 1, got %d", ErrBadArgs, freq)
	}
	if max < 0 {
		return Config{}, fmt.Errorf("%w: --max must be >= 0, got %d", ErrBadArgs, max)
	}
	return Config{
		Method:     method,
		Freq:       freq,
		Max:        max,
		FrameLimit: DefaultFrameLimit,
	}, nil
}

// Engine owns every piece of cross-sample state for one profiling
// session against one target: the memory reader (and its page cache),
// the per-thread unwind handles, the symbol cache, and the histogram.
// Unwinders borrow the Engine's Target and a specific ThreadInfo for the
// duration of one unwind; they never retain it past that call.
type Engine struct {
	Config Config
	Log    *logrus.Entry

	target    *Target
	memory    *RemoteMemoryReader
	freezer   *ThreadFreezer
	symbols   *SymbolResolver
	histogram *Histogram

	libUnwinder *libUnwindUnwinder
	fpUnwinder  *framePointerUnwinder

	threads map[int]*ThreadInfo // tid -> persistent per-thread state

	suspendTime float64 // cumulative seconds spent with the target frozen
}

// New opens the target and builds an Engine ready to sample it. It does
// not attach to any thread yet; that happens per-sample in Sampler.Run.
func New(pid int, cfg Config, log *logrus.Entry) (*Engine, error) {
	target, err := OpenTarget(pid)
	if err != nil {
		return nil, err
	}

	memory := newRemoteMemoryReader(target)
	libUnwinder, err := newLibUnwindUnwinder(memory)
	if err != nil {
		target.Close()
		return nil, err
	}

	e := &Engine{
		Config:      cfg,
		Log:         log,
		target:      target,
		memory:      memory,
		freezer:     newThreadFreezer(pid, log),
		symbols:     newSymbolResolver(libUnwinder.resolveSymbol),
		histogram:   newHistogram(),
		threads:     make(map[int]*ThreadInfo),
		fpUnwinder:  newFramePointerUnwinder(memory),
		libUnwinder: libUnwinder,
	}
	return e, nil
}

// Close releases the Target's OS handles, the page cache, and the
// library unwinder's address space. It does not touch attached threads
// — callers must Thaw before calling Close.
func (e *Engine) Close() error {
	e.memory.evictAll()
	for tid, ti := range e.threads {
		ti.destroy()
		delete(e.threads, tid)
	}
	e.libUnwinder.close()
	return e.target.Close()
}

// Histogram returns every stack key observed so far, sorted ascending
// by count then key, and total_backtraces. Exposed for --pprof export,
// which writes the whole tail, not just a top-20.
func (e *Engine) Histogram() ([]HistEntry, int) {
	return e.histogram.All(), e.histogram.Total()
}

func (e *Engine) unwinderFor(cfg Config) Unwinder {
	if cfg.Method == MethodFramePointer {
		return e.fpUnwinder
	}
	return e.libUnwinder
}
