package engine

import "errors"

// Sentinel error kinds from the failure-semantics table: fatal paths are
// returned as-is, per-sample paths are logged by the caller and the
// backtrace or page read is simply truncated/skipped.
var (
	// ErrBadArgs signals a usage violation. The cmd package turns this
	// into exit code 1 plus a usage message.
	ErrBadArgs = errors.New("bad arguments")

	// ErrTargetInaccessible means /proc/<pid>/mem could not be opened,
	// or the main pid could not be attached. Fatal: the session aborts.
	ErrTargetInaccessible = errors.New("target process inaccessible")

	// ErrTransientAttach means a thread disappeared between being listed
	// in /proc/<pid>/task and being ptrace-attached (ESRCH). Per-thread,
	// swallowed by the freezer; never propagated past it.
	ErrTransientAttach = errors.New("thread exited before attach")

	// ErrUnreadableMemory means a page read failed (I/O error or short
	// read). Truncates the backtrace being built; never fatal.
	ErrUnreadableMemory = errors.New("unreadable target memory")

	// ErrShortRead is a specialization of ErrUnreadableMemory: the
	// /proc/<pid>/mem pread returned fewer than 4096 bytes.
	ErrShortRead = errors.New("short read from target memory")
)
