package engine

import (
	"fmt"
	"os"
)

// Target is the (address-space handle, memory-file handle, pid) triple
// this tool tracks per profiling session. The "address-space handle" is
// the libunwind unw_addr_space_t owned by the library unwinder; it is
// created in engine.New, whichever method is configured, and destroyed
// in Engine.Close.
type Target struct {
	PID     int
	memFile *os.File // /proc/<pid>/mem, opened read-only
}

// OpenTarget opens /proc/<pid>/mem read-only. This is the one startup
// step whose failure is fatal (ErrTargetInaccessible); a failure to
// parse /proc/<pid>/maps is handled separately and is not fatal.
func OpenTarget(pid int) (*Target, error) {
	path := fmt.Sprintf("/proc/%d/mem", pid)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrTargetInaccessible, path, err)
	}
	return &Target{PID: pid, memFile: f}, nil
}

// Close releases the memory-file handle. Safe to call once.
func (t *Target) Close() error {
	if t.memFile == nil {
		return nil
	}
	err := t.memFile.Close()
	t.memFile = nil
	return err
}

// writeWord always fails: the reader refuses writes. The kernel rejects
// pwrite() on a ptrace-scoped /proc/<pid>/mem anyway, but the unwinding
// library's accessor interface allows a writer, so the narrow interface
// must expose one that errors rather than silently discarding the
// request.
func (t *Target) writeWord(addr uint64, word uint64) error {
	return fmt.Errorf("operation not supported: remote memory reader is read-only (addr=%#x)", addr)
}
