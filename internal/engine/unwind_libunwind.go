package engine

import (
	"fmt"

	"github.com/dsmmcken/pmp/internal/libunwind"
)

// libThreadHandle is ThreadInfo's opaque per-thread handle when the
// library unwinder is in use. It stays nil for threads that have only
// ever been walked with the frame-pointer method.
type libThreadHandle struct {
	thread *libunwind.Thread
}

func (h *libThreadHandle) close() {
	h.thread.Close()
}

// libUnwindUnwinder is the Unwinder backed by the external DWARF
// unwinding library: one shared address space for the engine's
// lifetime, one per-thread handle lazily created and cached on
// ThreadInfo, both bound to the Remote Memory Reader as the
// memory-access callback.
type libUnwindUnwinder struct {
	memory *RemoteMemoryReader
	as     *libunwind.AddrSpace

	// symThread is a per-thread handle kept purely for symbol
	// resolution — the loaded-module table an ip resolves against is
	// process-global, so any valid handle works regardless of which tid
	// it was created for. Created lazily against the target's main pid
	// the first time resolveSymbol runs, reused for the engine's whole
	// lifetime regardless of which tids come and go in Engine.threads.
	symThread *libunwind.Thread
}

func newLibUnwindUnwinder(memory *RemoteMemoryReader) (*libUnwindUnwinder, error) {
	as, err := libunwind.NewAddrSpace()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTargetInaccessible, err)
	}
	return &libUnwindUnwinder{memory: memory, as: as}, nil
}

func (u *libUnwindUnwinder) close() {
	if u.symThread != nil {
		u.symThread.Close()
		u.symThread = nil
	}
	if u.as != nil {
		u.as.Close()
		u.as = nil
	}
}

// resolveSymbol is the SymbolResolver's resolveFunc: it calls through
// to the unwinding library's address-to-symbol routine rather than
// walking ELF symbol tables itself.
func (u *libUnwindUnwinder) resolveSymbol(ip uint64) (string, uint64, error) {
	if u.symThread == nil {
		th, err := libunwind.NewThread(u.memory.target.PID, u.memory)
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", ErrUnreadableMemory, err)
		}
		u.symThread = th
	}
	return libunwind.ProcNameByIP(u.as, u.symThread, ip)
}

// Unwind implements Unwinder. It creates ti's per-thread handle on
// first use and reuses it on every later call: created once per tid,
// kept across samples.
func (u *libUnwindUnwinder) Unwind(target *Target, ti *ThreadInfo, limit int) ([]Frame, error) {
	if ti.libHandle == nil {
		th, err := libunwind.NewThread(ti.tid, u.memory)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableMemory, err)
		}
		ti.libHandle = &libThreadHandle{thread: th}
	}

	cursor, err := libunwind.InitRemote(u.as, ti.libHandle.thread)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableMemory, err)
	}

	frames := make([]Frame, 0, limit)
	for remaining := limit; remaining > 0; remaining-- {
		ip, err := cursor.IP()
		if err != nil {
			break
		}
		sp, err := cursor.SP()
		if err != nil {
			break
		}
		frames = append(frames, Frame{IP: ip, SP: sp})

		more, err := cursor.Step()
		if err != nil || !more {
			break
		}
	}
	return frames, nil
}
