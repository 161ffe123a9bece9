//go:build linux && amd64

// Package libunwind binds the remote, ptrace-based stack unwinding
// provided by libunwind/libunwind-ptrace behind a narrow Go interface: create
// an address space bound to a memory-access callback, create a
// per-thread handle from a tid, init a remote cursor, step it, and read
// the instruction pointer and resolved symbol at each frame.
//
// Every accessor callback except memory access delegates straight
// through to libunwind-ptrace's own _UPT_* helpers, which already know
// how to read registers and unwind tables via ptrace. access_mem is the
// one callback this package overrides, routing reads through the
// caller-supplied MemAccessor (the engine's paged Remote Memory Reader)
// instead of libunwind-ptrace's own per-word ptrace reads.
package libunwind

/*
#cgo LDFLAGS: -lunwind-ptrace -lunwind-x86_64 -lunwind
#include "shim.h"
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"unsafe"
)

// MemAccessor is the memory-access hook this package needs from the
// caller: one machine-word read, and a write that the engine always
// refuses (see engine.Target.writeWord).
type MemAccessor interface {
	ReadWord(addr uint64) (uint64, error)
	WriteWord(addr uint64, word uint64) error
}

// AddrSpace wraps unw_addr_space_t. One is created per Engine and lives
// for the engine's lifetime; it is not per-thread and not per-sample.
type AddrSpace struct {
	c C.unw_addr_space_t
}

// NewAddrSpace creates the address space bound to the custom accessors.
func NewAddrSpace() (*AddrSpace, error) {
	as := C.pmp_create_addr_space()
	if as == nil {
		return nil, fmt.Errorf("libunwind: unw_create_addr_space failed")
	}
	return &AddrSpace{c: as}, nil
}

// Close destroys the address space. Safe to call once; a nil c is a no-op.
func (a *AddrSpace) Close() {
	if a.c != nil {
		C.pmp_destroy_addr_space(a.c)
		a.c = nil
	}
}

// Thread is the per-thread unwind handle: created lazily the first time
// a tid is seen, reused across samples, closed when the tid vanishes.
type Thread struct {
	cookie *C.pmp_cookie_t
	handle cgo.Handle
}

// NewThread creates a per-thread handle for tid. mem is closed over via
// a runtime/cgo.Handle rather than passed as a raw pointer, since cgo
// forbids storing a Go pointer inside C-allocated memory.
func NewThread(tid int, mem MemAccessor) (*Thread, error) {
	h := cgo.NewHandle(mem)
	cookie := C.pmp_cookie_create(C.int(tid), C.uintptr_t(h))
	if cookie == nil {
		h.Delete()
		return nil, fmt.Errorf("libunwind: _UPT_create(%d) failed", tid)
	}
	return &Thread{cookie: cookie, handle: h}, nil
}

// Close releases the thread's C-side state and its cgo.Handle.
func (t *Thread) Close() {
	if t.cookie != nil {
		C.pmp_cookie_destroy(t.cookie)
		t.cookie = nil
	}
	t.handle.Delete()
}

// Cursor wraps unw_cursor_t for a single unwind pass over one thread.
type Cursor struct {
	c C.unw_cursor_t
}

// InitRemote initializes a cursor at th's current (innermost) frame.
func InitRemote(as *AddrSpace, th *Thread) (*Cursor, error) {
	cur := &Cursor{}
	if ret := C.pmp_init_remote(&cur.c, as.c, th.cookie); ret != 0 {
		return nil, fmt.Errorf("libunwind: unw_init_remote: %d", int(ret))
	}
	return cur, nil
}

// Step advances the cursor to the caller's frame. The returned bool is
// false once unwinding has reached the outermost frame; a non-nil error
// means unw_step itself failed (a negative return), distinct from
// simply running out of frames (a zero return).
func (c *Cursor) Step() (bool, error) {
	ret := C.pmp_step(&c.c)
	if ret < 0 {
		return false, fmt.Errorf("libunwind: unw_step: %d", int(ret))
	}
	return ret > 0, nil
}

// IP returns the instruction pointer of the cursor's current frame.
func (c *Cursor) IP() (uint64, error) {
	var ip C.unw_word_t
	if ret := C.pmp_get_ip(&c.c, &ip); ret != 0 {
		return 0, fmt.Errorf("libunwind: unw_get_reg(UNW_REG_IP): %d", int(ret))
	}
	return uint64(ip), nil
}

// SP returns the stack pointer of the cursor's current frame.
func (c *Cursor) SP() (uint64, error) {
	var sp C.unw_word_t
	if ret := C.pmp_get_sp(&c.c, &sp); ret != 0 {
		return 0, fmt.Errorf("libunwind: unw_get_reg(UNW_REG_SP): %d", int(ret))
	}
	return uint64(sp), nil
}

const procNameBufLen = 512

// ProcName resolves the symbol name and byte offset containing the
// cursor's current IP. An empty name with a nil error never happens;
// callers see a non-nil error instead (the engine's symbol resolver
// turns that into its own "??" sentinel).
func (c *Cursor) ProcName() (name string, offset uint64, err error) {
	buf := (*C.char)(C.malloc(procNameBufLen))
	defer C.free(unsafe.Pointer(buf))

	var off C.unw_word_t
	if ret := C.pmp_get_proc_name(&c.c, buf, procNameBufLen, &off); ret != 0 {
		return "", 0, fmt.Errorf("libunwind: unw_get_proc_name: %d", int(ret))
	}
	return C.GoString(buf), uint64(off), nil
}

// ProcNameByIP resolves the symbol name and byte offset covering ip
// directly against as, using th only as a valid _UPT cookie — the
// loaded-module table is process-global, so the resolver never needs a
// cursor positioned at that exact frame. This is the entry point
// internal/engine's SymbolResolver calls on every cache miss,
// regardless of which Unwinder produced the ip.
func ProcNameByIP(as *AddrSpace, th *Thread, ip uint64) (string, uint64, error) {
	buf := (*C.char)(C.malloc(procNameBufLen))
	defer C.free(unsafe.Pointer(buf))

	var off C.unw_word_t
	if ret := C.pmp_get_proc_name_by_ip(as.c, C.unw_word_t(ip), buf, procNameBufLen, &off, th.cookie); ret != 0 {
		return "", 0, fmt.Errorf("libunwind: unw_get_proc_name_by_ip: %d", int(ret))
	}
	return C.GoString(buf), uint64(off), nil
}

//export pmpGoAccessMem
func pmpGoAccessMem(handle C.uintptr_t, addr C.unw_word_t, valp *C.unw_word_t, write C.int) C.int {
	mem, ok := cgo.Handle(handle).Value().(MemAccessor)
	if !ok {
		return -1
	}
	if write != 0 {
		if err := mem.WriteWord(uint64(addr), uint64(*valp)); err != nil {
			return -1
		}
		return 0
	}
	word, err := mem.ReadWord(uint64(addr))
	if err != nil {
		return -1
	}
	*valp = C.unw_word_t(word)
	return 0
}
