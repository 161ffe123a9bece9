package engine

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// framePointerUnwinder is the x86_64-only direct stack walker: read
// registers, push IP, then walk the saved frame-pointer chain via the
// Remote Memory Reader until BP is zero, the frame limit is hit, or a
// memory read fails (treated as end-of-stack, not an error).
type framePointerUnwinder struct {
	memory *RemoteMemoryReader
}

func newFramePointerUnwinder(memory *RemoteMemoryReader) *framePointerUnwinder {
	return &framePointerUnwinder{memory: memory}
}

// Unwind implements Unwinder. It always returns whatever frames it
// managed to collect; a non-nil error only reports that the register
// read itself failed, which yields zero frames.
func (u *framePointerUnwinder) Unwind(target *Target, ti *ThreadInfo, limit int) ([]Frame, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(ti.tid, &regs); err != nil {
		return nil, fmt.Errorf("%w: PTRACE_GETREGS(%d): %v", ErrUnreadableMemory, ti.tid, err)
	}
	return walkFramePointerChain(u.memory, regs.Rip, regs.Rsp, regs.Rbp, limit), nil
}

// walkFramePointerChain is the pure chain-walking core of the unwinder,
// split out from Unwind so it can be exercised directly against a fake
// Remote Memory Reader instead of a live ptrace'd thread.
func walkFramePointerChain(memory *RemoteMemoryReader, ip, sp, bp uint64, limit int) []Frame {
	frames := make([]Frame, 0, limit)
	frames = append(frames, Frame{IP: ip, SP: sp})

	// The pushed current frame already consumed one slot of the budget.
	remaining := limit - 1
	for bp != 0 && remaining > 0 {
		newBP, err := memory.ReadWord(bp)
		if err != nil {
			break // end of stack: unreadable frame-pointer slot
		}
		retAddr, err := memory.ReadWord(bp + wordSize)
		if err != nil {
			break // end of stack: unreadable return-address slot
		}
		frames = append(frames, Frame{IP: retAddr, SP: bp + 2*wordSize})
		bp = newBP
		remaining--
	}
	return frames
}
