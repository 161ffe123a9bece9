package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ThreadFreezer implements the attach/detach protocol: repeatedly
// enumerate /proc/<pid>/task, attaching to every new tid and waiting
// for it to stop, until a pass discovers nothing new. This races
// against the target spawning threads, and converges because attaches
// are sticky.
type ThreadFreezer struct {
	pid int
	log *logrus.Entry

	// attached is the set of tids attached in the current freeze cycle.
	// Cleared at the start of every Freeze call — not just the first —
	// and fully drained by Thaw.
	attached map[int]struct{}
}

func newThreadFreezer(pid int, log *logrus.Entry) *ThreadFreezer {
	return &ThreadFreezer{pid: pid, log: log, attached: make(map[int]struct{})}
}

// Freeze attaches to and stops every thread of the target, re-scanning
// /proc/<pid>/task until a pass attaches zero new tids. It returns the
// full attached set. A per-thread ESRCH during attach (the thread raced
// exit) is swallowed; any other attach error aborts the pass and the
// freezer detaches everything it already attached before returning the
// error.
func (f *ThreadFreezer) Freeze() (map[int]struct{}, error) {
	f.attached = make(map[int]struct{})

	for {
		tids, err := listTaskDir(f.pid)
		if err != nil {
			f.Thaw()
			return nil, fmt.Errorf("%w: reading /proc/%d/task: %v", ErrTargetInaccessible, f.pid, err)
		}

		var newTids []int
		for _, tid := range tids {
			if _, seen := f.attached[tid]; !seen {
				newTids = append(newTids, tid)
			}
		}
		if len(newTids) == 0 {
			break
		}

		// All attaches precede all waits, to shrink the window during
		// which some threads are stopped and others are still running.
		var stillAlive []int
		for _, tid := range newTids {
			if err := unix.PtraceAttach(tid); err != nil {
				if errors.Is(err, unix.ESRCH) {
					// Thread exited before we could attach it; not
					// fatal, just not part of this sample (ErrTransientAttach).
					continue
				}
				f.Thaw()
				return nil, fmt.Errorf("%w: ptrace(PTRACE_ATTACH, %d): %v", ErrTargetInaccessible, tid, err)
			}
			f.attached[tid] = struct{}{}
			stillAlive = append(stillAlive, tid)
		}

		for _, tid := range stillAlive {
			// __WALL is required so a tracer can wait on threads that
			// are not its own direct children.
			if _, err := unix.Wait4(tid, nil, unix.WALL, nil); err != nil {
				f.Thaw()
				return nil, fmt.Errorf("%w: waitpid(%d, __WALL): %v", ErrTargetInaccessible, tid, err)
			}
		}
	}

	result := make(map[int]struct{}, len(f.attached))
	for tid := range f.attached {
		result[tid] = struct{}{}
	}
	return result, nil
}

// Thaw detaches every currently attached tid. Detach failures are
// logged and ignored — the target may have died mid-sample.
func (f *ThreadFreezer) Thaw() {
	for tid := range f.attached {
		if err := unix.PtraceDetach(tid); err != nil {
			f.log.WithField("tid", tid).Warnf("ptrace(PTRACE_DETACH) failed: %v", err)
		}
		delete(f.attached, tid)
	}
}

// listTaskDir returns every numeric entry of /proc/<pid>/task, i.e.
// every thread id of the target.
func listTaskDir(pid int) ([]int, error) {
	return listTaskDirAt(fmt.Sprintf("/proc/%d/task", pid))
}

// listTaskDirAt is the pure, testable core of listTaskDir: list every
// numeric-named entry of dir.
func listTaskDirAt(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil || tid == 0 {
			continue
		}
		tids = append(tids, tid)
	}
	return tids, nil
}
