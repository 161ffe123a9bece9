package engine

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// AddrRange is a half-open virtual-address interval [Start, End). Used
// both for ReadOnlyMap classification and as the sort key for lookups.
type AddrRange struct {
	Start uint64
	End   uint64
}

func (r AddrRange) contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// RemoteMemoryReader is a paged, permission-aware cache over
// /proc/<pid>/mem. It exposes one primitive, ReadWord, and two eviction
// operations called at sample boundaries.
type RemoteMemoryReader struct {
	target *Target

	// readOnlyMaps is the set of r--p-style mappings captured once at
	// startup and never refreshed — if the target's mappings change,
	// cache entries in newly-writable regions are simply over-retained
	// until the next evictVolatile call happens to miss them, which is
	// an accepted imprecision of the design, not a bug.
	readOnlyMaps []AddrRange

	// pages maps page-base address (addr &^ 4095) to an owned 4096-byte
	// buffer. Every buffer holds bytes observed in the target at some
	// earlier point.
	pages map[uint64][]byte
}

func newRemoteMemoryReader(target *Target) *RemoteMemoryReader {
	r := &RemoteMemoryReader{
		target: target,
		pages:  make(map[uint64][]byte),
	}
	// A /proc/<pid>/maps parse failure is non-fatal: the ReadOnlyMap set
	// simply stays empty, so evictVolatile will evict every page every
	// sample instead of retaining code pages.
	if maps, err := parseReadOnlyMaps(target.PID); err == nil {
		r.readOnlyMaps = maps
	}
	return r
}

// parseReadOnlyMaps reads /proc/<pid>/maps and keeps the [start,end)
// range of every mapping whose permission string begins "r" and whose
// second byte is "-" (readable, not writable).
func parseReadOnlyMaps(pid int) ([]AddrRange, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return parseMapsFile(f)
}

// parseMapsFile is the pure, testable core of parseReadOnlyMaps.
func parseMapsFile(f *os.File) ([]AddrRange, error) {
	var ranges []AddrRange
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		// Example: "55d74cf13000-55d74cf14000 r--p 00003000 fe:03 1194719   /usr/bin/x"
		dash := strings.IndexByte(line, '-')
		space := strings.IndexByte(line, ' ')
		if dash <= 0 || space <= dash {
			continue
		}
		start, err := strconv.ParseUint(line[:dash], 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(line[dash+1:space], 16, 64)
		if err != nil || end < start {
			continue
		}
		rest := strings.TrimLeft(line[space+1:], " ")
		if len(rest) < 2 || rest[0] == 0 || rest[1] != '-' {
			continue
		}
		if rest[0] != 'r' {
			continue
		}
		ranges = append(ranges, AddrRange{Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	return ranges, nil
}

func (r *RemoteMemoryReader) inReadOnlyMap(pageBase uint64) bool {
	// Linear scan: maps files rarely carry more than a few hundred
	// read-only entries, and this only runs once per cached page per
	// sample boundary, not on the hot read path.
	for _, rng := range r.readOnlyMaps {
		if rng.contains(pageBase) {
			return true
		}
	}
	return false
}

// ReadWord returns the target-endian machine word at addr. On a cache
// hit it copies straight out of the cached page; on a miss it reads one
// whole 4096-byte page via a positional read and caches it — one pread
// buys 512 words instead of one PTRACE_PEEKDATA per word.
func (r *RemoteMemoryReader) ReadWord(addr uint64) (uint64, error) {
	pageBase := addr & pageMask
	buf, ok := r.pages[pageBase]
	if !ok {
		var err error
		buf, err = r.fetchPage(pageBase)
		if err != nil {
			return 0, err
		}
		r.pages[pageBase] = buf
	}
	off := addr - pageBase
	if off+wordSize > uint64(len(buf)) {
		// Word-aligned callers (the only callers today) never trigger
		// this; kept as a hard boundary rather than silently reading
		// past the page.
		return 0, fmt.Errorf("%w: word at %#x would straddle page boundary", ErrUnreadableMemory, addr)
	}
	return binary.LittleEndian.Uint64(buf[off : off+wordSize]), nil
}

func (r *RemoteMemoryReader) fetchPage(pageBase uint64) ([]byte, error) {
	buf := make([]byte, pageSize)
	n, err := r.target.memFile.ReadAt(buf, int64(pageBase))
	if err != nil && n == 0 {
		return nil, fmt.Errorf("%w: pread at %#x: %v", ErrUnreadableMemory, pageBase, err)
	}
	if n != pageSize {
		return nil, fmt.Errorf("%w: %w: pread at %#x returned %d of %d bytes", ErrUnreadableMemory, ErrShortRead, pageBase, n, pageSize)
	}
	return buf, nil
}

// evictVolatile drops every cached page whose base does not lie in any
// ReadOnlyMap. Called once at the end of every sample to bound memory
// growth against writable regions while preserving the cross-sample
// speedup for code pages.
func (r *RemoteMemoryReader) evictVolatile() {
	for base := range r.pages {
		if !r.inReadOnlyMap(base) {
			delete(r.pages, base)
		}
	}
}

// evictAll drops the entire cache. Called at shutdown; idempotent.
func (r *RemoteMemoryReader) evictAll() {
	for base := range r.pages {
		delete(r.pages, base)
	}
}

// WriteWord always returns an error: write requests are refused and
// delegated conceptually to the Target's writer, which itself always
// fails (see Target.writeWord). Kept as a distinct entry point so a
// future accessor wiring an actual writer only needs to change one line.
func (r *RemoteMemoryReader) WriteWord(addr uint64, word uint64) error {
	return r.target.writeWord(addr, word)
}
