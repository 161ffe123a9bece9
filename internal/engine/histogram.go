package engine

import "sort"

// HistEntry is one row of a reported histogram: a stack key (colon
// joined symbol names, innermost first) and the number of samples it
// was observed in.
type HistEntry struct {
	Key   string
	Count int
}

// Histogram is a stack-frequency table: keyed by stack key, grows
// across the whole run, never evicted.
type Histogram struct {
	counts map[string]int
	total  int
}

func newHistogram() *Histogram {
	return &Histogram{counts: make(map[string]int)}
}

// add increments the count for key and total_backtraces by one.
func (h *Histogram) add(key string) {
	h.counts[key]++
	h.total++
}

// Total returns total_backtraces.
func (h *Histogram) Total() int {
	return h.total
}

// All returns every entry, sorted ascending by count then by key — the
// same order Top uses, without the top-20 truncation. Used by the
// --pprof export, which has no reason to discard the long tail.
func (h *Histogram) All() []HistEntry {
	return h.Top(len(h.counts))
}

// Top returns up to n entries, sorted ascending by count then by key,
// keeping only the tail of that order — i.e. the n most frequent
// stacks.
func (h *Histogram) Top(n int) []HistEntry {
	entries := make([]HistEntry, 0, len(h.counts))
	for k, c := range h.counts {
		entries = append(entries, HistEntry{Key: k, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count < entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries
}
