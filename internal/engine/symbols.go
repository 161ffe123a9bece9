package engine

// symbolEntry is one memoized resolution result. name is the "??"
// sentinel when resolution failed; offset is meaningless in that case.
type symbolEntry struct {
	name   string
	offset uint64
}

const unresolvedSymbolName = "??"

// resolveFunc performs the actual, uncached address-to-symbol lookup.
// The only production implementation is libUnwindUnwinder.resolveSymbol,
// which calls through to the unwinding library; tests substitute a fake
// to exercise memoization without cgo.
type resolveFunc func(ip uint64) (string, uint64, error)

// SymbolResolver turns an instruction pointer into a function name plus
// byte offset. It never does the lookup itself: it memoizes whatever
// resolve reports, including failures (the resolved symbol becomes the
// "??" sentinel, offset zero, cached exactly like a success so a
// repeatedly-failing ip never re-enters resolve). Method-agnostic: it
// works the same whether the ip came from the library unwinder or the
// frame-pointer walker, because resolve always goes through the
// unwinding library's process-global module table regardless of which
// Unwinder produced the ip.
type SymbolResolver struct {
	cache   map[uint64]symbolEntry
	resolve resolveFunc
}

// newSymbolResolver builds a resolver backed by resolve.
func newSymbolResolver(resolve resolveFunc) *SymbolResolver {
	return &SymbolResolver{cache: make(map[uint64]symbolEntry), resolve: resolve}
}

// Resolve returns the name and offset of the function containing ip.
func (r *SymbolResolver) Resolve(ip uint64) (string, uint64) {
	if e, ok := r.cache[ip]; ok {
		return e.name, e.offset
	}
	name, offset, err := r.resolve(ip)
	if err != nil || name == "" {
		name, offset = unresolvedSymbolName, 0
	}
	r.cache[ip] = symbolEntry{name: name, offset: offset}
	return name, offset
}
