package engine

import (
	"errors"
	"testing"
)

func TestResolveCachesSuccess(t *testing.T) {
	calls := 0
	r := newSymbolResolver(func(ip uint64) (string, uint64, error) {
		calls++
		return "do_work", ip - 0x2000, nil
	})

	name, offset := r.Resolve(0x2010)
	if name != "do_work" || offset != 0x10 {
		t.Fatalf("got (%s, %#x), want (do_work, 0x10)", name, offset)
	}
	r.Resolve(0x2010)
	if calls != 1 {
		t.Fatalf("expected resolve to run once and be memoized, ran %d times", calls)
	}
}

func TestResolveMemoizesFailure(t *testing.T) {
	calls := 0
	r := newSymbolResolver(func(ip uint64) (string, uint64, error) {
		calls++
		return "", 0, errors.New("unw_get_proc_name_by_ip: -1")
	})

	name1, offset1 := r.Resolve(0xdead)
	if name1 != unresolvedSymbolName || offset1 != 0 {
		t.Fatalf("got (%s, %d), want (%s, 0)", name1, offset1, unresolvedSymbolName)
	}
	name2, _ := r.Resolve(0xdead)
	if name2 != unresolvedSymbolName {
		t.Fatalf("expected consistent sentinel across calls, got %q then %q", name1, name2)
	}
	if calls != 1 {
		t.Fatalf("a failed lookup must still be cached, resolve ran %d times", calls)
	}
}

func TestResolveTreatsEmptyNameAsFailure(t *testing.T) {
	r := newSymbolResolver(func(ip uint64) (string, uint64, error) {
		return "", 0, nil
	})

	name, offset := r.Resolve(0x1000)
	if name != unresolvedSymbolName || offset != 0 {
		t.Fatalf("got (%s, %d), want (%s, 0)", name, offset, unresolvedSymbolName)
	}
}

func TestResolveDistinctAddressesDontShareCacheEntries(t *testing.T) {
	seen := map[uint64]bool{}
	r := newSymbolResolver(func(ip uint64) (string, uint64, error) {
		if seen[ip] {
			t.Fatalf("resolve called twice for ip %#x", ip)
		}
		seen[ip] = true
		return "f", 0, nil
	})

	r.Resolve(0x1000)
	r.Resolve(0x2000)
	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct resolve calls, got %d", len(seen))
	}
}
