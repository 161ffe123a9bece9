package output

import (
	"os"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/dsmmcken/pmp/internal/engine"
)

// WritePprof builds a pprof profile.Profile from the final histogram
// and writes it to path, for --pprof. Each histogram entry becomes one
// Sample; each distinct symbol name in any stack key becomes one cached
// Function/Location pair. Symbols here carry no file or line, only a
// name, so every Location has a single name-only Line.
func WritePprof(path string, entries []engine.HistEntry, period time.Duration) error {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:     period.Nanoseconds(),
	}

	functions := make(map[string]*profile.Function)
	locations := make(map[string]*profile.Location)

	locationFor := func(name string) *profile.Location {
		if loc, ok := locations[name]; ok {
			return loc
		}
		fn, ok := functions[name]
		if !ok {
			fn = &profile.Function{
				ID:   uint64(len(functions)) + 1,
				Name: name,
			}
			functions[name] = fn
			prof.Function = append(prof.Function, fn)
		}
		loc := &profile.Location{
			ID:   uint64(len(locations)) + 1,
			Line: []profile.Line{{Function: fn}},
		}
		locations[name] = loc
		prof.Location = append(prof.Location, loc)
		return loc
	}

	for _, e := range entries {
		names := strings.Split(e.Key, ":")
		locs := make([]*profile.Location, 0, len(names))
		for _, name := range names {
			locs = append(locs, locationFor(name))
		}
		prof.Sample = append(prof.Sample, &profile.Sample{
			Value:    []int64{int64(e.Count)},
			Location: locs,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return prof.Write(f)
}
