package engine

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestListTaskDirAtFiltersNonNumericEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"101", "102", "self", "103", "status"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	tids, err := listTaskDirAt(dir)
	if err != nil {
		t.Fatal(err)
	}
	sort.Ints(tids)
	want := []int{101, 102, 103}
	if len(tids) != len(want) {
		t.Fatalf("got %v, want %v", tids, want)
	}
	for i := range want {
		if tids[i] != want[i] {
			t.Fatalf("got %v, want %v", tids, want)
		}
	}
}

func TestListTaskDirAtMissingDir(t *testing.T) {
	if _, err := listTaskDirAt(filepath.Join(t.TempDir(), "nonexistent")); err == nil {
		t.Fatal("expected an error for a missing task directory")
	}
}

func TestNewThreadFreezerStartsEmpty(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	f := newThreadFreezer(1, log)
	if len(f.attached) != 0 {
		t.Fatalf("expected a freshly built freezer to track no attached tids, got %d", len(f.attached))
	}
}
