package engine

import (
	"errors"
	"testing"
)

func TestParseMethodDefaultsToLibrary(t *testing.T) {
	m, err := ParseMethod(false, false)
	if err != nil {
		t.Fatal(err)
	}
	if m != MethodLibrary {
		t.Fatalf("got %v, want MethodLibrary", m)
	}
}

func TestParseMethodFramePointer(t *testing.T) {
	m, err := ParseMethod(false, true)
	if err != nil {
		t.Fatal(err)
	}
	if m != MethodFramePointer {
		t.Fatalf("got %v, want MethodFramePointer", m)
	}
}

func TestParseMethodMutuallyExclusive(t *testing.T) {
	_, err := ParseMethod(true, true)
	if !errors.Is(err, ErrBadArgs) {
		t.Fatalf("expected ErrBadArgs, got %v", err)
	}
}

func TestNewConfigValidatesFreq(t *testing.T) {
	if _, err := NewConfig(MethodLibrary, 0, 1); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("expected ErrBadArgs for freq=0, got %v", err)
	}
}

func TestNewConfigValidatesMax(t *testing.T) {
	if _, err := NewConfig(MethodLibrary, 1, -1); !errors.Is(err, ErrBadArgs) {
		t.Fatalf("expected ErrBadArgs for max=-1, got %v", err)
	}
}

func TestNewConfigSetsFrameLimit(t *testing.T) {
	cfg, err := NewConfig(MethodLibrary, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FrameLimit != DefaultFrameLimit {
		t.Fatalf("got FrameLimit %d, want %d", cfg.FrameLimit, DefaultFrameLimit)
	}
}

func TestMethodString(t *testing.T) {
	if MethodLibrary.String() != "library" {
		t.Fatalf("got %q", MethodLibrary.String())
	}
	if MethodFramePointer.String() != "frame_pointer" {
		t.Fatalf("got %q", MethodFramePointer.String())
	}
}
