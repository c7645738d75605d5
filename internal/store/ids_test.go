package store

import (
	"testing"

	"github.com/mrolland/defily/internal/model"
)

func TestEncodeIDs(t *testing.T) {
	if got := encodeIDs(nil); got != "[]" {
		t.Errorf("encodeIDs(nil) = %q, want %q", got, "[]")
	}
	if got := encodeIDs([]model.ParticipantID{}); got != "[]" {
		t.Errorf("encodeIDs(empty) = %q, want %q", got, "[]")
	}
	if got := encodeIDs([]model.ParticipantID{3, 1, 2}); got != "[3,1,2]" {
		t.Errorf("encodeIDs = %q, want %q", got, "[3,1,2]")
	}
}

func TestDecodeIDs(t *testing.T) {
	got := decodeIDs("[3,1,2]")
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Errorf("decodeIDs = %v, want [3 1 2]", got)
	}

	if got := decodeIDs("[]"); len(got) != 0 {
		t.Errorf("decodeIDs(\"[]\") = %v, want empty", got)
	}
}

func TestDecodeIDsMalformed(t *testing.T) {
	// A corrupt stored value reads as an empty set, never an error.
	for _, raw := range []string{"", "not json", "{\"a\":1}", "[1,", "null"} {
		got := decodeIDs(raw)
		if got == nil {
			t.Errorf("decodeIDs(%q) = nil, want non-nil empty slice", raw)
		}
		if len(got) != 0 {
			t.Errorf("decodeIDs(%q) = %v, want empty", raw, got)
		}
	}
}
