package srs

import (
	"testing"

	types "github.com/wordtrail/wordtrail-engine/internal/domain"
	domainagg "github.com/wordtrail/wordtrail-engine/internal/domain/aggregates"
)

func TestParseRating(t *testing.T) {
	cases := []struct {
		in      string
		want    Rating
		wantErr bool
	}{
		{"again", RatingAgain, false},
		{"GOOD", RatingGood, false},
		{"  perfect ", RatingPerfect, false},
		{"Hard", RatingHard, false},
		{"easy", "", true},
		{"", "", true},
		{"3", "", true},
	}
	for _, tc := range cases {
		got, err := ParseRating(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseRating(%q): expected error", tc.in)
			}
			if !domainagg.IsCode(err, domainagg.CodeValidation) {
				t.Fatalf("ParseRating(%q): want validation code, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseRating(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseRating(%q): want=%s got=%s", tc.in, tc.want, got)
		}
	}
}

func TestRatingCorrect(t *testing.T) {
	if RatingAgain.Correct() {
		t.Fatalf("again must not count as correct")
	}
	for _, r := range []Rating{RatingHard, RatingGood, RatingPerfect} {
		if !r.Correct() {
			t.Fatalf("%s must count as correct", r)
		}
	}
	if Rating("easy").Correct() {
		t.Fatalf("invalid rating must not count as correct")
	}
}

func TestRegistryForAlgorithm(t *testing.T) {
	sm2 := newSM2(t)
	reg := NewRegistry(sm2)

	got, err := reg.ForAlgorithm(types.AlgorithmSM2)
	if err != nil {
		t.Fatalf("ForAlgorithm(sm2): %v", err)
	}
	if got != Scheduler(sm2) {
		t.Fatalf("ForAlgorithm returned a different scheduler")
	}

	if _, err := reg.ForAlgorithm(types.Algorithm("anki")); err == nil {
		t.Fatalf("expected error for unknown algorithm")
	} else if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("unknown algorithm: want validation code, got %v", err)
	}

	if _, err := reg.ForAlgorithm(types.AlgorithmFSRS); err == nil {
		t.Fatalf("expected error for unregistered algorithm")
	} else if !domainagg.IsCode(err, domainagg.CodeCapabilityUnavailable) {
		t.Fatalf("unregistered algorithm: want capability_unavailable, got %v", err)
	}
}

func TestRegistryAvailableStableOrder(t *testing.T) {
	fsrs := newFSRS(t)
	sm2 := newSM2(t)

	// Registration order must not leak into the listing.
	reg := NewRegistry(fsrs, sm2)
	got := reg.Available()
	if len(got) != 2 || got[0] != types.AlgorithmSM2 || got[1] != types.AlgorithmFSRS {
		t.Fatalf("Available() = %v, want [sm2 fsrs]", got)
	}

	only := NewRegistry(sm2)
	if only.Has(types.AlgorithmFSRS) {
		t.Fatalf("Has(fsrs) should be false when only sm2 registered")
	}
	if !only.Has(types.AlgorithmSM2) {
		t.Fatalf("Has(sm2) should be true")
	}
}

func TestRegistrySkipsNilScheduler(t *testing.T) {
	reg := NewRegistry(nil, newSM2(t))
	if got := reg.Available(); len(got) != 1 || got[0] != types.AlgorithmSM2 {
		t.Fatalf("Available() = %v, want [sm2]", got)
	}
}
