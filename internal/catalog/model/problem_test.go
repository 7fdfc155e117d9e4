package model

import "testing"

func TestLifecycleGraph(t *testing.T) {
	allowed := []struct {
		from, to DevStatus
	}{
		{StatusInProgress, StatusNeedReview},
		{StatusNeedReview, StatusPublished},
		{StatusNeedReview, StatusRejected},
		{StatusPublished, StatusArchived},
		{StatusRejected, StatusInProgress},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct {
		from, to DevStatus
	}{
		{StatusInProgress, StatusPublished},
		{StatusInProgress, StatusRejected},
		{StatusInProgress, StatusArchived},
		{StatusNeedReview, StatusInProgress},
		{StatusNeedReview, StatusArchived},
		{StatusPublished, StatusInProgress},
		{StatusPublished, StatusNeedReview},
		{StatusPublished, StatusRejected},
		{StatusRejected, StatusNeedReview},
		{StatusRejected, StatusPublished},
		{StatusArchived, StatusInProgress},
		{StatusArchived, StatusPublished},
		{StatusInProgress, StatusInProgress},
	}
	for _, tc := range forbidden {
		if tc.from.CanTransition(tc.to) {
			t.Fatalf("%s -> %s must not be allowed", tc.from, tc.to)
		}
	}
}

func TestDevStatusValid(t *testing.T) {
	for _, s := range []DevStatus{StatusInProgress, StatusNeedReview, StatusPublished, StatusRejected, StatusArchived} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if DevStatus("DRAFT").Valid() {
		t.Fatal("unknown status must be invalid")
	}
	if DevStatus("").Valid() {
		t.Fatal("empty status must be invalid")
	}
}

func TestValidDifficulty(t *testing.T) {
	for _, d := range []float64{0.5, 1.0, 1.5, 2.0, 3.5, 4.5, 5.0} {
		if !ValidDifficulty(d) {
			t.Fatalf("%v should sit on the lattice", d)
		}
	}
	for _, d := range []float64{0, 0.4, 1.3, 2.75, 5.5, -1, 100} {
		if ValidDifficulty(d) {
			t.Fatalf("%v must be rejected", d)
		}
	}
}

func TestListModeValid(t *testing.T) {
	if !ModeAllowed.Valid() || !ModeDisallowed.Valid() {
		t.Fatal("known modes should be valid")
	}
	if ListMode("MAYBE").Valid() {
		t.Fatal("unknown mode must be invalid")
	}
}
