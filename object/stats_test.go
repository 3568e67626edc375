package object

import (
	"math"
	"testing"
)

func TestCoverageStatsAddSaturates(t *testing.T) {
	a := CoverageStats{Total: math.MaxUint32 - 1, Relevant: 10, Covered: 5}
	b := CoverageStats{Total: 5, Relevant: 1, Covered: 1}
	got := a.Add(b)
	if got.Total != math.MaxUint32 {
		t.Fatalf("Total = %d, want saturated %d", got.Total, uint32(math.MaxUint32))
	}
	if got.Relevant != 11 || got.Covered != 6 {
		t.Fatalf("got %+v", got)
	}
}

func TestCoverageStatsAddCommutative(t *testing.T) {
	a := CoverageStats{Total: 3, Relevant: 2, Covered: 1}
	b := CoverageStats{Total: 7, Relevant: 4, Covered: 3}
	if a.Add(b) != b.Add(a) {
		t.Fatalf("Add is not commutative")
	}
}

func TestCoverageStatsAddAssociative(t *testing.T) {
	a := CoverageStats{Total: 3, Relevant: 2, Covered: 1}
	b := CoverageStats{Total: 7, Relevant: 4, Covered: 3}
	c := CoverageStats{Total: 1, Relevant: 1, Covered: 1}
	if a.Add(b).Add(c) != a.Add(b.Add(c)) {
		t.Fatalf("Add is not associative")
	}
}

func TestRatioZeroRelevantIsFull(t *testing.T) {
	s := CoverageStats{Total: 10, Relevant: 0, Covered: 0}
	r := s.Ratio()
	if r.Compare(Fraction{1, 1}) != 0 {
		t.Fatalf("Ratio() = %+v, want 1/1", r)
	}
}

func TestFractionCompareCrossMultiplies(t *testing.T) {
	a := Fraction{Num: 1, Den: 2}
	b := Fraction{Num: 50, Den: 100}
	if a.Compare(b) != 0 {
		t.Fatalf("1/2 vs 50/100: Compare = %d, want 0", a.Compare(b))
	}
	if (Fraction{1, 3}).Compare(Fraction{1, 2}) >= 0 {
		t.Fatalf("1/3 should compare less than 1/2")
	}
}

func TestRate(t *testing.T) {
	marks := Marks{Incomplete: Fraction{50, 100}, Passing: Fraction{90, 100}}
	cases := []struct {
		stats CoverageStats
		want  Rating
	}{
		{CoverageStats{Relevant: 100, Covered: 95}, Passing},
		{CoverageStats{Relevant: 100, Covered: 90}, Passing},
		{CoverageStats{Relevant: 100, Covered: 60}, Incomplete},
		{CoverageStats{Relevant: 100, Covered: 10}, Failing},
		{CoverageStats{Relevant: 0, Covered: 0}, Passing},
	}
	for _, c := range cases {
		if got := c.stats.Rate(marks); got != c.want {
			t.Errorf("Rate(%+v) = %s, want %s", c.stats, got, c.want)
		}
	}
}
