package object

import "testing"

// scenarioTwo builds the {1->5, 2->0, 10->3} sequence (lines 3-9
// irrelevant).
func scenarioTwo() LineCoverage {
	lc := LineCoverage{}
	lc.Lines = append(lc.Lines, LineRecord{Relevant: true, Count: 5})  // line 1
	lc.Lines = append(lc.Lines, LineRecord{Relevant: true, Count: 0})  // line 2
	for i := 0; i < 7; i++ {                                           // lines 3-9
		lc.Lines = append(lc.Lines, LineRecord{Relevant: false})
	}
	lc.Lines = append(lc.Lines, LineRecord{Relevant: true, Count: 3}) // line 10
	return lc
}

func TestLineCoverageScenarioTwoEncoding(t *testing.T) {
	lc := scenarioTwo()
	raw, err := lc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := DecodeLineCoverage(raw)
	if err != nil {
		t.Fatalf("DecodeLineCoverage: %v", err)
	}
	if len(got.Lines) != len(lc.Lines) {
		t.Fatalf("decoded %d lines, want %d", len(got.Lines), len(lc.Lines))
	}
	for i := range lc.Lines {
		if got.Lines[i] != lc.Lines[i] {
			t.Fatalf("line %d: got %+v, want %+v", i+1, got.Lines[i], lc.Lines[i])
		}
	}

	stats := got.DerivedStats()
	want := CoverageStats{Total: 10, Relevant: 3, Covered: 2}
	if stats != want {
		t.Fatalf("DerivedStats() = %+v, want %+v", stats, want)
	}
}

func TestLineCoverageRoundTripEmpty(t *testing.T) {
	lc := LineCoverage{}
	raw, err := lc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeLineCoverage(raw)
	if err != nil {
		t.Fatalf("DecodeLineCoverage: %v", err)
	}
	if len(got.Lines) != 0 {
		t.Fatalf("got %d lines, want 0", len(got.Lines))
	}
}

func TestLineCoverageAllRelevant(t *testing.T) {
	lc := LineCoverage{Lines: []LineRecord{
		{Relevant: true, Count: 1},
		{Relevant: true, Count: 0},
		{Relevant: true, Count: 4},
	}}
	raw, err := lc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeLineCoverage(raw)
	if err != nil {
		t.Fatalf("DecodeLineCoverage: %v", err)
	}
	if len(got.Lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(got.Lines))
	}
}
