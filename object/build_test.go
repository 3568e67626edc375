package object

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/covdata/cov/oid"
)

func sampleBuild() Build {
	return Build{
		FileList: oid.Sum([]byte("file-list")),
		Added:    1700000000,
		Stats: Stats{
			DimLines:     CoverageStats{Total: 50, Relevant: 40, Covered: 30},
			DimFunctions: CoverageStats{Total: 5, Relevant: 5, Covered: 4},
			DimBranches:  CoverageStats{Total: 8, Relevant: 8, Covered: 6},
		},
		Props: `{"tool":"gcov","version":"12"}`,
	}
}

func TestBuildRoundTrip(t *testing.T) {
	want := sampleBuild()
	raw, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeBuild(raw)
	if err != nil {
		t.Fatalf("DecodeBuild: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRoundTripEmptyProps(t *testing.T) {
	want := sampleBuild()
	want.Props = ""
	raw, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeBuild(raw)
	if err != nil {
		t.Fatalf("DecodeBuild: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
