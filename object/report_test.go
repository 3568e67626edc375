package object

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/covdata/cov/oid"
)

func sampleReport() Report {
	return Report{
		Parent:         oid.Sum([]byte("parent")),
		FileList:       oid.Sum([]byte("file-list")),
		Commit:         oid.Sum([]byte("commit")),
		Added:          1700000000,
		CommitTime:     1699999999,
		Branch:         "main",
		AuthorName:     "Ada Lovelace",
		AuthorEmail:    "ada@example.com",
		CommitterName:  "Ada Lovelace",
		CommitterEmail: "ada@example.com",
		Message:        "initial import",
		Stats: Stats{
			DimLines:     CoverageStats{Total: 100, Relevant: 80, Covered: 60},
			DimFunctions: CoverageStats{Total: 10, Relevant: 10, Covered: 9},
			DimBranches:  CoverageStats{Total: 20, Relevant: 20, Covered: 15},
		},
		Builds: []oid.OID{oid.Sum([]byte("build-1")), oid.Sum([]byte("build-2"))},
	}
}

func TestReportRoundTrip(t *testing.T) {
	want := sampleReport()
	raw, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeReport(raw)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReportRoundTripNoBuilds(t *testing.T) {
	want := sampleReport()
	want.Builds = nil
	raw, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeReport(raw)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReportEncodeIsDeterministic(t *testing.T) {
	r := sampleReport()
	a, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := r.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("Encode is not deterministic across calls")
	}
	if oid.Sum(a) != oid.Sum(b) {
		t.Fatalf("identical logical content hashed to different oids")
	}
}

func TestDecodeReportRejectsWrongMagic(t *testing.T) {
	b := sampleBuild()
	raw, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := DecodeReport(raw); err == nil {
		t.Fatalf("expected error decoding a build object as a report")
	}
}
