package objio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/covdata/cov/oid"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Magic: MagicReport, Version: NewVersion(1, 2)}
	enc := h.Encode()
	got, err := DecodeHeader(enc[:])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Fatalf("header round trip mismatch (-want +got):\n%s", diff)
	}
	if got.Version.Major() != 1 || got.Version.Minor() != 2 {
		t.Fatalf("version split = %d.%d, want 1.2", got.Version.Major(), got.Version.Minor())
	}
}

func TestMagicString(t *testing.T) {
	cases := map[Magic]string{
		MagicReport:           "rprt",
		MagicBuild:            "bld ",
		MagicFiles:            "list",
		MagicLineCoverage:     "lnes",
		MagicFunctionCoverage: "fnct",
	}
	for m, want := range cases {
		if got := m.String(); got != want {
			t.Errorf("Magic(%d).String() = %q, want %q", m, got, want)
		}
	}
}

func TestStringsBuilderDedupSortsAndAligns(t *testing.T) {
	b := NewStringsBuilder()
	b.Insert("zeta")
	b.Insert("alpha")
	b.Insert("alpha")
	b.Insert("")
	block, lookup := b.Build()

	if len(block)%4 != 0 {
		t.Fatalf("block length %d not 32-bit aligned", len(block))
	}

	view := NewStringsView(block)
	for _, s := range []string{"", "alpha", "zeta"} {
		off, ok := lookup(s)
		if !ok {
			t.Fatalf("lookup(%q) missing", s)
		}
		if !view.Valid(off) {
			t.Fatalf("offset for %q not valid", s)
		}
		got, err := view.At(off)
		if err != nil {
			t.Fatalf("At(%d): %v", off, err)
		}
		if got != s {
			t.Fatalf("At(%d) = %q, want %q", off, got, s)
		}
	}

	all, err := view.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []string{"", "alpha", "zeta"}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Fatalf("All() mismatch (-want +got):\n%s", diff)
	}
}

func TestStringsViewRejectsMisalignedOffset(t *testing.T) {
	b := NewStringsBuilder()
	b.Insert("hello")
	block, lookup := b.Build()
	view := NewStringsView(block)

	off, _ := lookup("hello")
	if _, err := view.At(off + 1); err == nil {
		t.Fatalf("expected error reading into the middle of a string")
	}
	if view.Valid(off + 1) {
		t.Fatalf("offset into the middle of a string should be invalid")
	}
}

func TestSafeWriterCommitAndRollback(t *testing.T) {
	dir := t.TempDir()

	w, err := NewSafeWriter(dir)
	if err != nil {
		t.Fatalf("NewSafeWriter: %v", err)
	}
	payload := []byte("coverage payload")
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	sum, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	final := filepath.Join(dir, sum.Path())
	if err := w.Commit(final); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	compressed, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("reading committed object: %v", err)
	}
	raw, err := Inflate(compressed)
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if string(raw) != string(payload) {
		t.Fatalf("round trip payload = %q, want %q", raw, payload)
	}

	w2, err := NewSafeWriter(dir)
	if err != nil {
		t.Fatalf("NewSafeWriter: %v", err)
	}
	if _, err := w2.Write([]byte("discarded")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w2.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := w2.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
}

func TestDeflateMatchesSafeWriter(t *testing.T) {
	payload := []byte("identical content")
	compressed, sum, err := Deflate(payload)
	if err != nil {
		t.Fatalf("Deflate: %v", err)
	}
	raw, err := Inflate(compressed)
	if err != nil {
		t.Fatalf("Inflate: %v", err)
	}
	if string(raw) != string(payload) {
		t.Fatalf("Inflate(Deflate(x)) = %q, want %q", raw, payload)
	}
	if sum != oid.Sum(payload) {
		t.Fatalf("Deflate oid mismatch")
	}
}
