package projection_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/covdata/cov/modcfg"
	"github.com/covdata/cov/object"
	"github.com/covdata/cov/oid"
	"github.com/covdata/cov/projection"
)

var marks = object.Marks{
	Incomplete: object.Fraction{Num: 1, Den: 2},
	Passing:    object.Fraction{Num: 9, Den: 10},
}

func lineStats(total, relevant, covered uint32) object.Stats {
	return object.Stats{
		object.DimLines: object.CoverageStats{Total: total, Relevant: relevant, Covered: covered},
	}
}

func snap(path string, stats object.Stats, contents byte) projection.FileSnapshot {
	var id oid.OID
	id[0] = contents
	return projection.FileSnapshot{Path: path, Stats: stats, Contents: id}
}

func rowNames(tree projection.Tree) []string {
	names := make([]string, len(tree.Rows))
	for i, r := range tree.Rows {
		names[i] = r.Name
	}
	return names
}

func TestProjectGroupsByNextSegment(t *testing.T) {
	current := []projection.FileSnapshot{
		snap("src/core/alpha.c", lineStats(10, 8, 4), 1),
		snap("src/core/beta.c", lineStats(10, 8, 8), 2),
		snap("src/util/gamma.c", lineStats(5, 4, 4), 3),
		snap("README.md", lineStats(3, 0, 0), 4),
	}

	tree := projection.Project(current, nil, nil, projection.Filter{Marks: marks})
	if diff := cmp.Diff([]string{"README.md", "src"}, rowNames(tree)); diff != "" {
		t.Fatalf("top-level rows (-want +got):\n%s", diff)
	}
	if tree.Rows[0].Kind != projection.KindFile {
		t.Errorf("README.md kind = %s, want file", tree.Rows[0].Kind)
	}
	if tree.Rows[1].Kind != projection.KindDirectory {
		t.Errorf("src kind = %s, want directory", tree.Rows[1].Kind)
	}

	// Descending into src splits core from util.
	tree = projection.Project(current, nil, nil, projection.Filter{PathPrefix: "src", Marks: marks})
	if diff := cmp.Diff([]string{"core", "util"}, rowNames(tree)); diff != "" {
		t.Fatalf("src rows (-want +got):\n%s", diff)
	}

	core := tree.Rows[0].Dims[object.DimLines].Current
	if core.Stats != (object.CoverageStats{Total: 20, Relevant: 16, Covered: 12}) {
		t.Fatalf("core stats = %+v", core.Stats)
	}
	if core.Ratio != 75 || core.Rating != object.Incomplete || core.Missing != 4 {
		t.Fatalf("core column = %+v, want ratio 75, incomplete, 4 missing", core)
	}
}

func TestProjectStandaloneFile(t *testing.T) {
	current := []projection.FileSnapshot{
		snap("src/core/alpha.c", lineStats(10, 8, 4), 1),
		snap("src/util/gamma.c", lineStats(5, 4, 4), 3),
	}
	tree := projection.Project(current, nil, nil, projection.Filter{PathPrefix: "src/core/alpha.c", Marks: marks})
	if len(tree.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(tree.Rows))
	}
	if tree.Rows[0].Kind != projection.KindStandaloneFile {
		t.Fatalf("kind = %s, want standalone_file", tree.Rows[0].Kind)
	}
}

func TestProjectFooterSumsRows(t *testing.T) {
	current := []projection.FileSnapshot{
		snap("a/one.c", lineStats(10, 8, 4), 1),
		snap("b/two.c", lineStats(20, 16, 12), 2),
		snap("c/three.c", lineStats(5, 5, 5), 3),
	}
	tree := projection.Project(current, nil, nil, projection.Filter{Marks: marks})

	var want object.CoverageStats
	for _, r := range tree.Rows {
		want = want.Add(r.Dims[object.DimLines].Current.Stats)
	}
	if got := tree.Footer.Dims[object.DimLines].Current.Stats; got != want {
		t.Fatalf("footer = %+v, want sum of rows %+v", got, want)
	}
}

func TestProjectModuleFilter(t *testing.T) {
	ov := modcfg.NewOverlay()
	ov.Add("core", "src/core")
	ov.Add("everything", "src")

	current := []projection.FileSnapshot{
		snap("src/core/alpha.c", lineStats(10, 8, 4), 1),
		snap("src/util/gamma.c", lineStats(5, 4, 4), 3),
		snap("docs/readme.md", lineStats(3, 0, 0), 4),
	}

	tree := projection.Project(current, nil, ov, projection.Filter{Module: "core", Marks: marks})
	if len(tree.Rows) != 1 || tree.Rows[0].Name != "src/core/alpha.c" {
		t.Fatalf("core module rows = %v", rowNames(tree))
	}

	tree = projection.Project(current, nil, ov, projection.Filter{Module: "everything", Marks: marks})
	if diff := cmp.Diff([]string{"src"}, rowNames(tree)); diff != "" {
		t.Fatalf("everything module rows (-want +got):\n%s", diff)
	}

	// A module filter with no overlay selects nothing.
	tree = projection.Project(current, nil, nil, projection.Filter{Module: "core", Marks: marks})
	if len(tree.Rows) != 0 {
		t.Fatalf("module filter without overlay: rows = %v", rowNames(tree))
	}
}

func TestProjectDiffKinds(t *testing.T) {
	previous := []projection.FileSnapshot{
		snap("kept.c", lineStats(10, 8, 4), 1),
		snap("old-name.c", lineStats(5, 4, 2), 2),
		snap("dropped.c", lineStats(7, 6, 3), 3),
		snap("touched.c", lineStats(9, 9, 9), 4),
	}
	current := []projection.FileSnapshot{
		snap("kept.c", lineStats(10, 8, 4), 1),
		snap("new-name.c", lineStats(5, 4, 2), 2),
		snap("brand-new.c", lineStats(2, 2, 2), 5),
		snap("touched.c", lineStats(9, 9, 7), 4),
	}

	tree := projection.Project(current, previous, nil, projection.Filter{Marks: marks})

	got := map[string]projection.Row{}
	for _, r := range tree.Rows {
		got[r.Name] = r
	}

	for name, want := range map[string]projection.DiffKind{
		"kept.c":      projection.DiffUnchanged,
		"new-name.c":  projection.DiffRenamed,
		"brand-new.c": projection.DiffAdded,
		"dropped.c":   projection.DiffRemoved,
		"touched.c":   projection.DiffModified,
	} {
		row, ok := got[name]
		if !ok {
			t.Fatalf("no row %q in %v", name, rowNames(tree))
		}
		if row.DiffKind != want {
			t.Errorf("%s: diff kind = %s, want %s", name, row.DiffKind, want)
		}
	}
	if got["new-name.c"].PreviousName != "old-name.c" {
		t.Errorf("rename previous name = %q, want old-name.c", got["new-name.c"].PreviousName)
	}

	// A removed file contributes to the previous column only.
	removed := got["dropped.c"].Dims[object.DimLines]
	if removed.Current.Stats != (object.CoverageStats{}) {
		t.Errorf("removed current stats = %+v, want zero", removed.Current.Stats)
	}
	if removed.Previous.Stats != (object.CoverageStats{Total: 7, Relevant: 6, Covered: 3}) {
		t.Errorf("removed previous stats = %+v", removed.Previous.Stats)
	}
}

func TestProjectRatioPrecision(t *testing.T) {
	// 1/3 covered: 33.33% at the default 2 digits, 33.333 at 3.
	current := []projection.FileSnapshot{snap("only.c", lineStats(3, 3, 1), 1)}

	tree := projection.Project(current, nil, nil, projection.Filter{Marks: marks})
	if got := tree.Rows[0].Dims[object.DimLines].Current.Ratio; got != 33.33 {
		t.Fatalf("default precision ratio = %v, want 33.33", got)
	}

	tree = projection.Project(current, nil, nil, projection.Filter{Marks: marks, Precision: 3})
	if got := tree.Rows[0].Dims[object.DimLines].Current.Ratio; got != 33.333 {
		t.Fatalf("3-digit precision ratio = %v, want 33.333", got)
	}
}

func TestProjectZeroRelevantIsFullCoverage(t *testing.T) {
	current := []projection.FileSnapshot{snap("blank.md", lineStats(12, 0, 0), 1)}
	tree := projection.Project(current, nil, nil, projection.Filter{Marks: marks})
	col := tree.Rows[0].Dims[object.DimLines].Current
	if col.Ratio != 100 || col.Rating != object.Passing {
		t.Fatalf("zero-relevant column = %+v, want 100%% passing", col)
	}
}
