package revparse_test

import (
	"fmt"
	"testing"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/oid"
	"github.com/covdata/cov/ref"
	"github.com/covdata/cov/revparse"
)

// fakeGraph is an in-memory revparse.Graph: branches/tags map to oids,
// reports map to their parent oid, matching the "A<-B<-C<-D on main,
// A<-E<-F on topic" fixture used throughout these tests.
type fakeGraph struct {
	head     string // symbolic target, e.g. "refs/heads/main"
	branches map[string]oid.OID
	tags     map[string]oid.OID
	parents  map[oid.OID]oid.OID // report -> parent ("" key unused; zero value means no parent)
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		head:     "refs/heads/main",
		branches: map[string]oid.OID{},
		tags:     map[string]oid.OID{},
		parents:  map[oid.OID]oid.OID{},
	}
}

func mkOID(tag byte) oid.OID {
	var id oid.OID
	id[0] = tag
	return id
}

func (g *fakeGraph) Dwim(shorthand string) (ref.Ref, error) {
	if shorthand == ref.HeadName {
		return ref.Ref{Name: ref.HeadName, Symbolic: true, Target: g.head}, nil
	}
	if id, ok := g.branches[shorthand]; ok {
		return ref.Ref{Name: ref.MakeBranchName(shorthand), OID: id}, nil
	}
	if id, ok := g.tags[shorthand]; ok {
		return ref.Ref{Name: ref.MakeTagName(shorthand), OID: id}, nil
	}
	return ref.Ref{}, errc.New("fakeGraph.Dwim", errc.NotFound, fmt.Errorf("no ref %q", shorthand))
}

func (g *fakeGraph) Peel(r ref.Ref) (ref.Ref, error) {
	for r.Symbolic {
		name := ref.ShortBranchName(r.Target)
		id, ok := g.branches[name]
		if !ok {
			return ref.Ref{Name: r.Target, OID: oid.Zero}, nil
		}
		r = ref.Ref{Name: r.Target, OID: id}
	}
	return r, nil
}

func (g *fakeGraph) ResolvePrefix(prefix string) (oid.OID, error) {
	for _, m := range []map[string]oid.OID{g.branches, g.tags} {
		for _, id := range m {
			if len(prefix) <= len(id.String()) && id.String()[:len(prefix)] == prefix {
				return id, nil
			}
		}
	}
	for id := range g.parents {
		if len(prefix) <= len(id.String()) && id.String()[:len(prefix)] == prefix {
			return id, nil
		}
	}
	return oid.OID{}, errc.New("fakeGraph.ResolvePrefix", errc.NotFound, fmt.Errorf("no object with prefix %q", prefix))
}

func (g *fakeGraph) ReportParent(id oid.OID) (oid.OID, error) {
	parent, ok := g.parents[id]
	if !ok {
		return oid.OID{}, errc.New("fakeGraph.ReportParent", errc.NotFound, fmt.Errorf("no report %s", id))
	}
	return parent, nil
}

func buildFixture() (*fakeGraph, map[string]oid.OID) {
	g := newFakeGraph()
	ids := map[string]oid.OID{
		"A": mkOID(0xA0),
		"B": mkOID(0xB0),
		"C": mkOID(0xC0),
		"D": mkOID(0xD0),
		"E": mkOID(0xE0),
		"F": mkOID(0xF0),
	}
	g.parents[ids["A"]] = oid.Zero
	g.parents[ids["B"]] = ids["A"]
	g.parents[ids["C"]] = ids["B"]
	g.parents[ids["D"]] = ids["C"]
	g.parents[ids["E"]] = ids["A"]
	g.parents[ids["F"]] = ids["E"]

	g.branches["main"] = ids["D"]
	g.branches["topic"] = ids["F"]
	return g, ids
}

func TestUnbornBranch(t *testing.T) {
	g := newFakeGraph()
	if _, err := revparse.ParseSingle(g, "HEAD"); !errc.UnbornBranch.Is(err) {
		t.Fatalf("ParseSingle(HEAD) on empty repo: got %v, want unbornbranch", err)
	}
}

func TestHeadAndTilde(t *testing.T) {
	g, ids := buildFixture()

	for _, tc := range []struct {
		rev  string
		want oid.OID
	}{
		{"HEAD", ids["D"]},
		{"HEAD~0", ids["D"]},
		{"main", ids["D"]},
		{"main~1", ids["C"]},
		{"main~3", ids["A"]},
		{"topic~2", ids["A"]},
		{"topic^", ids["E"]},
	} {
		got, err := revparse.ParseSingle(g, tc.rev)
		if err != nil {
			t.Fatalf("ParseSingle(%q): %v", tc.rev, err)
		}
		if got != tc.want {
			t.Errorf("ParseSingle(%q) = %s, want %s", tc.rev, got, tc.want)
		}
	}
}

func TestTildeRunsOffEnd(t *testing.T) {
	g, _ := buildFixture()
	if _, err := revparse.ParseSingle(g, "topic~3"); !errc.NotFound.Is(err) {
		t.Fatalf("ParseSingle(topic~3): got %v, want notfound", err)
	}
}

func TestCaretGreaterThanOneIsNotFound(t *testing.T) {
	g, _ := buildFixture()
	if _, err := revparse.ParseSingle(g, "main^2"); !errc.NotFound.Is(err) {
		t.Fatalf("ParseSingle(main^2): got %v, want notfound", err)
	}
}

func TestTripleDotRejected(t *testing.T) {
	g, _ := buildFixture()
	if _, err := revparse.Parse(g, "main...topic"); !errc.InvalidSpec.Is(err) {
		t.Fatalf("Parse(main...topic): got %v, want invalidspec", err)
	}
}

func TestRangeMainTopic(t *testing.T) {
	g, ids := buildFixture()
	res, err := revparse.Parse(g, "main..topic")
	if err != nil {
		t.Fatalf("Parse(main..topic): %v", err)
	}
	if res.Single {
		t.Fatalf("Parse(main..topic).Single = true, want false")
	}
	if res.To != ids["F"] {
		t.Fatalf("Parse(main..topic).To = %s, want F", res.To)
	}
	if res.From != ids["A"] {
		t.Fatalf("Parse(main..topic).From = %s, want A", res.From)
	}
}

func TestRangeOpenEnded(t *testing.T) {
	g, ids := buildFixture()

	res, err := revparse.Parse(g, "main..")
	if err != nil {
		t.Fatalf("Parse(main..): %v", err)
	}
	if res.To != ids["D"] { // main.. -> to = HEAD = D
		t.Fatalf("Parse(main..).To = %s, want HEAD(D)", res.To)
	}

	res2, err := revparse.Parse(g, "..topic")
	if err != nil {
		t.Fatalf("Parse(..topic): %v", err)
	}
	if res2.To != ids["F"] {
		t.Fatalf("Parse(..topic).To = %s, want F", res2.To)
	}
}

func TestPrefixFallback(t *testing.T) {
	g, ids := buildFixture()
	full := ids["A"].String()
	got, err := revparse.ParseSingle(g, full[:8])
	if err != nil {
		t.Fatalf("ParseSingle(prefix): %v", err)
	}
	if got != ids["A"] {
		t.Fatalf("ParseSingle(prefix) = %s, want A", got)
	}
}
