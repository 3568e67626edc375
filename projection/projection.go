// Package projection implements report-to-table aggregation: filter a
// file list by module and/or path prefix, group the remainder into
// directories/files, and roll up per-dimension coverage stats into rated
// ratios with a diff against a previous snapshot.
package projection

import (
	"math"
	"sort"
	"strings"

	"github.com/covdata/cov/modcfg"
	"github.com/covdata/cov/object"
	"github.com/covdata/cov/oid"
)

// FileSnapshot is one file's contribution to a projection input: its path,
// its per-dimension stats, and the blob oid used for rename detection.
type FileSnapshot struct {
	Path     string
	Stats    object.Stats
	Contents oid.OID
}

// Filter selects and rates the file set a Project call operates over.
type Filter struct {
	// Module restricts to files matching this module name;
	// empty means no module filter.
	Module string
	// PathPrefix restricts to files equal to this path, or under it as
	// a proper directory prefix; empty means no restriction.
	PathPrefix string
	Marks      object.Marks
	// Precision is the number of decimal digits ratios are rounded to;
	// zero selects the default of 2.
	Precision int
}

func (f Filter) precision() int {
	if f.Precision <= 0 {
		return 2
	}
	return f.Precision
}

// EntryKind discriminates the three row shapes a projection can emit.
type EntryKind int

const (
	KindDirectory EntryKind = iota
	KindFile
	KindStandaloneFile
)

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindStandaloneFile:
		return "standalone_file"
	default:
		return "unknown"
	}
}

// DiffKind classifies how a row's identity changed between the previous
// and current snapshot.
type DiffKind int

const (
	DiffUnchanged DiffKind = iota
	DiffAdded
	DiffRenamed
	DiffModified
	DiffRemoved
)

func (k DiffKind) String() string {
	switch k {
	case DiffUnchanged:
		return "unchanged"
	case DiffAdded:
		return "added"
	case DiffRenamed:
		return "renamed"
	case DiffModified:
		return "modified"
	case DiffRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Column is one rated, human-facing coverage column: the covered
// percentage, the missing count, and the underlying totals.
type Column struct {
	Stats   object.CoverageStats
	Ratio   float64
	Rating  object.Rating
	Missing uint32
}

func newColumn(s object.CoverageStats, marks object.Marks, precision int) Column {
	return Column{
		Stats:   s,
		Ratio:   roundRatio(s.Ratio(), precision),
		Rating:  s.Rate(marks),
		Missing: s.Relevant - s.Covered,
	}
}

func roundRatio(f object.Fraction, precision int) float64 {
	if f.Den == 0 {
		return 1
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(float64(f.Num)/float64(f.Den)*100*scale) / scale
}

// DimensionResult is one dimension's (lines/functions/branches) rated
// current and previous columns plus their signed difference.
type DimensionResult struct {
	Current  Column
	Previous Column
	Diff     float64
}

func newDimensionResult(cur, prev object.CoverageStats, marks object.Marks, precision int) DimensionResult {
	c := newColumn(cur, marks, precision)
	p := newColumn(prev, marks, precision)
	return DimensionResult{Current: c, Previous: p, Diff: roundDiff(c.Ratio-p.Ratio, precision)}
}

func roundDiff(f float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(f*scale) / scale
}

// Row is one line of the projection: a directory, a file, or (when the
// whole selection reduces to one file) a standalone file.
type Row struct {
	Name         string
	Kind         EntryKind
	PreviousName string
	DiffKind     DiffKind
	Dims         [3]DimensionResult // indexed by object.Dimension
}

// Tree is the full projection result: data rows in lexicographic order
// plus an aggregated footer.
type Tree struct {
	Rows   []Row
	Footer Row
}

type fileDiff struct {
	path         string
	previousPath string
	diffKind     DiffKind
	current      object.Stats
	previous     object.Stats
	haveCurrent  bool
	havePrevious bool
}

func (d fileDiff) identityPath() string {
	if d.haveCurrent {
		return d.path
	}
	return d.previousPath
}

// matchSnapshots pairs current and previous file snapshots by path first,
// then by contents oid (for rename detection).
func matchSnapshots(current, previous []FileSnapshot) []fileDiff {
	prevByPath := make(map[string]FileSnapshot, len(previous))
	for _, p := range previous {
		prevByPath[p.Path] = p
	}
	matchedPrev := make(map[string]bool, len(previous))

	prevByContents := make(map[oid.OID]FileSnapshot)
	for _, p := range previous {
		if _, ok := prevByContents[p.Contents]; !ok {
			prevByContents[p.Contents] = p
		}
	}

	var diffs []fileDiff
	for _, c := range current {
		if p, ok := prevByPath[c.Path]; ok {
			matchedPrev[p.Path] = true
			kind := DiffUnchanged
			if c.Contents != p.Contents || c.Stats != p.Stats {
				kind = DiffModified
			}
			diffs = append(diffs, fileDiff{
				path: c.Path, previousPath: p.Path, diffKind: kind,
				current: c.Stats, previous: p.Stats,
				haveCurrent: true, havePrevious: true,
			})
			continue
		}
		if p, ok := prevByContents[c.Contents]; ok && !matchedPrev[p.Path] {
			matchedPrev[p.Path] = true
			diffs = append(diffs, fileDiff{
				path: c.Path, previousPath: p.Path, diffKind: DiffRenamed,
				current: c.Stats, previous: p.Stats,
				haveCurrent: true, havePrevious: true,
			})
			continue
		}
		diffs = append(diffs, fileDiff{
			path: c.Path, diffKind: DiffAdded,
			current: c.Stats, haveCurrent: true,
		})
	}
	for _, p := range previous {
		if matchedPrev[p.Path] {
			continue
		}
		diffs = append(diffs, fileDiff{
			previousPath: p.Path, diffKind: DiffRemoved,
			previous: p.Stats, havePrevious: true,
		})
	}
	return diffs
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func trimPrefix(path, prefix string) string {
	if prefix == "" {
		return path
	}
	if path == prefix {
		return ""
	}
	return strings.TrimPrefix(path, prefix+"/")
}

// Project applies filter to current/previous and builds the projection
// tree.
func Project(current, previous []FileSnapshot, overlay *modcfg.Overlay, filter Filter) Tree {
	diffs := matchSnapshots(current, previous)

	var selected []fileDiff
	for _, d := range diffs {
		path := d.identityPath()
		if !matchesPrefix(path, filter.PathPrefix) {
			continue
		}
		if filter.Module != "" {
			if overlay == nil {
				continue
			}
			matched := false
			for _, m := range overlay.Matches(path) {
				if m == filter.Module {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		selected = append(selected, d)
	}

	if len(selected) == 1 {
		d := selected[0]
		row := rowFromDiff(d, d.identityPath(), filter)
		row.Kind = KindStandaloneFile
		return Tree{Rows: []Row{row}, Footer: footerOf([]Row{row}, filter)}
	}

	groups := map[string][]fileDiff{}
	var groupOrder []string
	for _, d := range selected {
		remaining := trimPrefix(d.identityPath(), filter.PathPrefix)
		seg := remaining
		if i := strings.IndexByte(remaining, '/'); i >= 0 {
			seg = remaining[:i]
		}
		if _, ok := groups[seg]; !ok {
			groupOrder = append(groupOrder, seg)
		}
		groups[seg] = append(groups[seg], d)
	}
	sort.Strings(groupOrder)

	rows := make([]Row, 0, len(groupOrder))
	for _, seg := range groupOrder {
		members := groups[seg]
		remaining := trimPrefix(members[0].identityPath(), filter.PathPrefix)
		isLeaf := len(members) == 1 && !strings.Contains(remaining, "/")
		if isLeaf {
			row := rowFromDiff(members[0], seg, filter)
			row.Kind = KindFile
			rows = append(rows, row)
			continue
		}
		rows = append(rows, directoryRow(seg, members, filter))
	}

	return Tree{Rows: rows, Footer: footerOf(rows, filter)}
}

func rowFromDiff(d fileDiff, name string, filter Filter) Row {
	var row Row
	row.Name = name
	row.DiffKind = d.diffKind
	if d.diffKind == DiffRenamed {
		row.PreviousName = d.previousPath
	}
	for dim := object.Dimension(0); dim < 3; dim++ {
		row.Dims[dim] = newDimensionResult(d.current[dim], d.previous[dim], filter.Marks, filter.precision())
	}
	return row
}

func directoryRow(name string, members []fileDiff, filter Filter) Row {
	var cur, prev object.Stats
	allUnchanged := true
	for _, m := range members {
		cur = cur.Add(m.current)
		prev = prev.Add(m.previous)
		if m.diffKind != DiffUnchanged {
			allUnchanged = false
		}
	}
	row := Row{Name: name, Kind: KindDirectory}
	if allUnchanged {
		row.DiffKind = DiffUnchanged
	} else {
		row.DiffKind = DiffModified
	}
	for dim := object.Dimension(0); dim < 3; dim++ {
		row.Dims[dim] = newDimensionResult(cur[dim], prev[dim], filter.Marks, filter.precision())
	}
	return row
}

// footerOf sums every row component-wise, so the footer always equals
// the saturating sum of the data rows.
func footerOf(rows []Row, filter Filter) Row {
	var cur, prev object.Stats
	for _, r := range rows {
		for dim := object.Dimension(0); dim < 3; dim++ {
			cur[dim] = cur[dim].Add(r.Dims[dim].Current.Stats)
			prev[dim] = prev[dim].Add(r.Dims[dim].Previous.Stats)
		}
	}
	footer := Row{Name: "total"}
	for dim := object.Dimension(0); dim < 3; dim++ {
		footer.Dims[dim] = newDimensionResult(cur[dim], prev[dim], filter.Marks, filter.precision())
	}
	return footer
}
