// Package revparse resolves revision expressions — shorthands, oid
// prefixes, "~N"/"^" suffixes, and "A..B" ranges — against a reference
// store and the report object graph. The parent chain is single-parent,
// so suffix walks and range resolution both follow first parents only.
package revparse

import (
	"fmt"
	"strings"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/oid"
	"github.com/covdata/cov/ref"
)

// Graph is the minimal view of a repository revparse needs: reference
// resolution (dwim + peel) and the report parent-chain.
type Graph interface {
	Dwim(shorthand string) (ref.Ref, error)
	Peel(r ref.Ref) (ref.Ref, error)
	ResolvePrefix(prefix string) (oid.OID, error)
	// ReportParent returns the stored report's Parent oid. It returns a
	// notfound or wrong_object_type error if id does not name a report.
	ReportParent(id oid.OID) (oid.OID, error)
}

// Result is the outcome of Parse: a single oid, or a range. From is unset
// (oid.Zero) when Single is true.
type Result struct {
	From, To oid.OID
	Single   bool
}

// ParseSingle resolves rev to a single oid.
func ParseSingle(g Graph, rev string) (oid.OID, error) {
	return parseSingle(g, rev)
}

// Parse resolves rev, which may be a single revision or an "A..B"/"..B"/
// "A.." range.
func Parse(g Graph, spec string) (Result, error) {
	const op = "revparse.Parse"

	if strings.Contains(spec, "...") {
		return Result{}, errc.New(op, errc.InvalidSpec, fmt.Errorf("revparse: symmetric difference %q is not supported", spec))
	}

	idx := strings.Index(spec, "..")
	if idx < 0 {
		to, err := parseSingle(g, spec)
		if err != nil {
			return Result{}, err
		}
		return Result{To: to, Single: true}, nil
	}

	fromRev := spec[:idx]
	toRev := spec[idx+2:]
	if fromRev == "" && toRev == "" {
		return Result{}, errc.New(op, errc.InvalidSpec, fmt.Errorf("revparse: invalid pattern %q", spec))
	}

	var headOID oid.OID
	if fromRev == "" || toRev == "" {
		var err error
		headOID, err = parseSingle(g, "HEAD")
		if err != nil {
			return Result{}, err
		}
	}

	var from, to oid.OID
	if fromRev == "" {
		from = headOID
	} else {
		var err error
		if from, err = parseSingle(g, fromRev); err != nil {
			return Result{}, err
		}
	}
	if toRev == "" {
		to = headOID
	} else {
		var err error
		if to, err = parseSingle(g, toRev); err != nil {
			return Result{}, err
		}
	}

	resolvedFrom, err := locateRange(g, from, to)
	if err != nil {
		return Result{}, err
	}
	return Result{From: resolvedFrom, To: to}, nil
}

func parseSingle(g Graph, rev string) (oid.OID, error) {
	const op = "revparse.parseSingle"

	base, steps, err := splitSuffixes(rev)
	if err != nil {
		return oid.OID{}, err
	}

	resolved, err := resolveBase(g, op, base)
	if err != nil {
		return oid.OID{}, err
	}

	if steps == 0 {
		return resolved, nil
	}
	return walkParents(g, op, resolved, steps)
}

// resolveBase resolves base by trying reference dwim first and, failing
// that, treating it as an oid prefix.
func resolveBase(g Graph, op, base string) (oid.OID, error) {
	r, dwimErr := g.Dwim(base)
	if dwimErr != nil {
		id, err := g.ResolvePrefix(base)
		if err != nil {
			return oid.OID{}, err
		}
		return id, nil
	}

	peeled, err := g.Peel(r)
	if err != nil {
		return oid.OID{}, err
	}
	if peeled.OID.IsZero() {
		// The only way Peel resolves to the zero oid is an unborn branch:
		// HEAD (or the branch it names) exists but has no tip yet.
		return oid.OID{}, errc.New(op, errc.UnbornBranch, fmt.Errorf("revparse: %q has no tip yet", base))
	}
	return peeled.OID, nil
}

// splitSuffixes splits rev into its base revision and the total number of
// first-parent steps its "^"/"~" suffixes request. "^N" with N > 1 is
// rejected as notfound, not invalidspec, because the parent chain is
// linear; any other character after the base is invalidspec.
func splitSuffixes(rev string) (base string, steps int, err error) {
	i := 0
	for i < len(rev) && rev[i] != '^' && rev[i] != '~' {
		i++
	}
	base = rev[:i]

	for i < len(rev) {
		switch rev[i] {
		case '^':
			i++
			var n int
			n, i = takeNumber(rev, i)
			if n > 1 {
				return "", 0, errc.New("revparse.splitSuffixes", errc.NotFound, fmt.Errorf("revparse: %q: only first parent (^0/^1) is supported", rev))
			}
			steps += n
		case '~':
			i++
			var n int
			n, i = takeNumber(rev, i)
			steps += n
		default:
			return "", 0, errc.New("revparse.splitSuffixes", errc.InvalidSpec, fmt.Errorf("revparse: %q: invalid pattern at %q", rev, rev[i:]))
		}
	}
	return base, steps, nil
}

// takeNumber reads a (possibly multi-digit) decimal number at rev[i:],
// defaulting to 1 when no digits are present (matching "^"/"~" with no
// explicit count).
func takeNumber(rev string, i int) (int, int) {
	if i >= len(rev) || rev[i] < '0' || rev[i] > '9' {
		return 1, i
	}
	n := 0
	for i < len(rev) && rev[i] >= '0' && rev[i] <= '9' {
		n = n*10 + int(rev[i]-'0')
		i++
	}
	return n, i
}

// walkParents follows the report's first-parent chain steps times,
// returning notfound if it runs off the end.
func walkParents(g Graph, op string, start oid.OID, steps int) (oid.OID, error) {
	cur := start
	for i := 0; i < steps; i++ {
		parent, err := g.ReportParent(cur)
		if err != nil {
			return oid.OID{}, err
		}
		if parent.IsZero() {
			return oid.OID{}, errc.New(op, errc.NotFound, fmt.Errorf("revparse: chain from %s has only %d ancestor(s), want %d", start, i, steps))
		}
		cur = parent
	}
	return cur, nil
}

// locateRange finds the bottom of a range: alternating one first-parent
// step on each side of the range, recording allowed/unallowed sets, until
// one side reaches a node the other side has already visited (the nearest
// common ancestor). A side that runs off the end stops stepping while the
// other continues; if both run off without meeting, the bottom is the zero
// oid (include everything). A zero from or to yields the zero oid.
func locateRange(g Graph, from, to oid.OID) (oid.OID, error) {
	if from.IsZero() || to.IsZero() {
		return oid.Zero, nil
	}

	type node struct {
		id oid.OID
		ok bool
	}
	next := func(n node) (node, error) {
		if !n.ok {
			return node{}, nil
		}
		parent, err := g.ReportParent(n.id)
		if err != nil {
			if errc.NotFound.Is(err) || errc.WrongObjectType.Is(err) {
				return node{}, nil
			}
			return node{}, err
		}
		if parent.IsZero() {
			return node{}, nil
		}
		return node{id: parent, ok: true}, nil
	}

	allowed := map[oid.OID]bool{}
	unallowed := map[oid.OID]bool{}
	top := node{id: to, ok: true}
	bottom := node{id: from, ok: true}

	for top.ok || bottom.ok {
		if top.ok {
			if unallowed[top.id] {
				return top.id, nil
			}
			allowed[top.id] = true
			var err error
			if top, err = next(top); err != nil {
				return oid.OID{}, err
			}
		}
		if bottom.ok {
			if allowed[bottom.id] {
				return bottom.id, nil
			}
			unallowed[bottom.id] = true
			var err error
			if bottom, err = next(bottom); err != nil {
				return oid.OID{}, err
			}
		}
	}
	return oid.OID{}, nil
}
