// Package ref implements the directory-backed reference store: loose
// files under refs/…, a symbolic HEAD, compare-and-swap
// writes, dwim shorthand resolution, iteration, and peeling.
package ref

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/oid"
)

// HeadName is the distinguished reference name.
const HeadName = "HEAD"

const (
	headsPrefix = "refs/heads/"
	tagsPrefix  = "refs/tags/"
)

// Ref is a resolved reference: either direct (Target is zero, OID valid) or
// symbolic (Target names another reference, OID is zero and unconsulted).
type Ref struct {
	Name     string
	Symbolic bool
	OID      oid.OID
	Target   string // valid only if Symbolic
}

// IsBranch reports whether name is under refs/heads/.
func IsBranch(name string) bool { return strings.HasPrefix(name, headsPrefix) }

// IsTag reports whether name is under refs/tags/.
func IsTag(name string) bool { return strings.HasPrefix(name, tagsPrefix) }

// ShortBranchName strips the refs/heads/ prefix, or returns name unchanged.
func ShortBranchName(name string) string { return strings.TrimPrefix(name, headsPrefix) }

// Store is a reference database rooted at a repository's commondir.
type Store struct {
	root string
	log  *slog.Logger
}

// Open returns a Store rooted at commondir. It does not create any files;
// use Init to lay down a fresh HEAD.
func Open(commondir string) *Store {
	return &Store{root: commondir, log: slog.Default()}
}

// WithLogger returns a copy of s that logs through logger.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	cp := *s
	cp.log = logger
	return &cp
}

// Init writes the default HEAD (a symbolic ref to refs/heads/<branch>) if
// HEAD does not already exist.
func (s *Store) Init(defaultBranch string) error {
	const op = "ref.Init"
	path := filepath.Join(s.root, HeadName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errc.New(op, errc.BadSyntax, err)
	}
	return s.writeSymbolic(op, HeadName, headsPrefix+defaultBranch)
}

func refPath(root, name string) string { return filepath.Join(root, filepath.FromSlash(name)) }

// Lookup reads the reference named name.
func (s *Store) Lookup(name string) (Ref, error) {
	const op = "ref.Lookup"
	if name != HeadName {
		if err := ValidateName(name); err != nil {
			return Ref{}, errc.New(op, errc.InvalidSpec, err)
		}
	}
	return s.readRef(op, name)
}

func (s *Store) readRef(op, name string) (Ref, error) {
	data, err := os.ReadFile(refPath(s.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return Ref{}, errc.New(op, errc.NotFound, fmt.Errorf("ref: no such reference %q", name))
		}
		return Ref{}, errc.New(op, errc.BadSyntax, err)
	}
	return parseRefContent(op, name, data)
}

func parseRefContent(op, name string, data []byte) (Ref, error) {
	text := strings.TrimRight(string(data), "\n")
	if target, ok := strings.CutPrefix(text, "ref: "); ok {
		return Ref{Name: name, Symbolic: true, Target: target}, nil
	}
	id, err := oid.Parse(text)
	if err != nil {
		return Ref{}, errc.New(op, errc.BadSyntax, fmt.Errorf("ref: %q: malformed contents %q: %w", name, text, err))
	}
	return Ref{Name: name, OID: id}, nil
}

func (s *Store) writeDirect(op, name string, id oid.OID) error {
	return s.writeFile(op, name, id.String()+"\n")
}

func (s *Store) writeSymbolic(op, name, target string) error {
	return s.writeFile(op, name, "ref: "+target+"\n")
}

func (s *Store) writeFile(op, name, content string) error {
	path := refPath(s.root, name)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errc.New(op, errc.BadSyntax, err)
	}
	tmp, err := os.CreateTemp(dir, ".ref-tmp-*")
	if err != nil {
		return errc.New(op, errc.BadSyntax, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errc.New(op, errc.BadSyntax, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errc.New(op, errc.BadSyntax, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errc.New(op, errc.BadSyntax, err)
	}
	return nil
}

// Create writes a new reference. Without force, it fails with errc.Exists
// if name is already present.
func (s *Store) Create(name string, id oid.OID, force bool) error {
	const op = "ref.Create"
	if err := ValidateName(name); err != nil {
		return errc.New(op, errc.InvalidSpec, err)
	}
	if !force {
		if _, err := os.Stat(refPath(s.root, name)); err == nil {
			return errc.New(op, errc.Exists, fmt.Errorf("ref: %q already exists", name))
		}
	}
	if err := s.writeDirect(op, name, id); err != nil {
		return err
	}
	s.log.Debug("ref: created", "op", op, "ref", name, "oid", id.String())
	return nil
}

// CreateMatching is the compare-and-swap primitive. It reads the current
// value of name; if it differs
// from expected (in direct or symbolic form), it returns modified=false and
// makes no change. Otherwise it atomically writes new and returns
// modified=true. A non-existent ref matches an expected zero oid.
func (s *Store) CreateMatching(name string, newOID, expected oid.OID) (modified bool, err error) {
	const op = "ref.CreateMatching"
	if err := ValidateName(name); err != nil {
		return false, errc.New(op, errc.InvalidSpec, err)
	}

	cur, lookErr := s.readRef(op, name)
	switch {
	case errc.NotFound.Is(lookErr):
		if !expected.IsZero() {
			return false, nil
		}
	case lookErr != nil:
		return false, lookErr
	default:
		if cur.Symbolic || cur.OID != expected {
			return false, nil
		}
	}

	if err := s.writeDirect(op, name, newOID); err != nil {
		return false, err
	}
	s.log.Debug("ref: CAS updated", "op", op, "ref", name, "oid", newOID.String())
	return true, nil
}

// CreateMatchingSymbolic is CreateMatching's counterpart for symbolic refs,
// e.g. retargeting HEAD to a different branch.
func (s *Store) CreateMatchingSymbolic(name, newTarget, expectedTarget string) (modified bool, err error) {
	const op = "ref.CreateMatchingSymbolic"
	cur, lookErr := s.readRef(op, name)
	switch {
	case errc.NotFound.Is(lookErr):
		if expectedTarget != "" {
			return false, nil
		}
	case lookErr != nil:
		return false, lookErr
	default:
		if !cur.Symbolic || cur.Target != expectedTarget {
			return false, nil
		}
	}
	if err := s.writeSymbolic(op, name, newTarget); err != nil {
		return false, err
	}
	return true, nil
}

// Remove unlinks the loose file for ref. It refuses to remove the branch
// HEAD currently points at (errc.CurrentBranch).
func (s *Store) Remove(name string) error {
	const op = "ref.Remove"
	if name == HeadName {
		return errc.New(op, errc.CurrentBranch, fmt.Errorf("ref: refusing to remove HEAD"))
	}
	head, err := s.readRef(op, HeadName)
	if err == nil && head.Symbolic && head.Target == name {
		return errc.New(op, errc.CurrentBranch, fmt.Errorf("ref: %q is the branch HEAD points at", name))
	}
	if err := os.Remove(refPath(s.root, name)); err != nil {
		if os.IsNotExist(err) {
			return errc.New(op, errc.NotFound, err)
		}
		return errc.New(op, errc.BadSyntax, err)
	}
	return nil
}

// Copy duplicates the reference src under the name dst. Without force it
// fails with errc.Exists if dst is already present.
func (s *Store) Copy(src, dst string, force bool) error {
	const op = "ref.Copy"
	if err := ValidateName(dst); err != nil {
		return errc.New(op, errc.InvalidSpec, err)
	}
	r, err := s.readRef(op, src)
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(refPath(s.root, dst)); err == nil {
			return errc.New(op, errc.Exists, fmt.Errorf("ref: %q already exists", dst))
		}
	}
	if r.Symbolic {
		return s.writeSymbolic(op, dst, r.Target)
	}
	return s.writeDirect(op, dst, r.OID)
}

// Rename moves src to dst. Renaming the branch HEAD points at retargets
// HEAD to follow it.
func (s *Store) Rename(src, dst string, force bool) error {
	const op = "ref.Rename"
	if err := s.Copy(src, dst, force); err != nil {
		return err
	}
	head, headErr := s.readRef(op, HeadName)
	if headErr == nil && head.Symbolic && head.Target == src {
		if err := s.writeSymbolic(op, HeadName, dst); err != nil {
			return err
		}
	}
	if err := os.Remove(refPath(s.root, src)); err != nil && !os.IsNotExist(err) {
		return errc.New(op, errc.BadSyntax, err)
	}
	return nil
}

// Dwim resolves a shorthand: try
// shorthand, refs/shorthand, refs/tags/shorthand, refs/heads/shorthand in
// order, returning the first that exists.
func (s *Store) Dwim(shorthand string) (Ref, error) {
	const op = "ref.Dwim"
	candidates := []string{
		shorthand,
		"refs/" + shorthand,
		tagsPrefix + shorthand,
		headsPrefix + shorthand,
	}
	var lastErr error
	for _, name := range candidates {
		r, err := s.readRef(op, name)
		if err == nil {
			return r, nil
		}
		lastErr = err
	}
	return Ref{}, errc.New(op, errc.NotFound, fmt.Errorf("ref: no reference matches %q: %w", shorthand, lastErr))
}

// Peel follows symbolic targets until it reaches a direct ref (possibly an
// unborn branch, i.e. direct with a zero oid).
func (s *Store) Peel(r Ref) (Ref, error) {
	const op = "ref.Peel"
	seen := map[string]bool{}
	for r.Symbolic {
		if seen[r.Name] {
			return Ref{}, errc.New(op, errc.BadSyntax, fmt.Errorf("ref: symbolic cycle at %q", r.Name))
		}
		seen[r.Name] = true
		next, err := s.readRef(op, r.Target)
		if err != nil {
			if errc.NotFound.Is(err) {
				// Target doesn't exist yet: an unborn branch.
				return Ref{Name: r.Target, OID: oid.Zero}, nil
			}
			return Ref{}, err
		}
		r = next
	}
	return r, nil
}

// ResolveHead peels HEAD to its direct oid, returning errc.UnbornBranch if
// the branch it names has no tip yet.
func (s *Store) ResolveHead() (oid.OID, error) {
	const op = "ref.ResolveHead"
	head, err := s.Lookup(HeadName)
	if err != nil {
		return oid.OID{}, err
	}
	direct, err := s.Peel(head)
	if err != nil {
		return oid.OID{}, err
	}
	if direct.OID.IsZero() {
		return oid.OID{}, errc.New(op, errc.UnbornBranch, fmt.Errorf("ref: %q has no tip yet", direct.Name))
	}
	return direct.OID, nil
}

// UpdateCurrentBranch takes the new tip and the HEAD snapshot the caller
// observed, and CAS-updates whatever HEAD points at (the branch, if
// attached; HEAD itself, if detached).
func (s *Store) UpdateCurrentBranch(headSnapshot Ref, newOID oid.OID) (modified bool, err error) {
	if headSnapshot.Symbolic {
		branch, lookErr := s.readRef("ref.UpdateCurrentBranch", headSnapshot.Target)
		var expected oid.OID
		if lookErr == nil {
			expected = branch.OID
		} else if !errc.NotFound.Is(lookErr) {
			return false, lookErr
		}
		return s.CreateMatching(headSnapshot.Target, newOID, expected)
	}
	return s.CreateMatching(HeadName, newOID, headSnapshot.OID)
}

// Iterator yields the full reference names found under the refs/<prefix>/
// subtree in a stable (lexicographic) order; NewIterator collects them up
// front.
type Iterator struct {
	names []string
	i     int
}

// Next advances the iterator, returning false when exhausted.
func (it *Iterator) Next() bool {
	it.i++
	return it.i < len(it.names)
}

// Name returns the current reference name; valid only after Next returns true.
func (it *Iterator) Name() string { return it.names[it.i] }

// NewIterator walks refs/<prefix>/ (prefix is e.g. "heads" or "tags") and
// materialises the matching names eagerly; the contract is a finite
// sequence with stable order, which eager materialisation preserves.
func (s *Store) NewIterator(prefix string) (*Iterator, error) {
	root := filepath.Join(s.root, "refs", filepath.FromSlash(prefix))
	var names []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filepath.Join(s.root, "refs"), path)
		if err != nil {
			return err
		}
		names = append(names, "refs/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errc.New("ref.NewIterator", errc.BadSyntax, err)
	}
	sort.Strings(names)
	return &Iterator{names: names, i: -1}, nil
}

// ValidateName checks a reference shorthand/name against the naming
// rules, mirroring git's check-ref-format: no leading '-', no
// "..", no ASCII control characters, none of ':', '?', '*', '[', '\\',
// "@{", and no trailing ".lock".
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("ref: empty name")
	}
	if name == HeadName {
		return nil
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("ref: %q: must not start with '-'", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("ref: %q: must not contain '..'", name)
	}
	if strings.Contains(name, "@{") {
		return fmt.Errorf("ref: %q: must not contain '@{'", name)
	}
	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("ref: %q: must not end with '.lock'", name)
	}
	if strings.HasSuffix(name, "/") || strings.HasPrefix(name, "/") || strings.Contains(name, "//") {
		return fmt.Errorf("ref: %q: malformed path segments", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("ref: %q: must not contain control characters", name)
		}
		switch r {
		case ':', '?', '*', '[', '\\', '~', '^', ' ':
			return fmt.Errorf("ref: %q: must not contain %q", name, r)
		}
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." {
			return fmt.Errorf("ref: %q: malformed path segments", name)
		}
	}
	return nil
}

// MakeBranchName returns the fully-qualified refs/heads/<shorthand> name.
func MakeBranchName(shorthand string) string { return headsPrefix + shorthand }

// MakeTagName returns the fully-qualified refs/tags/<shorthand> name.
func MakeTagName(shorthand string) string { return tagsPrefix + shorthand }
