package cov

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/modcfg"
	"github.com/covdata/cov/object"
	"github.com/covdata/cov/oid"
	"github.com/covdata/cov/projection"
	"github.com/covdata/cov/ref"
	"github.com/covdata/cov/revparse"
	"github.com/covdata/cov/store"
)

// DotDirName is the repository directory created inside a worktree.
const DotDirName = ".covdata"

// DefaultBranch is the branch HEAD points at after Init.
const DefaultBranch = "main"

// Repository is the façade over one .covdata directory: the object backend,
// the reference store, and the repository config.
type Repository struct {
	worktree  string
	commondir string
	cfg       *modcfg.Config
	objects   *store.Backend
	refs      *ref.Store
	log       *slog.Logger
}

// Init creates a fresh repository at <worktree>/.covdata: the objects/ and
// refs/ trees, a symbolic HEAD pointing at refs/heads/main, and a config
// recording core.gitdir. It fails with errc.Exists if the directory has
// already been initialised.
func Init(worktree, gitDir string) (*Repository, error) {
	const op = "cov.Init"
	commondir := filepath.Join(worktree, DotDirName)

	if _, err := os.Stat(filepath.Join(commondir, "config")); err == nil {
		return nil, errc.New(op, errc.Exists, fmt.Errorf("cov: %s is already initialised", commondir))
	}

	for _, dir := range []string{
		commondir,
		filepath.Join(commondir, "objects"),
		filepath.Join(commondir, "refs", "heads"),
		filepath.Join(commondir, "refs", "tags"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errc.New(op, errc.BadSyntax, err)
		}
	}

	refs := ref.Open(commondir)
	if err := refs.Init(DefaultBranch); err != nil {
		return nil, err
	}

	cfg := modcfg.New()
	cfg.SetValue([]string{"core"}, "", "gitdir", gitDir)
	if err := os.WriteFile(filepath.Join(commondir, "config"), cfg.Serialize(), 0o644); err != nil {
		return nil, errc.New(op, errc.BadSyntax, err)
	}

	return openCommonDir(worktree, commondir)
}

// Open opens the repository containing path: path may be the worktree root
// or any subdirectory of it.
func Open(path string) (*Repository, error) {
	commondir, worktree, err := Discover(path)
	if err != nil {
		return nil, err
	}
	return openCommonDir(worktree, commondir)
}

// Discover walks upward from path looking for a .covdata directory,
// returning the commondir and the worktree that holds it.
func Discover(path string) (commondir, worktree string, err error) {
	const op = "cov.Discover"
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", errc.New(op, errc.NotAWorktree, err)
	}
	for dir := abs; ; {
		candidate := filepath.Join(dir, DotDirName)
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return candidate, dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", errc.New(op, errc.NotAWorktree, fmt.Errorf("cov: no %s directory above %s", DotDirName, abs))
		}
		dir = parent
	}
}

func openCommonDir(worktree, commondir string) (*Repository, error) {
	const op = "cov.Open"
	if _, err := os.Stat(filepath.Join(commondir, "config")); err != nil {
		if os.IsNotExist(err) {
			return nil, errc.New(op, errc.UninitializedWorktree, fmt.Errorf("cov: %s has no config", commondir))
		}
		return nil, errc.New(op, errc.BadSyntax, err)
	}
	cfg, err := modcfg.LoadFile(filepath.Join(commondir, "config"))
	if err != nil {
		return nil, err
	}
	if wt, ok := cfg.Value([]string{"core"}, "", "worktree"); ok {
		if !filepath.IsAbs(wt) {
			wt = filepath.Join(commondir, wt)
		}
		worktree = filepath.Clean(wt)
	}
	return &Repository{
		worktree:  worktree,
		commondir: commondir,
		cfg:       cfg,
		objects:   store.Open(filepath.Join(commondir, "objects")),
		refs:      ref.Open(commondir),
		log:       slog.Default(),
	}, nil
}

// WithLogger returns a copy of r whose backend and reference store log
// through logger. Library code only emits Debug/Warn records.
func (r *Repository) WithLogger(logger *slog.Logger) *Repository {
	cp := *r
	cp.log = logger
	cp.objects = r.objects.WithLogger(logger)
	cp.refs = r.refs.WithLogger(logger)
	return &cp
}

// Worktree returns the worktree root this repository was opened from.
func (r *Repository) Worktree() string { return r.worktree }

// CommonDir returns the .covdata directory.
func (r *Repository) CommonDir() string { return r.commondir }

// Config returns the parsed repository config.
func (r *Repository) Config() *modcfg.Config { return r.cfg }

// GitDir returns the configured source-control repository path
// (core.gitdir), resolved relative to the commondir when not absolute.
func (r *Repository) GitDir() (string, error) {
	v, ok := r.cfg.Value([]string{"core"}, "", "gitdir")
	if !ok {
		return "", errc.New("cov.GitDir", errc.UninitializedWorktree, fmt.Errorf("cov: config has no core.gitdir"))
	}
	if !filepath.IsAbs(v) {
		v = filepath.Join(r.commondir, v)
	}
	return filepath.Clean(v), nil
}

// Objects returns the loose object backend.
func (r *Repository) Objects() *store.Backend { return r.objects }

// Refs returns the reference store.
func (r *Repository) Refs() *ref.Store { return r.refs }

// Write persists obj and returns its content-addressed oid.
func (r *Repository) Write(obj object.Codable) (oid.OID, error) {
	return r.objects.Write(obj)
}

// Lookup loads the object named by id.
func (r *Repository) Lookup(id oid.OID) (object.Codable, error) {
	return r.objects.Lookup(id)
}

// LookupPrefix resolves a hex prefix of at least 4 characters and loads the
// unique object it names.
func (r *Repository) LookupPrefix(prefix string) (object.Codable, oid.OID, error) {
	return r.objects.LookupPrefix(prefix)
}

// LookupReport loads id and asserts it names a report.
func (r *Repository) LookupReport(id oid.OID) (object.Report, error) {
	obj, err := r.objects.Lookup(id)
	if err != nil {
		return object.Report{}, err
	}
	return object.AsReport(obj)
}

// LookupBuild loads id and asserts it names a build.
func (r *Repository) LookupBuild(id oid.OID) (object.Build, error) {
	obj, err := r.objects.Lookup(id)
	if err != nil {
		return object.Build{}, err
	}
	return object.AsBuild(obj)
}

// LookupFiles loads id and asserts it names a files list.
func (r *Repository) LookupFiles(id oid.OID) (object.Files, error) {
	obj, err := r.objects.Lookup(id)
	if err != nil {
		return object.Files{}, err
	}
	return object.AsFiles(obj)
}

// LookupLineCoverage loads id and asserts it names a line-coverage object.
func (r *Repository) LookupLineCoverage(id oid.OID) (object.LineCoverage, error) {
	obj, err := r.objects.Lookup(id)
	if err != nil {
		return object.LineCoverage{}, err
	}
	return object.AsLineCoverage(obj)
}

// LookupFunctionCoverage loads id and asserts it names a function-coverage
// object.
func (r *Repository) LookupFunctionCoverage(id oid.OID) (object.FunctionCoverage, error) {
	obj, err := r.objects.Lookup(id)
	if err != nil {
		return object.FunctionCoverage{}, err
	}
	return object.AsFunctionCoverage(obj)
}

// Head returns the HEAD reference as stored, without peeling.
func (r *Repository) Head() (ref.Ref, error) {
	return r.refs.Lookup(ref.HeadName)
}

// ResolveHead peels HEAD to the current report oid, returning
// errc.UnbornBranch when the branch has no tip yet.
func (r *Repository) ResolveHead() (oid.OID, error) {
	return r.refs.ResolveHead()
}

// CurrentBranch returns the shorthand of the branch HEAD points at, or
// errc.NotABranch when HEAD is detached.
func (r *Repository) CurrentBranch() (string, error) {
	const op = "cov.CurrentBranch"
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if !head.Symbolic || !ref.IsBranch(head.Target) {
		return "", errc.New(op, errc.NotABranch, fmt.Errorf("cov: HEAD is detached"))
	}
	return ref.ShortBranchName(head.Target), nil
}

// UpdateCurrentBranch advances whatever HEAD points at to newTip via
// compare-and-swap against the state HEAD and its branch held when this
// call read them. Losing a concurrent race returns modified=false with no
// side effect; the caller re-reads and decides whether to retry.
func (r *Repository) UpdateCurrentBranch(newTip oid.OID) (modified bool, err error) {
	head, err := r.Head()
	if err != nil {
		return false, err
	}
	modified, err = r.refs.UpdateCurrentBranch(head, newTip)
	if err == nil && !modified {
		r.log.Debug("cov: current-branch update lost CAS race", "op", "cov.UpdateCurrentBranch", "oid", newTip.String())
	}
	return modified, err
}

// graph adapts the repository to revparse.Graph.
type graph struct{ r *Repository }

func (g graph) Dwim(shorthand string) (ref.Ref, error) { return g.r.refs.Dwim(shorthand) }
func (g graph) Peel(rf ref.Ref) (ref.Ref, error)       { return g.r.refs.Peel(rf) }
func (g graph) ResolvePrefix(prefix string) (oid.OID, error) {
	return g.r.objects.ResolvePrefix(prefix)
}
func (g graph) ReportParent(id oid.OID) (oid.OID, error) {
	rep, err := g.r.LookupReport(id)
	if err != nil {
		return oid.OID{}, err
	}
	return rep.Parent, nil
}

// Revparse resolves a revision expression, which may be a single revision
// ("HEAD~2", "main^", a hex prefix) or a range ("main..topic").
func (r *Repository) Revparse(spec string) (revparse.Result, error) {
	return revparse.Parse(graph{r}, spec)
}

// RevparseSingle resolves a revision expression that must name a single
// object.
func (r *Repository) RevparseSingle(spec string) (oid.OID, error) {
	return revparse.ParseSingle(graph{r}, spec)
}

// ModulesPath returns the path of the repository's module overlay file.
func (r *Repository) ModulesPath() string { return filepath.Join(r.commondir, "modules") }

// Modules loads the repository's module overlay. A missing file yields an
// empty overlay.
func (r *Repository) Modules() (*modcfg.Overlay, error) {
	return modcfg.LoadOverlayFile(r.ModulesPath())
}

// ModulesFromConfig loads a module overlay from an explicit config path.
func (r *Repository) ModulesFromConfig(path string) (*modcfg.Overlay, error) {
	return modcfg.LoadOverlayFile(path)
}

// DumpModules rewrites the repository's module overlay file under its
// transactional .lock sibling.
func (r *Repository) DumpModules(ov *modcfg.Overlay) error {
	return modcfg.Dump(r.ModulesPath(), ov)
}

// snapshots converts a stored file list into projection inputs. A zero
// filesID (an unborn side of the diff) yields nil.
func (r *Repository) snapshots(filesID oid.OID) ([]projection.FileSnapshot, error) {
	if filesID.IsZero() {
		return nil, nil
	}
	fl, err := r.LookupFiles(filesID)
	if err != nil {
		return nil, err
	}
	out := make([]projection.FileSnapshot, len(fl.Entries))
	for i, e := range fl.Entries {
		out[i] = projection.FileSnapshot{Path: e.Path, Stats: e.Stats, Contents: e.Contents}
	}
	return out, nil
}

// Project aggregates rep's file list, diffed against its parent report's
// list, into the rated projection tree. overlay may
// be nil when filter carries no module restriction.
func (r *Repository) Project(rep object.Report, overlay *modcfg.Overlay, filter projection.Filter) (projection.Tree, error) {
	current, err := r.snapshots(rep.FileList)
	if err != nil {
		return projection.Tree{}, err
	}
	var previous []projection.FileSnapshot
	if !rep.Parent.IsZero() {
		parent, err := r.LookupReport(rep.Parent)
		if err != nil {
			return projection.Tree{}, err
		}
		if previous, err = r.snapshots(parent.FileList); err != nil {
			return projection.Tree{}, err
		}
	}
	return projection.Project(current, previous, overlay, filter), nil
}
