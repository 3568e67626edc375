package cov

import (
	"fmt"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/modcfg"
	"github.com/covdata/cov/oid"
)

// ModuleFileName is the overlay file looked up inside a source-control
// commit's tree.
const ModuleFileName = ".covmodule"

// Commit is the slice of source-control commit metadata the core
// consumes.
type Commit struct {
	Tree           oid.OID
	Parents        []oid.OID
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
	Message        string
	Time           uint64
}

// TreeEntry is one entry of a source-control tree.
type TreeEntry struct {
	Name  string
	OID   oid.OID
	IsDir bool
}

// SourceControl is the opaque handle for the host
// source-control repository the coverage data is layered over. The core
// only reads through it; it never writes.
type SourceControl interface {
	LookupCommit(id oid.OID) (Commit, error)
	LookupTree(id oid.OID) ([]TreeEntry, error)
	LookupBlob(id oid.OID) ([]byte, error)
	Exists(id oid.OID) bool
	Workdir() (string, bool)
}

// ModulesFromCommit reads the .covmodule overlay recorded in the tree of
// the given source-control commit. A commit without the file yields an
// empty overlay, matching a worktree that never defined modules.
func (r *Repository) ModulesFromCommit(sc SourceControl, commit oid.OID) (*modcfg.Overlay, error) {
	const op = "cov.ModulesFromCommit"
	c, err := sc.LookupCommit(commit)
	if err != nil {
		return nil, errc.New(op, errc.NotFound, err)
	}
	entries, err := sc.LookupTree(c.Tree)
	if err != nil {
		return nil, errc.New(op, errc.NotFound, err)
	}
	for _, e := range entries {
		if e.IsDir || e.Name != ModuleFileName {
			continue
		}
		data, err := sc.LookupBlob(e.OID)
		if err != nil {
			return nil, errc.New(op, errc.NotFound, fmt.Errorf("cov: %s blob: %w", ModuleFileName, err))
		}
		cfg, err := modcfg.Parse(data)
		if err != nil {
			return nil, err
		}
		return modcfg.FromConfig(cfg), nil
	}
	return modcfg.NewOverlay(), nil
}
