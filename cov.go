// Package cov implements a code-coverage repository: a content-addressed
// object store layered on top of an existing source-control repository,
// recording per-build coverage snapshots as report/build/files objects,
// organising them with named references (branches, tags, HEAD), and
// aggregating them into rated projections.
//
// The subpackages carry the machinery (oid, object, store, ref, revparse,
// modcfg, projection); this package ties them together behind a Repository
// handle and re-exports the types callers touch most, so most users only
// import cov itself.
package cov

import (
	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/modcfg"
	"github.com/covdata/cov/object"
	"github.com/covdata/cov/oid"
	"github.com/covdata/cov/projection"
	"github.com/covdata/cov/ref"
	"github.com/covdata/cov/revparse"
)

// --- Identifiers ---

type OID = oid.OID

// ZeroOID is the sentinel meaning "none": an unborn branch tip, an absent
// parent, or a missing optional coverage object.
var ZeroOID = oid.Zero

// ParseOID decodes a 40-character lowercase hex string.
func ParseOID(s string) (OID, error) { return oid.Parse(s) }

// --- Object kinds ---

type (
	Report           = object.Report
	Build            = object.Build
	Files            = object.Files
	FileEntry        = object.FileEntry
	LineCoverage     = object.LineCoverage
	LineRecord       = object.LineRecord
	FunctionCoverage = object.FunctionCoverage
	FunctionRecord   = object.FunctionRecord

	CoverageStats = object.CoverageStats
	Stats         = object.Stats
	Fraction      = object.Fraction
	Marks         = object.Marks
	Rating        = object.Rating
)

const (
	Failing    = object.Failing
	Incomplete = object.Incomplete
	Passing    = object.Passing
)

// --- References ---

type Ref = ref.Ref

// HeadName is the distinguished reference name.
const HeadName = ref.HeadName

// --- Revisions ---

type RevparseResult = revparse.Result

// --- Modules & projection ---

type (
	Overlay = modcfg.Overlay
	Module  = modcfg.Module

	Filter         = projection.Filter
	ProjectionTree = projection.Tree
	ProjectionRow  = projection.Row
)

// --- Errors ---

// Kind re-exports the error taxonomy so callers can branch on failures with
// cov.IsKind(err, cov.NotFound) without importing errc directly.
type Kind = errc.Kind

const (
	BadSyntax             = errc.BadSyntax
	UnknownMagic          = errc.UnknownMagic
	UnsupportedVersion    = errc.UnsupportedVersion
	NotFound              = errc.NotFound
	Ambiguous             = errc.Ambiguous
	Exists                = errc.Exists
	Modified              = errc.Modified
	InvalidSpec           = errc.InvalidSpec
	UnbornBranch          = errc.UnbornBranch
	CurrentBranch         = errc.CurrentBranch
	WrongObjectType       = errc.WrongObjectType
	NotABranch            = errc.NotABranch
	NotAWorktree          = errc.NotAWorktree
	UninitializedWorktree = errc.UninitializedWorktree
)

// IsKind reports whether err (or anything it wraps) carries kind k.
func IsKind(err error, k Kind) bool { return k.Is(err) }
