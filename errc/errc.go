// Package errc implements the single error taxonomy shared by every layer
// of the coverage repository. The failure paths of the object, store, ref,
// revparse and modcfg packages and of the root cov package return an
// *errc.Error (or wrap one), so callers can branch on Kind with errors.Is
// regardless of which package raised it. Package oid and internal/objio
// return plain errors, which those packages wrap.
package errc

import "fmt"

// Kind enumerates the failure conditions the repository distinguishes.
type Kind int

const (
	// BadSyntax: object header/offsets inconsistent, offset out of table,
	// or a version mismatch in the minor field of a supported major.
	BadSyntax Kind = iota
	// UnknownMagic: object magic not registered in the handler table.
	UnknownMagic
	// UnsupportedVersion: major version above what the reader implements.
	UnsupportedVersion
	// NotFound: object, ref, or revision cannot be resolved.
	NotFound
	// Ambiguous: prefix lookup matched more than one object.
	Ambiguous
	// Exists: create-ref without force and target already exists.
	Exists
	// Modified: compare-and-swap saw an unexpected prior value. Returned as
	// a status (the modified=false result of ref CAS writes), not as an error,
	// but it has a Kind so callers that do want to treat it as an error can.
	Modified
	// InvalidSpec: malformed reference name or revision pattern (e.g. "A...B").
	InvalidSpec
	// UnbornBranch: HEAD points to a branch that has no tip yet.
	UnbornBranch
	// CurrentBranch: attempt to delete the branch HEAD currently references.
	CurrentBranch
	// WrongObjectType: loader succeeded but the caller's expected kind
	// mismatched the object actually stored.
	WrongObjectType
	// NotABranch: a reference operation was asked to treat a non-branch ref
	// (e.g. a tag, or HEAD itself) as a branch.
	NotABranch
	// NotAWorktree: the given path is not inside a worktree with a
	// discoverable commondir.
	NotAWorktree
	// UninitializedWorktree: a worktree was found but its commondir has not
	// been initialised.
	UninitializedWorktree
)

func (k Kind) String() string {
	switch k {
	case BadSyntax:
		return "bad_syntax"
	case UnknownMagic:
		return "unknown_magic"
	case UnsupportedVersion:
		return "unsupported_version"
	case NotFound:
		return "notfound"
	case Ambiguous:
		return "ambiguous"
	case Exists:
		return "exists"
	case Modified:
		return "modified"
	case InvalidSpec:
		return "invalidspec"
	case UnbornBranch:
		return "unbornbranch"
	case CurrentBranch:
		return "current_branch"
	case WrongObjectType:
		return "wrong_object_type"
	case NotABranch:
		return "not_a_branch"
	case NotAWorktree:
		return "not_a_worktree"
	case UninitializedWorktree:
		return "uninitialized_worktree"
	default:
		return fmt.Sprintf("errc.Kind(%d)", int(k))
	}
}

// Error is the concrete error type every exported failure path returns. Op
// names the operation that failed (e.g. "store.Lookup", "ref.CreateMatching"),
// Kind is the taxonomy entry, and Err, if non-nil, is the underlying cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, errc.New("", errc.NotFound, nil)) or, more idiomatically,
// use Kind.Is(err) below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error for op/kind, optionally wrapping cause.
func New(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// Is reports whether err (or something it wraps) is an *Error of Kind k.
// It lets call sites write `if errc.NotFound.Is(err) { ... }`.
func (k Kind) Is(err error) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
