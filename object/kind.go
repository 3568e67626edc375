// Package object implements the five binary object kinds of the coverage
// object database: report, build, files, line_coverage,
// and function_coverage. Each kind's Encode/Decode pair produces and
// consumes the exact on-disk byte layout; package objio supplies the
// header, string-table, and safe-writer primitives this package builds on.
package object

import (
	"fmt"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/internal/objio"
)

// Kind discriminates the five registered object kinds.
type Kind int

const (
	KindReport Kind = iota
	KindBuild
	KindFiles
	KindLineCoverage
	KindFunctionCoverage
)

func (k Kind) String() string {
	switch k {
	case KindReport:
		return "report"
	case KindBuild:
		return "build"
	case KindFiles:
		return "files"
	case KindLineCoverage:
		return "line_coverage"
	case KindFunctionCoverage:
		return "function_coverage"
	default:
		return fmt.Sprintf("object.Kind(%d)", int(k))
	}
}

// v1 is the only version currently emitted or understood.
const v1Major, v1Minor = 1, 0

func currentVersion() objio.Version { return objio.NewVersion(v1Major, v1Minor) }

// checkHeader validates a decoded header against the magic/major this
// package's decoder for that kind expects.
func checkHeader(h objio.Header, want objio.Magic, op string) error {
	if h.Magic != want {
		return errc.New(op, errc.UnknownMagic, fmt.Errorf("object: magic %q, want %q", h.Magic, want))
	}
	if h.Version.Major() != v1Major {
		return errc.New(op, errc.UnsupportedVersion, fmt.Errorf("object: major version %d, want %d", h.Version.Major(), v1Major))
	}
	return nil
}

// Codable is implemented by every concrete object kind.
type Codable interface {
	Kind() Kind
	Encode() ([]byte, error)
}
