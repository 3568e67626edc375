// Package oid implements the 160-bit content identifier used to name every
// object stored in a coverage repository.
package oid

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the length, in bytes, of an OID.
const Size = 20

// HexSize is the length of the textual hex form of an OID.
const HexSize = Size * 2

// OID is a 160-bit SHA-1 digest naming an object in the store.
//
// The zero value is the sentinel meaning "none": an unborn
// branch or an absent optional reference (e.g. Files.FunctionCoverage) is
// represented by the zero OID, never by a separate boolean.
type OID [Size]byte

// Zero is the sentinel OID meaning "none".
var Zero OID

// IsZero reports whether id is the all-zero sentinel.
func (id OID) IsZero() bool {
	return id == Zero
}

// String returns the 40-character lowercase hex form.
func (id OID) String() string {
	return hex.EncodeToString(id[:])
}

// Path returns the on-disk loose-object path form: the first two hex
// characters, a slash, then the remaining 38.
func (id OID) Path() string {
	s := id.String()
	return s[:2] + "/" + s[2:]
}

// Sum computes the OID of b, i.e. sha1(b).
func Sum(b []byte) OID {
	return OID(sha1.Sum(b))
}

// Parse decodes a 40-character lowercase hex string into an OID.
func Parse(s string) (OID, error) {
	var id OID
	if len(s) != HexSize {
		return id, fmt.Errorf("oid: parse %q: want %d hex characters, got %d", s, HexSize, len(s))
	}
	n, err := hex.Decode(id[:], []byte(s))
	if err != nil {
		return OID{}, fmt.Errorf("oid: parse %q: %w", s, err)
	}
	if n != Size {
		return OID{}, fmt.Errorf("oid: parse %q: short decode", s)
	}
	return id, nil
}

// ErrBadPrefix is returned by ParsePrefix when the input is not a valid
// hex prefix (non-hex characters, or shorter than the caller's minimum).
var ErrBadPrefix = errors.New("oid: invalid hex prefix")

// ParsePrefix validates a candidate hex prefix (4–40 characters, as used by
// store.Backend.LookupPrefix/ResolvePrefix's ambiguity-aware lookup) without requiring it to be
// full length. It lowercases nothing: prefixes must already be lowercase,
// matching the canonical String() form.
func ParsePrefix(s string) error {
	if len(s) < 4 || len(s) > HexSize {
		return fmt.Errorf("%w: %q", ErrBadPrefix, s)
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return fmt.Errorf("%w: %q", ErrBadPrefix, s)
		}
	}
	return nil
}
