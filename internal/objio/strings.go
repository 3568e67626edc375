package objio

import (
	"fmt"
	"sort"
)

// StrOff is a byte offset into an object's string table. Offset 0 is
// always the empty string when the table is non-empty.
type StrOff uint32

// StringsBuilder accumulates the distinct strings referenced by an object
// being serialised, then emits them as one deduplicated, lexicographically
// sorted, NUL-terminated, 32-bit-aligned block. It is the write-side
// counterpart of StringsView; the write path needs mutable accumulation
// the read path never does.
type StringsBuilder struct {
	set map[string]struct{}
}

// NewStringsBuilder returns an empty builder.
func NewStringsBuilder() *StringsBuilder {
	return &StringsBuilder{set: make(map[string]struct{})}
}

// Insert records s for inclusion in the built table. Duplicate inserts are
// no-ops; the empty string is always implicitly present.
func (b *StringsBuilder) Insert(s string) {
	b.set[s] = struct{}{}
}

// Build lays out the accumulated strings and returns the packed block plus
// a lookup function from string to its StrOff within that block. The empty
// string is always assigned offset 0.
func (b *StringsBuilder) Build() ([]byte, func(string) (StrOff, bool)) {
	strs := make([]string, 0, len(b.set)+1)
	strs = append(strs, "")
	for s := range b.set {
		if s != "" {
			strs = append(strs, s)
		}
	}
	sort.Strings(strs[1:])

	offsets := make(map[string]StrOff, len(strs))
	var block []byte
	for _, s := range strs {
		if _, ok := offsets[s]; ok {
			continue
		}
		offsets[s] = StrOff(len(block))
		block = append(block, s...)
		block = append(block, 0)
	}
	for len(block)%4 != 0 {
		block = append(block, 0)
	}

	lookup := func(s string) (StrOff, bool) {
		off, ok := offsets[s]
		return off, ok
	}
	return block, lookup
}

// StringsView is the read side of a string table: an immutable byte block
// plus offset validation, as loaded from a serialised object.
type StringsView struct {
	block []byte
}

// NewStringsView wraps a raw string-table block for lookup. It does not
// copy block.
func NewStringsView(block []byte) StringsView {
	return StringsView{block: block}
}

// Len returns the size of the underlying block in bytes.
func (v StringsView) Len() int { return len(v.block) }

// Valid reports whether off is 0 or immediately follows a NUL byte — the
// invariant required of every recorded offset.
func (v StringsView) Valid(off StrOff) bool {
	o := int(off)
	if o < 0 || o >= len(v.block) {
		return o == 0 && len(v.block) == 0
	}
	return o == 0 || v.block[o-1] == 0
}

// At returns the NUL-terminated string starting at off. It fails if off
// does not point at byte 0 or immediately after a NUL, or if no NUL
// terminator exists before the end of the block.
func (v StringsView) At(off StrOff) (string, error) {
	o := int(off)
	if len(v.block) == 0 && o == 0 {
		return "", nil
	}
	if o < 0 || o > len(v.block) {
		return "", fmt.Errorf("objio: string offset %d out of range [0,%d]", o, len(v.block))
	}
	if o != 0 && (o == 0 || v.block[o-1] != 0) {
		return "", fmt.Errorf("objio: string offset %d does not start a string", o)
	}
	end := o
	for end < len(v.block) && v.block[end] != 0 {
		end++
	}
	if end == len(v.block) {
		return "", fmt.Errorf("objio: string at offset %d is not NUL-terminated", o)
	}
	return string(v.block[o:end]), nil
}

// All iterates every string in the table in storage order, starting with
// the empty string at offset 0 when the table is non-empty.
func (v StringsView) All() ([]string, error) {
	var out []string
	i := 0
	for i < len(v.block) {
		end := i
		for end < len(v.block) && v.block[end] != 0 {
			end++
		}
		if end == len(v.block) {
			return nil, fmt.Errorf("objio: trailing string at offset %d is not NUL-terminated", i)
		}
		out = append(out, string(v.block[i:end]))
		i = end + 1
	}
	return out, nil
}
