// Package objio implements the binary primitives shared by every object
// kind in the coverage object database: the common header, the string
// table, and the safe compressed/hashed file writer. It has no notion of
// "report" or "files" — those live in package object. Packages object and
// store are its only callers.
package objio

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies an object kind in its on-disk header.
type Magic uint32

// The five registered object kinds, encoded as their 4-byte ASCII tag
// read little-endian: "rprt", "bld ", "list", "lnes", "fnct".
const (
	MagicReport           Magic = Magic('r') | Magic('p')<<8 | Magic('r')<<16 | Magic('t')<<24
	MagicBuild            Magic = Magic('b') | Magic('l')<<8 | Magic('d')<<16 | Magic(' ')<<24
	MagicFiles            Magic = Magic('l') | Magic('i')<<8 | Magic('s')<<16 | Magic('t')<<24
	MagicLineCoverage     Magic = Magic('l') | Magic('n')<<8 | Magic('e')<<16 | Magic('s')<<24
	MagicFunctionCoverage Magic = Magic('f') | Magic('n')<<8 | Magic('c')<<16 | Magic('t')<<24
)

func (m Magic) String() string {
	b := []byte{byte(m), byte(m >> 8), byte(m >> 16), byte(m >> 24)}
	return string(b)
}

// Version packs a major/minor pair the way every object header does: the
// high 16 bits are the major version, the low 16 bits the minor.
type Version uint32

// NewVersion builds a Version from its major/minor parts.
func NewVersion(major, minor uint16) Version {
	return Version(uint32(major)<<16 | uint32(minor))
}

// Major returns the format-breaking version component.
func (v Version) Major() uint16 { return uint16(v >> 16) }

// Minor returns the additive version component.
func (v Version) Minor() uint16 { return uint16(v) }

// HeaderSize is the width, in bytes, of the common header.
const HeaderSize = 8

// Header is the 64-bit prefix common to every object kind.
type Header struct {
	Magic   Magic
	Version Version
}

// Encode writes the header's 8 bytes, little-endian.
func (h Header) Encode() [HeaderSize]byte {
	var b [HeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Magic))
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.Version))
	return b
}

// DecodeHeader reads the common header from the front of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("objio: truncated header: need %d bytes, have %d", HeaderSize, len(b))
	}
	return Header{
		Magic:   Magic(binary.LittleEndian.Uint32(b[0:4])),
		Version: Version(binary.LittleEndian.Uint32(b[4:8])),
	}, nil
}

// Block is a {word offset, word size} pair as used by the "strings" and
// "entries" sub-records; widths are expressed in 32-bit words so format
// changes can add new fixed fields without breaking readers. Offset and
// Size are counted in 4-byte words from the start of the object, not from
// the start of the fixed record.
type Block struct {
	WordOffset uint32
	WordSize   uint32
}

// ByteOffset returns the block's start as a byte offset.
func (b Block) ByteOffset() int64 { return int64(b.WordOffset) * 4 }

// ByteSize returns the block's length in bytes.
func (b Block) ByteSize() int64 { return int64(b.WordSize) * 4 }

// EntriesRef locates a fixed-size entry array: WordOffset is where the first
// entry begins (in words from the start of the object), Count is the number
// of entries, and EntrySize is the width of one entry, in words.
type EntriesRef struct {
	WordOffset uint32
	Count      uint32
	EntrySize  uint32
}

// ByteOffset returns the array's start as a byte offset.
func (e EntriesRef) ByteOffset() int64 { return int64(e.WordOffset) * 4 }

// ByteEntrySize returns the width of one entry, in bytes.
func (e EntriesRef) ByteEntrySize() int64 { return int64(e.EntrySize) * 4 }

// WordsToBytes converts a count of 32-bit words to bytes; used when
// turning record sizes (declared in words) into slice lengths.
func WordsToBytes(words uint32) int64 { return int64(words) * 4 }

// BytesToWords rounds b up to a whole number of 32-bit words and returns the
// word count, matching the string table's pad-to-alignment rule.
func BytesToWords(b int) uint32 {
	return uint32((b + 3) / 4)
}
