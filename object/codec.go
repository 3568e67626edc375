package object

import (
	"encoding/binary"
	"fmt"

	"github.com/covdata/cov/internal/objio"
	"github.com/covdata/cov/oid"
)

// wordBuf is a growable little-endian word buffer used to build the fixed
// record of each object kind before the string table and entry array are
// appended.
type wordBuf struct {
	b []byte
}

func (w *wordBuf) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.b = append(w.b, b[:]...)
}

func (w *wordBuf) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.b = append(w.b, b[:]...)
}

func (w *wordBuf) oid(id oid.OID) {
	w.b = append(w.b, id[:]...)
}

func (w *wordBuf) strOff(off objio.StrOff) { w.u32(uint32(off)) }

func (w *wordBuf) stats(s CoverageStats) {
	w.u32(s.Total)
	w.u32(s.Relevant)
	w.u32(s.Covered)
}

func (w *wordBuf) block(b objio.Block) {
	w.u32(b.WordOffset)
	w.u32(b.WordSize)
}

func (w *wordBuf) entriesRef(e objio.EntriesRef) {
	w.u32(e.WordOffset)
	w.u32(e.Count)
	w.u32(e.EntrySize)
}

// wordReader reads back the same sequence wordBuf writes, against a byte
// slice that begins at the start of the fixed record.
type wordReader struct {
	b   []byte
	off int
	err error
}

func newWordReader(b []byte) *wordReader { return &wordReader{b: b} }

func (r *wordReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.b) {
		r.err = fmt.Errorf("object: truncated record: need %d bytes at offset %d, have %d", n, r.off, len(r.b))
		return false
	}
	return true
}

func (r *wordReader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *wordReader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v
}

func (r *wordReader) oid() oid.OID {
	var id oid.OID
	if !r.need(oid.Size) {
		return id
	}
	copy(id[:], r.b[r.off:r.off+oid.Size])
	r.off += oid.Size
	return id
}

func (r *wordReader) strOff() objio.StrOff { return objio.StrOff(r.u32()) }

func (r *wordReader) stats() CoverageStats {
	return CoverageStats{Total: r.u32(), Relevant: r.u32(), Covered: r.u32()}
}

func (r *wordReader) block() objio.Block {
	off := r.u32()
	size := r.u32()
	return objio.Block{WordOffset: off, WordSize: size}
}

func (r *wordReader) entriesRef() objio.EntriesRef {
	off := r.u32()
	count := r.u32()
	esize := r.u32()
	return objio.EntriesRef{WordOffset: off, Count: count, EntrySize: esize}
}

// lookupString resolves a recorded StrOff against the object's string view,
// propagating a descriptive bad_syntax-worthy error on failure. A zero
// offset into a table that doesn't contain "" only happens for genuinely
// absent optional fields, which callers check before calling this.
func lookupString(view objio.StringsView, off objio.StrOff, field string) (string, error) {
	s, err := view.At(off)
	if err != nil {
		return "", fmt.Errorf("object: field %s: %w", field, err)
	}
	return s, nil
}

// sliceAt returns the byte range [byteOff, byteOff+n) of whole, bounds
// checked.
func sliceAt(whole []byte, byteOff int64, n int64) ([]byte, error) {
	if byteOff < 0 || n < 0 || byteOff+n > int64(len(whole)) {
		return nil, fmt.Errorf("object: range [%d,%d) out of bounds (len %d)", byteOff, byteOff+n, len(whole))
	}
	return whole[byteOff : byteOff+n], nil
}
