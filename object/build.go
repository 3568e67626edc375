package object

import (
	"fmt"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/internal/objio"
	"github.com/covdata/cov/oid"
)

// Build is a single tool's contribution to a report. Props is
// an opaque, normalised-for-hashing JSON properties string.
type Build struct {
	FileList oid.OID
	Added    uint64
	Stats    Stats
	Props    string
}

func (Build) Kind() Kind { return KindBuild }

// buildRecordWords: file_list(5) + added(2) + 3 stats(9) + propset(1) +
// strings block(2) = 19 words.
const buildRecordWords = 5 + 2 + 3*3 + 1 + 2

func (b Build) Encode() ([]byte, error) {
	sb := objio.NewStringsBuilder()
	sb.Insert(b.Props)
	block, lookup := sb.Build()
	propOff, _ := lookup(b.Props)

	headerBytes := int64(objio.HeaderSize)
	recordBytes := int64(buildRecordWords) * 4
	stringsWordOff := uint32((headerBytes + recordBytes) / 4)

	wb := &wordBuf{}
	wb.oid(b.FileList)
	wb.u64(b.Added)
	wb.stats(b.Stats[DimLines])
	wb.stats(b.Stats[DimFunctions])
	wb.stats(b.Stats[DimBranches])
	wb.strOff(propOff)
	wb.block(objio.Block{WordOffset: stringsWordOff, WordSize: uint32(len(block) / 4)})

	if int64(len(wb.b)) != recordBytes {
		return nil, fmt.Errorf("object: internal: build record is %d bytes, want %d", len(wb.b), recordBytes)
	}

	h := objio.Header{Magic: objio.MagicBuild, Version: currentVersion()}
	enc := h.Encode()
	out := make([]byte, 0, headerBytes+recordBytes+int64(len(block)))
	out = append(out, enc[:]...)
	out = append(out, wb.b...)
	out = append(out, block...)
	return out, nil
}

// DecodeBuild parses a serialised build object.
func DecodeBuild(raw []byte) (Build, error) {
	const op = "object.DecodeBuild"
	h, err := objio.DecodeHeader(raw)
	if err != nil {
		return Build{}, errc.New(op, errc.BadSyntax, err)
	}
	if err := checkHeader(h, objio.MagicBuild, op); err != nil {
		return Build{}, err
	}

	rr := newWordReader(raw[objio.HeaderSize:])
	var b Build
	b.FileList = rr.oid()
	b.Added = rr.u64()
	b.Stats[DimLines] = rr.stats()
	b.Stats[DimFunctions] = rr.stats()
	b.Stats[DimBranches] = rr.stats()
	propOff := rr.strOff()
	stringsBlock := rr.block()
	if rr.err != nil {
		return Build{}, errc.New(op, errc.BadSyntax, rr.err)
	}

	stringsBytes, err := sliceAt(raw, stringsBlock.ByteOffset(), stringsBlock.ByteSize())
	if err != nil {
		return Build{}, errc.New(op, errc.BadSyntax, err)
	}
	view := objio.NewStringsView(stringsBytes)
	props, err := lookupString(view, propOff, "propset")
	if err != nil {
		return Build{}, errc.New(op, errc.BadSyntax, err)
	}
	b.Props = props

	return b, nil
}
