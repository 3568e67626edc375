package object

import (
	"fmt"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/internal/objio"
)

// FunctionRecord is one function's coverage record.
type FunctionRecord struct {
	Name          string
	DemangledName string
	Count         uint32
	StartLine     uint32
	StartCol      uint32
	EndLine       uint32
	EndCol        uint32
}

// FunctionCoverage is an array of function records.
type FunctionCoverage struct {
	Entries []FunctionRecord
}

func (FunctionCoverage) Kind() Kind { return KindFunctionCoverage }

// functionCoverageRecordWords: strings block(2) + entries ref(3) = 5 words.
const functionCoverageRecordWords = 2 + 3

// functionEntryWords: name(1) + demangled_name(1) + count(1) + start_line(1)
// + start_col(1) + end_line(1) + end_col(1) = 7 words.
const functionEntryWords = 7

func (fc FunctionCoverage) Encode() ([]byte, error) {
	sb := objio.NewStringsBuilder()
	for _, e := range fc.Entries {
		sb.Insert(e.Name)
		sb.Insert(e.DemangledName)
	}
	block, lookup := sb.Build()

	headerBytes := int64(objio.HeaderSize)
	recordBytes := int64(functionCoverageRecordWords) * 4
	entriesBytes := int64(len(fc.Entries)) * int64(functionEntryWords) * 4

	entriesWordOff := uint32((headerBytes + recordBytes) / 4)
	stringsWordOff := uint32((headerBytes + recordBytes + entriesBytes) / 4)

	wb := &wordBuf{}
	wb.block(objio.Block{WordOffset: stringsWordOff, WordSize: uint32(len(block) / 4)})
	wb.entriesRef(objio.EntriesRef{WordOffset: entriesWordOff, Count: uint32(len(fc.Entries)), EntrySize: uint32(functionEntryWords)})
	if int64(len(wb.b)) != recordBytes {
		return nil, fmt.Errorf("object: internal: function_coverage record is %d bytes, want %d", len(wb.b), recordBytes)
	}

	eb := &wordBuf{}
	for _, e := range fc.Entries {
		nameOff, _ := lookup(e.Name)
		demangledOff, _ := lookup(e.DemangledName)
		eb.strOff(nameOff)
		eb.strOff(demangledOff)
		eb.u32(e.Count)
		eb.u32(e.StartLine)
		eb.u32(e.StartCol)
		eb.u32(e.EndLine)
		eb.u32(e.EndCol)
	}

	h := objio.Header{Magic: objio.MagicFunctionCoverage, Version: currentVersion()}
	enc := h.Encode()
	out := make([]byte, 0, headerBytes+recordBytes+entriesBytes+int64(len(block)))
	out = append(out, enc[:]...)
	out = append(out, wb.b...)
	out = append(out, eb.b...)
	out = append(out, block...)
	return out, nil
}

// DecodeFunctionCoverage parses a serialised function_coverage object.
func DecodeFunctionCoverage(raw []byte) (FunctionCoverage, error) {
	const op = "object.DecodeFunctionCoverage"
	h, err := objio.DecodeHeader(raw)
	if err != nil {
		return FunctionCoverage{}, errc.New(op, errc.BadSyntax, err)
	}
	if err := checkHeader(h, objio.MagicFunctionCoverage, op); err != nil {
		return FunctionCoverage{}, err
	}

	rr := newWordReader(raw[objio.HeaderSize:])
	stringsBlock := rr.block()
	entriesRef := rr.entriesRef()
	if rr.err != nil {
		return FunctionCoverage{}, errc.New(op, errc.BadSyntax, rr.err)
	}
	if entriesRef.EntrySize != uint32(functionEntryWords) {
		return FunctionCoverage{}, errc.New(op, errc.BadSyntax, fmt.Errorf("object: function_coverage entry_size %d words, want %d", entriesRef.EntrySize, functionEntryWords))
	}

	stringsBytes, err := sliceAt(raw, stringsBlock.ByteOffset(), stringsBlock.ByteSize())
	if err != nil {
		return FunctionCoverage{}, errc.New(op, errc.BadSyntax, err)
	}
	view := objio.NewStringsView(stringsBytes)

	entryBytes, err := sliceAt(raw, entriesRef.ByteOffset(), int64(entriesRef.Count)*entriesRef.ByteEntrySize())
	if err != nil {
		return FunctionCoverage{}, errc.New(op, errc.BadSyntax, err)
	}

	out := FunctionCoverage{Entries: make([]FunctionRecord, entriesRef.Count)}
	stride := int(entriesRef.ByteEntrySize())
	for i := range out.Entries {
		er := newWordReader(entryBytes[i*stride : (i+1)*stride])
		nameOff := er.strOff()
		demangledOff := er.strOff()
		var rec FunctionRecord
		rec.Count = er.u32()
		rec.StartLine = er.u32()
		rec.StartCol = er.u32()
		rec.EndLine = er.u32()
		rec.EndCol = er.u32()
		if er.err != nil {
			return FunctionCoverage{}, errc.New(op, errc.BadSyntax, er.err)
		}
		name, err := lookupString(view, nameOff, "name")
		if err != nil {
			return FunctionCoverage{}, errc.New(op, errc.BadSyntax, err)
		}
		demangled, err := lookupString(view, demangledOff, "demangled_name")
		if err != nil {
			return FunctionCoverage{}, errc.New(op, errc.BadSyntax, err)
		}
		rec.Name = name
		rec.DemangledName = demangled
		out.Entries[i] = rec
	}

	return out, nil
}
