package object

import (
	"fmt"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/internal/objio"
	"github.com/covdata/cov/oid"
)

const (
	flagIsDirty    uint32 = 1 << 0
	flagIsModified uint32 = 1 << 1
)

// FileEntry is one per-file record inside a Files object.
// FunctionCoverage and BranchCoverage are oid.Zero when absent.
type FileEntry struct {
	Path       string
	IsDirty    bool
	IsModified bool
	Stats      Stats

	Contents         oid.OID
	LineCoverage     oid.OID
	FunctionCoverage oid.OID
	BranchCoverage   oid.OID
}

// Files is an ordered array of per-file records. Entries must
// be sorted by Path with no duplicates.
type Files struct {
	Entries []FileEntry
}

func (Files) Kind() Kind { return KindFiles }

// filesRecordWords: strings block(2) + entries ref(3) = 5 words.
const filesRecordWords = 2 + 3

// fileEntryWords: flags(1) + path(1) + 3 stats(9) + 4 oids(20) = 31 words.
const fileEntryWords = 1 + 1 + 3*3 + 4*5

func validateFilesOrder(entries []FileEntry) error {
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Path >= entries[i].Path {
			return fmt.Errorf("object: files entries not strictly ordered at index %d (%q >= %q)", i, entries[i-1].Path, entries[i].Path)
		}
	}
	return nil
}

func (f Files) Encode() ([]byte, error) {
	if err := validateFilesOrder(f.Entries); err != nil {
		return nil, errc.New("object.Files.Encode", errc.BadSyntax, err)
	}

	sb := objio.NewStringsBuilder()
	for _, e := range f.Entries {
		sb.Insert(e.Path)
	}
	block, lookup := sb.Build()

	headerBytes := int64(objio.HeaderSize)
	recordBytes := int64(filesRecordWords) * 4
	entriesBytes := int64(len(f.Entries)) * int64(fileEntryWords) * 4

	entriesWordOff := uint32((headerBytes + recordBytes) / 4)
	stringsWordOff := uint32((headerBytes + recordBytes + entriesBytes) / 4)

	wb := &wordBuf{}
	wb.block(objio.Block{WordOffset: stringsWordOff, WordSize: uint32(len(block) / 4)})
	wb.entriesRef(objio.EntriesRef{WordOffset: entriesWordOff, Count: uint32(len(f.Entries)), EntrySize: uint32(fileEntryWords)})
	if int64(len(wb.b)) != recordBytes {
		return nil, fmt.Errorf("object: internal: files record is %d bytes, want %d", len(wb.b), recordBytes)
	}

	eb := &wordBuf{}
	for _, e := range f.Entries {
		var flags uint32
		if e.IsDirty {
			flags |= flagIsDirty
		}
		if e.IsModified {
			flags |= flagIsModified
		}
		pathOff, _ := lookup(e.Path)
		eb.u32(flags)
		eb.strOff(pathOff)
		eb.stats(e.Stats[DimLines])
		eb.stats(e.Stats[DimFunctions])
		eb.stats(e.Stats[DimBranches])
		eb.oid(e.Contents)
		eb.oid(e.LineCoverage)
		eb.oid(e.FunctionCoverage)
		eb.oid(e.BranchCoverage)
	}

	h := objio.Header{Magic: objio.MagicFiles, Version: currentVersion()}
	enc := h.Encode()
	out := make([]byte, 0, headerBytes+recordBytes+entriesBytes+int64(len(block)))
	out = append(out, enc[:]...)
	out = append(out, wb.b...)
	out = append(out, eb.b...)
	out = append(out, block...)
	return out, nil
}

// DecodeFiles parses a serialised files object.
func DecodeFiles(raw []byte) (Files, error) {
	const op = "object.DecodeFiles"
	h, err := objio.DecodeHeader(raw)
	if err != nil {
		return Files{}, errc.New(op, errc.BadSyntax, err)
	}
	if err := checkHeader(h, objio.MagicFiles, op); err != nil {
		return Files{}, err
	}

	rr := newWordReader(raw[objio.HeaderSize:])
	stringsBlock := rr.block()
	entriesRef := rr.entriesRef()
	if rr.err != nil {
		return Files{}, errc.New(op, errc.BadSyntax, rr.err)
	}

	if entriesRef.EntrySize != uint32(fileEntryWords) {
		return Files{}, errc.New(op, errc.BadSyntax, fmt.Errorf("object: files entry_size %d words, want %d", entriesRef.EntrySize, fileEntryWords))
	}

	stringsBytes, err := sliceAt(raw, stringsBlock.ByteOffset(), stringsBlock.ByteSize())
	if err != nil {
		return Files{}, errc.New(op, errc.BadSyntax, err)
	}
	view := objio.NewStringsView(stringsBytes)

	entryBytes, err := sliceAt(raw, entriesRef.ByteOffset(), int64(entriesRef.Count)*entriesRef.ByteEntrySize())
	if err != nil {
		return Files{}, errc.New(op, errc.BadSyntax, err)
	}

	out := Files{Entries: make([]FileEntry, entriesRef.Count)}
	entryStride := int(entriesRef.ByteEntrySize())
	for i := range out.Entries {
		er := newWordReader(entryBytes[i*entryStride : (i+1)*entryStride])
		flags := er.u32()
		pathOff := er.strOff()
		var e FileEntry
		e.IsDirty = flags&flagIsDirty != 0
		e.IsModified = flags&flagIsModified != 0
		e.Stats[DimLines] = er.stats()
		e.Stats[DimFunctions] = er.stats()
		e.Stats[DimBranches] = er.stats()
		e.Contents = er.oid()
		e.LineCoverage = er.oid()
		e.FunctionCoverage = er.oid()
		e.BranchCoverage = er.oid()
		if er.err != nil {
			return Files{}, errc.New(op, errc.BadSyntax, er.err)
		}
		path, err := lookupString(view, pathOff, "path")
		if err != nil {
			return Files{}, errc.New(op, errc.BadSyntax, err)
		}
		e.Path = path
		out.Entries[i] = e
	}

	if err := validateFilesOrder(out.Entries); err != nil {
		return Files{}, errc.New(op, errc.BadSyntax, err)
	}

	return out, nil
}
