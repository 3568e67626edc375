package object

import (
	"fmt"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/internal/objio"
	"github.com/covdata/cov/oid"
)

// Report is one coverage snapshot tied to a source-control commit.
// Parent is the zero oid for the first report on a branch. Builds, if
// non-empty, names the build objects this report is the union of.
type Report struct {
	Parent   oid.OID
	FileList oid.OID
	Commit   oid.OID

	Added      uint64
	CommitTime uint64

	Branch         string
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
	Message        string

	Stats Stats

	Builds []oid.OID
}

func (Report) Kind() Kind { return KindReport }

// reportRecordWords is the word width of the report fixed record: 3 oids
// (5 words each) + added (2) + 3 coverage_stats (3 words each) +
// commit_time (2) + 6 str_offs (1 word each) + strings block (2) + builds
// entries ref (3) = 39 words.
const reportRecordWords = 3*5 + 2 + 3*3 + 2 + 6 + 2 + 3

func (r Report) Encode() ([]byte, error) {
	sb := objio.NewStringsBuilder()
	for _, s := range []string{r.Branch, r.AuthorName, r.AuthorEmail, r.CommitterName, r.CommitterEmail, r.Message} {
		sb.Insert(s)
	}
	block, lookup := sb.Build()

	mustOff := func(s string) objio.StrOff {
		off, _ := lookup(s)
		return off
	}

	headerBytes := int64(objio.HeaderSize)
	recordBytes := int64(reportRecordWords) * 4
	entriesBytes := int64(len(r.Builds)) * int64(oid.Size)

	entriesWordOff := uint32((headerBytes + recordBytes) / 4)
	stringsWordOff := uint32((headerBytes + recordBytes + entriesBytes) / 4)

	wb := &wordBuf{}
	wb.oid(r.Parent)
	wb.oid(r.FileList)
	wb.oid(r.Commit)
	wb.u64(r.Added)
	wb.stats(r.Stats[DimLines])
	wb.stats(r.Stats[DimFunctions])
	wb.stats(r.Stats[DimBranches])
	wb.u64(r.CommitTime)
	wb.strOff(mustOff(r.Branch))
	wb.strOff(mustOff(r.AuthorName))
	wb.strOff(mustOff(r.AuthorEmail))
	wb.strOff(mustOff(r.CommitterName))
	wb.strOff(mustOff(r.CommitterEmail))
	wb.strOff(mustOff(r.Message))
	wb.block(objio.Block{WordOffset: stringsWordOff, WordSize: uint32(len(block) / 4)})
	wb.entriesRef(objio.EntriesRef{WordOffset: entriesWordOff, Count: uint32(len(r.Builds)), EntrySize: oid.Size / 4})

	if int64(len(wb.b)) != recordBytes {
		return nil, fmt.Errorf("object: internal: report record is %d bytes, want %d", len(wb.b), recordBytes)
	}

	h := objio.Header{Magic: objio.MagicReport, Version: currentVersion()}
	enc := h.Encode()

	out := make([]byte, 0, headerBytes+recordBytes+entriesBytes+int64(len(block)))
	out = append(out, enc[:]...)
	out = append(out, wb.b...)
	for _, b := range r.Builds {
		out = append(out, b[:]...)
	}
	out = append(out, block...)
	return out, nil
}

// DecodeReport parses a serialised report object.
func DecodeReport(raw []byte) (Report, error) {
	const op = "object.DecodeReport"
	h, err := objio.DecodeHeader(raw)
	if err != nil {
		return Report{}, errc.New(op, errc.BadSyntax, err)
	}
	if err := checkHeader(h, objio.MagicReport, op); err != nil {
		return Report{}, err
	}

	rr := newWordReader(raw[objio.HeaderSize:])
	var rep Report
	rep.Parent = rr.oid()
	rep.FileList = rr.oid()
	rep.Commit = rr.oid()
	rep.Added = rr.u64()
	rep.Stats[DimLines] = rr.stats()
	rep.Stats[DimFunctions] = rr.stats()
	rep.Stats[DimBranches] = rr.stats()
	rep.CommitTime = rr.u64()
	branchOff := rr.strOff()
	authorNameOff := rr.strOff()
	authorEmailOff := rr.strOff()
	committerNameOff := rr.strOff()
	committerEmailOff := rr.strOff()
	messageOff := rr.strOff()
	stringsBlock := rr.block()
	buildsRef := rr.entriesRef()
	if rr.err != nil {
		return Report{}, errc.New(op, errc.BadSyntax, rr.err)
	}

	stringsBytes, err := sliceAt(raw, stringsBlock.ByteOffset(), stringsBlock.ByteSize())
	if err != nil {
		return Report{}, errc.New(op, errc.BadSyntax, err)
	}
	view := objio.NewStringsView(stringsBytes)

	for _, f := range []struct {
		name string
		off  objio.StrOff
		dst  *string
	}{
		{"branch", branchOff, &rep.Branch},
		{"author_name", authorNameOff, &rep.AuthorName},
		{"author_email", authorEmailOff, &rep.AuthorEmail},
		{"committer_name", committerNameOff, &rep.CommitterName},
		{"committer_email", committerEmailOff, &rep.CommitterEmail},
		{"message", messageOff, &rep.Message},
	} {
		s, err := lookupString(view, f.off, f.name)
		if err != nil {
			return Report{}, errc.New(op, errc.BadSyntax, err)
		}
		*f.dst = s
	}

	if buildsRef.EntrySize != oid.Size/4 {
		return Report{}, errc.New(op, errc.BadSyntax, fmt.Errorf("object: report builds entry_size %d words, want %d", buildsRef.EntrySize, oid.Size/4))
	}
	entryBytes, err := sliceAt(raw, buildsRef.ByteOffset(), int64(buildsRef.Count)*buildsRef.ByteEntrySize())
	if err != nil {
		return Report{}, errc.New(op, errc.BadSyntax, err)
	}
	if buildsRef.Count > 0 {
		rep.Builds = make([]oid.OID, buildsRef.Count)
		for i := range rep.Builds {
			copy(rep.Builds[i][:], entryBytes[i*oid.Size:(i+1)*oid.Size])
		}
	}

	return rep, nil
}
