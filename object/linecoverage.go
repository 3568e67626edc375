package object

import (
	"fmt"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/internal/objio"
)

// isNullBit marks an RLE entry as a skip-run rather than a hit count.
const isNullBit uint32 = 1 << 31

// maxLineValue is the largest value a single RLE entry can carry: the 31
// low bits hold either a hit count or a skip-run length.
const maxLineValue = 1<<31 - 1

// LineRecord is one source line's coverage state: either irrelevant to
// measurement, or relevant with a hit count (possibly zero).
type LineRecord struct {
	Relevant bool
	Count    uint32
}

// LineCoverage is the run-length encoded per-line hit-count sequence:
// Lines[i] describes line i+1.
type LineCoverage struct {
	Lines []LineRecord
}

func (LineCoverage) Kind() Kind { return KindLineCoverage }

// DerivedStats computes the lines-dimension CoverageStats implied by the
// sequence: total is the line count, relevant is
// the count of relevant lines, covered is the count of relevant lines with
// a non-zero hit count.
func (lc LineCoverage) DerivedStats() CoverageStats {
	var s CoverageStats
	s.Total = uint32(len(lc.Lines))
	for _, l := range lc.Lines {
		if !l.Relevant {
			continue
		}
		s.Relevant++
		if l.Count > 0 {
			s.Covered++
		}
	}
	return s
}

func (lc LineCoverage) Encode() ([]byte, error) {
	var words []uint32
	i := 0
	for i < len(lc.Lines) {
		if !lc.Lines[i].Relevant {
			start := i
			for i < len(lc.Lines) && !lc.Lines[i].Relevant {
				i++
			}
			run := i - start
			if run > maxLineValue {
				return nil, errc.New("object.LineCoverage.Encode", errc.BadSyntax, fmt.Errorf("object: irrelevant run of %d lines exceeds %d", run, maxLineValue))
			}
			words = append(words, isNullBit|uint32(run))
			continue
		}
		if lc.Lines[i].Count > maxLineValue {
			return nil, errc.New("object.LineCoverage.Encode", errc.BadSyntax, fmt.Errorf("object: hit count %d exceeds %d", lc.Lines[i].Count, maxLineValue))
		}
		words = append(words, lc.Lines[i].Count)
		i++
	}

	h := objio.Header{Magic: objio.MagicLineCoverage, Version: currentVersion()}
	enc := h.Encode()

	wb := &wordBuf{}
	wb.u32(uint32(len(words)))
	for _, w := range words {
		wb.u32(w)
	}

	out := make([]byte, 0, len(enc)+len(wb.b))
	out = append(out, enc[:]...)
	out = append(out, wb.b...)
	return out, nil
}

// DecodeLineCoverage parses a serialised line_coverage object.
func DecodeLineCoverage(raw []byte) (LineCoverage, error) {
	const op = "object.DecodeLineCoverage"
	h, err := objio.DecodeHeader(raw)
	if err != nil {
		return LineCoverage{}, errc.New(op, errc.BadSyntax, err)
	}
	if err := checkHeader(h, objio.MagicLineCoverage, op); err != nil {
		return LineCoverage{}, err
	}

	rr := newWordReader(raw[objio.HeaderSize:])
	count := rr.u32()
	if rr.err != nil {
		return LineCoverage{}, errc.New(op, errc.BadSyntax, rr.err)
	}

	var lc LineCoverage
	var impliedLine int64 = 1
	for n := uint32(0); n < count; n++ {
		w := rr.u32()
		if rr.err != nil {
			return LineCoverage{}, errc.New(op, errc.BadSyntax, rr.err)
		}
		value := w &^ isNullBit
		if w&isNullBit != 0 {
			impliedLine += int64(value)
			for k := uint32(0); k < value; k++ {
				lc.Lines = append(lc.Lines, LineRecord{Relevant: false})
			}
			continue
		}
		lc.Lines = append(lc.Lines, LineRecord{Relevant: true, Count: value})
		impliedLine++
		if impliedLine > maxLineValue {
			return LineCoverage{}, errc.New(op, errc.BadSyntax, fmt.Errorf("object: implied line number overflowed 2^31-1"))
		}
	}

	return lc, nil
}
