// Package pdfa embeds the Factur-X XML payload into an existing PDF as a
// PDF/A-3 attachment. The document is extended by an incremental update: the
// original bytes are copied untouched and only new or superseded objects plus
// a fresh cross-reference section are appended, so the visual content streams
// can never be altered.
package pdfa

import (
	"bytes"
	"fmt"
	"sort"
)

// Writer assembles PDF objects and cross-reference data at the byte level.
// It backs both the incremental updates written by the embedder and the
// minimal fixture documents built in tests.
type Writer struct {
	buf     bytes.Buffer
	offsets map[int]int64
	seeded  bool
}

// NewWriter creates a writer for a fresh document.
func NewWriter() *Writer {
	return &Writer{offsets: make(map[int]int64)}
}

// NewIncrementalWriter creates a writer whose output starts with the given
// base document, ready for appended objects.
func NewIncrementalWriter(base []byte) *Writer {
	w := &Writer{offsets: make(map[int]int64), seeded: true}
	w.buf.Write(base)
	if len(base) > 0 && base[len(base)-1] != '\n' && base[len(base)-1] != '\r' {
		w.buf.WriteByte('\n')
	}
	return w
}

// Header writes the PDF version line plus the conventional binary marker
// comment that flags the file as non-text.
func (w *Writer) Header(version string) {
	fmt.Fprintf(&w.buf, "%%PDF-%s\n", version)
	w.buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})
}

// Obj writes an indirect object whose body is the given source text.
func (w *Writer) Obj(num int, body string) {
	w.offsets[num] = int64(w.buf.Len())
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// DictObj writes an indirect dictionary object. dict must be the full
// "<< ... >>" source text.
func (w *Writer) DictObj(num int, dict string) {
	w.Obj(num, dict)
}

// StreamObj writes an indirect stream object. entries are the dictionary
// entries without the surrounding << >>; /Length is appended automatically
// and always written as a direct value.
func (w *Writer) StreamObj(num int, entries string, data []byte) {
	w.offsets[num] = int64(w.buf.Len())
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, entries, len(data))
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
}

// objectRuns groups the written object numbers into contiguous runs, sorted,
// as required by cross-reference subsections.
func (w *Writer) objectRuns() [][]int {
	nums := make([]int, 0, len(w.offsets))
	for n := range w.offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var runs [][]int
	for _, n := range nums {
		if len(runs) > 0 {
			last := runs[len(runs)-1]
			if n == last[len(last)-1]+1 {
				runs[len(runs)-1] = append(last, n)
				continue
			}
		}
		runs = append(runs, []int{n})
	}
	return runs
}

// FinishTable writes a classic cross-reference table, the trailer dictionary
// and the startxref pointer, returning the complete document bytes. trailer
// must be the full "<< ... >>" source text.
func (w *Writer) FinishTable(trailer string) []byte {
	start := w.buf.Len()
	w.buf.WriteString("xref\n")

	runs := w.objectRuns()
	if !w.seeded {
		// fresh documents lead with the object 0 free-list head
		if len(runs) > 0 && runs[0][0] == 1 {
			fmt.Fprintf(&w.buf, "0 %d\n", len(runs[0])+1)
			w.buf.WriteString("0000000000 65535 f \n")
			for _, n := range runs[0] {
				fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[n])
			}
			runs = runs[1:]
		} else {
			w.buf.WriteString("0 1\n0000000000 65535 f \n")
		}
	}
	for _, run := range runs {
		fmt.Fprintf(&w.buf, "%d %d\n", run[0], len(run))
		for _, n := range run {
			fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[n])
		}
	}

	fmt.Fprintf(&w.buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, start)
	return w.buf.Bytes()
}

// FinishXRefStream writes the cross-reference data as a stream object, as
// required when updating a document whose existing cross-references use
// streams. entries are the trailer-level dictionary entries (/Size, /Root,
// /Prev, ...) without the surrounding << >>; the /Type, /W, /Index and
// /Length keys are added here. streamObjNum must be an unused object number
// and already counted in /Size.
func (w *Writer) FinishXRefStream(streamObjNum int, entries string) []byte {
	start := int64(w.buf.Len())
	w.offsets[streamObjNum] = start

	runs := w.objectRuns()
	var index bytes.Buffer
	var data bytes.Buffer
	for _, run := range runs {
		fmt.Fprintf(&index, " %d %d", run[0], len(run))
		for _, n := range run {
			off := w.offsets[n]
			// W [1 4 2]: type 1 entry, 4-byte offset, 2-byte generation
			data.WriteByte(1)
			data.Write([]byte{byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off)})
			data.Write([]byte{0, 0})
		}
	}

	fmt.Fprintf(&w.buf, "%d 0 obj\n<< /Type /XRef /W [1 4 2] /Index [%s ] %s /Length %d >>\nstream\n",
		streamObjNum, index.String(), entries, data.Len())
	w.buf.Write(data.Bytes())
	w.buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&w.buf, "startxref\n%d\n%%%%EOF\n", start)
	return w.buf.Bytes()
}
