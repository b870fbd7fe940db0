package pdfa

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrNoAttachment is returned when a document carries no embedded invoice.
var ErrNoAttachment = errors.New("no embedded invoice attachment found")

var (
	objHeaderRe   = regexp.MustCompile(`(?s)(\d+)\s+(\d+)\s+obj`)
	conformanceRe = regexp.MustCompile(`<fx:ConformanceLevel>([^<]*)</fx:ConformanceLevel>`)
)

// ExtractXML returns the name and decoded bytes of the Factur-X attachment
// embedded in a document. It understands the uncompressed embedded-file
// streams this package writes, which is also what the round-trip property
// in the test suite exercises.
func ExtractXML(pdf []byte) (string, []byte, error) {
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		return "", nil, fmt.Errorf("input does not start with a PDF header")
	}

	name, fileRef, err := findFilespec(pdf)
	if err != nil {
		return "", nil, err
	}

	data, err := readStream(pdf, fileRef)
	if err != nil {
		return "", nil, err
	}
	return name, data, nil
}

// ConformanceLevel pulls the declared fx:ConformanceLevel out of the XMP
// packet, or "" when the document has none.
func ConformanceLevel(pdf []byte) string {
	if m := conformanceRe.FindSubmatch(pdf); m != nil {
		return string(m[1])
	}
	return ""
}

// findFilespec scans for file-specification dictionaries, preferring the one
// named per the Factur-X convention.
func findFilespec(pdf []byte) (name string, fileObj int, err error) {
	var fallbackName string
	fallbackObj := -1

	for _, loc := range objHeaderRe.FindAllSubmatchIndex(pdf, -1) {
		body := pdf[loc[1]:]
		if end := bytes.Index(body, []byte("endobj")); end >= 0 {
			body = body[:end]
		}
		if !bytes.Contains(body, []byte("/Filespec")) {
			continue
		}
		i := skipWS(body, 0)
		if i+1 >= len(body) || body[i] != '<' || body[i+1] != '<' {
			continue
		}
		dictEnd, err := scanDict(body, i)
		if err != nil {
			continue
		}
		entries, err := parseDict(body[i:dictEnd])
		if err != nil {
			continue
		}

		fn := filespecName(entries)
		efVal, ok := dictGet(entries, "EF")
		if !ok {
			continue
		}
		ef, err := parseDict([]byte(efVal))
		if err != nil {
			continue
		}
		fRef, ok := dictGet(ef, "F")
		if !ok {
			fRef, ok = dictGet(ef, "UF")
			if !ok {
				continue
			}
		}
		num, _, isRef := parseRef(fRef)
		if !isRef {
			continue
		}

		if fn == AttachmentName {
			return fn, num, nil
		}
		if fallbackObj < 0 {
			fallbackName, fallbackObj = fn, num
		}
	}

	if fallbackObj >= 0 {
		return fallbackName, fallbackObj, nil
	}
	return "", 0, ErrNoAttachment
}

func filespecName(entries []dictEntry) string {
	for _, key := range []string{"UF", "F"} {
		if v, ok := dictGet(entries, key); ok {
			if len(v) >= 2 && v[0] == '(' && v[len(v)-1] == ')' {
				return decodeLiteralString(v[1 : len(v)-1])
			}
		}
	}
	return ""
}

// decodeLiteralString undoes the escapes of a PDF literal string. The
// attachment names this package deals with are plain ASCII, so only the
// simple escapes matter.
func decodeLiteralString(s string) string {
	var b bytes.Buffer
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// readStream returns the decoded bytes of the stream object num, which must
// carry a direct /Length and no filter.
func readStream(pdf []byte, num int) ([]byte, error) {
	dictSrc, err := findObjectDict(pdf, num, 0)
	if err != nil {
		return nil, err
	}
	entries, err := parseDict(dictSrc)
	if err != nil {
		return nil, err
	}
	if _, filtered := dictGet(entries, "Filter"); filtered {
		return nil, fmt.Errorf("embedded file stream %d uses an unsupported filter", num)
	}
	lengthVal, ok := dictGet(entries, "Length")
	if !ok {
		return nil, fmt.Errorf("embedded file stream %d has no /Length", num)
	}
	length, err := strconv.Atoi(lengthVal)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("embedded file stream %d has an indirect or invalid /Length", num)
	}

	// locate the stream keyword following this object's dictionary
	dictOff := lastIndexOfDict(pdf, dictSrc)
	if dictOff < 0 {
		return nil, fmt.Errorf("cannot relocate stream dictionary for object %d", num)
	}
	rest := pdf[dictOff+len(dictSrc):]
	kw := bytes.Index(rest, []byte("stream"))
	if kw < 0 {
		return nil, fmt.Errorf("object %d has no stream data", num)
	}
	i := kw + len("stream")
	if i < len(rest) && rest[i] == '\r' {
		i++
	}
	if i < len(rest) && rest[i] == '\n' {
		i++
	}
	if i+length > len(rest) {
		return nil, fmt.Errorf("stream data for object %d is truncated", num)
	}
	return rest[i : i+length], nil
}

func lastIndexOfDict(pdf, dictSrc []byte) int {
	return bytes.LastIndex(pdf, dictSrc)
}
