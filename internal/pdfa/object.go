package pdfa

import (
	"bytes"
	"fmt"
	"strconv"
)

// Minimal structural reader for the pieces of an existing PDF the embedder
// has to understand: the trailer dictionary, the document catalog and any
// name-tree dictionary hanging off it. Values are handled as raw source text
// so rewriting an object preserves entries the embedder does not interpret.

// dictEntry is one key/value pair of a dictionary, value kept as source text.
type dictEntry struct {
	Key   string
	Value string
}

func dictGet(entries []dictEntry, key string) (string, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// dictSet replaces the value for key, appending when absent.
func dictSet(entries []dictEntry, key, value string) []dictEntry {
	for i, e := range entries {
		if e.Key == key {
			entries[i].Value = value
			return entries
		}
	}
	return append(entries, dictEntry{Key: key, Value: value})
}

func rebuildDict(entries []dictEntry) string {
	var b bytes.Buffer
	b.WriteString("<<")
	for _, e := range entries {
		fmt.Fprintf(&b, " /%s %s", e.Key, e.Value)
	}
	b.WriteString(" >>")
	return b.String()
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// skipWS advances past whitespace and comments.
func skipWS(b []byte, i int) int {
	for i < len(b) {
		switch {
		case isWhitespace(b[i]):
			i++
		case b[i] == '%':
			for i < len(b) && b[i] != '\n' && b[i] != '\r' {
				i++
			}
		default:
			return i
		}
	}
	return i
}

// scanLiteralString scans a ( ... ) string with escapes and balanced parens.
// i must point at the opening parenthesis; the returned index is past the
// closing one.
func scanLiteralString(b []byte, i int) (int, error) {
	depth := 0
	for ; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return i, fmt.Errorf("unterminated literal string")
}

func scanHexString(b []byte, i int) (int, error) {
	for i++; i < len(b); i++ {
		if b[i] == '>' {
			return i + 1, nil
		}
	}
	return i, fmt.Errorf("unterminated hex string")
}

func scanName(b []byte, i int) int {
	for i++; i < len(b) && !isWhitespace(b[i]) && !isDelimiter(b[i]); i++ {
	}
	return i
}

// scanValue scans one object of any type starting at i and returns the index
// past it. References (two integers followed by R) are treated as a single
// value.
func scanValue(b []byte, i int) (int, error) {
	i = skipWS(b, i)
	if i >= len(b) {
		return i, fmt.Errorf("unexpected end of input")
	}
	switch c := b[i]; {
	case c == '<' && i+1 < len(b) && b[i+1] == '<':
		return scanDict(b, i)
	case c == '<':
		return scanHexString(b, i)
	case c == '[':
		return scanArray(b, i)
	case c == '(':
		return scanLiteralString(b, i)
	case c == '/':
		return scanName(b, i), nil
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		end := i
		for end < len(b) && (b[end] == '+' || b[end] == '-' || b[end] == '.' || (b[end] >= '0' && b[end] <= '9')) {
			end++
		}
		// lookahead for "<gen> R" making this an indirect reference
		if j := skipWS(b, end); j < len(b) && b[j] >= '0' && b[j] <= '9' {
			k := j
			for k < len(b) && b[k] >= '0' && b[k] <= '9' {
				k++
			}
			if m := skipWS(b, k); m < len(b) && b[m] == 'R' &&
				(m+1 >= len(b) || isWhitespace(b[m+1]) || isDelimiter(b[m+1])) {
				return m + 1, nil
			}
		}
		return end, nil
	default:
		// keyword: true, false, null
		end := i
		for end < len(b) && !isWhitespace(b[end]) && !isDelimiter(b[end]) {
			end++
		}
		if end == i {
			return i, fmt.Errorf("unexpected character %q", c)
		}
		return end, nil
	}
}

// scanDict scans a balanced << ... >> starting at i, returning the index
// past the closing >>.
func scanDict(b []byte, i int) (int, error) {
	i += 2
	for {
		i = skipWS(b, i)
		if i+1 < len(b) && b[i] == '>' && b[i+1] == '>' {
			return i + 2, nil
		}
		if i >= len(b) {
			return i, fmt.Errorf("unterminated dictionary")
		}
		next, err := scanValue(b, i)
		if err != nil {
			return i, err
		}
		i = next
	}
}

func scanArray(b []byte, i int) (int, error) {
	i++
	for {
		i = skipWS(b, i)
		if i < len(b) && b[i] == ']' {
			return i + 1, nil
		}
		if i >= len(b) {
			return i, fmt.Errorf("unterminated array")
		}
		next, err := scanValue(b, i)
		if err != nil {
			return i, err
		}
		i = next
	}
}

// parseDict parses the source text of a dictionary into ordered key/value
// pairs. src must start with <<.
func parseDict(src []byte) ([]dictEntry, error) {
	if len(src) < 4 || src[0] != '<' || src[1] != '<' {
		return nil, fmt.Errorf("not a dictionary")
	}
	var entries []dictEntry
	i := 2
	for {
		i = skipWS(src, i)
		if i+1 < len(src) && src[i] == '>' && src[i+1] == '>' {
			return entries, nil
		}
		if i >= len(src) || src[i] != '/' {
			return nil, fmt.Errorf("expected name key at offset %d", i)
		}
		keyEnd := scanName(src, i)
		key := string(src[i+1 : keyEnd])
		valEnd, err := scanValue(src, keyEnd)
		if err != nil {
			return nil, err
		}
		valStart := skipWS(src, keyEnd)
		entries = append(entries, dictEntry{Key: key, Value: string(src[valStart:valEnd])})
		i = valEnd
	}
}

// parseRef parses an indirect reference "n g R".
func parseRef(s string) (num, gen int, ok bool) {
	if _, err := fmt.Sscanf(s, "%d %d R", &num, &gen); err != nil {
		return 0, 0, false
	}
	return num, gen, true
}

// findStartXref returns the byte offset recorded by the final startxref
// keyword.
func findStartXref(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("no startxref keyword")
	}
	i := skipWS(data, idx+len("startxref"))
	end := i
	for end < len(data) && data[end] >= '0' && data[end] <= '9' {
		end++
	}
	if end == i {
		return 0, fmt.Errorf("startxref offset missing")
	}
	off, err := strconv.ParseInt(string(data[i:end]), 10, 64)
	if err != nil || off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("startxref offset out of range")
	}
	return off, nil
}

// trailerInfo is what the embedder needs from the existing cross-reference
// machinery: the trailer dictionary, the offset its update must chain to via
// /Prev, and whether the file uses cross-reference streams (an update must
// use the same kind).
type trailerInfo struct {
	entries    []dictEntry
	startXref  int64
	xrefStream bool
}

// readTrailer locates and parses the most recent trailer dictionary, which
// lives after the xref table in classic files and inside the cross-reference
// stream dictionary otherwise.
func readTrailer(data []byte) (*trailerInfo, error) {
	sx, err := findStartXref(data)
	if err != nil {
		return nil, err
	}
	i := skipWS(data, int(sx))
	if i >= len(data) {
		return nil, fmt.Errorf("cross-reference offset past end of file")
	}

	if bytes.HasPrefix(data[i:], []byte("xref")) {
		rel := bytes.Index(data[i:], []byte("trailer"))
		if rel < 0 {
			return nil, fmt.Errorf("xref table without trailer")
		}
		j := skipWS(data, i+rel+len("trailer"))
		end, err := scanDict(data, j)
		if err != nil {
			return nil, fmt.Errorf("malformed trailer dictionary: %w", err)
		}
		entries, err := parseDict(data[j:end])
		if err != nil {
			return nil, err
		}
		return &trailerInfo{entries: entries, startXref: sx}, nil
	}

	// cross-reference stream: "<num> <gen> obj << ... /Type /XRef ... >>"
	if data[i] >= '0' && data[i] <= '9' {
		rel := bytes.Index(data[i:], []byte("obj"))
		if rel < 0 {
			return nil, fmt.Errorf("no object at cross-reference offset")
		}
		j := skipWS(data, i+rel+len("obj"))
		end, err := scanDict(data, j)
		if err != nil {
			return nil, fmt.Errorf("malformed cross-reference stream dictionary: %w", err)
		}
		entries, err := parseDict(data[j:end])
		if err != nil {
			return nil, err
		}
		return &trailerInfo{entries: entries, startXref: sx, xrefStream: true}, nil
	}

	return nil, fmt.Errorf("unrecognized cross-reference section")
}

// findObjectValue locates the latest definition of object num and returns the
// source text of its top-level value. Objects stored inside compressed object
// streams are not visible to this scan.
func findObjectValue(data []byte, num, gen int) ([]byte, error) {
	needle := []byte(fmt.Sprintf("%d %d obj", num, gen))
	search := data
	for {
		idx := bytes.LastIndex(search, needle)
		if idx < 0 {
			return nil, fmt.Errorf("object %d %d not found (it may live in a compressed object stream)", num, gen)
		}
		// reject a match that is the tail of a longer number
		if idx > 0 {
			prev := search[idx-1]
			if !isWhitespace(prev) && !isDelimiter(prev) {
				search = search[:idx]
				continue
			}
		}
		i := skipWS(data, idx+len(needle))
		end, err := scanValue(data, i)
		if err != nil {
			return nil, err
		}
		return data[i:end], nil
	}
}

// findObjectDict is findObjectValue restricted to dictionary objects.
func findObjectDict(data []byte, num, gen int) ([]byte, error) {
	src, err := findObjectValue(data, num, gen)
	if err != nil {
		return nil, err
	}
	if len(src) < 2 || src[0] != '<' || src[1] != '<' {
		return nil, fmt.Errorf("object %d %d is not a dictionary", num, gen)
	}
	return src, nil
}
