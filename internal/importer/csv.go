package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// delimiters are tried in this order when sniffing
var delimiters = []rune{',', ';', '\t', '|'}

const sniffLines = 10

// DecodeCSV converts raw upload bytes to a string, trying UTF-8 with BOM,
// plain UTF-8 and Windows-1251 in turn and falling back to lossy UTF-8.
func DecodeCSV(b []byte) string {
	// the BOM never belongs to the first header, whatever the encoding
	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b)
	}
	if out, err := charmap.Windows1251.NewDecoder().Bytes(b); err == nil && utf8.Valid(out) {
		return string(out)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// SniffDelimiter guesses the field separator from the first lines of text.
// A delimiter that occurs the same non-zero number of times on every sampled
// line wins; otherwise the one most frequent in the header line; comma when
// nothing matches.
func SniffDelimiter(text string) rune {
	lines := sampleLines(text, sniffLines)
	if len(lines) == 0 {
		return ','
	}

	best, bestCount := ',', 0
	for _, d := range delimiters {
		n := countOutsideQuotes(lines[0], d)
		if n == 0 {
			continue
		}
		consistent := true
		for _, l := range lines[1:] {
			if countOutsideQuotes(l, d) != n {
				consistent = false
				break
			}
		}
		if consistent && n > bestCount {
			best, bestCount = d, n
		}
	}
	if bestCount > 0 {
		return best
	}

	for _, d := range delimiters {
		if n := countOutsideQuotes(lines[0], d); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func sampleLines(text string, max int) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
		if len(out) == max {
			break
		}
	}
	return out
}

func countOutsideQuotes(line string, d rune) int {
	n := 0
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}

// ParseCSV splits text into a header row and at most rowCap data rows.
// Blank rows are dropped and every cell is trimmed.
func ParseCSV(text string, rowCap int) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = SniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var (
		headers []string
		rows    [][]string
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}

		trimmed, blank := trimRecord(rec)
		if blank {
			continue
		}
		if headers == nil {
			headers = trimmed
			continue
		}
		rows = append(rows, trimmed)
		if rowCap > 0 && len(rows) >= rowCap {
			break
		}
	}

	if len(headers) == 0 || len(rows) == 0 {
		return nil, nil, ErrEmptyUpload
	}
	return headers, rows, nil
}

func trimRecord(rec []string) ([]string, bool) {
	out := make([]string, len(rec))
	blank := true
	for i, v := range rec {
		out[i] = strings.TrimSpace(v)
		if out[i] != "" {
			blank = false
		}
	}
	return out, blank
}
