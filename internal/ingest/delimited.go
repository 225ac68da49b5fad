package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type csvReader struct{}

func (csvReader) Format() Format { return FormatCSV }

func (csvReader) CanRead(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

func (csvReader) ReadTable(name string, data []byte, opt Options) ([]string, [][]string, error) {
	text, err := decodeText(name, data, opt.Encoding)
	if err != nil {
		return nil, nil, err
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = ','
	}
	return readDelimited(name, text, delim)
}

type textReader struct{}

func (textReader) Format() Format { return FormatText }

func (textReader) CanRead(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tsv", ".txt", ".tab", ".psv", ".dat":
		return true
	}
	return false
}

func (textReader) ReadTable(name string, data []byte, opt Options) ([]string, [][]string, error) {
	text, err := decodeText(name, data, opt.Encoding)
	if err != nil {
		return nil, nil, err
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = SniffDelimiter(text)
	}
	return readDelimited(name, text, delim)
}

func readDelimited(name, text string, delim rune) ([]string, [][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, &EmptyInputError{Name: name, Reason: "no header row"}
		}
		return nil, nil, csvFormatError(name, err)
	}
	var rows [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, csvFormatError(name, err)
		}
		if len(rec) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, nil, &FormatError{Name: name, Line: line,
				Err: fmt.Errorf("expected %d fields, saw %d", len(header), len(rec))}
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}

func csvFormatError(name string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &FormatError{Name: name, Line: pe.StartLine, Err: pe.Err}
	}
	return &FormatError{Name: name, Err: err}
}

var sniffCandidates = []rune{'\t', ';', '|', ','}

// SniffDelimiter picks the candidate delimiter that splits the first lines
// into the same number of fields, preferring more fields. It falls back to ','.
func SniffDelimiter(text string) rune {
	sample := sampleLines(text, 10)
	best, bestFields := ',', 1
	for _, c := range sniffCandidates {
		n, ok := consistentFields(sample, c)
		if ok && n > bestFields {
			best, bestFields = c, n
		}
	}
	return best
}

func sampleLines(text string, n int) string {
	var kept []string
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		kept = append(kept, strings.TrimRight(ln, "\r"))
		if len(kept) == n {
			break
		}
	}
	return strings.Join(kept, "\n")
}

func consistentFields(sample string, delim rune) (int, bool) {
	r := csv.NewReader(strings.NewReader(sample))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	want := -1
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, false
		}
		if want < 0 {
			want = len(rec)
		} else if len(rec) != want {
			return 0, false
		}
	}
	return want, want > 0
}
