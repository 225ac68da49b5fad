package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Format identifies a tabular input format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "csv":
		return FormatCSV, nil
	case "text", "txt", "tsv", "delimited":
		return FormatText, nil
	case "xlsx", "excel", "spreadsheet":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported format %q (use auto|csv|text|xlsx)", s)
}

// Options controls ingestion.
type Options struct {
	Format Format
	// Delimiter for CSV and delimited text. If 0, CSV uses ',' and text sniffs among tab ';' '|' ','.
	Delimiter rune
	// Encoding of text input when it is not UTF-8, e.g. "latin1" or "windows-1252".
	Encoding string
	// SheetName selects a worksheet by name; otherwise SheetIndex (1-based) is used.
	SheetName  string
	SheetIndex int
	// MaxRows limits data rows kept; 0 means unlimited.
	MaxRows int
	// Parse controls sentinel matching and number formats.
	Parse dataset.ParseOptions
}

// DefaultOptions returns options for automatic format detection.
func DefaultOptions() Options {
	return Options{Format: FormatAuto, SheetIndex: 1}
}

// Reader parses one tabular format into a header and string rows.
type Reader interface {
	Format() Format
	CanRead(filename string) bool
	ReadTable(name string, data []byte, opt Options) (header []string, rows [][]string, err error)
}

var registry []Reader

// Register adds a format reader to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func lookup(f Format) (Reader, bool) {
	for _, r := range registry {
		if r.Format() == f {
			return r, true
		}
	}
	return nil, false
}

func init() {
	Register(csvReader{})
	Register(textReader{})
	Register(xlsxReader{})
}

var zipMagic = []byte("PK\x03\x04")

// Resolve picks the reader for a declared or inferred format. Inference uses
// the file extension first, then the content.
func Resolve(name string, data []byte, f Format) (Reader, error) {
	if f != "" && f != FormatAuto {
		r, ok := lookup(f)
		if !ok {
			return nil, fmt.Errorf("no reader registered for format %q", f)
		}
		return r, nil
	}
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		return nil, &FormatError{Name: name, Err: errors.New("legacy .xls workbooks are not supported; save as .xlsx or CSV")}
	}
	for _, r := range registry {
		if r.CanRead(name) {
			return r, nil
		}
	}
	if bytes.HasPrefix(data, zipMagic) {
		r, _ := lookup(FormatXLSX)
		return r, nil
	}
	r, _ := lookup(FormatText)
	return r, nil
}

// Read consumes the whole stream and parses it into a Dataset. Column types
// are classified over every row. Read has no side effects beyond returning
// the Dataset.
func Read(r io.Reader, name string, opt Options) (*dataset.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return Parse(data, name, opt)
}

// Parse is Read over an in-memory buffer.
func Parse(data []byte, name string, opt Options) (*dataset.Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &EmptyInputError{Name: name, Reason: "no data"}
	}
	rd, err := Resolve(name, data, opt.Format)
	if err != nil {
		return nil, err
	}
	header, rows, err := rd.ReadTable(name, data, opt)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, &EmptyInputError{Name: name, Reason: "no columns"}
	}
	if len(rows) == 0 {
		return nil, &EmptyInputError{Name: name, Reason: "header present but zero data rows"}
	}
	var warns []string
	if opt.MaxRows > 0 && len(rows) > opt.MaxRows {
		warns = append(warns, fmt.Sprintf("kept only %d/%d rows due to MaxRows", opt.MaxRows, len(rows)))
		rows = rows[:opt.MaxRows]
	}
	ds := dataset.Build(filepath.Base(name), header, rows, opt.Parse)
	ds.Warnings = append(ds.Warnings, warns...)
	return ds, nil
}

// DetectFormat reports the format Parse would use for the input.
func DetectFormat(name string, data []byte, f Format) (Format, error) {
	r, err := Resolve(name, data, f)
	if err != nil {
		return "", err
	}
	return r.Format(), nil
}
