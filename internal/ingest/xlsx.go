package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type xlsxReader struct{}

func (xlsxReader) Format() Format { return FormatXLSX }

func (xlsxReader) CanRead(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// ReadTable extracts rows from the selected sheet. If SheetName is empty and
// SheetIndex <= 0 it defaults to the first sheet; SheetIndex is 1-based.
// Rows whose cells are all empty are skipped.
func (xlsxReader) ReadTable(name string, data []byte, opt Options) ([]string, [][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, &FormatError{Name: name, Err: fmt.Errorf("open xlsx: %w", err)}
	}
	workbookXML := readZipFile(zr, "xl/workbook.xml")
	if workbookXML == nil {
		return nil, nil, &FormatError{Name: name, Err: errors.New("not a spreadsheet: xl/workbook.xml missing")}
	}
	sheets, date1904 := parseWorkbook(workbookXML)
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))

	target := ""
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.Name, opt.SheetName) {
				if rel, ok := rels[s.RID]; ok {
					target = normalizeRelPath(rel)
				}
				break
			}
		}
		if target == "" {
			available := make([]string, len(sheets))
			for i, s := range sheets {
				available[i] = s.Name
			}
			return nil, nil, &FormatError{Name: name,
				Err: fmt.Errorf("sheet '%s' not found; available sheets: %s", opt.SheetName, strings.Join(available, ", "))}
		}
	}
	if target == "" {
		idx := opt.SheetIndex
		if idx <= 0 {
			idx = 1
		}
		// Prefer the sheetId match, then the idx-th declared sheet, then the conventional path.
		var rid string
		for _, s := range sheets {
			if s.SheetID == idx {
				rid = s.RID
				break
			}
		}
		if rid == "" && idx <= len(sheets) {
			rid = sheets[idx-1].RID
		}
		if rel, ok := rels[rid]; ok {
			target = normalizeRelPath(rel)
		}
		if target == "" {
			target = path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", idx))
		}
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return nil, nil, &FormatError{Name: name, Err: fmt.Errorf("worksheet %s missing from workbook", target)}
	}
	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))
	dates := parseDateStyles(readZipFile(zr, "xl/styles.xml"))

	rr := newSheetRowReader(sheetXML, shared, dates, date1904)
	var header []string
	var rows [][]string
	line := 0
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		line++
		if blankRow(row) {
			continue
		}
		if header == nil {
			header = trimTrailingBlank(row)
			continue
		}
		row = trimTrailingBlank(row)
		if len(row) > len(header) {
			return nil, nil, &FormatError{Name: name, Line: line,
				Err: fmt.Errorf("expected %d cells, saw %d", len(header), len(row))}
		}
		rows = append(rows, row)
	}
	if err := rr.Err(); err != nil {
		return nil, nil, &FormatError{Name: name, Line: line, Err: fmt.Errorf("parse %s: %w", target, err)}
	}
	if header == nil {
		return nil, nil, &EmptyInputError{Name: name, Reason: "worksheet has no rows"}
	}
	return header, rows, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimTrailingBlank(row []string) []string {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return row[:n]
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

// parseWorkbook extracts sheet entries with names and relationship ids, and
// whether serial dates count from 1904.
func parseWorkbook(data []byte) ([]wbSheet, bool) {
	if len(data) == 0 {
		return nil, false
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []wbSheet
	date1904 := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets, date1904
		}
		se, ok := tok.(xml.StartElement)
		if ok && se.Name.Local == "workbookPr" {
			for _, a := range se.Attr {
				if a.Name.Local == "date1904" {
					date1904 = a.Value == "1" || strings.EqualFold(a.Value, "true")
				}
			}
		}
		if ok && se.Name.Local == "sheet" {
			var s wbSheet
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "name":
					s.Name = a.Value
				case "sheetId":
					s.SheetID = atoiSafe(a.Value)
				case "id":
					s.RID = a.Value // r: namespace
				}
			}
			sheets = append(sheets, s)
		}
	}
}

// parseRelationships returns map[r:id]Target.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Relationship" {
			var id, target string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "Id":
					id = a.Value
				case "Target":
					target = a.Value
				}
			}
			if id != "" && target != "" {
				out[id] = target
			}
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil
			}
			defer rc.Close()
			b, err := io.ReadAll(rc)
			if err != nil {
				return nil
			}
			return b
		}
	}
	return nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "si" {
				buf.Reset()
			}
			if se.Name.Local == "t" {
				inT = true
			}
		case xml.EndElement:
			if se.Name.Local == "t" {
				inT = false
			}
			if se.Name.Local == "si" {
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// parseDateStyles reports, per cellXfs index, whether the style's number
// format displays a date or time.
func parseDateStyles(data []byte) []bool {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	custom := map[int]string{}
	var out []bool
	inXfs := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "numFmt":
				var id int
				var code string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "numFmtId":
						id = atoiSafe(a.Value)
					case "formatCode":
						code = a.Value
					}
				}
				custom[id] = code
			case "cellXfs":
				inXfs = true
			case "xf":
				if !inXfs {
					continue
				}
				id := 0
				for _, a := range se.Attr {
					if a.Name.Local == "numFmtId" {
						id = atoiSafe(a.Value)
					}
				}
				code, ok := custom[id]
				out = append(out, (ok && isDateFormat(code)) || (!ok && builtinDateFormat(id)))
			}
		case xml.EndElement:
			if se.Name.Local == "cellXfs" {
				inXfs = false
			}
		}
	}
}

func builtinDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDateFormat reports whether a custom format code shows date or time parts.
// Quoted literals, escaped characters and [..] sections are ignored.
func isDateFormat(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			b.WriteByte(c)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ydh")
}

var (
	epoch1900 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	epoch1904 = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
)

// serialText renders a spreadsheet serial date as "2006-01-02", or with the
// time of day when it has one.
func serialText(v string, date1904 bool) (string, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	base := epoch1900
	if date1904 {
		base = epoch1904
	}
	secs := int64(math.Round(f * 86400))
	t := base.Add(time.Duration(secs) * time.Second)
	if secs%86400 == 0 {
		return t.Format("2006-01-02"), true
	}
	return t.Format("2006-01-02 15:04:05"), true
}

type sheetRowReader struct {
	dec      *xml.Decoder
	shared   []string
	dates    []bool
	date1904 bool
	inRow    bool
	curRow   []string
	maxCol   int
	err      error
}

func newSheetRowReader(data []byte, shared []string, dates []bool, date1904 bool) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared, dates: dates, date1904: date1904}
}

// Err returns the first decoding error other than end of input.
func (r *sheetRowReader) Err() error { return r.err }

func (r *sheetRowReader) Next() ([]string, bool) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				r.inRow = true
				r.curRow = nil
				r.maxCol = 0
			}
			if r.inRow && se.Name.Local == "c" {
				var rAttr, tAttr string
				style := -1
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						rAttr = a.Value
					case "t":
						tAttr = a.Value
					case "s":
						style = atoiSafe(a.Value)
					}
				}
				colIdx := colIndexFromRef(rAttr)
				if colIdx < 0 {
					colIdx = len(r.curRow)
				}
				if colIdx+1 > r.maxCol {
					r.maxCol = colIdx + 1
				}
				val := r.readCellValue(tAttr, style)
				if len(r.curRow) <= colIdx {
					tmp := make([]string, colIdx+1)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.curRow[colIdx] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				if len(r.curRow) < r.maxCol {
					tmp := make([]string, r.maxCol)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.inRow = false
				return r.curRow, true
			}
		}
	}
}

// readCellValue reads until the end of <c>, capturing <v> or inline <t> runs.
func (r *sheetRowReader) readCellValue(tAttr string, style int) string {
	var val strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return val.String()
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				if se.Name.Local == "v" {
					val.Reset()
				}
				for {
					tk, er := r.dec.Token()
					if er != nil {
						break
					}
					if ed, ok := tk.(xml.EndElement); ok && (ed.Name.Local == "v" || ed.Name.Local == "t") {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						val.Write(ch)
					}
				}
			}
		case xml.EndElement:
			if se.Name.Local == "c" {
				return r.cellText(tAttr, style, val.String())
			}
		}
	}
}

func (r *sheetRowReader) cellText(tAttr string, style int, v string) string {
	switch tAttr {
	case "", "n":
		if style >= 0 && style < len(r.dates) && r.dates[style] && v != "" {
			if s, ok := serialText(v, r.date1904); ok {
				return s
			}
		}
	case "s":
		idx := atoiSafe(v)
		if idx >= 0 && idx < len(r.shared) {
			return r.shared[idx]
		}
		return ""
	case "b":
		if strings.TrimSpace(v) == "1" {
			return "TRUE"
		}
		return "FALSE"
	}
	return v
}

// colIndexFromRef converts refs like "C12" to a 0-based column index, -1 when absent.
func colIndexFromRef(ref string) int {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			i++
			continue
		}
		break
	}
	s := strings.ToUpper(ref[:i])
	idx := 0
	for j := 0; j < len(s); j++ {
		idx = idx*26 + int(s[j]-'A'+1)
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets to ZIP entry paths.
// Targets may carry a leading slash ("/xl/worksheets/sheet1.xml") that ZIP entries lack.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
