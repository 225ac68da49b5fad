package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/export"
)

func TestXLSXSheetSelection(t *testing.T) {
	data := xlsxFixture(t)
	opt := DefaultOptions()
	opt.Parse.DecimalSeparator = ','
	opt.Parse.ThousandsSeparator = '.'

	byName := opt
	byName.SheetName = "data"
	dsName, err := Parse(data, "analysis_dataset.xlsx", byName)
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	byIndex := opt
	byIndex.SheetIndex = 2
	dsIndex, err := Parse(data, "analysis_dataset.xlsx", byIndex)
	if err != nil {
		t.Fatalf("by index: %v", err)
	}

	for _, ds := range []*dataset.Dataset{dsName, dsIndex} {
		if ds.Name != "analysis_dataset.xlsx" {
			t.Fatalf("name = %q", ds.Name)
		}
		if ds.Rows() != 10 || len(ds.Columns) != 7 {
			t.Fatalf("shape = %dx%d, want 10x7", ds.Rows(), len(ds.Columns))
		}
		wantTypes := map[string]dataset.Type{
			"Group":               dataset.Textual,
			"Concentration (g/L)": dataset.Numeric,
			"Temp (°F)":           dataset.Numeric,
			"Score":               dataset.Numeric,
			"LocaleNumber":        dataset.Numeric,
			"Category":            dataset.Textual,
			"Note":                dataset.Textual,
		}
		for name, want := range wantTypes {
			c, _, ok := ds.Column(name)
			if !ok {
				t.Fatalf("missing column %q in %q", name, ds.Names())
			}
			if c.Type != want {
				t.Errorf("%s type = %s, want %s", name, c.Type, want)
			}
		}
		loc, _, _ := ds.Column("LocaleNumber")
		if loc.Raw[0] != "1.000,0" || loc.Num[0] != 1000 {
			t.Fatalf("LocaleNumber[0] = %q/%v", loc.Raw[0], loc.Num[0])
		}
		conc, _, _ := ds.Column("Concentration (g/L)")
		if conc.Num[0] != 0.5 {
			t.Fatalf("Concentration[0] = %v", conc.Num[0])
		}
	}
}

func TestXLSXExportRoundTrip(t *testing.T) {
	opt := DefaultOptions()
	opt.SheetName = "Data"
	opt.Parse.DecimalSeparator = ','
	opt.Parse.ThousandsSeparator = '.'
	ds, err := Parse(xlsxFixture(t), "analysis_dataset.xlsx", opt)
	if err != nil {
		t.Fatalf("parse xlsx: %v", err)
	}
	var first bytes.Buffer
	if err := export.WriteCSV(&first, ds); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	csvOpt := DefaultOptions()
	csvOpt.Parse = opt.Parse
	again, err := Parse(first.Bytes(), "analysis_dataset.csv", csvOpt)
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if again.Rows() != ds.Rows() || len(again.Columns) != len(ds.Columns) {
		t.Fatalf("shape = %dx%d, want %dx%d", again.Rows(), len(again.Columns), ds.Rows(), len(ds.Columns))
	}
	for j, c := range ds.Columns {
		rc := again.Columns[j]
		if rc.Name != c.Name || rc.Type != c.Type {
			t.Fatalf("column %d = %q/%s, want %q/%s", j, rc.Name, rc.Type, c.Name, c.Type)
		}
		for i := range c.Raw {
			if c.Missing[i] != rc.Missing[i] || (!c.Missing[i] && c.Raw[i] != rc.Raw[i]) {
				t.Fatalf("cell %s[%d] = %q, want %q", c.Name, i, rc.Raw[i], c.Raw[i])
			}
		}
	}
	var second bytes.Buffer
	if err := export.WriteCSV(&second, again); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("second export differs:\n%q\n%q", first.String(), second.String())
	}
}

// buildWorkbook zips a one-sheet workbook from the given parts.
func buildWorkbook(t *testing.T, workbookPr, styles, sheetData string) []byte {
	t.Helper()
	parts := map[string]string{
		"xl/workbook.xml": `<workbook xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
			workbookPr + `<sheets><sheet name="S" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<Relationships><Relationship Id="rId1" Target="worksheets/sheet1.xml"/></Relationships>`,
		"xl/styles.xml":              styles,
		"xl/worksheets/sheet1.xml":   `<worksheet><sheetData>` + sheetData + `</sheetData></worksheet>`,
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

const dateStyles = `<styleSheet>` +
	`<numFmts count="1"><numFmt numFmtId="164" formatCode="yyyy\-mm\-dd hh:mm"/></numFmts>` +
	`<cellStyleXfs count="1"><xf numFmtId="14"/></cellStyleXfs>` +
	`<cellXfs count="4"><xf numFmtId="0"/><xf numFmtId="14"/><xf numFmtId="164"/><xf numFmtId="4"/></cellXfs>` +
	`</styleSheet>`

const dateRows = `<row r="1">` +
	`<c r="A1" t="inlineStr"><is><t>when</t></is></c>` +
	`<c r="B1" t="inlineStr"><is><t>amount</t></is></c>` +
	`<c r="C1" t="inlineStr"><is><t>at</t></is></c></row>` +
	`<row r="2"><c r="A2" s="1"><v>45292</v></c><c r="B2" s="3"><v>1234.5</v></c><c r="C2" s="2"><v>45292.5</v></c></row>` +
	`<row r="3"><c r="A3" s="1"><v>45293</v></c><c r="B3" s="3"><v>10</v></c><c r="C3" s="2"><v>45293.25</v></c></row>`

func TestXLSXDateCells(t *testing.T) {
	ds, err := Parse(buildWorkbook(t, "", dateStyles, dateRows), "dates.xlsx", DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	when, _, _ := ds.Column("when")
	if when.Type != dataset.Temporal || when.Raw[0] != "2024-01-01" || when.Raw[1] != "2024-01-02" {
		t.Fatalf("when = %s %q", when.Type, when.Raw)
	}
	at, _, _ := ds.Column("at")
	if at.Type != dataset.Temporal || at.Raw[0] != "2024-01-01 12:00:00" || at.Raw[1] != "2024-01-02 06:00:00" {
		t.Fatalf("at = %s %q", at.Type, at.Raw)
	}
	amount, _, _ := ds.Column("amount")
	if amount.Type != dataset.Numeric || amount.Num[0] != 1234.5 {
		t.Fatalf("amount = %s %v", amount.Type, amount.Num)
	}

	ds1904, err := Parse(buildWorkbook(t, `<workbookPr date1904="1"/>`, dateStyles, dateRows), "dates.xlsx", DefaultOptions())
	if err != nil {
		t.Fatalf("parse 1904: %v", err)
	}
	w1904, _, _ := ds1904.Column("when")
	if w1904.Raw[0] != "2028-01-02" {
		t.Fatalf("1904 when = %q", w1904.Raw[0])
	}
}

func TestIsDateFormat(t *testing.T) {
	cases := map[string]bool{
		"yyyy-mm-dd":        true,
		`dd/mm/yyyy\ hh:mm`: true,
		"h:mm AM/PM":        true,
		"General":           false,
		"#,##0.00":          false,
		`0.00 "days"`:       false,
		"[Red]#,##0":        false,
		`#,##0 "d"`:         false,
	}
	for code, want := range cases {
		if got := isDateFormat(code); got != want {
			t.Errorf("isDateFormat(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestXLSXHeaderOnlySheet(t *testing.T) {
	_, err := Parse(xlsxFixture(t), "analysis_dataset.xlsx", DefaultOptions())
	var e *EmptyInputError
	if !errors.As(err, &e) {
		t.Fatalf("want EmptyInputError for the placeholder sheet, got %v", err)
	}
}

func TestXLSXSheetNotFound(t *testing.T) {
	opt := DefaultOptions()
	opt.SheetName = "Missing"
	_, err := Parse(xlsxFixture(t), "analysis_dataset.xlsx", opt)
	var e *FormatError
	if !errors.As(err, &e) {
		t.Fatalf("want FormatError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Ignore, Data") {
		t.Fatalf("error should list sheets: %v", err)
	}
}

func TestXLSXCorruptArchive(t *testing.T) {
	_, err := Parse([]byte("PK\x03\x04not really a zip"), "broken.xlsx", DefaultOptions())
	var e *FormatError
	if !errors.As(err, &e) {
		t.Fatalf("want FormatError, got %v", err)
	}
}

// Relationship targets may carry a leading slash that ZIP entries lack.
func TestNormalizeRelPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"styles.xml", "xl/styles.xml"},
		{"/xl/styles.xml", "xl/styles.xml"},
	}
	for _, tt := range tests {
		if got := normalizeRelPath(tt.input); got != tt.expected {
			t.Errorf("normalizeRelPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestColIndexFromRef(t *testing.T) {
	cases := map[string]int{"A1": 0, "C12": 2, "Z3": 25, "AA1": 26, "": -1}
	for ref, want := range cases {
		if got := colIndexFromRef(ref); got != want {
			t.Errorf("colIndexFromRef(%q) = %d, want %d", ref, got, want)
		}
	}
}
