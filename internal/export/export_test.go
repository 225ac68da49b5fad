package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
)

func TestWriteCSVRoundTrip(t *testing.T) {
	inputs := map[string]string{
		"plain":   "a,b\n1,x\n2,y\n,z\n",
		"quoting": "id,note,when\n1,\"hello, world\",2024-01-01\n2,\"say \"\"hi\"\"\",2024-01-02\n3,\"two\nlines\",\n",
		"unicode": "name,city\nZoë,Zürich\n李,北京\n",
		"padded":  "k,v\n\" lead\",1\n",
		"single":  "a\n1\n\"\"\n2\n",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			ds, err := ingest.Parse([]byte(in), name+".csv", ingest.DefaultOptions())
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			var out bytes.Buffer
			if err := WriteCSV(&out, ds); err != nil {
				t.Fatalf("WriteCSV: %v", err)
			}
			if out.String() != in {
				t.Fatalf("round trip changed bytes:\n got %q\nwant %q", out.String(), in)
			}
		})
	}
}

func TestWriteCSVReconstructsCells(t *testing.T) {
	in := "a;b;c\r\n1,5;NA;x\r\n;null;  spaced  \r\n"
	opt := ingest.DefaultOptions()
	opt.Delimiter = ';'
	ds, err := ingest.Parse([]byte(in), "semi.txt", opt)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var first bytes.Buffer
	if err := WriteCSV(&first, ds); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "a,b,c\n\"1,5\",,x\n,,\"  spaced  \"\n"
	if first.String() != want {
		t.Fatalf("export = %q, want %q", first.String(), want)
	}

	again, err := ingest.Parse(first.Bytes(), "again.csv", ingest.DefaultOptions())
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	for j, c := range ds.Columns {
		rc := again.Columns[j]
		if rc.Name != c.Name || rc.Len() != c.Len() {
			t.Fatalf("column %d = %q/%d, want %q/%d", j, rc.Name, rc.Len(), c.Name, c.Len())
		}
		for i := range c.Raw {
			if c.Missing[i] != rc.Missing[i] || (!c.Missing[i] && c.Raw[i] != rc.Raw[i]) {
				t.Fatalf("cell %s[%d] = %q, want %q", c.Name, i, rc.Raw[i], c.Raw[i])
			}
		}
	}
	var second bytes.Buffer
	if err := WriteCSV(&second, again); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("second export differs:\n%q\n%q", first.String(), second.String())
	}
}

func TestWriteCSVSingleColumnKeepsMissingRows(t *testing.T) {
	ds, err := ingest.Parse([]byte("a\n1\nNA\n2\n"), "one.csv", ingest.DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out bytes.Buffer
	if err := WriteCSV(&out, ds); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if want := "a\n1\n\"\"\n2\n"; out.String() != want {
		t.Fatalf("export = %q, want %q", out.String(), want)
	}
	again, err := ingest.Parse(out.Bytes(), "again.csv", ingest.DefaultOptions())
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if again.Rows() != 3 {
		t.Fatalf("rows = %d, want 3", again.Rows())
	}
	if a := again.Columns[0]; !a.Missing[1] || a.Missing[0] || a.Missing[2] {
		t.Fatalf("missing = %v, want only row 2", a.Missing)
	}
}

func TestWriteProfile(t *testing.T) {
	ds, err := ingest.Parse([]byte("a,b\n1,x\n2,y\n,z\n"), "sample.csv", ingest.DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rep := analysis.Profile(ds, analysis.DefaultOptions())

	var js bytes.Buffer
	if err := WriteProfile(&js, rep, JSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded struct {
		Name    string `json:"name"`
		Columns []struct {
			Name    string `json:"name"`
			Type    string `json:"type"`
			Missing int    `json:"missing"`
			Numeric *struct {
				Mean float64  `json:"mean"`
				Std  *float64 `json:"std"`
			} `json:"numeric"`
		} `json:"columns"`
	}
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded.Name != "sample.csv" || len(decoded.Columns) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	a := decoded.Columns[0]
	if a.Type != "numeric" || a.Missing != 1 || a.Numeric == nil || a.Numeric.Mean != 1.5 {
		t.Fatalf("column a = %+v", a)
	}

	var ym bytes.Buffer
	if err := WriteProfile(&ym, rep, YAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var generic map[string]any
	if err := yaml.Unmarshal(ym.Bytes(), &generic); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if generic["name"] != "sample.csv" || generic["rows"] != 3 {
		t.Fatalf("yaml = %v", generic)
	}

	var md bytes.Buffer
	if err := WriteProfile(&md, rep, Markdown); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	if !strings.Contains(md.String(), "- a: numeric") {
		t.Fatalf("markdown = %s", md.String())
	}
}

func TestParseProfileFormat(t *testing.T) {
	for in, want := range map[string]ProfileFormat{"JSON": JSON, ".yml": YAML, "md": Markdown, "": Markdown} {
		if got, err := ParseProfileFormat(in); err != nil || got != want {
			t.Errorf("ParseProfileFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseProfileFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}
