package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/chart"
	"github.com/KaramelBytes/datalens-cli/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag of c and its subcommands to its default so
// values do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args under an isolated HOME.
func execCmd(args ...string) error {
	resetFlags(rootCmd)
	cfg = nil
	log = nil
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) {
	t.Helper()
	if err := execCmd(args...); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const exampleCSV = "a,b\n1,x\n2,y\n,z\n"

func TestCLI_ExportRoundTripAndProfileJSON(t *testing.T) {
	home := isolate(t)
	src := writeFile(t, filepath.Join(home, "example.csv"), exampleCSV)

	out := filepath.Join(home, "out.csv")
	runCmd(t, "export", src, "-o", out)
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(got) != exampleCSV {
		t.Fatalf("export = %q, want %q", got, exampleCSV)
	}

	prof := filepath.Join(home, "profile.json")
	runCmd(t, "profile", src, "-o", prof)
	b, err := os.ReadFile(prof)
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	var rep analysis.Report
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if rep.Rows != 3 || len(rep.Columns) != 2 {
		t.Fatalf("report shape %d x %d", rep.Rows, len(rep.Columns))
	}
	a := rep.Columns[0]
	if a.Name != "a" || a.Type != "numeric" || a.Missing != 1 || a.Numeric == nil || a.Numeric.Mean != 1.5 {
		t.Fatalf("column a = %+v", a)
	}
	if rep.Columns[1].Type != "textual" {
		t.Fatalf("column b type = %s", rep.Columns[1].Type)
	}
}

func TestCLI_ExportFilterSortSelect(t *testing.T) {
	home := isolate(t)
	src := writeFile(t, filepath.Join(home, "sales.csv"),
		"region,units,note\nnorth,10,a\nsouth,4,b\nnorth,6,c\neast,,d\n")
	out := filepath.Join(home, "north.csv")
	runCmd(t, "export", src, "--where", "region=north,south", "--range", "units=5:", "--sort", "units", "--columns", "units,region", "-o", out)
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if want := "units,region\n6,north\n10,north\n"; string(got) != want {
		t.Fatalf("export = %q, want %q", got, want)
	}
}

func TestCLI_ProfileOutDirAvoidsOverwrite(t *testing.T) {
	home := isolate(t)
	csv := "col1,col2\nA,1\nB,2\nC,3\n"
	writeFile(t, filepath.Join(home, "d1", "metrics.csv"), csv)
	writeFile(t, filepath.Join(home, "d2", "metrics.csv"), csv)

	outDir := filepath.Join(home, "profiles")
	runCmd(t, "profile", filepath.Join(home, "d*", "metrics.csv"), "--out-dir", outDir, "--sample-rows", "0", "--quiet")

	for _, name := range []string{"metrics.profile.md", "metrics__2.profile.md"} {
		body, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if strings.Contains(string(body), "[HEAD AND SAMPLE ROWS]") {
			t.Fatalf("expected no sample rows in %s", name)
		}
		if !strings.Contains(string(body), "[SCHEMA]") {
			t.Fatalf("no schema section in %s", name)
		}
	}
}

func TestCLI_ChartValidationAndRender(t *testing.T) {
	home := isolate(t)
	src := writeFile(t, filepath.Join(home, "example.csv"), exampleCSV)

	err := execCmd("chart", "scatter", src, "--columns", "a,b", "--check")
	var ice *chart.IncompatibleColumnError
	if !errors.As(err, &ice) || ice.Column != "b" {
		t.Fatalf("err = %v, want IncompatibleColumnError naming b", err)
	}
	err = execCmd("chart", "wordcloud", src, "--columns", "a", "--check")
	if !errors.As(err, &ice) || ice.Column != "a" {
		t.Fatalf("err = %v, want IncompatibleColumnError naming a", err)
	}

	img := filepath.Join(home, "hist.svg")
	runCmd(t, "chart", "histogram", src, "--columns", "a", "-o", img)
	body, err := os.ReadFile(img)
	if err != nil {
		t.Fatalf("read chart: %v", err)
	}
	if !strings.Contains(string(body), "<svg") {
		t.Fatalf("not an SVG: %.60q", body)
	}
}

func TestCLI_SessionLifecycle(t *testing.T) {
	home := isolate(t)
	src := writeFile(t, filepath.Join(home, "sales.csv"),
		"region,units,note\nnorth,10,fine\nsouth,4,late\nnorth,6,fine\neast,,lost\n")

	runCmd(t, "session", "new", src, "--name", "weekly")
	root := filepath.Join(home, ".datalens", "sessions")
	list, err := session.ListSnapshots(root)
	if err != nil || len(list) != 1 {
		t.Fatalf("snapshots = %d, %v", len(list), err)
	}
	id := list[0].ID

	runCmd(t, "session", "chart", "weekly", "bar", "--columns", "region,units", "--agg", "sum")
	runCmd(t, "session", "filter", id[:8], "--where", "region=north")
	runCmd(t, "session", "load", "weekly", "--json")
	runCmd(t, "session", "show", id)
	runCmd(t, "session", "list")

	snap, err := session.LoadSnapshot(filepath.Join(root, id))
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.LastChart == nil || snap.LastChart.Kind != chart.Bar || snap.LastChart.Aggregation != chart.AggSum {
		t.Fatalf("last chart = %+v", snap.LastChart)
	}
	if len(snap.Filters) != 1 || snap.Filters[0].Column != "region" {
		t.Fatalf("filters = %+v", snap.Filters)
	}
	st, _, err := restoreSession(snap)
	if err != nil || st.Dataset.Rows() != 2 {
		t.Fatalf("restore: %v", err)
	}

	if err := execCmd("session", "chart", "weekly", "scatter", "--columns", "region,units"); err == nil {
		t.Fatal("expected incompatible column error")
	}
	again, _ := session.LoadSnapshot(filepath.Join(root, id))
	if again.LastChart == nil || again.LastChart.Kind != chart.Bar {
		t.Fatal("rejected chart replaced the saved one")
	}

	outside := filepath.Join(home, ".datalens", "keep")
	writeFile(t, filepath.Join(outside, "data.txt"), "x")
	for _, ref := range []string{"../keep", "..", `..\keep`, outside, " "} {
		if err := execCmd("session", "delete", ref); err == nil {
			t.Fatalf("delete %q: expected error", ref)
		}
	}
	if _, err := os.Stat(filepath.Join(outside, "data.txt")); err != nil {
		t.Fatalf("directory outside the sessions root was touched: %v", err)
	}
	if err := execCmd("session", "new", src, "--name", "../weekly"); err == nil {
		t.Fatal("expected error for a name with a path separator")
	}

	runCmd(t, "session", "delete", "weekly")
	if _, err := os.Stat(filepath.Join(root, id)); !os.IsNotExist(err) {
		t.Fatalf("session dir still present: %v", err)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "cfg.yaml")
	runCmd(t, "--config", path, "config", "set", "histogram_bins", "12")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "histogram_bins: 12") {
		t.Fatalf("config file:\n%s", b)
	}
	if err := execCmd("--config", path, "config", "set", "nope", "1"); err == nil {
		t.Fatal("expected unknown key error")
	}
	runCmd(t, "kinds")
}
