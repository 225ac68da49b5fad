package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/KaramelBytes/datalens-cli/internal/session"
)

func TestFileWatchKeepsPreviousDatasetOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "live.csv"), "a,b\n1,x\n2,y\n")

	store := session.NewStore(time.Minute, logger())
	defer store.Close()
	var out bytes.Buffer
	fw := newFileWatch(store, ingest.DefaultOptions(), analysis.DefaultOptions(), &out)

	fw.reload(path)
	if !strings.Contains(out.String(), "✓ live.csv: 2 rows x 2 columns (1 numeric, 1 textual) v1") {
		t.Fatalf("first reload output: %q", out.String())
	}

	writeFile(t, path, "")
	out.Reset()
	fw.reload(path)
	if !strings.Contains(out.String(), "keeping previous dataset, 2 rows") {
		t.Fatalf("failed reload output: %q", out.String())
	}
	st, ok := store.Get(fw.sessionFor(path))
	if !ok || st.Dataset.Rows() != 2 || st.Version != 1 {
		t.Fatalf("state after failed reload: %s", st.Summary())
	}

	writeFile(t, path, "a,b\n1,x\n2,y\n3,z\n")
	out.Reset()
	fw.reload(path)
	if !strings.Contains(out.String(), "3 rows") || !strings.Contains(out.String(), "v2") {
		t.Fatalf("third reload output: %q", out.String())
	}
	if got := fw.paths(); len(got) != 1 || got[0] != path {
		t.Fatalf("paths = %v", got)
	}
}

// flakyWriter fails its first write and records the rest.
type flakyWriter struct {
	failed bool
	buf    bytes.Buffer
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	if !f.failed {
		f.failed = true
		return 0, errors.New("disk full")
	}
	return f.buf.Write(p)
}

func TestFileWatchReportsReportWriteFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "full.csv"), "a,b\n1,x\n2,y\n")

	wFull = true
	defer func() { wFull = false }()
	store := session.NewStore(time.Minute, logger())
	defer store.Close()
	out := &flakyWriter{}
	fw := newFileWatch(store, ingest.DefaultOptions(), analysis.DefaultOptions(), out)

	fw.reload(path)
	if got := out.buf.String(); got != "✗ full.csv: disk full\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestWatchFilesDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "data.csv"), "a\n1\n")
	writeFile(t, filepath.Join(dir, "other.csv"), "a\n1\n")

	changed := make(chan string, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchFiles(ctx, []string{path}, 150*time.Millisecond, func(p string) { changed <- p }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "other.csv"), "a\n2\n")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("a\n"+strings.Repeat("2\n", i+1)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case p := <-changed:
		if p != path {
			t.Fatalf("changed %s, want %s", p, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	// The burst of writes collapses into one call.
	select {
	case p := <-changed:
		t.Fatalf("extra notification for %s", p)
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watchFiles: %v", err)
	}
}
