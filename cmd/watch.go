package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/export"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/KaramelBytes/datalens-cli/internal/session"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	wIngest      ingestFlags
	wProfile     profileFlags
	wFull        bool
	wDebounce    time.Duration
	wMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch <files...>",
	Short: "Re-profile files whenever they change",
	Long: `Watch one or more files and re-profile each on every change. A change that
fails to ingest is reported and the previous dataset is kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		in, err := wIngest.options(cmd)
		if err != nil {
			return err
		}
		ttl := time.Duration(settings().SessionTTLMin) * time.Minute
		store := session.NewStore(ttl, logger())
		defer store.Close()

		fw := newFileWatch(store, in, wProfile.options(cmd), cmd.OutOrStdout())
		for _, f := range files {
			abs, err := filepath.Abs(f)
			if err != nil {
				return err
			}
			fw.reload(abs)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if wMetricsAddr != "" {
			srv := &http.Server{Addr: wMetricsAddr, Handler: metricsMux()}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger().WithError(err).Error("metrics server stopped")
				}
			}()
			defer srv.Close()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %d file(s); press Ctrl+C to stop\n", len(files))
		return watchFiles(ctx, fw.paths(), wDebounce, fw.reload)
	},
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mets.Handler())
	return mux
}

// fileWatch keeps one session per watched file.
type fileWatch struct {
	store *session.Store
	in    ingest.Options
	popt  analysis.Options
	out   io.Writer

	mu  sync.Mutex
	ids map[string]string
}

func newFileWatch(store *session.Store, in ingest.Options, popt analysis.Options, out io.Writer) *fileWatch {
	return &fileWatch{store: store, in: in, popt: popt, out: out, ids: map[string]string{}}
}

func (w *fileWatch) paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.ids))
	for p := range w.ids {
		out = append(out, p)
	}
	return out
}

// sessionFor returns the live session id for path, creating one when the
// file is new or its session expired.
func (w *fileWatch) sessionFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id, ok := w.ids[path]; ok {
		if _, live := w.store.Get(id); live {
			return id
		}
	}
	id := w.store.Create().ID
	w.ids[path] = id
	return id
}

// reload re-ingests path into its session and prints the outcome.
func (w *fileWatch) reload(path string) {
	id := w.sessionFor(path)
	entry := logger().WithFields(logrus.Fields{"file": path, "session": id})
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(w.out, "✗ %s: %v\n", filepath.Base(path), err)
		return
	}
	st, err := w.store.Update(id, func(cur session.State) (session.State, error) {
		return session.Upload(cur, bytes.NewReader(data), path, w.in, w.popt)
	})
	if err != nil {
		mets.IngestFailed(err)
		entry.WithError(err).Debug("reload failed")
		if st.Loaded() {
			fmt.Fprintf(w.out, "✗ %s: %v (keeping previous dataset, %d rows)\n", filepath.Base(path), err, st.Dataset.Rows())
		} else {
			fmt.Fprintf(w.out, "✗ %s: %v\n", filepath.Base(path), err)
		}
		return
	}
	f, _ := ingest.DetectFormat(path, data, w.in.Format)
	mets.Ingested(f)
	entry.WithField("version", st.Version).Debug("reloaded")
	if wFull {
		if err := export.WriteMarkdown(w.out, st.Report); err != nil {
			entry.WithError(err).Debug("report write failed")
			fmt.Fprintf(w.out, "✗ %s: %v\n", filepath.Base(path), err)
			return
		}
		fmt.Fprintln(w.out)
		return
	}
	fmt.Fprintf(w.out, "✓ %s: %d rows x %d columns (%s) v%d\n",
		filepath.Base(path), st.Dataset.Rows(), len(st.Dataset.Columns), typeSummary(st.Report), st.Version)
}

func typeSummary(rep *analysis.Report) string {
	counts := rep.TypeCounts()
	var parts []string
	for _, t := range dataset.Types() {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, t))
		}
	}
	return strings.Join(parts, ", ")
}

// watchFiles calls onChange, debounced per file, whenever one of paths is
// written or re-created. It watches the parent directories so editors that
// replace files on save are seen. It returns when ctx is done.
func watchFiles(ctx context.Context, paths []string, debounce time.Duration, onChange func(string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		wanted[abs] = true
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			if !wanted[abs] {
				continue
			}
			mu.Lock()
			if t, exists := timers[abs]; exists {
				t.Stop()
			}
			timers[abs] = time.AfterFunc(debounce, func() { onChange(abs) })
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger().WithError(err).Warn("watcher error")
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
	wIngest.register(watchCmd)
	wProfile.register(watchCmd)
	watchCmd.Flags().BoolVar(&wFull, "full", false, "print the full Markdown profile after every change")
	watchCmd.Flags().DurationVar(&wDebounce, "debounce", 300*time.Millisecond, "quiet period before re-profiling a changed file")
	watchCmd.Flags().StringVar(&wMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}
