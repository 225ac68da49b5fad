package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/export"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/KaramelBytes/datalens-cli/internal/metrics"
	"github.com/KaramelBytes/datalens-cli/internal/session"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Work with saved sessions (dataset, filters, last chart)",
}

func sessionsRoot() (string, error) {
	dir := settings().SessionsDir
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, strings.TrimLeft(strings.TrimPrefix(dir, "~"), `/\`))
	}
	if dir == "" {
		return "", fmt.Errorf("sessions_dir is not configured")
	}
	return filepath.Clean(dir), nil
}

// checkSessionRef rejects ids and names that could escape the sessions root.
func checkSessionRef(ref string) error {
	switch {
	case strings.TrimSpace(ref) == "":
		return fmt.Errorf("empty session reference")
	case strings.ContainsAny(ref, `/\`) || strings.Contains(ref, ".."):
		return fmt.Errorf("invalid session reference %q: must not contain path separators or '..'", ref)
	}
	return nil
}

// findSession resolves a session by id, unique id prefix, or name.
func findSession(ref string) (*session.Snapshot, error) {
	if err := checkSessionRef(ref); err != nil {
		return nil, err
	}
	root, err := sessionsRoot()
	if err != nil {
		return nil, err
	}
	if s, err := session.LoadSnapshot(filepath.Join(root, ref)); err == nil {
		return s, nil
	}
	all, err := session.ListSnapshots(root)
	if err != nil {
		return nil, err
	}
	var hits []*session.Snapshot
	for _, s := range all {
		if s.Name == ref || strings.HasPrefix(s.ID, ref) {
			hits = append(hits, s)
		}
	}
	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("session %q not found in %s", ref, root)
	case 1:
		return hits[0], nil
	}
	return nil, fmt.Errorf("session %q is ambiguous (%d matches)", ref, len(hits))
}

// restoreSession replays a snapshot and reports dropped parts as warnings.
func restoreSession(snap *session.Snapshot) (session.State, ingest.Options, error) {
	in, err := snap.Ingest.Options()
	if err != nil {
		return session.State{}, in, err
	}
	st, warns, err := snap.Restore(profileDefaults())
	if err != nil {
		if metrics.ErrorKind(err) != "other" {
			mets.IngestFailed(err)
		}
		return st, in, err
	}
	for _, w := range warns {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", w)
	}
	return st, in, nil
}

func saveSession(snap *session.Snapshot, st session.State, in ingest.Options) error {
	snap.Record(st, in)
	return snap.Save()
}

var (
	snName   string
	snIngest ingestFlags
	snTable  tableFlags
)

var sessionNewCmd = &cobra.Command{
	Use:   "new <file>",
	Short: "Create a session from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if snName != "" {
			if err := checkSessionRef(snName); err != nil {
				return err
			}
		}
		in, err := snIngest.options(cmd)
		if err != nil {
			return err
		}
		src, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		filters, err := snTable.filters()
		if err != nil {
			return err
		}
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		st, err := session.Upload(session.New(uuid.NewString()), f, src, in, profileDefaults())
		if err != nil {
			mets.IngestFailed(err)
			return err
		}
		if len(filters) > 0 {
			if st, err = session.ApplyFilter(st, filters...); err != nil {
				return err
			}
		}
		root, err := sessionsRoot()
		if err != nil {
			return err
		}
		name := snName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		}
		snap := session.NewSnapshot(st.ID, name, filepath.Join(root, st.ID))
		if err := saveSession(snap, st, in); err != nil {
			return err
		}
		fmt.Printf("✓ Created session '%s' (%s)\n", name, st.ID)
		fmt.Println(st.Summary())
		return nil
	},
}

var (
	slJSON bool
	slYAML bool
)

var sessionLoadCmd = &cobra.Command{
	Use:   "load <id|name>",
	Short: "Replay a session and print its profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := findSession(args[0])
		if err != nil {
			return err
		}
		st, _, err := restoreSession(snap)
		if err != nil {
			return err
		}
		format := export.Markdown
		switch {
		case slJSON:
			format = export.JSON
		case slYAML:
			format = export.YAML
		}
		fmt.Fprintln(os.Stderr, st.Summary())
		if st.Report == nil {
			return nil
		}
		return export.WriteProfile(os.Stdout, st.Report, format)
	},
}

var (
	sfTable tableFlags
	sfClear bool
)

var sessionFilterCmd = &cobra.Command{
	Use:   "filter <id|name>",
	Short: "Replace a session's row filters (--where/--range) or clear them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := sfTable.filters()
		if err != nil {
			return err
		}
		if len(filters) == 0 && !sfClear {
			return fmt.Errorf("give --where/--range filters or --clear")
		}
		snap, err := findSession(args[0])
		if err != nil {
			return err
		}
		st, in, err := restoreSession(snap)
		if err != nil {
			return err
		}
		if st, err = session.ApplyFilter(st, filters...); err != nil {
			return err
		}
		if err := saveSession(snap, st, in); err != nil {
			return err
		}
		fmt.Printf("✓ %s\n", st.Summary())
		return nil
	},
}

var scFlags chartFlags

var sessionChartCmd = &cobra.Command{
	Use:   "chart <id|name> <kind>",
	Short: "Resolve a chart against the session dataset, render it, and remember it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := findSession(args[0])
		if err != nil {
			return err
		}
		spec, err := scFlags.spec(args[1])
		if err != nil {
			return err
		}
		st, in, err := restoreSession(snap)
		if err != nil {
			return err
		}
		next, req, err := session.RequestChart(st, spec)
		mets.ChartRequested(spec.Kind, err)
		if err != nil {
			return err
		}
		if scFlags.output != "" {
			if err := renderChart(next.Dataset, req, &scFlags); err != nil {
				return err
			}
			fmt.Printf("✓ Rendered %s to %s\n", req, scFlags.output)
		} else {
			fmt.Printf("✓ %s\n", req)
		}
		return saveSession(snap, next, in)
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id|name>",
	Short: "Print a session's saved record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := findSession(args[0])
		if err != nil {
			return err
		}
		b, err := utils.PrettyJSON(snap)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := sessionsRoot()
		if err != nil {
			return err
		}
		all, err := session.ListSnapshots(root)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("(no sessions)")
			return nil
		}
		for _, s := range all {
			line := fmt.Sprintf("- %s  %s  %s", s.ID, s.Name, filepath.Base(s.Source))
			if s.LastChart != nil {
				line += "  [" + string(s.LastChart.Kind) + "]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id|name>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := findSession(args[0])
		if err != nil {
			return err
		}
		if err := os.RemoveAll(snap.RootDir()); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Printf("✓ Deleted session '%s' (%s)\n", snap.Name, snap.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd, sessionLoadCmd, sessionFilterCmd, sessionChartCmd,
		sessionShowCmd, sessionListCmd, sessionDeleteCmd)

	sessionNewCmd.Flags().StringVar(&snName, "name", "", "session name (default: file name)")
	snIngest.register(sessionNewCmd)
	snTable.register(sessionNewCmd, false)

	sessionLoadCmd.Flags().BoolVar(&slJSON, "json", false, "emit the profile as JSON")
	sessionLoadCmd.Flags().BoolVar(&slYAML, "yaml", false, "emit the profile as YAML")

	sfTable.register(sessionFilterCmd, false)
	sessionFilterCmd.Flags().BoolVar(&sfClear, "clear", false, "remove all filters")

	scFlags.register(sessionChartCmd)
}
