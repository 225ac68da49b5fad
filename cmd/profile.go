package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/export"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	profIngest ingestFlags
	profOpts   profileFlags
	profTable  tableFlags
	profOutput string
	profOutDir string
	profAs     string
	profJSON   bool
	profYAML   bool
	profQuiet  bool
)

var profileCmd = &cobra.Command{
	Use:     "profile <files...>",
	Aliases: []string{"analyze"},
	Short:   "Profile CSV/TSV/XLSX files: column types, missing values, statistics",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		in, err := profIngest.options(cmd)
		if err != nil {
			return err
		}
		popt := profOpts.options(cmd)
		format, err := profileFormat()
		if err != nil {
			return err
		}
		if len(files) > 1 && profOutput != "" {
			return fmt.Errorf("--output takes a single input; use --out-dir for %d files", len(files))
		}

		total := len(files)
		for i, path := range files {
			if total > 1 && !profQuiet {
				fmt.Printf("[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			ds, err := loadDataset(path, in)
			if err != nil {
				return err
			}
			if ds, err = profTable.apply(ds); err != nil {
				return err
			}
			rep := profileDataset(ds, popt)
			var buf bytes.Buffer
			if err := export.WriteProfile(&buf, rep, format); err != nil {
				return err
			}

			switch {
			case profOutput != "":
				if err := utils.SafeWriteFile(profOutput, buf.Bytes()); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Printf("✓ Wrote profile to %s\n", profOutput)
			case profOutDir != "":
				out, err := uniqueOutputPath(profOutDir, path, ".profile"+extFor(format))
				if err != nil {
					return err
				}
				if err := utils.SafeWriteFile(out, buf.Bytes()); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				if !profQuiet {
					fmt.Printf("✓ Wrote profile to %s\n", out)
				}
			default:
				fmt.Println(strings.TrimRight(buf.String(), "\n"))
			}
		}
		return nil
	},
}

func profileFormat() (export.ProfileFormat, error) {
	switch {
	case profJSON && profYAML:
		return "", fmt.Errorf("--json and --yaml are mutually exclusive")
	case profJSON:
		return export.JSON, nil
	case profYAML:
		return export.YAML, nil
	case profAs != "":
		return export.ParseProfileFormat(profAs)
	case profOutput != "":
		if f, err := export.ParseProfileFormat(filepath.Ext(profOutput)); err == nil {
			return f, nil
		}
	}
	return export.Markdown, nil
}

func extFor(f export.ProfileFormat) string {
	switch f {
	case export.JSON:
		return ".json"
	case export.YAML:
		return ".yaml"
	}
	return ".md"
}

// expandInputs resolves globs, keeps literal paths that exist, and drops duplicates.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err != nil {
				return nil, fmt.Errorf("input %s: %w", arg, err)
			}
			matches = []string{arg}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// uniqueOutputPath names the output after the input file and appends __2, __3...
// when a file with that name already exists.
func uniqueOutputPath(dir, input, suffix string) (string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	out := filepath.Join(dir, base+suffix)
	for idx := 2; ; idx++ {
		if _, err := os.Stat(out); os.IsNotExist(err) {
			return out, nil
		}
		out = filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, idx, suffix))
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profIngest.register(profileCmd)
	profOpts.register(profileCmd)
	profTable.register(profileCmd, true)
	profileCmd.Flags().StringVarP(&profOutput, "output", "o", "", "write the profile to this file (format from extension)")
	profileCmd.Flags().StringVar(&profOutDir, "out-dir", "", "write one <name>.profile.<ext> per input into this directory")
	profileCmd.Flags().StringVar(&profAs, "as", "", "profile format: markdown|json|yaml")
	profileCmd.Flags().BoolVar(&profJSON, "json", false, "emit the profile as JSON")
	profileCmd.Flags().BoolVar(&profYAML, "yaml", false, "emit the profile as YAML")
	profileCmd.Flags().BoolVar(&profQuiet, "quiet", false, "suppress progress and non-essential output")
}
