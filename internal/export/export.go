package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

// WriteCSV writes ds as RFC 4180 CSV with "\n" line endings: the header in
// column order, then every row with missing cells as empty fields and other
// cells as their original text. Equal datasets produce identical bytes.
// In a single-column table an empty cell is written as "" so the row is not
// read back as a blank line.
func WriteCSV(w io.Writer, ds *dataset.Dataset) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	if err := cw.Write(ds.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	single := len(ds.Columns) == 1
	rec := make([]string, len(ds.Columns))
	for i := 0; i < ds.Rows(); i++ {
		for j, c := range ds.Columns {
			rec[j] = c.Value(i)
		}
		if single && rec[0] == "" {
			cw.Flush()
			if _, err := bw.WriteString("\"\"\n"); err != nil {
				return fmt.Errorf("write row %d: %w", i+1, err)
			}
			continue
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ProfileFormat selects the encoding of an exported profile.
type ProfileFormat string

const (
	JSON     ProfileFormat = "json"
	YAML     ProfileFormat = "yaml"
	Markdown ProfileFormat = "markdown"
)

// ParseProfileFormat maps a name or file extension to a ProfileFormat.
func ParseProfileFormat(s string) (ProfileFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "md", "markdown", "":
		return Markdown, nil
	}
	return "", fmt.Errorf("unsupported profile format %q (use json|yaml|markdown)", s)
}

// WriteProfile encodes rep in the given format.
func WriteProfile(w io.Writer, rep *analysis.Report, format ProfileFormat) error {
	switch format {
	case JSON:
		b, err := utils.PrettyJSON(rep)
		if err != nil {
			return err
		}
		_, err = w.Write(append(b, '\n'))
		return err
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case Markdown:
		return WriteMarkdown(w, rep)
	}
	return fmt.Errorf("unsupported profile format %q", format)
}

// WriteMarkdown writes the human-readable report.
func WriteMarkdown(w io.Writer, rep *analysis.Report) error {
	_, err := io.WriteString(w, rep.Markdown())
	return err
}
