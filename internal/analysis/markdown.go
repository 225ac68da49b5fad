package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Markdown renders a compact, human-readable report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Columns)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Columns {
		name := safeName(c.Name)
		if c.Unit != "" && !strings.Contains(name, c.Unit) {
			name = fmt.Sprintf("%s [%s]", name, c.Unit)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-missing %d, missing %.1f%%, unique %d)", name, c.Type, c.NonMissing, c.MissingPct(), c.Unique))
		switch {
		case c.Numeric != nil:
			n := c.Numeric
			std := "n/a"
			if n.Std != nil {
				std = fmt.Sprintf("%.4g", *n.Std)
			}
			b.WriteString(fmt.Sprintf(" — min %.4g, q1 %.4g, median %.4g, q3 %.4g, max %.4g, mean %.4g, std %s",
				n.Min, n.Q1, n.Median, n.Q3, n.Max, n.Mean, std))
			if n.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", n.Outliers, n.OutlierThreshold))
				if n.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", n.OutliersMaxAbsZ))
				}
			}
		case c.Text != nil:
			if len(c.Text.TopValues) > 0 {
				b.WriteString(" — top: ")
				writeCounts(&b, c.Text.TopValues)
			}
			if c.Text.TotalTokens > 0 {
				b.WriteString(fmt.Sprintf("; words %d (%d distinct)", c.Text.TotalTokens, c.Text.DistinctTokens))
				if len(c.Text.Tokens) > 0 {
					top := c.Text.Tokens
					if len(top) > 5 {
						top = top[:5]
					}
					b.WriteString(": ")
					writeCounts(&b, top)
				}
			}
		case c.Temporal != nil:
			b.WriteString(fmt.Sprintf(" — from %s to %s", c.Temporal.Min.Format("2006-01-02 15:04:05"), c.Temporal.Max.Format("2006-01-02 15:04:05")))
		case c.Boolean != nil:
			b.WriteString(fmt.Sprintf(" — true %d, false %d", c.Boolean.True, c.Boolean.False))
		}
		b.WriteString("\n")
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range r.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Min, m.Max))
			}
		}
		hasGCorr := false
		for _, g := range r.Groups {
			if len(g.CorrPairs) > 0 {
				hasGCorr = true
				break
			}
		}
		if hasGCorr {
			b.WriteString("\n[PER-GROUP CORRELATIONS]\n")
			for _, g := range r.Groups {
				if len(g.CorrPairs) == 0 {
					continue
				}
				b.WriteString(fmt.Sprintf("- %s:\n", g.Key))
				lim := min(8, len(g.CorrPairs))
				for _, p := range g.CorrPairs[:lim] {
					b.WriteString(fmt.Sprintf("  • %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
				}
			}
		}
	}
	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range r.Corr.TopPairs(10) {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range r.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeVal(safeName(c.Name)))
		}
		b.WriteString(" |\n| ")
		for i := range r.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Columns {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeCounts(b *strings.Builder, counts []CategoryCount) {
	for i, kv := range counts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
	}
}

// TypeCounts tallies columns per type tag.
func (r *Report) TypeCounts() map[dataset.Type]int {
	out := make(map[dataset.Type]int, 4)
	for _, c := range r.Columns {
		out[c.Type]++
	}
	return out
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
