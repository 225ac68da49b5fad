package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key       string                `json:"key" yaml:"key"`
	Size      int                   `json:"size" yaml:"size"`
	Metrics   map[string]NumSummary `json:"metrics" yaml:"metrics"` // by column name
	CorrPairs []PairCorr            `json:"corr_pairs,omitempty" yaml:"corr_pairs,omitempty"`
}

type NumSummary struct {
	Count int     `json:"count" yaml:"count"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Mean  float64 `json:"mean" yaml:"mean"`
}

const missingKey = "(missing)"

func groupBy(ds *dataset.Dataset, numCols []*dataset.Column, opt Options) ([]GroupResult, []string) {
	var warns []string
	var keyCols []*dataset.Column
	isKey := map[string]bool{}
	for _, name := range opt.GroupBy {
		name = strings.TrimSpace(name)
		c, _, ok := ds.Column(name)
		if !ok {
			warns = append(warns, fmt.Sprintf("group-by column %q not found; ignored", name))
			continue
		}
		if isKey[c.Name] {
			continue
		}
		isKey[c.Name] = true
		keyCols = append(keyCols, c)
	}
	if len(keyCols) == 0 {
		return nil, warns
	}

	members := map[string][]int{}
	parts := make([]string, len(keyCols))
	for i := 0; i < ds.Rows(); i++ {
		for k, c := range keyCols {
			val := missingKey
			if !c.Missing[i] {
				val = safeVal(strings.TrimSpace(c.Raw[i]))
			}
			parts[k] = fmt.Sprintf("%s=%s", c.Name, val)
		}
		key := strings.Join(parts, " | ")
		members[key] = append(members[key], i)
	}

	var metricCols []*dataset.Column
	for _, c := range numCols {
		if !isKey[c.Name] {
			metricCols = append(metricCols, c)
		}
	}

	out := make([]GroupResult, 0, len(members))
	for key, rows := range members {
		gr := GroupResult{Key: key, Size: len(rows), Metrics: map[string]NumSummary{}}
		for _, c := range metricCols {
			w := newWelford()
			for _, i := range rows {
				if !c.Missing[i] {
					w.add(c.Num[i])
				}
			}
			if w.n == 0 {
				continue
			}
			gr.Metrics[c.Name] = NumSummary{Count: w.n, Min: w.min, Max: w.max, Mean: w.mean}
		}
		if opt.CorrPerGroup && len(metricCols) >= 2 {
			gr.CorrPairs = definedPairs(metricCols, rows, 10)
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if opt.MaxGroups > 0 && len(out) > opt.MaxGroups {
		warns = append(warns, fmt.Sprintf("showing %d of %d groups", opt.MaxGroups, len(out)))
		out = out[:opt.MaxGroups]
	}
	return out, warns
}
