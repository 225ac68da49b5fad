// Package session models one user's working set as explicit state
// transitions: every interaction maps (prior State, input) to a new State.
package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/chart"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
)

// ErrNoDataset is returned by transitions that need a loaded dataset.
var ErrNoDataset = errors.New("no dataset loaded; upload a file first")

// State is an immutable session value. Transitions never modify their input;
// the Dataset and Report of a State are shared read-only between versions.
type State struct {
	ID      string
	Source  string
	Dataset *dataset.Dataset
	Report  *analysis.Report
	// LastChart is the most recent successfully resolved chart request.
	LastChart *chart.Request
	Filters   []dataset.FilterSpec
	// Version increases by one with every successful transition.
	Version int

	// loaded is the unfiltered dataset from the last upload.
	loaded     *dataset.Dataset
	profileOpt analysis.Options
}

// New returns an empty state with the given id.
func New(id string) State {
	return State{ID: id, profileOpt: analysis.DefaultOptions()}
}

// Loaded reports whether a dataset is present.
func (s State) Loaded() bool { return s.Dataset != nil }

// ProfileOptions returns the options used to compute Report.
func (s State) ProfileOptions() analysis.Options { return s.profileOpt }

// Upload ingests r and replaces the dataset, report and filters. The last
// chart request is cleared because it referenced the old columns. On failure
// prev is returned unchanged alongside the error.
func Upload(prev State, r io.Reader, name string, in ingest.Options, po analysis.Options) (State, error) {
	ds, err := ingest.Read(r, name, in)
	if err != nil {
		return prev, err
	}
	next := prev
	next.Source = name
	next.loaded = ds
	next.Dataset = ds
	next.Filters = nil
	next.profileOpt = po
	next.Report = analysis.Profile(ds, po)
	next.LastChart = nil
	next.Version++
	return next, nil
}

// RequestChart resolves spec against the current dataset and records it as
// the last chart request.
func RequestChart(prev State, spec chart.Spec) (State, *chart.Request, error) {
	if prev.Dataset == nil {
		return prev, nil, ErrNoDataset
	}
	req, err := chart.Resolve(prev.Dataset, spec)
	if err != nil {
		return prev, nil, err
	}
	next := prev
	next.LastChart = req
	next.Version++
	return next, req, nil
}

// ApplyFilter replaces the active filters and recomputes the dataset from
// the last upload. Calling it with no filters restores the full dataset.
// Column types are unchanged by filtering, so the last chart request stays valid.
func ApplyFilter(prev State, filters ...dataset.FilterSpec) (State, error) {
	if prev.loaded == nil {
		return prev, ErrNoDataset
	}
	ds, err := dataset.Apply(prev.loaded, filters...)
	if err != nil {
		return prev, err
	}
	next := prev
	next.Dataset = ds
	next.Filters = append([]dataset.FilterSpec(nil), filters...)
	next.Report = analysis.Profile(ds, prev.profileOpt)
	next.Version++
	return next, nil
}

// Summary is a one-line description for listings.
func (s State) Summary() string {
	if s.Dataset == nil {
		return fmt.Sprintf("%s: empty (v%d)", s.ID, s.Version)
	}
	out := fmt.Sprintf("%s: %s, %d rows x %d columns (v%d)", s.ID, s.Source, s.Dataset.Rows(), len(s.Dataset.Columns), s.Version)
	if len(s.Filters) > 0 {
		out += fmt.Sprintf(", %d filter(s)", len(s.Filters))
	}
	if s.LastChart != nil {
		out += ", last chart " + s.LastChart.String()
	}
	return out
}
