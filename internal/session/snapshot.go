package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/chart"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

const snapshotFileName = "session.json"

// IngestSettings is the persisted form of ingest.Options.
type IngestSettings struct {
	Format     string   `json:"format,omitempty"`
	Delimiter  string   `json:"delimiter,omitempty"`
	Encoding   string   `json:"encoding,omitempty"`
	SheetName  string   `json:"sheet_name,omitempty"`
	SheetIndex int      `json:"sheet_index,omitempty"`
	MaxRows    int      `json:"max_rows,omitempty"`
	Decimal    string   `json:"decimal_separator,omitempty"`
	Thousands  string   `json:"thousands_separator,omitempty"`
	Sentinels  []string `json:"sentinels,omitempty"`
}

// SettingsFrom captures opt for persistence.
func SettingsFrom(opt ingest.Options) IngestSettings {
	s := IngestSettings{
		Format:     string(opt.Format),
		Encoding:   opt.Encoding,
		SheetName:  opt.SheetName,
		SheetIndex: opt.SheetIndex,
		MaxRows:    opt.MaxRows,
		Sentinels:  opt.Parse.Sentinels,
	}
	s.Delimiter = ingest.SeparatorName(opt.Delimiter)
	s.Decimal = ingest.SeparatorName(opt.Parse.DecimalSeparator)
	s.Thousands = ingest.SeparatorName(opt.Parse.ThousandsSeparator)
	return s
}

// Options rebuilds the ingest options.
func (s IngestSettings) Options() (ingest.Options, error) {
	opt := ingest.DefaultOptions()
	f, err := ingest.ParseFormat(s.Format)
	if err != nil {
		return opt, err
	}
	opt.Format = f
	opt.Encoding = s.Encoding
	opt.SheetName = s.SheetName
	if s.SheetIndex > 0 {
		opt.SheetIndex = s.SheetIndex
	}
	opt.MaxRows = s.MaxRows
	if opt.Delimiter, err = ingest.ParseDelimiter(s.Delimiter); err != nil {
		return opt, err
	}
	if opt.Parse.DecimalSeparator, err = ingest.ParseDecimal(s.Decimal); err != nil {
		return opt, err
	}
	if opt.Parse.ThousandsSeparator, err = ingest.ParseThousands(s.Thousands); err != nil {
		return opt, err
	}
	opt.Parse = opt.Parse.WithSentinels(s.Sentinels)
	return opt, nil
}

// Snapshot is the on-disk record of a session: enough to replay it.
type Snapshot struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Source    string               `json:"source"`
	Ingest    IngestSettings       `json:"ingest"`
	Filters   []dataset.FilterSpec `json:"filters,omitempty"`
	LastChart *chart.Spec          `json:"last_chart,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`

	rootDir string
}

// NewSnapshot constructs an in-memory snapshot rooted at dir. Call Save to persist.
func NewSnapshot(id, name, dir string) *Snapshot {
	now := time.Now()
	return &Snapshot{ID: id, Name: name, CreatedAt: now, UpdatedAt: now, rootDir: dir}
}

// LoadSnapshot reads session.json from dir.
func LoadSnapshot(dir string) (*Snapshot, error) {
	path := filepath.Join(dir, snapshotFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	s.rootDir = dir
	return &s, nil
}

// RootDir returns the snapshot directory.
func (s *Snapshot) RootDir() string { return s.rootDir }

// Save writes session.json atomically.
func (s *Snapshot) Save() error {
	if s.rootDir == "" {
		return errors.New("session directory not set")
	}
	if err := utils.EnsureDir(s.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	s.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.rootDir, snapshotFileName), data)
}

// Record copies the replayable parts of st into the snapshot.
func (s *Snapshot) Record(st State, in ingest.Options) {
	s.Source = st.Source
	s.Ingest = SettingsFrom(in)
	s.Filters = append([]dataset.FilterSpec(nil), st.Filters...)
	s.LastChart = nil
	if st.LastChart != nil {
		spec := st.LastChart.Spec()
		s.LastChart = &spec
	}
}

// Restore replays the snapshot: upload of Source, the saved filters, then
// the last chart request. A chart that no longer resolves against the
// re-ingested data is dropped with a warning rather than failing the restore.
func (s *Snapshot) Restore(po analysis.Options) (State, []string, error) {
	st := New(s.ID)
	if s.Source == "" {
		return st, nil, nil
	}
	in, err := s.Ingest.Options()
	if err != nil {
		return st, nil, fmt.Errorf("session %s: %w", s.ID, err)
	}
	f, err := os.Open(s.Source)
	if err != nil {
		return st, nil, fmt.Errorf("session %s: open source: %w", s.ID, err)
	}
	defer f.Close()
	if st, err = Upload(st, f, s.Source, in, po); err != nil {
		return st, nil, err
	}
	if len(s.Filters) > 0 {
		if st, err = ApplyFilter(st, s.Filters...); err != nil {
			return st, nil, fmt.Errorf("session %s: replay filters: %w", s.ID, err)
		}
	}
	var warns []string
	if s.LastChart != nil {
		next, _, cerr := RequestChart(st, *s.LastChart)
		if cerr != nil {
			warns = append(warns, fmt.Sprintf("last chart dropped: %v", cerr))
		} else {
			st = next
		}
	}
	return st, warns, nil
}

// ListSnapshots loads every snapshot directly under root, newest first.
// Unreadable entries are skipped.
func ListSnapshots(root string) ([]*Snapshot, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []*Snapshot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := LoadSnapshot(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
