package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

var (
	// ErrCorruptHistory indicates the history file exists but could not be parsed.
	ErrCorruptHistory = errors.New("history: corrupt history file")
)

// Store holds every indicator series in memory and persists them to a single JSON file.
// It assumes a single writer; concurrent processes sharing a path lose updates.
type Store struct {
	path      string
	retention int
	series    map[string][]Point
	dirty     bool
}

// New returns an empty store bound to path.
func New(path string, retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		path:      path,
		retention: retention,
		series:    make(map[string][]Point),
	}
}

// Load reads the history file at path. A missing file yields an empty store.
// A file in the legacy single-series format is imported into AltRatio and the
// store is marked dirty so the next Save rewrites it in the current format.
func Load(path string, retention int) (*Store, error) {
	s := New(path, retention)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		points, err := decodeLegacy(trimmed)
		if err != nil {
			return nil, err
		}
		s.merge(AltRatio, points)
		return s, nil
	}

	var decoded map[string][]Point
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptHistory, path, err)
	}
	for name, points := range decoded {
		s.merge(name, points)
	}
	s.dirty = false
	return s, nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return s.path
}

// Retention returns the per-indicator cap.
func (s *Store) Retention() int {
	return s.retention
}

// Dirty reports whether the store has unsaved mutations.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Add records value for indicator on day, replacing any point already stored for that day.
func (s *Store) Add(indicator string, value float64, day time.Time) {
	s.put(indicator, Point{Date: Day(day), Value: value})
}

// History returns the most recent days points for indicator, oldest first.
// days <= 0 returns the whole series. Unknown indicators yield an empty slice.
func (s *Store) History(indicator string, days int) []Point {
	points := s.series[indicator]
	if days > 0 && len(points) > days {
		points = points[len(points)-days:]
	}
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// Values returns the values of History(indicator, days).
func (s *Store) Values(indicator string, days int) []float64 {
	points := s.History(indicator, days)
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

// Indicators lists stored indicator names in lexical order.
func (s *Store) Indicators() []string {
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save atomically replaces the history file with the full in-memory mapping.
func (s *Store) Save() error {
	if s.path == "" {
		return errors.New("history: path not configured")
	}

	payload, err := json.MarshalIndent(s.series, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp history: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace history: %w", err)
	}

	s.dirty = false
	return nil
}

func (s *Store) merge(indicator string, points []Point) {
	for _, p := range points {
		s.put(indicator, p)
	}
}

// put keeps the series sorted by date with one point per day, trimmed to retention.
func (s *Store) put(indicator string, p Point) {
	points := s.series[indicator]

	kept := make([]Point, 0, len(points)+1)
	for _, existing := range points {
		if existing.Date != p.Date {
			kept = append(kept, existing)
		}
	}

	idx := sort.Search(len(kept), func(i int) bool { return kept[i].Date > p.Date })
	kept = append(kept, Point{})
	copy(kept[idx+1:], kept[idx:])
	kept[idx] = p

	if len(kept) > s.retention {
		kept = kept[len(kept)-s.retention:]
	}

	s.series[indicator] = kept
	s.dirty = true
}
