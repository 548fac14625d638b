package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ImportLegacy merges a legacy single-series file ({date, ratio}[]) into the AltRatio
// series of the history file at path. It does nothing when path already exists, so
// repeated invocations import at most once. It returns the number of imported points.
func ImportLegacy(path, legacyPath string, retention int) (int, error) {
	if legacyPath == "" || legacyPath == path {
		return 0, nil
	}
	if _, err := os.Stat(path); err == nil {
		return 0, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("stat history: %w", err)
	}

	raw, err := os.ReadFile(legacyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read legacy history: %w", err)
	}

	points, err := decodeLegacy(raw)
	if err != nil {
		return 0, err
	}

	s := New(path, retention)
	s.merge(AltRatio, points)
	if err := s.Save(); err != nil {
		return 0, err
	}
	return len(s.series[AltRatio]), nil
}

func decodeLegacy(raw []byte) ([]Point, error) {
	var entries []legacyPoint
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: legacy format: %v", ErrCorruptHistory, err)
	}
	points := make([]Point, 0, len(entries))
	for _, e := range entries {
		if e.Date == "" {
			continue
		}
		points = append(points, Point{Date: e.Date, Value: e.Ratio})
	}
	return points, nil
}
