// Package extract reads the current semantic identifiers of each class from
// tabular sources.
//
// A source's class is the stem of its file name: data/PropertyValue.csv
// holds PropertyValue records. That convention lives only in this package;
// everything downstream receives class names explicitly.
package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hargabyte/stableid/internal/table"
)

// Source is one tabular file and the class its rows belong to.
type Source struct {
	Path  string
	Class string
}

// ClassFromPath returns the class name for a source file.
func ClassFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Discover expands pattern (relative to dir, when dir is non-empty) and
// returns the matching sources sorted by path. Hidden files, whose names
// start with a dot, only match a pattern that itself starts with a dot.
func Discover(dir, pattern string) ([]Source, error) {
	full := pattern
	if dir != "" {
		full = filepath.Join(dir, pattern)
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, fmt.Errorf("invalid source pattern %q: %w", full, err)
	}
	sort.Strings(matches)

	hidden := strings.HasPrefix(filepath.Base(full), ".")
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		if !hidden && strings.HasPrefix(filepath.Base(m), ".") {
			continue
		}
		sources = append(sources, Source{Path: m, Class: ClassFromPath(m)})
	}
	return sources, nil
}

// Reader extracts identifiers from sources.
type Reader struct {
	// IDColumn is the header naming the identifier column.
	IDColumn string
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune
	Logger    *slog.Logger
}

// ReadIdentifiers reads comma-delimited sources with the default logger.
func ReadIdentifiers(sources []Source, idColumn string) *Snapshot {
	r := &Reader{IDColumn: idColumn}
	return r.Read(sources)
}

// Read collects the non-blank, trimmed values of the identifier column of
// every source. Sources without the column, and sources that cannot be
// read, are logged and left out of the snapshot.
func (r *Reader) Read(sources []Source) *Snapshot {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	snap := NewSnapshot()
	for _, src := range sources {
		tbl, err := table.Read(src.Path, r.Delimiter)
		if err != nil {
			log.Error("cannot read source", "path", src.Path, "error", err)
			continue
		}

		col := tbl.Column(r.IDColumn)
		if col < 0 {
			log.Warn("identifier column not found", "path", src.Path, "column", r.IDColumn)
			continue
		}

		var ids []string
		for _, row := range tbl.Rows {
			if col >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[col]); v != "" {
				ids = append(ids, v)
			}
		}
		snap.Add(src.Class, ids...)
		log.Debug("read identifiers", "class", src.Class, "path", src.Path, "count", len(ids))
	}
	return snap
}
