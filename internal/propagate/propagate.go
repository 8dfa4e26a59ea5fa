// Package propagate rewrites tabular sources so they carry stable
// identifiers instead of semantic ones.
//
// A single Propagator handles both column policies. Sources are processed
// one at a time and independently; the failure of one file is recorded and
// the batch moves on. A file is rewritten only when at least one cell
// changed, and never in dry-run mode.
package propagate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hargabyte/stableid/internal/extract"
	"github.com/hargabyte/stableid/internal/registry"
	"github.com/hargabyte/stableid/internal/table"
)

// RowError is a non-blank primary cell with no binding for its class.
// Row is 1-based and counts the header as row 1.
type RowError struct {
	Row   int
	Value string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: no stable id for %q", e.Row, e.Value)
}

// FileResult is the outcome for one source.
type FileResult struct {
	Path  string
	Class string

	// Skipped is set, with SkipReason, when the source was not processed.
	Skipped    bool
	SkipReason string

	// Replaced counts rewritten cells; Columns breaks it down by header.
	Replaced int
	Columns  map[string]int

	RowErrors []RowError

	// Written is set when the file on disk was replaced.
	Written bool

	// Err is a read or write failure for this file.
	Err error
}

// Summary aggregates the results of a run.
type Summary struct {
	Files    []FileResult
	Replaced int
	Skipped  int
	// Errors counts row errors plus files that failed on I/O.
	Errors  int
	Columns map[string]int
	DryRun  bool
}

// OK reports whether no row or file errors occurred.
func (s *Summary) OK() bool {
	return s.Errors == 0
}

// FileErrors returns the number of files that failed on I/O.
func (s *Summary) FileErrors() int {
	n := 0
	for _, f := range s.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Propagator rewrites sources from a loaded registry.
type Propagator struct {
	Registry *registry.Registry
	Policy   Policy

	// DryRun computes counts without writing.
	DryRun bool

	// Delimiter is the field separator. Zero means comma.
	Delimiter rune

	Logger *slog.Logger
}

func (p *Propagator) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Run processes sources in order and returns the aggregated summary.
func (p *Propagator) Run(sources []extract.Source) *Summary {
	log := p.logger()
	sum := &Summary{Columns: make(map[string]int), DryRun: p.DryRun}

	var global map[string]string
	if p.Policy.IsAllColumns() {
		var collisions []registry.Collision
		global, collisions = p.Registry.GlobalMap()
		for _, c := range collisions {
			log.Warn("semantic id bound in more than one class",
				"semantic_id", c.SemanticID,
				"kept", c.Kept.Class+"/"+c.Kept.StableID,
				"dropped", c.Dropped.Class+"/"+c.Dropped.StableID)
		}
	}

	for _, src := range sources {
		res := p.file(src, global)
		sum.Files = append(sum.Files, res)

		switch {
		case res.Skipped:
			sum.Skipped++
			log.Info("skipping source", "path", src.Path, "reason", res.SkipReason)
			continue
		case res.Err != nil:
			sum.Errors++
			log.Error("cannot process source", "path", src.Path, "error", res.Err)
			continue
		}

		for _, re := range res.RowErrors {
			log.Error("lookup failed", "path", src.Path, "class", src.Class, "row", re.Row, "value", re.Value)
		}
		sum.Errors += len(res.RowErrors)
		sum.Replaced += res.Replaced
		for col, n := range res.Columns {
			sum.Columns[col] += n
		}
		if res.Replaced > 0 {
			log.Info("replaced semantic ids", "path", src.Path, "count", res.Replaced, "written", res.Written)
		}
	}
	return sum
}

// file processes one source. global is the flattened map for AllColumns.
func (p *Propagator) file(src extract.Source, global map[string]string) FileResult {
	res := FileResult{Path: src.Path, Class: src.Class, Columns: make(map[string]int)}

	lookup := global
	if !p.Policy.IsAllColumns() {
		if !p.Registry.HasClass(src.Class) {
			return skip(res, fmt.Sprintf("class %s not in registry", src.Class))
		}
		lookup = p.Registry.ClassIDs(src.Class)
	}

	tbl, err := table.Read(src.Path, p.Delimiter)
	if err != nil {
		res.Err = err
		return res
	}
	if len(tbl.Header) == 0 {
		return skip(res, "no columns found")
	}

	var cols []int
	if p.Policy.IsAllColumns() {
		for i := range tbl.Header {
			cols = append(cols, i)
		}
	} else {
		col := tbl.Column(p.Policy.Column())
		if col < 0 {
			return skip(res, fmt.Sprintf("no %q column", p.Policy.Column()))
		}
		cols = []int{col}
	}

	for i, row := range tbl.Rows {
		for _, col := range cols {
			if col >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[col])
			if value == "" {
				continue
			}

			stable, ok := lookup[value]
			if !ok {
				if !p.Policy.IsAllColumns() {
					res.RowErrors = append(res.RowErrors, RowError{Row: i + 2, Value: value})
				}
				continue
			}
			row[col] = stable
			res.Replaced++
			res.Columns[tbl.Header[col]]++
		}
	}

	if res.Replaced > 0 && !p.DryRun {
		if err := table.Write(src.Path, tbl); err != nil {
			res.Err = err
			return res
		}
		res.Written = true
	}
	return res
}

func skip(res FileResult, reason string) FileResult {
	res.Skipped = true
	res.SkipReason = reason
	return res
}

// SortedColumns returns the column names of s.Columns ordered by count,
// highest first, then by name.
func (s *Summary) SortedColumns() []string {
	cols := make([]string, 0, len(s.Columns))
	for c := range s.Columns {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		if s.Columns[cols[i]] != s.Columns[cols[j]] {
			return s.Columns[cols[i]] > s.Columns[cols[j]]
		}
		return cols[i] < cols[j]
	})
	return cols
}
