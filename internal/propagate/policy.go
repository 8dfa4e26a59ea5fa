package propagate

// Policy selects which cells of a source are rewritten.
type Policy struct {
	column string
}

// PrimaryColumnOnly rewrites the named identifier column using the map of
// the source's own class. A non-blank cell with no binding is a row error
// and keeps its value. Sources whose class is not in the registry, or
// whose header lacks the column, are skipped.
func PrimaryColumnOnly(column string) Policy {
	return Policy{column: column}
}

// AllColumns rewrites any cell, in any column, whose trimmed value equals a
// semantic identifier of any class. This is how foreign-key style
// references are resolved without per-relationship configuration.
//
// Free text that happens to equal a known semantic identifier cannot be told
// apart from a reference and is rewritten too. Cells with no match are left
// alone and are not errors.
func AllColumns() Policy {
	return Policy{}
}

// Column returns the primary column, or "" for AllColumns.
func (p Policy) Column() string { return p.column }

// IsAllColumns reports whether p rewrites every column.
func (p Policy) IsAllColumns() bool { return p.column == "" }

func (p Policy) String() string {
	if p.IsAllColumns() {
		return "all"
	}
	return "primary(" + p.column + ")"
}
