// Package table reads and writes delimited text files with a header row.
//
// Parsing is lenient: rows may carry more or fewer fields than the header,
// quotes are accepted loosely, and a leading UTF-8 byte order mark is
// stripped. Writing reproduces the line terminator and BOM seen on read so a
// rewritten file only differs where cells changed.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hargabyte/stableid/internal/fsutil"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Table is a parsed delimited file.
type Table struct {
	Header []string
	Rows   [][]string

	// Delimiter is the field separator. Zero means comma.
	Delimiter rune
	// CRLF is set when the source used \r\n line endings.
	CRLF bool
	// BOM is set when the source began with a UTF-8 byte order mark.
	BOM bool
}

// Read parses the file at path. An empty file yields a table with no header.
func Read(path string, delim rune) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(data, delim)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// Parse parses delimited data.
func Parse(data []byte, delim rune) (*Table, error) {
	if delim == 0 {
		delim = ','
	}
	t := &Table{Delimiter: delim}

	if bytes.HasPrefix(data, bom) {
		t.BOM = true
		data = data[len(bom):]
	}
	if i := bytes.IndexByte(data, '\n'); i > 0 && data[i-1] == '\r' {
		t.CRLF = true
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	t.Header = header

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Column returns the index of the named header column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Encode renders the table using its recorded delimiter, line terminator and BOM.
func (t *Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if t.BOM {
		buf.Write(bom)
	}

	w := csv.NewWriter(&buf)
	if t.Delimiter != 0 {
		w.Comma = t.Delimiter
	}
	w.UseCRLF = t.CRLF

	if t.Header != nil {
		if err := w.Write(t.Header); err != nil {
			return nil, err
		}
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write replaces the file at path with the encoded table. The write goes
// through a temp file and rename, so readers see the old or new file only.
func Write(path string, t *Table) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return fsutil.WriteFileAtomic(path, data, perm)
}
