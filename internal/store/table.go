// Package store persists the per-source tiers and the canonical table as CSV
// files. Readers tolerate missing columns; writers of whole tables are atomic.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pathfinder/internal/extract"
	"pathfinder/pkg/utils"
)

const bom = "\ufeff"

// Row is one CSV record keyed by header name
type Row map[string]string

// Get returns the value of col, "" when the column is missing or holds a null
// spelling such as "nan"
func (r Row) Get(col string) string {
	return extract.Nullable(r[col])
}

// Codec maps records of type T to and from CSV rows
type Codec[T any] struct {
	Columns []string
	Encode  func(T) []string
	Decode  func(Row) T
}

// ReadAll loads every record of the file at path. The returned error wraps
// fs.ErrNotExist when the file is missing.
func ReadAll[T any](path string, codec Codec[T]) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := readHeader(r)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	var out []T
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("read %s: %w", path, err)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		out = append(out, codec.Decode(toRow(header, record)))
	}
	return out, nil
}

// WriteAtomic replaces the file at path with records: it writes a temporary
// sibling, syncs it and renames it over the target. An empty table is refused
// so a failed run never truncates existing data.
func WriteAtomic[T any](path string, codec Codec[T], records []T) (err error) {
	if len(records) == 0 {
		return utils.ErrEmptyTable
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.NewStorageError("create directory", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return utils.NewStorageError("create temporary file", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := csv.NewWriter(f)
	if err = w.Write(codec.Columns); err != nil {
		return utils.NewStorageError("write header", err)
	}
	for _, rec := range records {
		if err = w.Write(codec.Encode(rec)); err != nil {
			return utils.NewStorageError("write record", err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return utils.NewStorageError("flush", err)
	}
	if err = f.Sync(); err != nil {
		return utils.NewStorageError("sync", err)
	}
	if err = f.Close(); err != nil {
		return utils.NewStorageError("close", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return utils.NewStorageError("rename", err)
	}
	return nil
}

func readHeader(r *csv.Reader) ([]string, error) {
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, bom))
	}
	return header, nil
}

func toRow(header, record []string) Row {
	row := make(Row, len(header))
	for i, h := range header {
		if i < len(record) {
			row[h] = record[i]
		}
	}
	return row
}
