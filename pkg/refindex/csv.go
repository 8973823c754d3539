package refindex

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var header = []string{"filename", "cluster"}

// WriteCSV writes the index as a "filename,cluster" table.
func (x *Index) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range x.entries {
		if err := cw.Write([]string{e.ID, strconv.Itoa(e.Cluster)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV. Columns are located by header
// name, so extra columns are tolerated.
func ReadCSV(r io.Reader) (*Index, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	nameCol, clusterCol := -1, -1
	for i, h := range head {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "filename":
			nameCol = i
		case "cluster":
			clusterCol = i
		}
	}
	if nameCol < 0 || clusterCol < 0 {
		return nil, fmt.Errorf("%w: header %v lacks filename/cluster", ErrFormat, head)
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if len(rec) <= max(nameCol, clusterCol) {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrFormat, line, len(rec))
		}
		c, err := strconv.Atoi(strings.TrimSpace(rec[clusterCol]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: cluster %q", ErrFormat, line, rec[clusterCol])
		}
		entries = append(entries, Entry{ID: rec[nameCol], Cluster: c})
	}
	return FromEntries(entries), nil
}
