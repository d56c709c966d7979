package edgelist

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/matchgraph/pkg/common"
	"github.com/OFFIS-RIT/matchgraph/pkg/extract"
)

// Column names of the intermediate edge list.
const (
	ColumnSource             = "saudi_entity"
	ColumnTarget             = "swedish_entity"
	ColumnScore              = "match_score"
	ColumnJustification      = "justification"
	ColumnJustificationScore = "justification_score"
)

// ErrMissingColumn is returned when a required header column is absent.
var ErrMissingColumn = errors.New("edge list is missing a required column")

// Header returns the header row for the given variant.
func Header(withJustification bool) []string {
	h := []string{ColumnSource, ColumnTarget, ColumnScore}
	if withJustification {
		h = append(h, ColumnJustification, ColumnJustificationScore)
	}
	return h
}

// Write writes records as a delimited table with a header row.
func Write(w io.Writer, records []common.EdgeRecord, withJustification bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(withJustification)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range records {
		row := []string{rec.Source, rec.Target, formatFloat(rec.Score)}
		if withJustification {
			row = append(row, rec.Justification, formatFloat(rec.JustificationScore))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s -> %s: %w", rec.Source, rec.Target, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes the edge list to path. The file is closed on every path
// and a failed close is reported.
func WriteFile(path string, records []common.EdgeRecord, withJustification bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Write(bw, records, withJustification); err != nil {
		return err
	}
	return bw.Flush()
}

// Read parses an edge list by header name. Rows whose match score does not
// parse or whose entity names are blank are skipped; a missing or unparsable
// justification score reads as 0.
func Read(r io.Reader) ([]common.EdgeRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		cols[name] = i
	}
	for _, required := range []string{ColumnSource, ColumnTarget, ColumnScore} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var records []common.EdgeRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read edge list: %w", err)
		}

		score, ok := extract.ParseScore(field(record, ColumnScore))
		if !ok {
			continue
		}
		source := strings.TrimSpace(field(record, ColumnSource))
		target := strings.TrimSpace(field(record, ColumnTarget))
		if source == "" || target == "" {
			continue
		}
		rec := common.EdgeRecord{
			Source:        source,
			Target:        target,
			Score:         score,
			Justification: field(record, ColumnJustification),
		}
		if js, ok := extract.ParseScore(field(record, ColumnJustificationScore)); ok {
			rec.JustificationScore = js
		}
		records = append(records, rec)
	}

	return records, nil
}

// ReadFile reads the edge list at path.
func ReadFile(path string) ([]common.EdgeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Read(bufio.NewReader(f))
}

// HasJustification reports whether any record carries rationale data, which
// selects the five-column variant of the edge list.
func HasJustification(records []common.EdgeRecord) bool {
	for _, rec := range records {
		if rec.HasJustification() {
			return true
		}
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
