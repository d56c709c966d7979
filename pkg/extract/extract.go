package extract

import (
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/matchgraph/pkg/common"
	"github.com/OFFIS-RIT/matchgraph/pkg/loader/xlsx"
)

// HeaderToken is the source-column text of the export's header row.
const HeaderToken = "problem_name"

// entityPrefix holds the decorative characters the export puts in front of
// source entity names.
const entityPrefix = "-|"

// ColumnRoles maps each record field to a worksheet column. Empty
// justification columns mean the export carries no rationale.
type ColumnRoles struct {
	Source             string `yaml:"source" validate:"required,alpha"`
	Target             string `yaml:"target" validate:"required,alpha"`
	Score              string `yaml:"score" validate:"required,alpha"`
	Justification      string `yaml:"justification" validate:"omitempty,alpha"`
	JustificationScore string `yaml:"justification_score" validate:"omitempty,alpha"`
}

// DefaultColumnRoles is the layout of the results export: source in A,
// target in D, match score in E.
func DefaultColumnRoles() ColumnRoles {
	return ColumnRoles{
		Source: "A",
		Target: "D",
		Score:  "E",
	}
}

// Normalize upper-cases and trims all column letters.
func (c ColumnRoles) Normalize() ColumnRoles {
	norm := func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
	return ColumnRoles{
		Source:             norm(c.Source),
		Target:             norm(c.Target),
		Score:              norm(c.Score),
		Justification:      norm(c.Justification),
		JustificationScore: norm(c.JustificationScore),
	}
}

// SkipReason tells why a row did not produce a record.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipHeader      SkipReason = "header"
	SkipEmptyEntity SkipReason = "empty_entity"
	SkipBadScore    SkipReason = "bad_score"
)

// Stats counts accepted and skipped rows of one extraction.
type Stats struct {
	Rows     int
	Accepted int
	Skipped  map[SkipReason]int
}

// Extractor turns decoded worksheet rows into edge records.
type Extractor struct {
	roles ColumnRoles
	stats Stats
}

// NewExtractor creates an Extractor for the given column layout.
func NewExtractor(roles ColumnRoles) *Extractor {
	return &Extractor{
		roles: roles.Normalize(),
		stats: Stats{Skipped: make(map[SkipReason]int)},
	}
}

// Stats returns the counts gathered so far.
func (e *Extractor) Stats() Stats {
	skipped := make(map[SkipReason]int, len(e.stats.Skipped))
	for k, v := range e.stats.Skipped {
		skipped[k] = v
	}
	return Stats{Rows: e.stats.Rows, Accepted: e.stats.Accepted, Skipped: skipped}
}

// Records yields one record per usable row, in row order. Rows that are the
// header, lack an entity or carry a non-numeric score are skipped silently
// and only show up in Stats. The sequence is meant to be consumed once.
func (e *Extractor) Records(rows []xlsx.Row) iter.Seq[common.EdgeRecord] {
	return func(yield func(common.EdgeRecord) bool) {
		for _, row := range rows {
			rec, reason := e.ParseRow(row)
			e.stats.Rows++
			if reason != SkipNone {
				e.stats.Skipped[reason]++
				continue
			}
			e.stats.Accepted++
			if !yield(rec) {
				return
			}
		}
	}
}

// Extract collects all records of a sheet.
func Extract(sheet *xlsx.Sheet, roles ColumnRoles) ([]common.EdgeRecord, Stats) {
	e := NewExtractor(roles)
	var out []common.EdgeRecord
	for rec := range e.Records(sheet.Rows) {
		out = append(out, rec)
	}
	return out, e.Stats()
}

// ParseRow applies the column roles and filters to one row.
func (e *Extractor) ParseRow(row xlsx.Row) (common.EdgeRecord, SkipReason) {
	source := CleanEntity(row.Get(e.roles.Source))
	target := strings.TrimSpace(row.Get(e.roles.Target))
	if source == "" || target == "" {
		return common.EdgeRecord{}, SkipEmptyEntity
	}
	if strings.EqualFold(source, HeaderToken) {
		return common.EdgeRecord{}, SkipHeader
	}

	score, ok := ParseScore(row.Get(e.roles.Score))
	if !ok {
		return common.EdgeRecord{}, SkipBadScore
	}

	rec := common.EdgeRecord{
		Source: source,
		Target: target,
		Score:  score,
	}
	if e.roles.Justification != "" {
		rec.Justification = strings.TrimSpace(row.Get(e.roles.Justification))
	}
	if e.roles.JustificationScore != "" {
		if js, ok := ParseScore(row.Get(e.roles.JustificationScore)); ok {
			rec.JustificationScore = js
		}
	}
	return rec, SkipNone
}

// CleanEntity trims a source entity and removes its decorative "-" and "|"
// prefix: "--|Acme Corp" -> "Acme Corp".
func CleanEntity(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, entityPrefix)
	return strings.TrimSpace(s)
}

// ParseScore parses a finite float. NaN and infinities are rejected.
func ParseScore(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
