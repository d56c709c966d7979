package common

// EdgeRecord is one accepted match between a source entity and a target
// entity. It is produced by the worksheet extractor or read back from the
// intermediate edge list and consumed by the graph builder.
//
// Source and Target are non-empty and trimmed. Score is always finite.
// Justification and JustificationScore are optional and default to their
// zero values when the export carries no rationale.
type EdgeRecord struct {
	Source             string  `json:"source"`
	Target             string  `json:"target"`
	Score              float64 `json:"match_score"`
	Justification      string  `json:"justification,omitempty"`
	JustificationScore float64 `json:"justification_score,omitempty"`
}

// HasJustification reports whether the record carries any rationale data.
func (r EdgeRecord) HasJustification() bool {
	return r.Justification != "" || r.JustificationScore != 0
}
