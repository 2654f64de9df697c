package model

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactKind labels a derived text produced by a text-generation task.
type ArtifactKind string

const (
	KindCleaned     ArtifactKind = "cleaned"
	KindAnalysis    ArtifactKind = "analysis"
	KindSummary     ArtifactKind = "summary"
	KindActionItems ArtifactKind = "action_items"
	KindQuotes      ArtifactKind = "quotes"
	KindQuery       ArtifactKind = "ad_hoc_query_result"
)

// PostProcessKinds lists the kinds a caller may request for a pipeline run,
// in display order.
var PostProcessKinds = []ArtifactKind{
	KindCleaned,
	KindAnalysis,
	KindSummary,
	KindActionItems,
	KindQuotes,
}

// Artifact is one immutable derived text.
type Artifact struct {
	Kind ArtifactKind `json:"kind"`
	Text string       `json:"text"`
}

// Record is the persisted unit of one pipeline run. Derived artifacts that
// were not produced stay nil and are stored as NULL.
type Record struct {
	ID              uuid.UUID `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	Filename        string    `json:"filename"`
	DurationMs      int64     `json:"duration_ms"`
	SegmentCount    int       `json:"segment_count"`
	MissingSegments []int     `json:"missing_segments,omitempty"`
	Transcript      string    `json:"transcript"`

	CleanedTranscript *string `json:"cleaned_transcript,omitempty"`
	Analysis          *string `json:"analysis,omitempty"`
	Summary           *string `json:"summary,omitempty"`
	ActionItems       *string `json:"action_items,omitempty"`
	Quotes            *string `json:"quotes,omitempty"`

	STTProvider string `json:"stt_provider"`
	LLMProvider string `json:"llm_provider,omitempty"`
}

// NewRecord returns a record with a fresh identifier and creation time.
func NewRecord(filename, transcript string) *Record {
	return &Record{
		ID:         uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Filename:   filename,
		Transcript: transcript,
	}
}

func (r *Record) slot(kind ArtifactKind) **string {
	switch kind {
	case KindCleaned:
		return &r.CleanedTranscript
	case KindAnalysis:
		return &r.Analysis
	case KindSummary:
		return &r.Summary
	case KindActionItems:
		return &r.ActionItems
	case KindQuotes:
		return &r.Quotes
	default:
		return nil
	}
}

// SetArtifact stores text under kind. Kinds that are not persisted are ignored.
func (r *Record) SetArtifact(kind ArtifactKind, text string) bool {
	p := r.slot(kind)
	if p == nil {
		return false
	}
	t := text
	*p = &t
	return true
}

// Artifact returns the stored text for kind, if present.
func (r *Record) Artifact(kind ArtifactKind) (string, bool) {
	p := r.slot(kind)
	if p == nil || *p == nil {
		return "", false
	}
	return **p, true
}

// Artifacts returns every present artifact in PostProcessKinds order.
func (r *Record) Artifacts() []Artifact {
	out := make([]Artifact, 0, len(PostProcessKinds))
	for _, kind := range PostProcessKinds {
		if text, ok := r.Artifact(kind); ok {
			out = append(out, Artifact{Kind: kind, Text: text})
		}
	}
	return out
}

// Field names accepted by Field, used by the query adapter.
const FieldTranscript = "transcript"

// QueryFields lists the stored fields a query may select.
var QueryFields = []string{
	FieldTranscript,
	string(KindCleaned),
	string(KindAnalysis),
	string(KindSummary),
	string(KindActionItems),
	string(KindQuotes),
}

// Field returns a stored text field by name.
func (r *Record) Field(name string) (string, bool) {
	if name == FieldTranscript {
		return r.Transcript, true
	}
	return r.Artifact(ArtifactKind(name))
}
