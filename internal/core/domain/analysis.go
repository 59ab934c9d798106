package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type AnalysisKind string

const (
	KindSummary     AnalysisKind = "summary"
	KindCharacter   AnalysisKind = "character"
	KindPlot        AnalysisKind = "plot"
	KindTheme       AnalysisKind = "theme"
	KindReadability AnalysisKind = "readability"
	KindSentiment   AnalysisKind = "sentiment"
	KindStyle       AnalysisKind = "style"
)

// AllAnalysisKinds lists every recognized kind in presentation order.
var AllAnalysisKinds = []AnalysisKind{
	KindSummary,
	KindCharacter,
	KindPlot,
	KindTheme,
	KindReadability,
	KindSentiment,
	KindStyle,
}

func (k AnalysisKind) Valid() bool {
	for _, known := range AllAnalysisKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Scored reports whether the section carries a 0-100 score instead of text.
func (k AnalysisKind) Scored() bool {
	return k == KindReadability || k == KindSentiment
}

// AnalysisOptions is the set of requested kinds. Empty means every kind.
type AnalysisOptions []AnalysisKind

// Normalize validates, deduplicates and orders the requested kinds.
// The summary is always part of the result.
func (o AnalysisOptions) Normalize() (AnalysisOptions, error) {
	if len(o) == 0 {
		return append(AnalysisOptions(nil), AllAnalysisKinds...), nil
	}
	seen := map[AnalysisKind]bool{KindSummary: true}
	for _, raw := range o {
		kind := AnalysisKind(strings.ToLower(strings.TrimSpace(string(raw))))
		if !kind.Valid() {
			return nil, WrapError(ErrInvalidInput, "analysis options", fmt.Errorf("unknown analysis kind %q", raw))
		}
		seen[kind] = true
	}
	out := make(AnalysisOptions, 0, len(seen))
	for _, kind := range AllAnalysisKinds {
		if seen[kind] {
			out = append(out, kind)
		}
	}
	return out, nil
}

func (o AnalysisOptions) Contains(kind AnalysisKind) bool {
	for _, k := range o {
		if k == kind {
			return true
		}
	}
	return false
}

// SectionValue is either free text or a score in [0,100].
type SectionValue struct {
	Text  string   `json:"text,omitempty"`
	Score *float64 `json:"score,omitempty"`
	Band  string   `json:"band,omitempty"`
}

type AnalysisResult struct {
	Sections  map[AnalysisKind]SectionValue `json:"sections"`
	Model     string                        `json:"model,omitempty"`
	CreatedAt time.Time                     `json:"created_at"`
}

// Kinds returns the section names present in the result, in presentation order.
func (r *AnalysisResult) Kinds() []AnalysisKind {
	if r == nil {
		return nil
	}
	out := make([]AnalysisKind, 0, len(r.Sections))
	for _, kind := range AllAnalysisKinds {
		if _, ok := r.Sections[kind]; ok {
			out = append(out, kind)
		}
	}
	return out
}

// Validate enforces the result shape: a non-empty summary, known kinds only,
// and scored sections within [0,100].
func (r *AnalysisResult) Validate() error {
	if r == nil || len(r.Sections) == 0 {
		return fmt.Errorf("empty analysis result")
	}
	summary, ok := r.Sections[KindSummary]
	if !ok || strings.TrimSpace(summary.Text) == "" {
		return fmt.Errorf("analysis result missing summary")
	}
	for kind, value := range r.Sections {
		if !kind.Valid() {
			return fmt.Errorf("unknown section %q", kind)
		}
		if !kind.Scored() {
			continue
		}
		if value.Score == nil {
			return fmt.Errorf("section %q has no score", kind)
		}
		score := *value.Score
		if math.IsNaN(score) || score < 0 || score > 100 {
			return fmt.Errorf("section %q score %v out of range", kind, score)
		}
	}
	return nil
}

// ApplyBands fills the band label of every scored section.
func (r *AnalysisResult) ApplyBands() {
	if r == nil {
		return
	}
	for kind, value := range r.Sections {
		if value.Score == nil {
			continue
		}
		switch kind {
		case KindReadability:
			value.Band = ReadabilityBand(*value.Score)
		case KindSentiment:
			value.Band = SentimentBand(*value.Score)
		}
		r.Sections[kind] = value
	}
}

type band struct {
	min   float64
	label string
}

var readabilityBands = []band{
	{90, "very easy"},
	{80, "easy"},
	{70, "fairly easy"},
	{60, "standard"},
	{50, "fairly difficult"},
	{40, "difficult"},
}

var sentimentBands = []band{
	{80, "very positive"},
	{60, "positive"},
	{40, "neutral"},
	{20, "negative"},
	{0, "very negative"},
}

// ReadabilityBand labels a readability score; the first threshold met wins.
func ReadabilityBand(score float64) string {
	return pickBand(readabilityBands, score, "very difficult")
}

// SentimentBand labels a sentiment score; the first threshold met wins.
func SentimentBand(score float64) string {
	return pickBand(sentimentBands, score, "very negative")
}

func pickBand(bands []band, score float64, fallback string) string {
	for _, b := range bands {
		if score >= b.min {
			return b.label
		}
	}
	return fallback
}
