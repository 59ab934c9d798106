package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

var errEmptyCompletion = errors.New("completion has no choices")

// sectionKeys are the JSON keys the model is asked to produce.
var sectionKeys = map[domain.AnalysisKind]string{
	domain.KindSummary:     "summary",
	domain.KindCharacter:   "character_analysis",
	domain.KindPlot:        "plot_analysis",
	domain.KindTheme:       "theme_analysis",
	domain.KindReadability: "readability_score",
	domain.KindSentiment:   "sentiment_score",
	domain.KindStyle:       "style_consistency",
}

var sectionHints = map[domain.AnalysisKind]string{
	domain.KindSummary:     "summary of the main points in 3-5 sentences",
	domain.KindCharacter:   "detailed analysis of the characters",
	domain.KindPlot:        "detailed analysis of the plot and structure",
	domain.KindTheme:       "detailed analysis of the themes",
	domain.KindReadability: "readability score, a number from 0 to 100",
	domain.KindSentiment:   "sentiment score, a number from 0 (very negative) to 100 (very positive)",
	domain.KindStyle:       "detailed analysis of style consistency",
}

func buildSystemPrompt(kinds domain.AnalysisOptions, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional document analyst. Analyze the document in %s.\n", language)
	b.WriteString("Return a strict JSON object with exactly these keys:\n")
	for _, kind := range kinds {
		fmt.Fprintf(&b, "- %s: %s\n", sectionKeys[kind], sectionHints[kind])
	}
	b.WriteString(`
Requirements:
1. Output valid JSON only, no markdown.
2. Scores are plain numbers.
3. Be specific and use precise terminology.
4. Avoid generic statements.
5. Keep an objective, neutral tone.`)
	return b.String()
}

func parseAnalysis(raw string, kinds domain.AnalysisOptions) (*domain.AnalysisResult, error) {
	cleaned := extractJSONObject(stripCodeFence(raw))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("parse analysis json: %w", err)
	}

	result := &domain.AnalysisResult{Sections: make(map[domain.AnalysisKind]domain.SectionValue, len(kinds))}
	for _, kind := range kinds {
		value, ok := fields[sectionKeys[kind]]
		if !ok || isJSONNull(value) {
			if kind == domain.KindSummary {
				return nil, fmt.Errorf("response missing %q", sectionKeys[kind])
			}
			continue
		}
		if kind.Scored() {
			score, err := parseScore(value)
			if err != nil {
				return nil, fmt.Errorf("section %q: %w", sectionKeys[kind], err)
			}
			result.Sections[kind] = domain.SectionValue{Score: &score}
			continue
		}
		result.Sections[kind] = domain.SectionValue{Text: sectionText(value)}
	}
	return result, nil
}

// parseScore accepts a JSON number or a numeric string such as "72" or "72/100".
func parseScore(raw json.RawMessage) (float64, error) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, fmt.Errorf("score is not a number")
	}
	text = strings.TrimSpace(text)
	if head, _, found := strings.Cut(text, "/"); found {
		text = strings.TrimSpace(head)
	}
	number, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("score %q is not a number", text)
	}
	return number, nil
}

// sectionText keeps strings as-is and flattens structured answers to compact JSON.
func sectionText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(string(raw))
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
