package llm

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/pavelanni/careercompass/internal/model"
)

// SchemaError is a gateway response that decoded but violates its declared shape.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Field, e.Reason)
}

// decode parses a JSON-mode response. Some models wrap the object in a
// markdown fence even in JSON mode.
func decode(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("parse LLM response: %w", err)
	}
	return nil
}

func validateAnalysis(a *model.AptitudeAnalysis) error {
	a.Recommendation = strings.TrimSpace(a.Recommendation)
	if a.Recommendation == "" {
		return &SchemaError{Field: "recommendation", Reason: "empty"}
	}
	streams := a.Streams[:0]
	for _, s := range a.Streams {
		if s = strings.TrimSpace(s); s != "" {
			streams = append(streams, s)
		}
	}
	a.Streams = streams
	if n := len(a.Streams); n < 2 || n > 3 {
		return &SchemaError{Field: "streams", Reason: fmt.Sprintf("want 2-3 entries, got %d", n)}
	}
	return nil
}

// validateScenario normalizes IsFinal to the turn-count policy and checks
// the fields that depend on it.
func validateScenario(t *model.ScenarioTurn, final bool) error {
	t.Scenario = strings.TrimSpace(t.Scenario)
	if t.Scenario == "" {
		return &SchemaError{Field: "scenario", Reason: "empty"}
	}
	t.IsFinal = final
	if final {
		t.Options = nil
		t.FeedbackPrompt = strings.TrimSpace(t.FeedbackPrompt)
		if t.FeedbackPrompt == "" {
			return &SchemaError{Field: "feedbackPrompt", Reason: "required on the final turn"}
		}
		return nil
	}

	t.FeedbackPrompt = ""
	opts := t.Options[:0]
	for _, o := range t.Options {
		if o = strings.TrimSpace(o); o != "" && !slices.Contains(opts, o) {
			opts = append(opts, o)
		}
	}
	t.Options = opts
	if n := len(t.Options); n < 2 || n > 3 {
		return &SchemaError{Field: "options", Reason: fmt.Sprintf("want 2-3 entries, got %d", n)}
	}
	return nil
}

func validateReport(r *model.DetailedReport) error {
	r.Strengths = strings.TrimSpace(r.Strengths)
	r.Suitability = strings.TrimSpace(r.Suitability)
	if r.Strengths == "" {
		return &SchemaError{Field: "strengths", Reason: "empty"}
	}
	if r.Suitability == "" {
		return &SchemaError{Field: "suitability", Reason: "empty"}
	}
	if len(r.JobProspects) == 0 {
		return &SchemaError{Field: "jobProspects", Reason: "empty"}
	}
	if len(r.AptitudeScores) != len(model.AptitudeDimensions) {
		return &SchemaError{
			Field:  "aptitudeScores",
			Reason: fmt.Sprintf("want %d entries, got %d", len(model.AptitudeDimensions), len(r.AptitudeScores)),
		}
	}

	seen := make(map[string]bool, len(r.AptitudeScores))
	for _, s := range r.AptitudeScores {
		if !slices.Contains(model.AptitudeDimensions, s.Name) {
			return &SchemaError{Field: "aptitudeScores", Reason: fmt.Sprintf("unknown aptitude %q", s.Name)}
		}
		if seen[s.Name] {
			return &SchemaError{Field: "aptitudeScores", Reason: fmt.Sprintf("duplicate aptitude %q", s.Name)}
		}
		seen[s.Name] = true
		if s.Score < 0 || s.Score > 100 {
			return &SchemaError{Field: "aptitudeScores", Reason: fmt.Sprintf("%s score %d out of range", s.Name, s.Score)}
		}
	}
	return nil
}
