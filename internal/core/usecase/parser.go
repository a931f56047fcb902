package usecase

import (
	"encoding/json"
	"strings"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

// heuristicConfidence is assigned when a decision is recovered by keyword
// scanning instead of structured JSON.
const heuristicConfidence = 0.5

// ParsedDecision is the normalized output of parsing one classifier response,
// whether it arrived as structured JSON or was recovered heuristically.
type ParsedDecision struct {
	Decision   domain.Decision
	Confidence float64
	Rationale  string
	Structured bool
}

type decisionPayload struct {
	ID          string  `json:"id"`
	Decision    string  `json:"decision"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
	Explanation string  `json:"explanation"`
}

// ParseDecision extracts a decision from loosely structured response text.
// It is total: malformed input degrades to MAYBE with the raw text preserved
// as rationale for audit, never an error.
func ParseDecision(raw string) ParsedDecision {
	text := strings.TrimSpace(raw)

	var payload decisionPayload
	if err := json.Unmarshal([]byte(unwrapCodeFence(text)), &payload); err == nil && payload.Decision != "" {
		rationale := firstNonEmpty(payload.Reasoning, payload.Explanation, text)
		return ParsedDecision{
			Decision:   domain.ParseDecisionLabel(payload.Decision),
			Confidence: clampConfidence(payload.Confidence),
			Rationale:  rationale,
			Structured: true,
		}
	}

	return ParsedDecision{
		Decision:   firstDecisionMention(text),
		Confidence: heuristicConfidence,
		Rationale:  text,
	}
}

// ParseBatchResponse maps one chunk response onto the chunk's record ids.
// The expected shape is a JSON array of {id, decision, confidence, reasoning}
// objects, optionally fenced or wrapped in a {"decisions": [...]} envelope.
// Records missing from a parsed array degrade to MAYBE with zero confidence;
// if no array can be parsed at all, the single-decision heuristic applies to
// every record in the chunk.
func ParseBatchResponse(raw string, ids []string) []domain.BatchDecision {
	text := strings.TrimSpace(raw)
	items, ok := decodeDecisionItems(unwrapCodeFence(text))
	if !ok {
		fallback := ParseDecision(raw)
		out := make([]domain.BatchDecision, 0, len(ids))
		for _, id := range ids {
			out = append(out, domain.BatchDecision{
				RecordID:   id,
				Decision:   fallback.Decision,
				Confidence: fallback.Confidence,
				Rationale:  fallback.Rationale,
			})
		}
		return out
	}

	byID := make(map[string]decisionPayload, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		if _, exists := byID[id]; !exists {
			byID[id] = item
		}
	}

	out := make([]domain.BatchDecision, 0, len(ids))
	for _, id := range ids {
		item, found := byID[id]
		if !found {
			out = append(out, domain.BatchDecision{
				RecordID:   id,
				Decision:   domain.DecisionMaybe,
				Confidence: 0,
				Rationale:  text,
			})
			continue
		}
		out = append(out, domain.BatchDecision{
			RecordID:   id,
			Decision:   domain.ParseDecisionLabel(item.Decision),
			Confidence: clampConfidence(item.Confidence),
			Rationale:  firstNonEmpty(item.Reasoning, item.Explanation, text),
		})
	}
	return out
}

func decodeDecisionItems(text string) ([]decisionPayload, bool) {
	var items []decisionPayload
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, true
	}
	var envelope struct {
		Decisions []decisionPayload `json:"decisions"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && envelope.Decisions != nil {
		return envelope.Decisions, true
	}
	return nil, false
}

// unwrapCodeFence strips a single surrounding markdown fence, including an
// optional language tag on the opening line.
func unwrapCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "json")
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// firstDecisionMention scans for the earliest INCLUDE/EXCLUDE/MAYBE keyword.
func firstDecisionMention(text string) domain.Decision {
	lowered := strings.ToLower(text)
	best := domain.DecisionMaybe
	bestIdx := -1
	for keyword, decision := range map[string]domain.Decision{
		"include": domain.DecisionInclude,
		"exclude": domain.DecisionExclude,
		"maybe":   domain.DecisionMaybe,
	} {
		idx := strings.Index(lowered, keyword)
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx {
			best = decision
			bestIdx = idx
		}
	}
	return best
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
