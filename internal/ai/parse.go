package ai

import (
	"encoding/json"
	"strings"

	"github.com/starford/lorekeeper/internal/models"
)

// Analysis is the structured result of a chapter analysis.
type Analysis struct {
	Notes  []models.AINote `json:"notes"`
	Review string          `json:"review,omitempty"`
}

// ExtractJSON returns the first balanced top-level {...} object in text,
// skipping braces inside JSON strings. Fences and surrounding prose are
// ignored. ok is false when no complete object exists.
func ExtractJSON(text string) (string, bool) {
	objs := jsonObjects(text)
	if len(objs) == 0 {
		return "", false
	}
	return objs[0], true
}

// jsonObjects returns every balanced top-level {...} block of text in order.
// Objects nested in a returned block are not listed separately.
func jsonObjects(text string) []string {
	var out []string
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		next := start + 1
		if end, ok := objectEnd(text, start); ok {
			out = append(out, text[start:end+1])
			next = end + 1
		}
		i := strings.IndexByte(text[next:], '{')
		if i < 0 {
			break
		}
		start = next + i
	}
	return out
}

func objectEnd(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ParseAnalysis decodes a model reply into an Analysis. Each JSON object in
// the reply is tried in order; the first one carrying a notes array wins.
// Notes without a title are rejected.
func ParseAnalysis(text string) (Analysis, error) {
	objs := jsonObjects(text)
	if len(objs) == 0 {
		return Analysis{}, &Error{Kind: KindMalformed, Message: "no JSON object in reply"}
	}

	var firstErr error
	for _, raw := range objs {
		a, err := parseAnalysisObject(raw)
		if err == nil {
			return a, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return Analysis{}, firstErr
}

func parseAnalysisObject(raw string) (Analysis, error) {
	var doc struct {
		Notes  *[]models.AINote `json:"notes"`
		Review string           `json:"review"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Analysis{}, &Error{Kind: KindMalformed, Message: "reply is not valid analysis JSON", Err: err}
	}
	if doc.Notes == nil {
		return Analysis{}, &Error{Kind: KindMalformed, Message: "reply has no notes array"}
	}

	out := Analysis{Notes: make([]models.AINote, 0, len(*doc.Notes)), Review: strings.TrimSpace(doc.Review)}
	for _, n := range *doc.Notes {
		title := strings.TrimSpace(n.Title)
		if title == "" {
			return Analysis{}, &Error{Kind: KindMalformed, Message: "note without title"}
		}
		out.Notes = append(out.Notes, models.AINote{Title: title, Description: strings.TrimSpace(n.Description)})
	}
	return out, nil
}
