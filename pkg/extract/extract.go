// Package extract recovers structured payloads from free-text model output.
//
// Generative backends are asked for strict JSON but routinely wrap it in
// markdown fences, prose, or example fragments. This package implements a
// fixed preference order for locating the real payload: an explicitly tagged
// fenced block wins over a whole-text parse, which wins over a greedy brace
// scan. A single, narrowly scoped self-heal repairs one known malformed-JSON
// signature before a parse attempt is given up.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// maxRawPrefix bounds how much of the offending raw text is carried in a
// MalformedOutputError for diagnostics.
const maxRawPrefix = 2000

var (
	jsonFencePattern = regexp.MustCompile("(?i)```json\\s*([\\s\\S]*?)\\s*```")
	htmlFencePattern = regexp.MustCompile("(?i)```html\\s*([\\s\\S]*?)\\s*```")
)

// MalformedOutputError indicates that model output could not be reduced to
// the expected structured or markup shape, even after the self-heal pass.
// Callers must not retry the upstream call on this error; it is a property
// of the text already received.
type MalformedOutputError struct {
	Reason string
	Raw    string
}

// Error implements the error interface.
func (e *MalformedOutputError) Error() string {
	return "malformed model output: " + e.Reason
}

func newMalformedError(reason, raw string) *MalformedOutputError {
	if len(raw) > maxRawPrefix {
		raw = raw[:maxRawPrefix]
	}
	return &MalformedOutputError{Reason: reason, Raw: raw}
}

// ExtractJSON recovers a JSON object from arbitrary model output.
//
// The search order is deliberate: an explicit ```json fence is trusted over
// heuristics, because models sometimes include example JSON fragments in
// prose outside the answer block. A parse failure inside a found fence is
// surfaced rather than silently falling through, unless the self-heal
// recovers it.
func ExtractJSON(text string) (map[string]any, error) {
	// Tagged fence first.
	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		block := strings.TrimSpace(m[1])
		obj, err := parseWithHeal(block)
		if err != nil {
			return nil, newMalformedError(
				fmt.Sprintf("invalid JSON in tagged code block: %v", err), block)
		}
		return obj, nil
	}

	// Whole-text parse when the trimmed text looks like a bare object.
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		if obj, err := parseWithHeal(trimmed); err == nil {
			return obj, nil
		}
		// Fall through to the brace scan.
	}

	// Last resort: greedy span from the first '{' to the last '}'.
	if start := strings.IndexByte(text, '{'); start != -1 {
		if end := strings.LastIndexByte(text, '}'); end > start {
			candidate := text[start : end+1]
			if obj, err := parseWithHeal(candidate); err == nil {
				return obj, nil
			}
		}
	}

	return nil, newMalformedError("no JSON payload could be located", text)
}

// ExtractHTML recovers an HTML document from model output. The render
// backend is asked for {"html": "..."} but may answer with a ```html fence
// or the bare document instead.
func ExtractHTML(text string) (string, error) {
	if obj, err := ExtractJSON(text); err == nil {
		if html, ok := obj["html"].(string); ok && html != "" {
			return html, nil
		}
	}

	if m := htmlFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		return trimmed, nil
	}

	return "", newMalformedError("neither a JSON payload nor an HTML document could be located", text)
}

// parseWithHeal attempts a JSON parse, applying the self-heal once on
// failure before giving up.
func parseWithHeal(s string) (map[string]any, error) {
	var obj map[string]any
	err := json.Unmarshal([]byte(s), &obj)
	if err == nil {
		return obj, nil
	}

	healed, changed := healUnescapedQuotes(s)
	if !changed {
		return nil, err
	}
	var healedObj map[string]any
	if healErr := json.Unmarshal([]byte(healed), &healedObj); healErr != nil {
		return nil, err // report the original failure, not the healed one
	}
	return healedObj, nil
}

// healUnescapedQuotes drops lines containing the "recommended" field.
//
// One upstream provider was observed emitting prose values with unescaped
// inner quotes in exactly this field (e.g. a score popup described as
// "+10" mid-sentence), which breaks the whole parse. The field is advisory,
// so losing it is preferable to losing the payload. This is a single
// enumerated failure signature; new signatures get their own named case
// rather than a generalized fuzzy repair.
func healUnescapedQuotes(s string) (string, bool) {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	changed := false
	for _, line := range lines {
		if strings.Contains(line, `"recommended"`) {
			changed = true
			continue
		}
		kept = append(kept, line)
	}
	if !changed {
		return s, false
	}
	return strings.Join(kept, "\n"), true
}
