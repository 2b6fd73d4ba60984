package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractJSONFencedBlock(t *testing.T) {
	text := "Here is the design you asked for:\n```json\n{\"title\": \"Snake\", \"gameType\": \"arcade\"}\n```\nLet me know if you need changes."

	obj, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if obj["title"] != "Snake" {
		t.Errorf("title = %v, want Snake", obj["title"])
	}
	if obj["gameType"] != "arcade" {
		t.Errorf("gameType = %v, want arcade", obj["gameType"])
	}
}

func TestExtractJSONFencePreferredOverProse(t *testing.T) {
	// An example fragment appears in prose before the real answer block.
	text := `For example {"title": "Wrong"} is the shape I will use.
` + "```json\n{\"title\": \"Right\"}\n```"

	obj, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if obj["title"] != "Right" {
		t.Errorf("title = %v, want Right (fenced block must win over prose)", obj["title"])
	}
}

func TestExtractJSONWholeText(t *testing.T) {
	obj, err := ExtractJSON(`  {"title": "Pong", "description": "classic"}  `)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if obj["title"] != "Pong" {
		t.Errorf("title = %v, want Pong", obj["title"])
	}
}

func TestExtractJSONBraceScan(t *testing.T) {
	text := `The model says: result follows {"title": "Breakout", "gameType": "arcade"} end of answer`

	obj, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if obj["title"] != "Breakout" {
		t.Errorf("title = %v, want Breakout", obj["title"])
	}
}

func TestExtractJSONSelfHeal(t *testing.T) {
	// The "recommended" value contains unescaped inner quotes, the one
	// failure signature the self-heal handles.
	text := `{
  "recommended": "score popup "+10" fades upward",
  "title": "Catcher",
  "gameType": "arcade"
}`

	obj, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON after self-heal: %v", err)
	}
	if obj["title"] != "Catcher" {
		t.Errorf("title = %v, want Catcher", obj["title"])
	}
	if _, present := obj["recommended"]; present {
		t.Error("healed object should not contain the dropped recommended field")
	}
}

func TestExtractJSONSelfHealInsideFence(t *testing.T) {
	text := "```json\n{\n\"recommended\": \"burst \"fx\" on hit\",\n\"title\": \"Blaster\"\n}\n```"

	obj, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if obj["title"] != "Blaster" {
		t.Errorf("title = %v, want Blaster", obj["title"])
	}
}

func TestExtractJSONBrokenFenceSurfacesError(t *testing.T) {
	// Invalid JSON in a tagged fence that the self-heal cannot repair must
	// not silently fall through to heuristic scanning.
	text := "```json\n{\"title\": \"Broken\",}\n```\n{\"title\": \"Decoy\"}"

	_, err := ExtractJSON(text)
	if err == nil {
		t.Fatal("expected error for invalid fenced JSON")
	}
	var malformed *MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("error type = %T, want *MalformedOutputError", err)
	}
	if !strings.Contains(malformed.Raw, "Broken") {
		t.Errorf("Raw should carry the offending block, got %q", malformed.Raw)
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	_, err := ExtractJSON("I could not produce a design this time, sorry.")
	if err == nil {
		t.Fatal("expected error")
	}
	var malformed *MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("error type = %T, want *MalformedOutputError", err)
	}
}

func TestExtractJSONRawPrefixBounded(t *testing.T) {
	_, err := ExtractJSON(strings.Repeat("x", 10*maxRawPrefix))
	var malformed *MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("error type = %T, want *MalformedOutputError", err)
	}
	if len(malformed.Raw) > maxRawPrefix {
		t.Errorf("Raw length = %d, want <= %d", len(malformed.Raw), maxRawPrefix)
	}
}

func TestExtractHTMLFromJSON(t *testing.T) {
	doc := "<!DOCTYPE html><html><body>OK</body></html>"
	text := "```json\n{\"html\": \"" + doc + "\"}\n```"

	got, err := ExtractHTML(text)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if got != doc {
		t.Errorf("html = %q, want %q", got, doc)
	}
}

func TestExtractHTMLFromFence(t *testing.T) {
	text := "```html\n<!DOCTYPE html>\n<html><body>game</body></html>\n```"

	got, err := ExtractHTML(text)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Errorf("html = %q, want document from fence", got)
	}
}

func TestExtractHTMLRawDocument(t *testing.T) {
	doc := "<!DOCTYPE html>\n<html><body>raw</body></html>"

	got, err := ExtractHTML("  " + doc + "  ")
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if got != doc {
		t.Errorf("html = %q, want trimmed raw document", got)
	}
}

func TestExtractHTMLLowercaseRootTag(t *testing.T) {
	doc := "<html><body>no doctype</body></html>"
	got, err := ExtractHTML(doc)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if got != doc {
		t.Errorf("html = %q, want %q", got, doc)
	}
}

func TestExtractHTMLNoDocument(t *testing.T) {
	_, err := ExtractHTML("plain refusal text with no markup at all")
	if err == nil {
		t.Fatal("expected error")
	}
	var malformed *MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("error type = %T, want *MalformedOutputError", err)
	}
}
