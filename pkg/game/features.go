package game

import "strings"

// InferFeatures derives the Features projection from a LogicResult. Rich
// results map their structured sections directly; legacy results fall back
// to keyword scanning over the free-text fields.
func InferFeatures(r *LogicResult) *Features {
	if r.Shape() == ShapeRich {
		return inferRich(r)
	}
	return inferLegacy(r)
}

func inferRich(r *LogicResult) *Features {
	f := &Features{}

	if r.Art != nil {
		switch {
		case r.Art.Style != "":
			f.VisualStyle = r.Art.Style
		case r.Art.Theme != "":
			f.VisualStyle = r.Art.Theme + " style"
		}
	}
	if f.VisualStyle == "" {
		f.VisualStyle = legacyVisualStyle(r)
	}

	switch r.Difficulty {
	case "easy":
		f.Complexity = "simple"
	case "hard":
		f.Complexity = "high"
	case "":
		f.Complexity = legacyComplexity(r)
	default:
		f.Complexity = "medium"
	}

	f.Elements = append(f.Elements, r.CoreMechanics...)
	if r.Mechanics != nil {
		if len(r.Mechanics.PowerUps) > 0 {
			f.Elements = appendUnique(f.Elements, "power-up system")
		}
		if r.Mechanics.ScoreSystem != "" {
			f.Elements = appendUnique(f.Elements, "score system")
		}
		f.Interactions = controlInteractions(r.Mechanics.Controls)
	}
	if len(f.Elements) == 0 {
		f.Elements = legacyElements(r)
	}
	if len(f.Interactions) == 0 {
		f.Interactions = legacyInteractions(r)
	}
	return f
}

func inferLegacy(r *LogicResult) *Features {
	return &Features{
		VisualStyle:  legacyVisualStyle(r),
		Complexity:   legacyComplexity(r),
		Elements:     legacyElements(r),
		Interactions: legacyInteractions(r),
	}
}

func (r *LogicResult) searchText() string {
	return strings.ToLower(r.Title + " " + r.Description + " " + r.Summary + " " +
		r.GameType + " " + r.NotesForDev)
}

func legacyVisualStyle(r *LogicResult) string {
	text := r.searchText()
	switch {
	case strings.Contains(text, "pixel") || strings.Contains(text, "retro"):
		return "pixel art"
	case strings.Contains(text, "minimalist"):
		return "minimalist"
	case strings.Contains(text, "cartoon"):
		return "cartoon"
	default:
		return "modern"
	}
}

func legacyComplexity(r *LogicResult) string {
	text := r.searchText()
	switch {
	case strings.Contains(text, "puzzle"):
		return "medium"
	case strings.Contains(text, "action"):
		return "high"
	default:
		return "simple"
	}
}

func legacyElements(r *LogicResult) []string {
	text := r.searchText()
	var out []string
	for _, e := range []string{"player", "enemy", "item", "score"} {
		if strings.Contains(text, e) {
			out = append(out, e)
		}
	}
	return out
}

func legacyInteractions(r *LogicResult) []string {
	text := r.searchText()
	var out []string
	if strings.Contains(text, "keyboard") || strings.Contains(text, "arrow") ||
		strings.Contains(text, "wasd") {
		out = append(out, "keyboard")
	}
	if strings.Contains(text, "mouse") || strings.Contains(text, "click") {
		out = append(out, "mouse")
	}
	if strings.Contains(text, "touch") || strings.Contains(text, "swipe") ||
		strings.Contains(text, "tap") {
		out = append(out, "touch")
	}
	if len(out) == 0 {
		out = append(out, "keyboard")
	}
	return out
}

func controlInteractions(controls string) []string {
	if controls == "" {
		return nil
	}
	text := strings.ToLower(controls)
	var out []string
	if strings.Contains(text, "keyboard") || strings.Contains(text, "arrow") ||
		strings.Contains(text, "wasd") || strings.Contains(text, "space") {
		out = append(out, "keyboard")
	}
	if strings.Contains(text, "mouse") || strings.Contains(text, "click") {
		out = append(out, "mouse")
	}
	if strings.Contains(text, "touch") || strings.Contains(text, "swipe") ||
		strings.Contains(text, "tap") {
		out = append(out, "touch")
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}
