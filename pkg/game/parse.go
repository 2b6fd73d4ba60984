package game

import (
	"fmt"
	"sort"
	"strings"
)

// ParseLogicResult builds a LogicResult from the extracted logic-stage
// payload. The four mandatory fields must be present and non-empty
// strings; each optional sub-object is parsed independently so one
// malformed section never discards the others.
func ParseLogicResult(payload map[string]any) (*LogicResult, error) {
	title := stringField(payload, "title")
	gameType := stringField(payload, "gameType", "game_type")
	description := stringField(payload, "description")
	if title == "" {
		return nil, fmt.Errorf("logic payload missing title")
	}
	if gameType == "" {
		return nil, fmt.Errorf("logic payload missing gameType")
	}
	if description == "" {
		return nil, fmt.Errorf("logic payload missing description")
	}

	r := &LogicResult{
		Title:       title,
		GameType:    gameType,
		Description: description,
	}

	// gameLogic may be a plain summary string (legacy) or a structured
	// object holding the mechanics (rich).
	switch v := payload["gameLogic"].(type) {
	case string:
		r.Summary = v
	case map[string]any:
		r.Summary = stringField(v, "summary", "loop")
		r.Mechanics = parseMechanics(v)
	}
	if r.Summary == "" {
		r.Summary = stringField(payload, "summary")
	}
	if r.Summary == "" {
		return nil, fmt.Errorf("logic payload missing gameLogic summary")
	}

	r.TargetAudience = stringField(payload, "targetAudience", "target_audience")
	r.Difficulty = strings.ToLower(stringField(payload, "difficulty"))
	r.CoreMechanics = stringSlice(payload["coreMechanics"])
	if r.CoreMechanics == nil {
		r.CoreMechanics = stringSlice(payload["core_mechanics"])
	}
	r.Examples = stringSlice(payload["examples"])
	r.NotesForDev = stringField(payload, "notes_for_dev", "notesForDev")

	if m, ok := payload["mechanics"].(map[string]any); ok && r.Mechanics == nil {
		r.Mechanics = parseMechanics(m)
	}
	if m, ok := payload["ui"].(map[string]any); ok {
		r.UI = parseUI(m)
	}
	if m, ok := payload["art"].(map[string]any); ok {
		r.Art = parseArt(m)
	}
	if m, ok := payload["audio"].(map[string]any); ok {
		r.Audio = parseAudio(m)
	}
	if m, ok := payload["fx"].(map[string]any); ok {
		r.Effects = parseEffects(m)
	}
	if m, ok := payload["meta"].(map[string]any); ok {
		r.Meta = parseMeta(m)
	}
	if m, ok := payload["dev_guidance"].(map[string]any); ok {
		r.DevGuidance = flattenGuidance(m)
	} else {
		r.DevGuidance = stringField(payload, "dev_guidance", "devGuidance")
	}

	if r.Mechanics != nil || r.UI != nil || r.Art != nil || r.Audio != nil ||
		r.Effects != nil || r.Meta != nil {
		r.shape = ShapeRich
	} else {
		r.shape = ShapeLegacy
	}
	return r, nil
}

func parseMechanics(m map[string]any) *Mechanics {
	mech := &Mechanics{
		Controls:      stringField(m, "controls"),
		Loop:          stringField(m, "loop", "core_loop", "coreLoop"),
		WinCondition:  stringField(m, "win_condition", "winCondition"),
		LoseCondition: stringField(m, "lose_condition", "loseCondition"),
		ScoreSystem:   stringField(m, "score_system", "scoreSystem", "scoring"),
		Progression:   stringField(m, "progression"),
		Randomness:    stringField(m, "randomness"),
	}
	if raw, ok := m["power_ups"].([]any); ok {
		mech.PowerUps = parsePowerUps(raw)
	} else if raw, ok := m["powerUps"].([]any); ok {
		mech.PowerUps = parsePowerUps(raw)
	}
	if mech.Controls == "" && mech.Loop == "" && mech.WinCondition == "" &&
		mech.LoseCondition == "" && mech.ScoreSystem == "" &&
		mech.Progression == "" && mech.Randomness == "" && len(mech.PowerUps) == 0 {
		return nil
	}
	return mech
}

func parsePowerUps(raw []any) []PowerUp {
	var out []PowerUp
	for _, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		p := PowerUp{
			ID:        stringField(m, "id", "name"),
			Effect:    stringField(m, "effect"),
			SpawnRate: stringField(m, "spawn_rate", "spawnRate"),
		}
		if p.ID != "" || p.Effect != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseUI(m map[string]any) *UISpec {
	ui := &UISpec{
		HUD:     stringSlice(m["hud"]),
		Screens: stringSlice(m["screens"]),
		Hints:   stringField(m, "hints"),
	}
	if len(ui.HUD) == 0 && len(ui.Screens) == 0 && ui.Hints == "" {
		return nil
	}
	return ui
}

func parseArt(m map[string]any) *ArtSpec {
	art := &ArtSpec{
		Theme:        stringField(m, "theme"),
		Style:        stringField(m, "style"),
		ColorPalette: stringSlice(m["color_palette"]),
		SpriteScale:  stringField(m, "sprite_scale", "spriteScale"),
	}
	if art.ColorPalette == nil {
		art.ColorPalette = stringSlice(m["colorPalette"])
	}
	if raw, ok := m["required_assets"].([]any); ok {
		for _, e := range raw {
			am, ok := e.(map[string]any)
			if !ok {
				continue
			}
			a := Asset{
				Name:   stringField(am, "name"),
				Type:   stringField(am, "type"),
				Frames: intField(am, "frames"),
				Notes:  stringField(am, "notes"),
			}
			if a.Name != "" {
				art.RequiredAssets = append(art.RequiredAssets, a)
			}
		}
	}
	if art.Theme == "" && art.Style == "" && len(art.ColorPalette) == 0 &&
		art.SpriteScale == "" && len(art.RequiredAssets) == 0 {
		return nil
	}
	return art
}

func parseAudio(m map[string]any) *AudioSpec {
	audio := &AudioSpec{}
	if bgm, ok := m["bgm"].(map[string]any); ok {
		audio.BGM.Mood = stringField(bgm, "mood")
		audio.BGM.Loop, _ = bgm["loop"].(bool)
	}
	if raw, ok := m["sfx"].([]any); ok {
		for _, e := range raw {
			sm, ok := e.(map[string]any)
			if !ok {
				continue
			}
			s := SoundEffect{
				Event: stringField(sm, "event", "name"),
				Desc:  stringField(sm, "desc", "description"),
			}
			if s.Event != "" {
				audio.SFX = append(audio.SFX, s)
			}
		}
	}
	if audio.BGM.Mood == "" && len(audio.SFX) == 0 {
		return nil
	}
	return audio
}

func parseEffects(m map[string]any) *EffectsSpec {
	fx := &EffectsSpec{
		Particles:   stringSlice(m["particles"]),
		Tweens:      stringSlice(m["tweens"]),
		Recommended: stringField(m, "recommended"),
	}
	if len(fx.Particles) == 0 && len(fx.Tweens) == 0 && fx.Recommended == "" {
		return nil
	}
	return fx
}

func parseMeta(m map[string]any) *MetaSpec {
	meta := &MetaSpec{
		EstimatedPlayTime: stringField(m, "estimated_play_time", "estimatedPlayTime"),
	}
	meta.MobileOptimized, _ = m["mobile_optimized"].(bool)
	if !meta.MobileOptimized {
		meta.MobileOptimized, _ = m["mobileOptimized"].(bool)
	}
	if cs, ok := m["canvas_size"].(map[string]any); ok {
		meta.CanvasWidth = intField(cs, "width")
		meta.CanvasHeight = intField(cs, "height")
	}
	if meta.EstimatedPlayTime == "" && !meta.MobileOptimized &&
		meta.CanvasWidth == 0 && meta.CanvasHeight == 0 {
		return nil
	}
	return meta
}

// flattenGuidance turns the dev_guidance object into labeled lines in
// stable key order so the render prompt stays deterministic.
func flattenGuidance(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		label := strings.ReplaceAll(k, "_", " ")
		switch v := m[k].(type) {
		case string:
			fmt.Fprintf(&b, "%s: %s\n", label, v)
		case []any:
			if items := stringSlice(v); len(items) > 0 {
				fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(items, "; "))
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range raw {
		if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
