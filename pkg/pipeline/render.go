package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rhuss/spielwerk/pkg/debug"
	"github.com/rhuss/spielwerk/pkg/extract"
	"github.com/rhuss/spielwerk/pkg/game"
	"github.com/rhuss/spielwerk/pkg/observability"
	"github.com/rhuss/spielwerk/pkg/provider"
	"github.com/rhuss/spielwerk/pkg/retrieval"
)

const renderSystemPrompt = `You are a senior HTML5 game developer. You turn a game design into one
complete, self-contained, playable HTML file.

Output format (strict): respond with a single JSON object of the form
{"html": "<complete HTML document>"} or a single fenced html code block.
Nothing else.

Quality requirements, every one mandatory:
- The file runs as-is when opened in a browser: full HTML structure
  (DOCTYPE, head, body), all CSS inline in a style tag, all JS inline in a
  script tag. No external assets except CDN script tags when a framework
  is required by the guidance.
- Complete game logic. No TODOs, no placeholders, no stub functions.
- A stable game loop (requestAnimationFrame with deltaTime handling) and
  explicit states: MENU, PLAYING, PAUSED, GAME_OVER. Restart must reset
  every variable.
- Responsive controls, reliable collision detection with boundary checks,
  a visible score HUD, clear win/lose handling, and a pause key.
- Defensive code: guard array accesses, never divide by zero, never let a
  position become NaN, clear the canvas every frame, do not splice an
  array while iterating it forward, do not rebind event listeners on
  restart.
- Keep the difficulty survivable: a first-time player must last at least
  thirty seconds.
- If the design names a framework in its developer guidance, load the
  correct CDN version and use its official API instead of hand-rolled
  equivalents.
When a detail is ambiguous, choose the simple reliable implementation over
the clever fragile one.`

// devGuidanceDelimiter visually isolates the guidance block in the render
// prompt. The original backend found models follow guidance far more
// reliably when it is the loudest section of the prompt.
const devGuidanceDelimiter = "============================================================"

// RenderStage turns the logic result into a complete HTML document. It owns
// the Files context field.
type RenderStage struct {
	Client      provider.ModelClient
	Model       string
	Temperature *float64
	MaxTokens   *int

	// Retrieval is optional. When set, the render prompt is augmented with
	// implementation examples keyed on the game type and dev guidance.
	Retrieval *retrieval.Sidecar
}

var _ Stage = (*RenderStage)(nil)

// Name returns the stage name.
func (s *RenderStage) Name() string { return StageRender }

// RequiredFields lists the context fields the stage reads.
func (s *RenderStage) RequiredFields() []game.Field {
	return []game.Field{game.FieldUserPrompt, game.FieldLogic}
}

// Run builds the render prompt from the logic result, calls the model, and
// extracts the HTML document.
func (s *RenderStage) Run(ctx context.Context, gc *game.Context) error {
	prompt := BuildRenderPrompt(gc)
	gc.EnhancedPrompt = prompt

	if s.Retrieval != nil {
		query := renderSearchQuery(gc.Logic)
		_, refs := s.Retrieval.Augment(ctx, query)
		if refs != "" {
			observability.RetrievalLookupsTotal.WithLabelValues(StageRender, "hit").Inc()
			prompt += "\n\n" + refs
		} else {
			observability.RetrievalLookupsTotal.WithLabelValues(StageRender, "miss").Inc()
		}
	}

	req := &provider.ChatRequest{
		Model:       s.Model,
		System:      renderSystemPrompt,
		Messages:    []provider.Message{{Role: provider.RoleUser, Content: prompt}},
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}

	resp, err := completeObserved(ctx, s.Client, req)
	if err != nil {
		return err
	}
	gc.RecordUsage(StageRender, resp.Usage)

	html, err := extract.ExtractHTML(resp.Text)
	if err != nil {
		return err
	}

	gc.Files = &game.Files{HTML: html}
	debug.Log("pipeline", "render stage complete",
		"run", gc.RunID,
		"html_bytes", len(html),
	)
	return nil
}

// renderSearchQuery builds the retrieval query for implementation examples.
func renderSearchQuery(logic *game.LogicResult) string {
	query := logic.GameType + " HTML5 canvas JavaScript implementation example"
	if logic.DevGuidance != "" {
		query += " " + logic.DevGuidance
	}
	return query
}

// BuildRenderPrompt assembles the render-stage user prompt from the logic
// result. Rich designs get a sectioned specification; legacy designs fall
// back to the summary plus the inferred feature projection.
func BuildRenderPrompt(gc *game.Context) string {
	if gc.Logic.Shape() == game.ShapeRich {
		return buildRichPrompt(gc)
	}
	return buildLegacyPrompt(gc)
}

func buildRichPrompt(gc *game.Context) string {
	logic := gc.Logic
	var b strings.Builder

	b.WriteString("Generate a complete HTML5 game from this design:\n")
	fmt.Fprintf(&b, "\nTitle: %s\n", logic.Title)
	fmt.Fprintf(&b, "Type: %s\n", logic.GameType)
	fmt.Fprintf(&b, "Description: %s\n", logic.Description)
	if logic.TargetAudience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", logic.TargetAudience)
	}
	if logic.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", logic.Difficulty)
	}

	if m := logic.Mechanics; m != nil {
		b.WriteString("\nMechanics:\n")
		writeLine(&b, "Controls", m.Controls)
		writeLine(&b, "Loop", m.Loop)
		writeLine(&b, "Win condition", m.WinCondition)
		writeLine(&b, "Lose condition", m.LoseCondition)
		writeLine(&b, "Score system", m.ScoreSystem)
		writeLine(&b, "Progression", m.Progression)
		writeLine(&b, "Randomness", m.Randomness)
		if len(m.PowerUps) > 0 {
			b.WriteString("- Power-ups:\n")
			for _, p := range m.PowerUps {
				fmt.Fprintf(&b, "  * %s: %s (spawn rate: %s)\n", p.ID, p.Effect, p.SpawnRate)
			}
		}
	}

	if ui := logic.UI; ui != nil {
		b.WriteString("\nUI:\n")
		writeLine(&b, "HUD", strings.Join(ui.HUD, ", "))
		writeLine(&b, "Screens", strings.Join(ui.Screens, ", "))
		writeLine(&b, "Hints", ui.Hints)
	}

	if art := logic.Art; art != nil {
		b.WriteString("\nArt direction:\n")
		writeLine(&b, "Theme", art.Theme)
		writeLine(&b, "Style", art.Style)
		writeLine(&b, "Color palette", strings.Join(art.ColorPalette, ", "))
		writeLine(&b, "Sprite scale", art.SpriteScale)
		if len(art.RequiredAssets) > 0 {
			b.WriteString("- Required assets:\n")
			for _, a := range art.RequiredAssets {
				frames := ""
				if a.Frames > 0 {
					frames = fmt.Sprintf(" (%d frames)", a.Frames)
				}
				fmt.Fprintf(&b, "  * %s (%s)%s: %s\n", a.Name, a.Type, frames, a.Notes)
			}
		}
	}

	if audio := logic.Audio; audio != nil {
		b.WriteString("\nAudio:\n")
		if audio.BGM.Mood != "" {
			fmt.Fprintf(&b, "- Background music: %s, looping: %t\n", audio.BGM.Mood, audio.BGM.Loop)
		}
		if len(audio.SFX) > 0 {
			b.WriteString("- Sound effects:\n")
			for _, s := range audio.SFX {
				fmt.Fprintf(&b, "  * %s: %s\n", s.Event, s.Desc)
			}
		}
	}

	if fx := logic.Effects; fx != nil {
		b.WriteString("\nEffects:\n")
		writeLine(&b, "Particles", strings.Join(fx.Particles, ", "))
		writeLine(&b, "Tweens", strings.Join(fx.Tweens, ", "))
		writeLine(&b, "Recommended", fx.Recommended)
	}

	if meta := logic.Meta; meta != nil {
		b.WriteString("\nTechnical:\n")
		writeLine(&b, "Estimated play time", meta.EstimatedPlayTime)
		fmt.Fprintf(&b, "- Mobile optimized: %t\n", meta.MobileOptimized)
		if meta.CanvasWidth > 0 && meta.CanvasHeight > 0 {
			fmt.Fprintf(&b, "- Canvas size: %dx%d\n", meta.CanvasWidth, meta.CanvasHeight)
		}
	}

	if len(logic.CoreMechanics) > 0 {
		fmt.Fprintf(&b, "\nCore mechanics: %s\n", strings.Join(logic.CoreMechanics, ", "))
	}
	if logic.NotesForDev != "" {
		fmt.Fprintf(&b, "\nDeveloper notes: %s\n", logic.NotesForDev)
	}

	fmt.Fprintf(&b, "\nOriginal user request: %s\n", gc.UserPrompt)

	// Developer guidance goes last and loudest.
	if logic.DevGuidance != "" {
		b.WriteString("\n" + devGuidanceDelimiter + "\n")
		b.WriteString("DEVELOPER GUIDANCE (must be followed)\n")
		b.WriteString(devGuidanceDelimiter + "\n")
		b.WriteString(logic.DevGuidance + "\n")
		b.WriteString(devGuidanceDelimiter + "\n")
		b.WriteString("Follow the guidance above exactly, in particular any\n")
		b.WriteString("framework or API recommendations.\n")
	}

	b.WriteString("\nImplement the design exactly: every listed UI element, the given\n")
	b.WriteString("color palette, and effects consistent with the stated style.\n")
	return b.String()
}

func buildLegacyPrompt(gc *game.Context) string {
	logic := gc.Logic
	var b strings.Builder

	b.WriteString("Generate a complete HTML5 game (HTML, CSS, JavaScript in one file) from this design:\n")
	fmt.Fprintf(&b, "\nTitle: %s\n", logic.Title)
	fmt.Fprintf(&b, "Type: %s\n", logic.GameType)
	fmt.Fprintf(&b, "Core gameplay: %s\n", logic.Summary)
	fmt.Fprintf(&b, "Description: %s\n", logic.Description)

	if f := gc.Features; f != nil {
		b.WriteString("\nInferred game features:\n")
		writeLine(&b, "Visual style", f.VisualStyle)
		writeLine(&b, "Complexity", f.Complexity)
		writeLine(&b, "Game elements", strings.Join(f.Elements, ", "))
		writeLine(&b, "Interaction types", strings.Join(f.Interactions, ", "))
	}

	fmt.Fprintf(&b, "\nOriginal user request: %s\n", gc.UserPrompt)
	b.WriteString("\nGenerate a complete, runnable file with polished gameplay.\n")
	return b.String()
}

func writeLine(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "- %s: %s\n", label, value)
	}
}
