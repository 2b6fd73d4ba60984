package game

import (
	"fmt"

	"github.com/rhuss/spielwerk/pkg/api"
)

// Field names a Context slot owned by exactly one pipeline stage. Stages
// declare the fields they require; the orchestrator checks them before
// dispatch.
type Field string

const (
	FieldUserPrompt Field = "user_prompt"
	FieldLogic      Field = "logic_result"
	FieldFiles      Field = "files"
	FieldImages     Field = "image_resources"
	FieldAudio      Field = "audio_resources"
)

// Shape discriminates the two forms a LogicResult can take.
type Shape int

const (
	// ShapeLegacy means only the four mandatory fields are populated and
	// downstream consumers must use the inference fallback.
	ShapeLegacy Shape = iota

	// ShapeRich means at least one structured sub-object is present.
	ShapeRich
)

func (s Shape) String() string {
	if s == ShapeRich {
		return "rich"
	}
	return "legacy"
}

// PowerUp describes a collectible modifier within the mechanics spec.
type PowerUp struct {
	ID        string `json:"id"`
	Effect    string `json:"effect"`
	SpawnRate string `json:"spawn_rate"`
}

// Mechanics is the structured game-logic sub-object of a rich LogicResult.
type Mechanics struct {
	Controls      string    `json:"controls"`
	Loop          string    `json:"loop"`
	WinCondition  string    `json:"win_condition"`
	LoseCondition string    `json:"lose_condition"`
	ScoreSystem   string    `json:"score_system"`
	Progression   string    `json:"progression"`
	Randomness    string    `json:"randomness"`
	PowerUps      []PowerUp `json:"power_ups,omitempty"`
}

// UISpec lists the HUD elements, screen flow, and hints of a rich design.
type UISpec struct {
	HUD     []string `json:"hud,omitempty"`
	Screens []string `json:"screens,omitempty"`
	Hints   string   `json:"hints,omitempty"`
}

// Asset is a single required art asset in a rich design.
type Asset struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Frames int    `json:"frames,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// ArtSpec carries the visual direction of a rich design.
type ArtSpec struct {
	Theme          string   `json:"theme,omitempty"`
	Style          string   `json:"style,omitempty"`
	ColorPalette   []string `json:"color_palette,omitempty"`
	SpriteScale    string   `json:"sprite_scale,omitempty"`
	RequiredAssets []Asset  `json:"required_assets,omitempty"`
}

// BackgroundMusic describes the mood of the looping soundtrack.
type BackgroundMusic struct {
	Mood string `json:"mood,omitempty"`
	Loop bool   `json:"loop"`
}

// SoundEffect names one triggered audio event.
type SoundEffect struct {
	Event string `json:"event"`
	Desc  string `json:"desc,omitempty"`
}

// AudioSpec carries the audio direction of a rich design.
type AudioSpec struct {
	BGM BackgroundMusic `json:"bgm"`
	SFX []SoundEffect   `json:"sfx,omitempty"`
}

// EffectsSpec lists particle and tween suggestions.
type EffectsSpec struct {
	Particles   []string `json:"particles,omitempty"`
	Tweens      []string `json:"tweens,omitempty"`
	Recommended string   `json:"recommended,omitempty"`
}

// MetaSpec carries technical metadata for the render stage.
type MetaSpec struct {
	EstimatedPlayTime string `json:"estimated_play_time,omitempty"`
	MobileOptimized   bool   `json:"mobile_optimized"`
	CanvasWidth       int    `json:"canvas_width,omitempty"`
	CanvasHeight      int    `json:"canvas_height,omitempty"`
}

// LogicResult is the output of the logic stage. Title, Description,
// Summary, and GameType are always populated; everything else is optional
// and may be entirely absent (the legacy shape).
type LogicResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
	GameType    string `json:"game_type"`

	TargetAudience string   `json:"target_audience,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	CoreMechanics  []string `json:"core_mechanics,omitempty"`
	Examples       []string `json:"examples,omitempty"`
	NotesForDev    string   `json:"notes_for_dev,omitempty"`

	// DevGuidance is implementation guidance for the render stage,
	// flattened to labeled lines at parse time. It is rendered with high
	// salience in the render prompt.
	DevGuidance string `json:"dev_guidance,omitempty"`

	Mechanics *Mechanics   `json:"mechanics,omitempty"`
	UI        *UISpec      `json:"ui,omitempty"`
	Art       *ArtSpec     `json:"art,omitempty"`
	Audio     *AudioSpec   `json:"audio,omitempty"`
	Effects   *EffectsSpec `json:"effects,omitempty"`
	Meta      *MetaSpec    `json:"meta,omitempty"`

	shape Shape
}

// Shape returns the discriminator computed at parse time.
func (r *LogicResult) Shape() Shape {
	return r.shape
}

// Features is the convenience projection derived from a LogicResult, used
// as the fallback input for downstream stages when rich data is absent.
type Features struct {
	VisualStyle  string   `json:"visual_style,omitempty"`
	Complexity   string   `json:"complexity,omitempty"`
	Elements     []string `json:"elements,omitempty"`
	Interactions []string `json:"interactions,omitempty"`
}

// Files holds the generated game document.
type Files struct {
	HTML string `json:"html"`
}

// Exchange is one prior conversation turn replayed to the logic stage as
// chat history. Role is "user" or "assistant".
type Exchange struct {
	Role    string
	Content string
}

// Context is the single mutable aggregate threaded through one pipeline
// run. Each field is written by exactly one stage; the execution chain and
// usage stats are append-only. A Context is never reused across runs.
type Context struct {
	RunID      string
	UserPrompt string

	// RetrievalContext preserves the raw reference text injected by the
	// retrieval sidecar, for audit and persistence, even though it has
	// already been folded into UserPrompt.
	RetrievalContext string

	// EnhancedPrompt is the full render-stage prompt built from the logic
	// result, persisted alongside the message for later inspection.
	EnhancedPrompt string

	// History carries prior conversation turns for the logic stage when
	// the run belongs to an existing conversation. Empty for fresh runs.
	History []Exchange

	Logic    *LogicResult
	Features *Features
	Files    *Files

	ImageResources []string
	AudioResources []string

	ExecutionChain []string
	UsageStats     map[string]api.Usage
}

// NewContext creates a Context for a fresh run with only the prompt set.
func NewContext(runID, prompt string) *Context {
	return &Context{
		RunID:      runID,
		UserPrompt: prompt,
		UsageStats: make(map[string]api.Usage),
	}
}

// AppendStage records a completed stage at the end of the execution chain.
func (c *Context) AppendStage(name string) {
	c.ExecutionChain = append(c.ExecutionChain, name)
}

// RecordUsage stores the token usage of a stage's model call. Keys are
// unique per stage name; a stage that somehow runs twice overwrites its
// earlier record.
func (c *Context) RecordUsage(stage string, u api.Usage) {
	if c.UsageStats == nil {
		c.UsageStats = make(map[string]api.Usage)
	}
	c.UsageStats[stage] = u
}

// FieldSet reports whether the named Context field has been populated.
func (c *Context) FieldSet(f Field) bool {
	switch f {
	case FieldUserPrompt:
		return c.UserPrompt != ""
	case FieldLogic:
		return c.Logic != nil
	case FieldFiles:
		return c.Files != nil && c.Files.HTML != ""
	case FieldImages:
		return c.ImageResources != nil
	case FieldAudio:
		return c.AudioResources != nil
	default:
		return false
	}
}

// MissingFields returns the subset of required fields not yet populated.
func (c *Context) MissingFields(required []Field) []Field {
	var missing []Field
	for _, f := range required {
		if !c.FieldSet(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func (c *Context) String() string {
	return fmt.Sprintf("Context(run=%s, chain=%v)", c.RunID, c.ExecutionChain)
}
