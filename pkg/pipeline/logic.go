package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rhuss/spielwerk/pkg/debug"
	"github.com/rhuss/spielwerk/pkg/extract"
	"github.com/rhuss/spielwerk/pkg/game"
	"github.com/rhuss/spielwerk/pkg/observability"
	"github.com/rhuss/spielwerk/pkg/provider"
	"github.com/rhuss/spielwerk/pkg/retrieval"
)

// Stage names as they appear in the execution chain and metrics.
const (
	StageLogic  = "logic"
	StageRender = "render"
	StageImage  = "image"
	StageAudio  = "audio"
)

const logicSystemPrompt = `You are a senior game designer. Given a user's idea, produce a complete,
implementable design for a small browser game as a single JSON object.

Output rules (strict):
- Respond with ONE JSON object and nothing else. No prose before or after.
- Every field you emit must be concrete enough for a developer to implement
  without asking questions. No placeholders, no "TBD".

Required fields:
  "title":       short, catchy game title
  "gameType":    one of: action, puzzle, platformer, shooter, racing,
                 card, strategy, arcade (pick the closest)
  "description": 1-3 sentences describing the game for a player

Design fields (fill in as much as the idea supports):
  "targetAudience": who the game is for
  "difficulty":     "easy", "medium", or "hard"
  "coreMechanics":  list of the 2-5 core mechanics
  "gameLogic": {
    "controls":       exact input scheme (keys, mouse, touch)
    "loop":           one-paragraph summary of the moment-to-moment loop
    "win_condition":  when and how the player wins
    "lose_condition": when and how the player loses
    "score_system":   how points are earned and displayed
    "progression":    how difficulty or content advances
    "randomness":     what is randomized and within what bounds
    "power_ups":      list of {"id", "effect", "spawn_rate"}
  }
  "ui":    {"hud": [...], "screens": [...], "hints": "..."}
  "art":   {"theme", "style", "color_palette": ["#RRGGBB", ...],
            "sprite_scale", "required_assets": [{"name","type","frames","notes"}]}
  "audio": {"bgm": {"mood", "loop"}, "sfx": [{"event", "desc"}]}
  "fx":    {"particles": [...], "tweens": [...], "recommended"}
  "meta":  {"estimated_play_time", "mobile_optimized",
            "canvas_size": {"width", "height"}}
  "dev_guidance": object with implementation advice for the developer, e.g.
                  recommended framework, tricky parts, tuning constants
  "examples":      list of 1-3 similar well-known games
  "notes_for_dev": anything else the developer must know

Keep numbers playable: speeds, spawn rates, and timers must describe a game
a first-time player can survive for at least thirty seconds.`

// LogicStage turns the user prompt into a structured game design by calling
// the backing model and parsing its JSON answer. It owns the Logic and
// Features context fields.
type LogicStage struct {
	Client      provider.ModelClient
	Model       string
	Temperature *float64

	// Retrieval is optional. When set, the prompt is augmented with
	// reference material before the model call.
	Retrieval *retrieval.Sidecar
}

var _ Stage = (*LogicStage)(nil)

// Name returns the stage name.
func (s *LogicStage) Name() string { return StageLogic }

// RequiredFields lists the context fields the stage reads.
func (s *LogicStage) RequiredFields() []game.Field {
	return []game.Field{game.FieldUserPrompt}
}

// Run produces the logic result and the derived feature projection.
func (s *LogicStage) Run(ctx context.Context, gc *game.Context) error {
	prompt := gc.UserPrompt
	if s.Retrieval != nil {
		augmented, refs := s.Retrieval.Augment(ctx, prompt)
		if refs != "" {
			observability.RetrievalLookupsTotal.WithLabelValues(StageLogic, "hit").Inc()
			gc.RetrievalContext = refs
			prompt = augmented
		} else {
			observability.RetrievalLookupsTotal.WithLabelValues(StageLogic, "miss").Inc()
		}
	}

	req := &provider.ChatRequest{
		Model:       s.Model,
		System:      logicSystemPrompt,
		Messages:    historyMessages(gc.History),
		Temperature: s.Temperature,
	}
	req.Messages = append(req.Messages, provider.Message{
		Role:    provider.RoleUser,
		Content: prompt,
	})

	resp, err := completeObserved(ctx, s.Client, req)
	if err != nil {
		return err
	}
	gc.RecordUsage(StageLogic, resp.Usage)

	payload, err := extract.ExtractJSON(resp.Text)
	if err != nil {
		return err
	}
	logic, err := game.ParseLogicResult(payload)
	if err != nil {
		return fmt.Errorf("parsing logic result: %w", err)
	}

	gc.Logic = logic
	gc.Features = game.InferFeatures(logic)
	debug.Log("pipeline", "logic stage complete",
		"run", gc.RunID,
		"title", logic.Title,
		"game_type", logic.GameType,
		"shape", logic.Shape().String(),
	)
	return nil
}

// historyMessages projects prior conversation turns into provider messages.
func historyMessages(history []game.Exchange) []provider.Message {
	if len(history) == 0 {
		return nil
	}
	msgs := make([]provider.Message, 0, len(history))
	for _, ex := range history {
		role := provider.RoleUser
		if ex.Role == provider.RoleAssistant {
			role = provider.RoleAssistant
		}
		msgs = append(msgs, provider.Message{Role: role, Content: ex.Content})
	}
	return msgs
}

// completeObserved wraps a model call with provider request, latency, and
// token metrics.
func completeObserved(ctx context.Context, client provider.ModelClient, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	provName := client.Name()
	start := time.Now()
	resp, err := client.Complete(ctx, req)
	duration := time.Since(start)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(provName, req.Model, "error").Inc()
		observability.ProviderLatency.WithLabelValues(provName, req.Model).Observe(duration.Seconds())
		return nil, err
	}
	observability.ProviderRequestsTotal.WithLabelValues(provName, req.Model, "success").Inc()
	observability.ProviderLatency.WithLabelValues(provName, req.Model).Observe(duration.Seconds())
	observability.ProviderTokensTotal.WithLabelValues(provName, req.Model, "input").Add(float64(resp.Usage.InputTokens))
	observability.ProviderTokensTotal.WithLabelValues(provName, req.Model, "output").Add(float64(resp.Usage.OutputTokens))
	return resp, nil
}
