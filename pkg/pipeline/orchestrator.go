package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/debug"
	"github.com/rhuss/spielwerk/pkg/game"
	"github.com/rhuss/spielwerk/pkg/observability"
	"github.com/rhuss/spielwerk/pkg/provider"
	"github.com/rhuss/spielwerk/pkg/retrieval"
)

// ConversationStore is the persistence surface the orchestrator needs.
// Both storage backends satisfy it.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *api.Conversation) error
	GetConversation(ctx context.Context, id string) (*api.Conversation, error)
	GetMessage(ctx context.Context, conversationID, messageID string) (*api.Message, error)
	AppendMessage(ctx context.Context, conversationID string, msg *api.Message) error
}

// Config holds orchestrator tuning. Zero values select the defaults.
type Config struct {
	// LogicModel and RenderModel name the backend models per stage. The
	// render stage defaults to the logic model when unset.
	LogicModel  string
	RenderModel string

	LogicTemperature  *float64
	RenderTemperature *float64
	RenderMaxTokens   *int

	// HistoryLimit caps how many prior conversation turns are replayed to
	// the logic stage. Defaults to 5.
	HistoryLimit int
}

const defaultHistoryLimit = 5

// historySnippetLimit bounds per-message content replayed into iteration
// prompts.
const historySnippetLimit = 200

// Orchestrator runs the stage sequence and persists successful results. It
// is safe for concurrent use.
type Orchestrator struct {
	logic  *LogicStage
	render *RenderStage
	image  *ImageStage
	audio  *AudioStage

	store ConversationStore
	cfg   Config
}

// New creates an Orchestrator. The client must not be nil. The store can be
// nil for stateless operation; the sidecar can be nil to disable retrieval.
func New(client provider.ModelClient, store ConversationStore, sidecar *retrieval.Sidecar, cfg Config) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("pipeline: model client must not be nil")
	}
	if cfg.LogicModel == "" {
		return nil, fmt.Errorf("pipeline: logic model must be configured")
	}
	if cfg.RenderModel == "" {
		cfg.RenderModel = cfg.LogicModel
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Orchestrator{
		logic: &LogicStage{
			Client:      client,
			Model:       cfg.LogicModel,
			Temperature: cfg.LogicTemperature,
			Retrieval:   sidecar,
		},
		render: &RenderStage{
			Client:      client,
			Model:       cfg.RenderModel,
			Temperature: cfg.RenderTemperature,
			MaxTokens:   cfg.RenderMaxTokens,
			Retrieval:   sidecar,
		},
		image: &ImageStage{},
		audio: &AudioStage{},
		store: store,
		cfg:   cfg,
	}, nil
}

// Generate produces a new game from a prompt. When the request names an
// existing conversation the result is appended to it and prior turns are
// replayed to the logic stage; otherwise a new conversation is created.
func (o *Orchestrator) Generate(ctx context.Context, req *api.GenerateRequest) (*api.GameResult, error) {
	gc := game.NewContext(api.NewRunID(), req.Prompt)

	if req.ConversationID != "" && o.store != nil {
		conv, err := o.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("loading conversation %s: %w", req.ConversationID, err)
		}
		gc.History = historyExchanges(conv, o.cfg.HistoryLimit)
	}

	result, err := o.run(ctx, gc, "generate")
	if err != nil {
		return nil, err
	}
	if err := o.persist(ctx, req.ConversationID, "", req.Prompt, gc, result); err != nil {
		return nil, fmt.Errorf("persisting result: %w", err)
	}
	return result, nil
}

// Iterate produces an improved version of a previously stored game. The
// base message's summary fields and recent conversation history seed the
// generation prompt; the stage sequence itself is unchanged.
func (o *Orchestrator) Iterate(ctx context.Context, req *api.IterateRequest) (*api.GameResult, error) {
	if o.store == nil {
		return nil, api.NewInvalidRequestError("conversation_id",
			"iteration requires a conversation store")
	}

	conv, err := o.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", req.ConversationID, err)
	}
	base, err := o.store.GetMessage(ctx, req.ConversationID, req.BaseMessageID)
	if err != nil {
		return nil, fmt.Errorf("loading base message %s: %w", req.BaseMessageID, err)
	}
	if base.Game == nil {
		return nil, api.NewInvalidRequestError("base_message_id",
			"base message carries no game result")
	}

	seed := buildIterationPrompt(req, base.Game, conv)
	gc := game.NewContext(api.NewRunID(), seed)

	result, err := o.run(ctx, gc, "iterate")
	if err != nil {
		return nil, err
	}
	if err := o.persist(ctx, req.ConversationID, req.BaseMessageID, req.IterationPrompt, gc, result); err != nil {
		return nil, fmt.Errorf("persisting result: %w", err)
	}
	return result, nil
}

// run executes the stage sequence against the context and assembles the
// result. Logic and render failures abort the run; image and audio
// failures degrade to empty resource lists.
func (o *Orchestrator) run(ctx context.Context, gc *game.Context, kind string) (*api.GameResult, error) {
	type step struct {
		stage      Stage
		next       RunState
		degradable bool
	}
	steps := []step{
		{o.logic, StateLogicDone, false},
		{o.render, StateRenderDone, false},
		{o.image, StateImagesDone, true},
		{o.audio, StateAudioDone, true},
	}

	state := StateCreated
	for _, st := range steps {
		if err := o.runStage(ctx, st.stage, gc, st.degradable); err != nil {
			if terr := ValidateTransition(state, StateFailed); terr != nil {
				slog.Error("run state corrupted", "run", gc.RunID, "error", terr)
			}
			observability.RunsTotal.WithLabelValues(kind, "error").Inc()
			return nil, &StageError{
				Stage: st.stage.Name(),
				Chain: append([]string(nil), gc.ExecutionChain...),
				Err:   err,
			}
		}
		if terr := ValidateTransition(state, st.next); terr != nil {
			// The fixed step order makes this unreachable; check anyway so
			// a future reordering fails loudly.
			observability.RunsTotal.WithLabelValues(kind, "error").Inc()
			return nil, terr
		}
		state = st.next
	}

	if terr := ValidateTransition(state, StateComplete); terr != nil {
		observability.RunsTotal.WithLabelValues(kind, "error").Inc()
		return nil, terr
	}

	observability.RunsTotal.WithLabelValues(kind, "success").Inc()
	return assembleResult(gc), nil
}

// runStage verifies preconditions, executes the stage with metrics, and
// applies the degradation policy.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, gc *game.Context, degradable bool) error {
	if missing := gc.MissingFields(stage.RequiredFields()); len(missing) > 0 {
		return &PreconditionError{Stage: stage.Name(), Fields: missing}
	}

	start := time.Now()
	err := stage.Run(ctx, gc)
	observability.StageDuration.WithLabelValues(stage.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		if !degradable {
			observability.StageTotal.WithLabelValues(stage.Name(), "error").Inc()
			return err
		}
		slog.Warn("stage degraded to empty resources",
			"run", gc.RunID,
			"stage", stage.Name(),
			"error", err,
		)
		observability.StageTotal.WithLabelValues(stage.Name(), "degraded").Inc()
		switch stage.Name() {
		case StageImage:
			gc.ImageResources = []string{}
		case StageAudio:
			gc.AudioResources = []string{}
		}
	} else {
		observability.StageTotal.WithLabelValues(stage.Name(), "success").Inc()
	}

	gc.AppendStage(stage.Name())
	return nil
}

// assembleResult projects the completed context into the API result.
func assembleResult(gc *game.Context) *api.GameResult {
	return &api.GameResult{
		HTML:           gc.Files.HTML,
		Title:          gc.Logic.Title,
		Description:    gc.Logic.Description,
		GameType:       gc.Logic.GameType,
		LogicSummary:   gc.Logic.Summary,
		ImageResources: gc.ImageResources,
		AudioResources: gc.AudioResources,
		ExecutionChain: append([]string(nil), gc.ExecutionChain...),
		UsageStats:     gc.UsageStats,
	}
}

// persist stores the result as a conversation message. A missing store
// leaves the result ID-less but is not an error.
func (o *Orchestrator) persist(ctx context.Context, conversationID, parentMessageID, userPrompt string, gc *game.Context, result *api.GameResult) error {
	if o.store == nil {
		return nil
	}

	now := time.Now().UTC()
	msg := api.Message{
		ID:               api.NewMessageID(),
		UserPrompt:       userPrompt,
		EnhancedPrompt:   gc.EnhancedPrompt,
		RetrievalContext: gc.RetrievalContext,
		ParentMessageID:  parentMessageID,
		Game:             result,
		CreatedAt:        now,
	}

	if conversationID == "" {
		conv := &api.Conversation{
			ID:        api.NewConversationID(),
			Title:     result.Title,
			Messages:  []api.Message{msg},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := o.store.CreateConversation(ctx, conv); err != nil {
			return err
		}
		conversationID = conv.ID
	} else {
		if err := o.store.AppendMessage(ctx, conversationID, &msg); err != nil {
			return err
		}
	}

	result.ConversationID = conversationID
	result.MessageID = msg.ID
	debug.Log("pipeline", "result persisted",
		"run", gc.RunID,
		"conversation", conversationID,
		"message", msg.ID,
	)
	return nil
}

// historyExchanges projects the most recent conversation turns into chat
// history: the user prompt of each message followed by a compact summary
// of the assistant's result.
func historyExchanges(conv *api.Conversation, limit int) []game.Exchange {
	msgs := conv.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	var out []game.Exchange
	for _, m := range msgs {
		if m.UserPrompt != "" {
			out = append(out, game.Exchange{Role: provider.RoleUser, Content: m.UserPrompt})
		}
		if m.Game != nil {
			out = append(out, game.Exchange{
				Role:    provider.RoleAssistant,
				Content: m.Game.Title + ": " + m.Game.Description,
			})
		}
	}
	return out
}

// buildIterationPrompt assembles the seed prompt for an iteration run from
// the iteration request, the base game, and recent conversation history.
func buildIterationPrompt(req *api.IterateRequest, base *api.GameResult, conv *api.Conversation) string {
	var b strings.Builder

	b.WriteString("=== Iteration request ===\n")
	fmt.Fprintf(&b, "User request: %s\n\n", req.IterationPrompt)

	b.WriteString("=== Base game version ===\n")
	fmt.Fprintf(&b, "Title: %s\n", base.Title)
	fmt.Fprintf(&b, "Type: %s\n", base.GameType)
	fmt.Fprintf(&b, "Gameplay: %s\n", base.LogicSummary)
	fmt.Fprintf(&b, "Description: %s\n\n", base.Description)

	if len(req.KeepElements) > 0 {
		b.WriteString("=== Elements to keep ===\n")
		for _, e := range req.KeepElements {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}
	if len(req.ChangeElements) > 0 {
		b.WriteString("=== Elements to change ===\n")
		for _, e := range req.ChangeElements {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	if conv != nil && len(conv.Messages) > 0 {
		b.WriteString("=== Recent conversation ===\n")
		msgs := conv.Messages
		if len(msgs) > defaultHistoryLimit {
			msgs = msgs[len(msgs)-defaultHistoryLimit:]
		}
		for _, m := range msgs {
			fmt.Fprintf(&b, "user: %s\n", debug.Truncate(m.UserPrompt, historySnippetLimit))
			if m.Game != nil {
				fmt.Fprintf(&b, "assistant: %s\n",
					debug.Truncate(m.Game.Title+": "+m.Game.Description, historySnippetLimit))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("=== Guidance ===\n")
	b.WriteString("Improve the game based on the request above while keeping its core\n")
	b.WriteString("gameplay intact. Preserve every element listed to keep; focus the\n")
	b.WriteString("changes on the elements listed to change.\n")
	return b.String()
}
