package pipeline

import (
	"context"

	"github.com/rhuss/spielwerk/pkg/debug"
	"github.com/rhuss/spielwerk/pkg/game"
	"github.com/rhuss/spielwerk/pkg/resources"
)

// ImageStage synthesizes placeholder sprite and UI images for the game. It
// owns the ImageResources context field. Failures here never abort a run;
// the orchestrator degrades them to an empty resource list.
type ImageStage struct{}

var _ Stage = (*ImageStage)(nil)

// Name returns the stage name.
func (s *ImageStage) Name() string { return StageImage }

// RequiredFields lists the context fields the stage reads.
func (s *ImageStage) RequiredFields() []game.Field {
	return []game.Field{game.FieldLogic}
}

// Run draws the placeholder images as PNG data URIs.
func (s *ImageStage) Run(ctx context.Context, gc *game.Context) error {
	images, err := resources.SynthesizeImages(gc.Logic.GameType, gc.Features)
	if err != nil {
		return err
	}
	gc.ImageResources = images
	debug.Log("pipeline", "image stage complete",
		"run", gc.RunID,
		"images", len(images),
	)
	return nil
}

// AudioStage synthesizes placeholder sound effects for the game. It owns
// the AudioResources context field and degrades like ImageStage.
type AudioStage struct{}

var _ Stage = (*AudioStage)(nil)

// Name returns the stage name.
func (s *AudioStage) Name() string { return StageAudio }

// RequiredFields lists the context fields the stage reads.
func (s *AudioStage) RequiredFields() []game.Field {
	return []game.Field{game.FieldLogic}
}

// Run generates the placeholder sounds as WAV data URIs.
func (s *AudioStage) Run(ctx context.Context, gc *game.Context) error {
	gc.AudioResources = resources.SynthesizeAudio(gc.Logic.GameType, gc.Features)
	debug.Log("pipeline", "audio stage complete",
		"run", gc.RunID,
		"sounds", len(gc.AudioResources),
	)
	return nil
}
