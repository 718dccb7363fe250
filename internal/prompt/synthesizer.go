// Package prompt turns chapter text into an image prompt through two
// text-generation turns: physical descriptions first, then one narrated
// scene built from them.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
)

// Generator produces a completion for one system instruction and one user
// message.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Stage identifies a step of synthesis.
type Stage int

const (
	StageDescriptions Stage = iota
	StageSceneSelection
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageDescriptions:
		return "descriptions"
	case StageSceneSelection:
		return "scene selection"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError reports the stage at which synthesis failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("prompt %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result holds the intermediate responses and the final image prompt.
type Result struct {
	Descriptions string
	Scene        string
	Prompt       string
}

// Synthesizer runs the description and scene selection turns.
type Synthesizer struct {
	gen       Generator
	templates Templates
}

// NewSynthesizer creates a Synthesizer. Zero-value templates fall back to
// the defaults.
func NewSynthesizer(gen Generator, templates Templates) *Synthesizer {
	t := DefaultTemplates()
	t.merge(templates)
	return &Synthesizer{gen: gen, templates: t}
}

// Synthesize produces the image prompt for one chapter. Responses are used
// as returned, without validation.
func (s *Synthesizer) Synthesize(ctx context.Context, chapterText, style string) (*Result, error) {
	var res Result
	stage := StageDescriptions

	for stage != StageDone {
		var err error
		switch stage {
		case StageDescriptions:
			res.Descriptions, err = s.gen.Complete(ctx, s.templates.DescriptionSystem, join(s.templates.Description, chapterText))
		case StageSceneSelection:
			res.Scene, err = s.gen.Complete(ctx, s.templates.SceneSystem, join(s.templates.Scene, res.Descriptions))
		}
		if err != nil {
			return nil, &StageError{Stage: stage, Err: err}
		}
		slog.Debug("prompt stage complete", "stage", stage.String())
		stage++
	}

	res.Prompt = s.ImagePrompt(style, res.Scene)
	return &res, nil
}

// ImagePrompt joins the style prefix and the scene with a single space.
func (s *Synthesizer) ImagePrompt(style, scene string) string {
	return fmt.Sprintf(s.templates.ImagePrefix, style) + " " + scene
}

func join(instruction, body string) string {
	return instruction + "\n\n" + body
}
