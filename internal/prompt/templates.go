package prompt

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Templates holds the prompt texts used by a Synthesizer.
type Templates struct {
	DescriptionSystem string `yaml:"description_system"`
	Description       string `yaml:"description"`
	SceneSystem       string `yaml:"scene_system"`
	Scene             string `yaml:"scene"`
	ImagePrefix       string `yaml:"image_prefix"`
}

// DefaultTemplates returns the built-in prompt texts.
func DefaultTemplates() Templates {
	return Templates{
		DescriptionSystem: DescriptionSystemPrompt,
		Description:       DescriptionPrompt,
		SceneSystem:       SceneSystemPrompt,
		Scene:             ScenePrompt,
		ImagePrefix:       ImagePrefix,
	}
}

// LoadTemplates reads prompt overrides from a YAML file. Keys missing from
// the file keep their default text. An empty path returns the defaults.
func LoadTemplates(path string) (Templates, error) {
	t := DefaultTemplates()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read prompt file: %w", err)
	}

	var override Templates
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Templates{}, fmt.Errorf("parse prompt file: %w", err)
	}

	t.merge(override)
	if err := t.validate(); err != nil {
		return Templates{}, fmt.Errorf("prompt file %s: %w", path, err)
	}
	return t, nil
}

func (t *Templates) merge(o Templates) {
	if o.DescriptionSystem != "" {
		t.DescriptionSystem = o.DescriptionSystem
	}
	if o.Description != "" {
		t.Description = o.Description
	}
	if o.SceneSystem != "" {
		t.SceneSystem = o.SceneSystem
	}
	if o.Scene != "" {
		t.Scene = o.Scene
	}
	if o.ImagePrefix != "" {
		t.ImagePrefix = o.ImagePrefix
	}
}

// styleSentinel stands in for the style when checking image_prefix.
const styleSentinel = "\x00style\x00"

// validate renders image_prefix once and requires the style to appear
// exactly once with no formatting errors.
func (t Templates) validate() error {
	out := fmt.Sprintf(t.ImagePrefix, styleSentinel)
	if strings.Count(out, styleSentinel) != 1 || strings.Contains(out, "%!") {
		return fmt.Errorf("image_prefix must contain exactly one %%s for the style: %q", t.ImagePrefix)
	}
	return nil
}
