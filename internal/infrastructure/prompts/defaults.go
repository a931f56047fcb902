// Package prompts ships the default per-stage prompt templates. They seed
// the settings store on first start and can be edited at runtime through the
// settings API.
package prompts

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults returns the built-in prompt template per screening stage.
func Defaults() (map[domain.Stage]string, error) {
	var raw struct {
		Title    string `yaml:"title"`
		Abstract string `yaml:"abstract"`
	}
	if err := yaml.Unmarshal(defaultsYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse default prompts: %w", err)
	}
	return map[domain.Stage]string{
		domain.StageTitle:    raw.Title,
		domain.StageAbstract: raw.Abstract,
	}, nil
}
