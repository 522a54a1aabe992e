// Package scenario holds the built-in catalogue of training scenarios. The
// catalogue ships embedded in the binary so the server has no runtime file
// dependency.
package scenario

import (
	_ "embed"
	"fmt"
	"math/rand"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var catalogueYAML []byte

// Persona describes the simulated customer the trainee will face.
type Persona struct {
	Name           string `yaml:"name" json:"name"`
	Emotion        string `yaml:"emotion" json:"emotion"`
	Background     string `yaml:"background" json:"background"`
	Issue          string `yaml:"issue" json:"issue"`
	DesiredOutcome string `yaml:"desired_outcome" json:"desired_outcome"`
}

// Scenario is one training exercise: a customer persona plus the behavioural
// instructions that drive the reply generator.
type Scenario struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	NameUrdu        string   `yaml:"name_urdu" json:"name_urdu"`
	Description     string   `yaml:"description" json:"description"`
	DescriptionUrdu string   `yaml:"description_urdu" json:"description_urdu"`
	Difficulty      string   `yaml:"difficulty" json:"difficulty"`
	Persona         Persona  `yaml:"persona" json:"persona"`
	SystemPrompt    string   `yaml:"system_prompt" json:"-"`
	EndConditions   []string `yaml:"end_conditions" json:"end_conditions"`
	EvaluationFocus []string `yaml:"evaluation_focus" json:"evaluation_focus"`
}

type catalogue struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

var (
	loadOnce sync.Once
	loaded   []Scenario
	loadErr  error
)

func load() ([]Scenario, error) {
	loadOnce.Do(func() {
		var c catalogue
		if err := yaml.Unmarshal(catalogueYAML, &c); err != nil {
			loadErr = fmt.Errorf("parse scenario catalogue: %w", err)
			return
		}
		loaded = c.Scenarios
	})
	return loaded, loadErr
}

// All returns every scenario in catalogue order.
func All() ([]Scenario, error) {
	return load()
}

// ByID returns the scenario with the given id.
func ByID(id string) (Scenario, error) {
	all, err := load()
	if err != nil {
		return Scenario{}, err
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("unknown scenario %q", id)
}

// Random picks one scenario uniformly from the catalogue.
func Random() (Scenario, error) {
	all, err := load()
	if err != nil {
		return Scenario{}, err
	}
	if len(all) == 0 {
		return Scenario{}, fmt.Errorf("scenario catalogue is empty")
	}
	return all[rand.Intn(len(all))], nil
}

// ByDifficulty returns scenarios matching the given difficulty level.
func ByDifficulty(level string) ([]Scenario, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	var out []Scenario
	for _, s := range all {
		if s.Difficulty == level {
			out = append(out, s)
		}
	}
	return out, nil
}
