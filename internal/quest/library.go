package quest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// BlueprintDefinition is the YAML shape of a single template entry
type BlueprintDefinition struct {
	Title             string      `yaml:"title"`
	Synopsis          string      `yaml:"synopsis"`
	PersonaTag        string      `yaml:"persona_tag"`
	BiomeBias         []string    `yaml:"biome_bias"`
	Objectives        []Objective `yaml:"objectives"`
	SuccessConditions []Condition `yaml:"success_conditions"`
	FailureConditions []Condition `yaml:"failure_conditions"`
	Reward            Reward      `yaml:"reward"`
	FlavorLines       FlavorLines `yaml:"flavor_lines"`
	Difficulty        string      `yaml:"difficulty"`
}

// TemplatesConfig represents the templates.yaml structure
type TemplatesConfig struct {
	Templates map[string]BlueprintDefinition `yaml:"templates"`
}

// LoadTemplatesFromYAML loads blueprint templates from a YAML file
func LoadTemplatesFromYAML(filename string) (*TemplatesConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	var config TemplatesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse templates YAML: %w", err)
	}

	return &config, nil
}

// LoadTemplatesFromDirectory loads and merges templates from all YAML files in a directory
func LoadTemplatesFromDirectory(dir string) (*TemplatesConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	merged := &TemplatesConfig{Templates: make(map[string]BlueprintDefinition)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		config, err := LoadTemplatesFromYAML(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for id, def := range config.Templates {
			merged.Templates[id] = def
		}
	}

	return merged, nil
}

// Library holds loaded blueprint templates and mints blueprints from them
type Library struct {
	mu        sync.RWMutex
	templates map[string]BlueprintDefinition
}

// NewLibrary creates an empty template library
func NewLibrary() *Library {
	return &Library{templates: make(map[string]BlueprintDefinition)}
}

// LoadFromConfig populates the library from a parsed config, replacing existing entries
func (l *Library) LoadFromConfig(config *TemplatesConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.templates = make(map[string]BlueprintDefinition, len(config.Templates))
	for id, def := range config.Templates {
		l.templates[id] = def
	}
}

// LoadFromYAML loads templates from a YAML file
func (l *Library) LoadFromYAML(filename string) error {
	config, err := LoadTemplatesFromYAML(filename)
	if err != nil {
		return err
	}
	l.LoadFromConfig(config)
	return nil
}

// Count returns the number of loaded templates
func (l *Library) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}

// TemplateIDs returns the ids of all loaded templates
func (l *Library) TemplateIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.templates))
	for id := range l.templates {
		ids = append(ids, id)
	}
	return ids
}

// Mint builds a Blueprint from the named template. The seed is recorded
// verbatim for reproducibility and the novelty signature is derived from
// the template's objective content.
func (l *Library) Mint(templateID, seed string) (Blueprint, error) {
	l.mu.RLock()
	def, exists := l.templates[templateID]
	l.mu.RUnlock()

	if !exists {
		return Blueprint{}, fmt.Errorf("unknown quest template: %s", templateID)
	}
	return blueprintFromDefinition(def, seed), nil
}

// MintForBiomes builds a Blueprint from the first template whose biome bias
// overlaps the given biomes. Falls back to DefaultBlueprint when no template
// matches or the library is empty.
func (l *Library) MintForBiomes(biomes []string, seed string) Blueprint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, def := range l.templates {
		if biomesOverlap(def.BiomeBias, biomes) {
			return blueprintFromDefinition(def, seed)
		}
	}
	return DefaultBlueprint(seed, biomes)
}

func biomesOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func blueprintFromDefinition(def BlueprintDefinition, seed string) Blueprint {
	difficulty := def.Difficulty
	if difficulty == "" {
		difficulty = "normal"
	}

	sigParts := []string{difficulty, strings.Join(def.BiomeBias, ",")}
	for _, o := range def.Objectives {
		item, _ := o.Params["item"].(string)
		sigParts = append(sigParts, fmt.Sprintf("%s:%s:%d", o.Type, item, o.Target))
	}

	return Blueprint{
		Title:             def.Title,
		Synopsis:          def.Synopsis,
		PersonaTag:        def.PersonaTag,
		Seed:              seed,
		BiomeBias:         cloneSlice(def.BiomeBias),
		Objectives:        cloneObjectives(def.Objectives),
		SuccessConditions: cloneConditions(def.SuccessConditions),
		FailureConditions: cloneConditions(def.FailureConditions),
		Reward:            cloneReward(def.Reward),
		FlavorLines: FlavorLines{
			Start:   def.FlavorLines.Start,
			Success: cloneSlice(def.FlavorLines.Success),
			Failure: cloneSlice(def.FlavorLines.Failure),
		},
		NoveltySignature: NoveltySignature(sigParts...),
	}
}

// DefaultBlueprint returns the built-in resource gathering quest used when
// no template library is loaded: collect 8 oak planks within 15 minutes
// for an emerald reward.
func DefaultBlueprint(seed string, biomeBias []string) Blueprint {
	if len(biomeBias) == 0 {
		biomeBias = []string{"plains", "forest"}
	}
	return Blueprint{
		Title:     "Collecte de ressources",
		Synopsis:  "Rassemble des planches pour aider le village.",
		Seed:      seed,
		BiomeBias: cloneSlice(biomeBias),
		Objectives: []Objective{
			{
				ID:     "o1",
				Type:   ObjectiveCollect,
				Params: map[string]any{"item": "minecraft:oak_planks", "count": 8},
				Target: 8,
			},
		},
		FailureConditions: []Condition{
			{ID: "f1", Type: ConditionTimer, Params: map[string]any{"seconds": 900}},
		},
		Reward: Reward{
			Items: []RewardItem{{ItemID: "minecraft:emerald", Count: 10}},
		},
		FlavorLines: FlavorLines{
			Start:   "Le village a besoin de bois...",
			Success: []string{"Ta contribution est précieuse."},
		},
		NoveltySignature: NoveltySignature("COLLECT", "oak_planks", "normal", strings.Join(biomeBias, ",")),
	}
}
