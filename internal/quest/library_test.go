package quest

import (
	"os"
	"path/filepath"
	"testing"
)

const testTemplatesYAML = `
templates:
  plank_run:
    title: "Collecte de ressources"
    synopsis: "Rassemble des planches pour aider le village."
    biome_bias: [plains, forest]
    difficulty: normal
    objectives:
      - id: o1
        type: COLLECT
        target: 8
        params:
          item: "minecraft:oak_planks"
          count: 8
    failure_conditions:
      - id: f1
        type: TIMER
        params:
          seconds: 900
    reward:
      items:
        - item_id: "minecraft:emerald"
          count: 10
  cave_dive:
    title: "Dans les profondeurs"
    synopsis: "Explore la grotte au sud."
    biome_bias: [mountains]
    objectives:
      - id: o1
        type: GO_TO
        target: 1
`

func writeTemplates(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write templates file: %v", err)
	}
	return path
}

func TestLoadTemplatesFromYAML(t *testing.T) {
	path := writeTemplates(t, testTemplatesYAML)

	config, err := LoadTemplatesFromYAML(path)
	if err != nil {
		t.Fatalf("LoadTemplatesFromYAML failed: %v", err)
	}

	if len(config.Templates) != 2 {
		t.Fatalf("loaded %d templates, want 2", len(config.Templates))
	}

	def, ok := config.Templates["plank_run"]
	if !ok {
		t.Fatal("plank_run template missing")
	}
	if def.Title != "Collecte de ressources" {
		t.Errorf("title = %q", def.Title)
	}
	if len(def.Objectives) != 1 || def.Objectives[0].Type != ObjectiveCollect {
		t.Errorf("objectives = %+v", def.Objectives)
	}
	if def.Objectives[0].Target != 8 {
		t.Errorf("objective target = %d, want 8", def.Objectives[0].Target)
	}
	if len(def.FailureConditions) != 1 || def.FailureConditions[0].Seconds() != 900 {
		t.Errorf("failure conditions = %+v", def.FailureConditions)
	}
}

func TestLoadTemplatesMissingFile(t *testing.T) {
	if _, err := LoadTemplatesFromYAML("/nonexistent/templates.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadTemplatesInvalidYAML(t *testing.T) {
	path := writeTemplates(t, "templates: [not a map")
	if _, err := LoadTemplatesFromYAML(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLibraryMint(t *testing.T) {
	lib := NewLibrary()
	if err := lib.LoadFromYAML(writeTemplates(t, testTemplatesYAML)); err != nil {
		t.Fatalf("LoadFromYAML failed: %v", err)
	}

	if lib.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", lib.Count())
	}

	bp, err := lib.Mint("plank_run", "seed-1")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if bp.Seed != "seed-1" {
		t.Errorf("seed = %q, want seed-1", bp.Seed)
	}
	if bp.NoveltySignature == "" {
		t.Error("minted blueprint has no novelty signature")
	}

	// Same template, same signature; different template, different signature
	bp2, _ := lib.Mint("plank_run", "seed-2")
	if bp.NoveltySignature != bp2.NoveltySignature {
		t.Error("signature should not depend on seed")
	}
	bp3, _ := lib.Mint("cave_dive", "seed-1")
	if bp.NoveltySignature == bp3.NoveltySignature {
		t.Error("different templates produced the same signature")
	}

	if _, err := lib.Mint("no_such_template", "s"); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestLibraryMintForBiomes(t *testing.T) {
	lib := NewLibrary()
	if err := lib.LoadFromYAML(writeTemplates(t, testTemplatesYAML)); err != nil {
		t.Fatalf("LoadFromYAML failed: %v", err)
	}

	bp := lib.MintForBiomes([]string{"mountains"}, "s")
	if bp.Title != "Dans les profondeurs" {
		t.Errorf("biome match picked %q", bp.Title)
	}

	// No overlap falls back to the built-in default
	bp = lib.MintForBiomes([]string{"ocean"}, "s")
	if len(bp.Objectives) != 1 || bp.Objectives[0].Type != ObjectiveCollect {
		t.Errorf("fallback blueprint = %+v", bp.Objectives)
	}
}

func TestDefaultBlueprint(t *testing.T) {
	bp := DefaultBlueprint("Ann-123", nil)

	if len(bp.Objectives) != 1 {
		t.Fatalf("objectives = %d, want 1", len(bp.Objectives))
	}
	o := bp.Objectives[0]
	if o.Type != ObjectiveCollect || o.Target != 8 {
		t.Errorf("objective = %+v", o)
	}
	if item, _ := o.Params["item"].(string); item != "minecraft:oak_planks" {
		t.Errorf("objective item = %v", o.Params["item"])
	}
	if len(bp.FailureConditions) != 1 || bp.FailureConditions[0].Seconds() != 900 {
		t.Errorf("failure conditions = %+v", bp.FailureConditions)
	}
	if bp.Seed != "Ann-123" {
		t.Errorf("seed = %q", bp.Seed)
	}
	if bp.NoveltySignature == "" {
		t.Error("default blueprint has no novelty signature")
	}
}

func TestLoadTemplatesFromDirectory(t *testing.T) {
	dir := t.TempDir()
	first := `
templates:
  a:
    title: "A"
    synopsis: "a"
`
	second := `
templates:
  b:
    title: "B"
    synopsis: "b"
`
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(first), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte(second), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadTemplatesFromDirectory(dir)
	if err != nil {
		t.Fatalf("LoadTemplatesFromDirectory failed: %v", err)
	}
	if len(config.Templates) != 2 {
		t.Errorf("loaded %d templates, want 2", len(config.Templates))
	}
}
