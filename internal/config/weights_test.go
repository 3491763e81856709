package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultWeights(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	if w.Fame.BaselineWeight != 0.3 || w.Fame.AttentionWeight != 0.7 {
		t.Fatalf("unexpected fame split: %f / %f", w.Fame.BaselineWeight, w.Fame.AttentionWeight)
	}
	if w.ImplicitMentionWeight != 0.5 {
		t.Fatalf("unexpected implicit weight: %f", w.ImplicitMentionWeight)
	}
	if w.Resolver.MarginThreshold != 0.15 || w.Resolver.MinConfidence != 0.70 || w.Resolver.MaxCandidates != 7 {
		t.Fatalf("unexpected resolver defaults: %+v", w.Resolver)
	}
	if w.Momentum.MinHistoryRuns != 3 {
		t.Fatalf("unexpected momentum history requirement: %d", w.Momentum.MinHistoryRuns)
	}
	if w.Drivers.TopN != 10 || w.Themes.MinMentions != 5 || w.Themes.MaxThemes != 5 {
		t.Fatalf("unexpected driver/theme defaults: %+v / %+v", w.Drivers, w.Themes)
	}
}

func TestSourceWeightFallback(t *testing.T) {
	t.Parallel()

	w := DefaultWeights()
	w.SourceWeights.Fame["YOUTUBE"] = 1.2

	if got := w.SourceFameWeight("YOUTUBE"); got != 1.2 {
		t.Fatalf("configured weight: want 1.2, got %f", got)
	}
	if got := w.SourceFameWeight("REDDIT"); got != 1.0 {
		t.Fatalf("missing weight should default to 1.0, got %f", got)
	}
	if got := w.SourceLoveWeight("UNKNOWN"); got != 1.0 {
		t.Fatalf("missing love weight should default to 1.0, got %f", got)
	}
}

func TestLoadWeightsFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	payload := []byte(`
implicit_mention_weight: 0.4
fame:
  baseline_weight: 0.5
  attention_weight: 0.5
resolver:
  margin_threshold: 0.2
`)
	if err := os.WriteFile(filepath.Join(dir, "weights.yaml"), payload, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	w, err := LoadWeights(dir)
	if err != nil {
		t.Fatalf("load weights: %v", err)
	}
	if w.ImplicitMentionWeight != 0.4 {
		t.Fatalf("implicit weight not read: %f", w.ImplicitMentionWeight)
	}
	if w.Fame.BaselineWeight != 0.5 {
		t.Fatalf("fame split not read: %f", w.Fame.BaselineWeight)
	}
	if w.Resolver.MarginThreshold != 0.2 {
		t.Fatalf("margin not read: %f", w.Resolver.MarginThreshold)
	}
	// Untouched knobs keep defaults.
	if w.Drivers.TopN != 10 {
		t.Fatalf("defaults not applied to omitted keys: %d", w.Drivers.TopN)
	}
}

func TestLoadWeightsRejectsInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	payload := []byte("resolver:\n  margin_threshold: 1.5\n")
	if err := os.WriteFile(filepath.Join(dir, "weights.yaml"), payload, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := LoadWeights(dir); err == nil {
		t.Fatalf("expected validation error for margin >= 1")
	}
}

func TestLoadTextListSkipsComments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "list.txt")
	payload := []byte("# comment\n\nvariety.com\n  deadline.com  \n# trailing\n")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	values, err := LoadTextList(path)
	if err != nil {
		t.Fatalf("load list: %v", err)
	}
	if len(values) != 2 || values[0] != "variety.com" || values[1] != "deadline.com" {
		t.Fatalf("unexpected list: %v", values)
	}
}
