package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WeightsConfig mirrors config/weights.yaml. Every knob the scoring stages
// consult lives here so a run can be reproduced from its config fingerprint.
type WeightsConfig struct {
	SourceWeights struct {
		Fame map[string]float64 `yaml:"fame"`
		Love map[string]float64 `yaml:"love"`
	} `yaml:"source_weights"`

	ImplicitMentionWeight float64 `yaml:"implicit_mention_weight"`

	Fame struct {
		BaselineWeight  float64 `yaml:"baseline_weight"`
		AttentionWeight float64 `yaml:"attention_weight"`
	} `yaml:"fame"`

	Confidence struct {
		SampleWeight     float64 `yaml:"sample_weight"`
		DiversityWeight  float64 `yaml:"diversity_weight"`
		EngagementWeight float64 `yaml:"engagement_weight"`
		RequiredSources  int     `yaml:"required_sources"`
		VolumeSaturation float64 `yaml:"volume_saturation"`
	} `yaml:"confidence"`

	Resolver struct {
		MarginThreshold float64 `yaml:"margin_threshold"`
		MinConfidence   float64 `yaml:"min_confidence"`
		MaxCandidates   int     `yaml:"max_candidates"`
	} `yaml:"resolver"`

	Momentum struct {
		MinHistoryRuns int     `yaml:"min_history_runs"`
		EWMAAlpha      float64 `yaml:"ewma_alpha"`
	} `yaml:"momentum"`

	Baseline struct {
		VolumeWeight    float64 `yaml:"volume_weight"`
		TrendsWeight    float64 `yaml:"trends_weight"`
		PageviewsWeight float64 `yaml:"pageviews_weight"`
	} `yaml:"baseline"`

	Drivers struct {
		TopN int `yaml:"top_n"`
	} `yaml:"drivers"`

	Themes struct {
		MinMentions int `yaml:"min_mentions"`
		MaxThemes   int `yaml:"max_themes"`
	} `yaml:"themes"`
}

func LoadWeights(configDir string) (*WeightsConfig, error) {
	path := filepath.Join(configDir, "weights.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights config %q: %w", path, err)
	}

	var cfg WeightsConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse weights config %q: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("weights config %q: %w", path, err)
	}
	return &cfg, nil
}

// DefaultWeights returns the built-in weight set used when no weights.yaml is
// present, and by tests.
func DefaultWeights() *WeightsConfig {
	var cfg WeightsConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *WeightsConfig) applyDefaults() {
	if c.SourceWeights.Fame == nil {
		c.SourceWeights.Fame = map[string]float64{}
	}
	if c.SourceWeights.Love == nil {
		c.SourceWeights.Love = map[string]float64{}
	}
	if c.ImplicitMentionWeight <= 0 {
		c.ImplicitMentionWeight = 0.5
	}
	if c.Fame.BaselineWeight <= 0 && c.Fame.AttentionWeight <= 0 {
		c.Fame.BaselineWeight = 0.3
		c.Fame.AttentionWeight = 0.7
	}
	if c.Confidence.SampleWeight <= 0 && c.Confidence.DiversityWeight <= 0 && c.Confidence.EngagementWeight <= 0 {
		c.Confidence.SampleWeight = 0.4
		c.Confidence.DiversityWeight = 0.3
		c.Confidence.EngagementWeight = 0.3
	}
	if c.Confidence.RequiredSources <= 0 {
		c.Confidence.RequiredSources = 3
	}
	if c.Confidence.VolumeSaturation <= 0 {
		c.Confidence.VolumeSaturation = 8
	}
	if c.Resolver.MarginThreshold <= 0 {
		c.Resolver.MarginThreshold = 0.15
	}
	if c.Resolver.MinConfidence <= 0 {
		c.Resolver.MinConfidence = 0.70
	}
	if c.Resolver.MaxCandidates <= 0 {
		c.Resolver.MaxCandidates = 7
	}
	if c.Momentum.MinHistoryRuns <= 0 {
		c.Momentum.MinHistoryRuns = 3
	}
	if c.Momentum.EWMAAlpha <= 0 {
		c.Momentum.EWMAAlpha = 0.25
	}
	if c.Baseline.VolumeWeight <= 0 && c.Baseline.TrendsWeight <= 0 && c.Baseline.PageviewsWeight <= 0 {
		c.Baseline.VolumeWeight = 0.4
		c.Baseline.TrendsWeight = 0.3
		c.Baseline.PageviewsWeight = 0.3
	}
	if c.Drivers.TopN <= 0 {
		c.Drivers.TopN = 10
	}
	if c.Themes.MinMentions <= 0 {
		c.Themes.MinMentions = 5
	}
	if c.Themes.MaxThemes <= 0 {
		c.Themes.MaxThemes = 5
	}
}

func (c *WeightsConfig) Validate() error {
	if c.Resolver.MarginThreshold >= 1 {
		return fmt.Errorf("resolver.margin_threshold must be < 1")
	}
	if c.Resolver.MinConfidence > 1 {
		return fmt.Errorf("resolver.min_confidence must be <= 1")
	}
	if c.ImplicitMentionWeight > 1 {
		return fmt.Errorf("implicit_mention_weight must be <= 1")
	}
	if c.Momentum.EWMAAlpha > 1 {
		return fmt.Errorf("momentum.ewma_alpha must be <= 1")
	}
	return nil
}

// SourceFameWeight returns the fame weight for a source tag, defaulting to 1.
func (c *WeightsConfig) SourceFameWeight(source string) float64 {
	if w, ok := c.SourceWeights.Fame[source]; ok && w > 0 {
		return w
	}
	return 1.0
}

// SourceLoveWeight returns the love weight for a source tag, defaulting to 1.
func (c *WeightsConfig) SourceLoveWeight(source string) float64 {
	if w, ok := c.SourceWeights.Love[source]; ok && w > 0 {
		return w
	}
	return 1.0
}
