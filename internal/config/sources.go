package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourcesConfig mirrors config/sources.yaml.
type SourcesConfig struct {
	Sources struct {
		Reddit  RedditSourceConfig  `yaml:"reddit"`
		YouTube YouTubeSourceConfig `yaml:"youtube"`
		GDELT   GDELTSourceConfig   `yaml:"gdelt"`
	} `yaml:"sources"`
}

type RedditSourceConfig struct {
	Enabled              bool   `yaml:"enabled"`
	SubredditsFile       string `yaml:"subreddits_file"`
	MaxPostsPerSubreddit int    `yaml:"max_posts_per_subreddit"`
	MaxCommentsPerPost   int    `yaml:"max_comments_per_post"`
}

type YouTubeSourceConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Channels           []string `yaml:"channels"`
	FetchComments      bool     `yaml:"fetch_comments"`
	MaxCommentsPerItem int      `yaml:"max_comments_per_item"`
	MaxVideosPerChan   int      `yaml:"max_videos_per_channel"`
}

type GDELTSourceConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Keywords    []string `yaml:"keywords"`
	DomainsFile string   `yaml:"domains_file"`
	MaxArticles int      `yaml:"max_articles"`
}

func LoadSources(configDir string) (*SourcesConfig, error) {
	path := filepath.Join(configDir, "sources.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources config %q: %w", path, err)
	}

	var cfg SourcesConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse sources config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *SourcesConfig) applyDefaults() {
	if c.Sources.Reddit.SubredditsFile == "" {
		c.Sources.Reddit.SubredditsFile = "subreddits.txt"
	}
	if c.Sources.Reddit.MaxPostsPerSubreddit <= 0 {
		c.Sources.Reddit.MaxPostsPerSubreddit = 100
	}
	if c.Sources.Reddit.MaxCommentsPerPost <= 0 {
		c.Sources.Reddit.MaxCommentsPerPost = 50
	}
	if c.Sources.YouTube.MaxCommentsPerItem <= 0 {
		c.Sources.YouTube.MaxCommentsPerItem = 50
	}
	if c.Sources.YouTube.MaxVideosPerChan <= 0 {
		c.Sources.YouTube.MaxVideosPerChan = 50
	}
	if c.Sources.GDELT.DomainsFile == "" {
		c.Sources.GDELT.DomainsFile = "domains.txt"
	}
	if c.Sources.GDELT.MaxArticles <= 0 {
		c.Sources.GDELT.MaxArticles = 250
	}
}

// LoadTextList reads a plain-text list file, one value per line.
// Blank lines and lines starting with "#" are skipped.
func LoadTextList(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read list file %q: %w", path, err)
	}

	lines := strings.Split(string(raw), "\n")
	values := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		values = append(values, line)
	}
	return values, nil
}
