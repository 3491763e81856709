package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
	"github.com/avgjoe1017/et-heatmap-v2/internal/reader"
)

const gdeltDocAPI = "https://api.gdeltproject.org/api/v2/doc/doc"

// GDELTSource queries the GDELT doc API for entertainment coverage, filters by
// the domain allowlist, and extracts article bodies through the reader.
type GDELTSource struct {
	cfg        config.GDELTSourceConfig
	allowlist  []string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewGDELTSource(cfg config.GDELTSourceConfig, allowlist []string, appCfg *config.Config, logger zerolog.Logger) *GDELTSource {
	normalized := make([]string, 0, len(allowlist))
	for _, domain := range allowlist {
		if d := normalizeDomain(domain); d != "" {
			normalized = append(normalized, d)
		}
	}
	return &GDELTSource{
		cfg:        cfg,
		allowlist:  normalized,
		timeout:    appCfg.RequestTimeout,
		httpClient: &http.Client{Timeout: appCfg.RequestTimeout},
		logger:     logger.With().Str("source", SourceGDELT).Logger(),
	}
}

func (s *GDELTSource) Name() string { return SourceGDELT }

func (s *GDELTSource) Fetch(ctx context.Context, windowStart, windowEnd time.Time) ([]Item, error) {
	articles, err := s.queryArticles(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(articles))
	for _, article := range articles {
		if !s.domainAllowed(article.Domain) {
			continue
		}
		published := article.seenTime()
		if published.Before(windowStart) || !published.Before(windowEnd) {
			continue
		}

		body, err := reader.FetchText(ctx, article.URL, article.Title)
		if err != nil {
			s.logger.Debug().Err(err).Str("url", article.URL).Msg("article extraction failed")
			body = ""
		}

		hash := sha256.Sum256([]byte(article.URL))
		items = append(items, Item{
			ItemID:      "gdelt_" + hex.EncodeToString(hash[:8]),
			Source:      SourceGDELT,
			URL:         article.URL,
			PublishedAt: published,
			Title:       article.Title,
			Description: body,
			Author:      article.Domain,
			Engagement: map[string]float64{
				"tone": article.Tone,
			},
			RawPayload: map[string]any{
				"domain":   article.Domain,
				"language": article.Language,
			},
		})
		if len(items) >= s.cfg.MaxArticles {
			break
		}
	}

	return items, nil
}

type gdeltArticle struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Domain   string  `json:"domain"`
	Language string  `json:"language"`
	SeenDate string  `json:"seendate"`
	Tone     float64 `json:"tone,string"`
}

func (a gdeltArticle) seenTime() time.Time {
	// GDELT seendate format: 20260214T060000Z
	ts, err := time.Parse("20060102T150405Z", a.SeenDate)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func (s *GDELTSource) queryArticles(ctx context.Context, windowStart, windowEnd time.Time) ([]gdeltArticle, error) {
	query := strings.Join(quoteKeywords(s.cfg.Keywords), " OR ")
	params := url.Values{
		"query":         {query},
		"mode":          {"ArtList"},
		"format":        {"json"},
		"maxrecords":    {"250"},
		"startdatetime": {windowStart.UTC().Format("20060102150405")},
		"enddatetime":   {windowEnd.UTC().Format("20060102150405")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gdeltDocAPI+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query gdelt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("query gdelt: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read gdelt response: %w", err)
	}

	var payload struct {
		Articles []gdeltArticle `json:"articles"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode gdelt response: %w", err)
	}
	return payload.Articles, nil
}

func (s *GDELTSource) domainAllowed(domain string) bool {
	if len(s.allowlist) == 0 {
		return true
	}
	normalized := normalizeDomain(domain)
	for _, allowed := range s.allowlist {
		if normalized == allowed || strings.HasSuffix(normalized, "."+allowed) {
			return true
		}
	}
	return false
}

func normalizeDomain(raw string) string {
	domain := strings.ToLower(strings.TrimSpace(raw))
	domain = strings.TrimPrefix(domain, "www.")
	return domain
}

func quoteKeywords(keywords []string) []string {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") {
			kw = `"` + kw + `"`
		}
		quoted = append(quoted, kw)
	}
	return quoted
}
