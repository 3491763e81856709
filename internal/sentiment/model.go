package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/avgjoe1017/et-heatmap-v2/internal/textutil"
)

const modelMaxChars = 500

// ModelScorer calls a social-tuned transformer served over HTTP. The endpoint
// accepts {"text": ...} and returns {"pos": ..., "neu": ..., "neg": ...}.
// Any per-call failure falls back to the lexicon scorer so the pipeline
// contract never changes.
type ModelScorer struct {
	endpoint   string
	httpClient *http.Client
	fallback   *LexiconScorer
	logger     zerolog.Logger
}

// NewScorer probes the configured model endpoint once at startup and returns
// either a ModelScorer or the lexicon fallback. Absence of the model is the
// default path, not an error.
func NewScorer(ctx context.Context, endpoint string, timeout time.Duration, logger zerolog.Logger) Scorer {
	endpoint = strings.TrimSpace(endpoint)
	lexicon := NewLexiconScorer()
	if endpoint == "" {
		logger.Info().Msg("sentiment model not configured, using lexicon scorer")
		return lexicon
	}

	scorer := &ModelScorer{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		fallback:   lexicon,
		logger:     logger.With().Str("component", "sentiment_model").Logger(),
	}

	if _, err := scorer.classify(ctx, "probe"); err != nil {
		logger.Warn().Err(err).Str("endpoint", endpoint).Msg("sentiment model unavailable, using lexicon scorer")
		return lexicon
	}

	logger.Info().Str("endpoint", endpoint).Msg("sentiment model active")
	return scorer
}

func (s *ModelScorer) Name() string { return "model" }

func (s *ModelScorer) Score(sentence string) Result {
	lexical := s.fallback.Score(sentence)

	dist, err := s.classify(context.Background(), textutil.Truncate(sentence, modelMaxChars))
	if err != nil {
		s.logger.Debug().Err(err).Msg("model call failed, lexicon result used")
		return lexical
	}

	// Support/desire stay lexicon-derived; the model refines the distribution.
	return Result{
		Distribution: dist,
		Intensity:    maxFloat(dist.Pos, dist.Neg),
		Support:      lexical.Support,
		Desire:       lexical.Desire,
	}
}

func (s *ModelScorer) classify(ctx context.Context, text string) (Distribution, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Distribution{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Distribution{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Distribution{}, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Distribution{}, fmt.Errorf("model status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Distribution{}, fmt.Errorf("read model response: %w", err)
	}

	var dist Distribution
	if err := json.Unmarshal(raw, &dist); err != nil {
		return Distribution{}, fmt.Errorf("decode model response: %w", err)
	}

	total := dist.Pos + dist.Neu + dist.Neg
	if total <= 0 {
		return Distribution{}, fmt.Errorf("model returned empty distribution")
	}
	dist.Pos /= total
	dist.Neu /= total
	dist.Neg /= total
	return dist, nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
