package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
)

const (
	redditBaseURL     = "https://oauth.reddit.com"
	redditTokenURL    = "https://www.reddit.com/api/v1/access_token"
	redditPublicURL   = "https://www.reddit.com"
	redditMaxPageSize = 100
)

// RedditSource fetches posts and top comments from configured subreddits.
// With credentials it uses the OAuth API; without, the public JSON listings.
type RedditSource struct {
	cfg        config.RedditSourceConfig
	subreddits []string
	clientID   string
	secret     string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger

	token        string
	tokenExpires time.Time
}

func NewRedditSource(cfg config.RedditSourceConfig, subreddits []string, appCfg *config.Config, logger zerolog.Logger) *RedditSource {
	return &RedditSource{
		cfg:        cfg,
		subreddits: subreddits,
		clientID:   appCfg.RedditClientID,
		secret:     appCfg.RedditClientSecret,
		userAgent:  appCfg.RedditUserAgent,
		httpClient: &http.Client{Timeout: appCfg.RequestTimeout},
		logger:     logger.With().Str("source", SourceReddit).Logger(),
	}
}

func (s *RedditSource) Name() string { return SourceReddit }

func (s *RedditSource) Fetch(ctx context.Context, windowStart, windowEnd time.Time) ([]Item, error) {
	items := make([]Item, 0, 256)

	for _, subreddit := range s.subreddits {
		posts, err := s.fetchNewPosts(ctx, subreddit)
		if err != nil {
			s.logger.Warn().Err(err).Str("subreddit", subreddit).Msg("subreddit fetch failed")
			continue
		}

		for _, post := range posts {
			published := time.Unix(int64(post.CreatedUTC), 0).UTC()
			if published.Before(windowStart) || !published.Before(windowEnd) {
				continue
			}

			items = append(items, Item{
				ItemID:      "reddit_post_" + post.ID,
				Source:      SourceReddit,
				URL:         redditPublicURL + post.Permalink,
				PublishedAt: published,
				Title:       post.Title,
				Description: post.SelfText,
				Author:      post.Author,
				Engagement: map[string]float64{
					"score":        float64(post.Score),
					"num_comments": float64(post.NumComments),
					"upvote_ratio": post.UpvoteRatio,
				},
				RawPayload: map[string]any{
					"subreddit": subreddit,
					"post_id":   post.ID,
					"post_type": "post",
				},
			})

			comments, err := s.fetchTopComments(ctx, subreddit, post.ID)
			if err != nil {
				s.logger.Warn().Err(err).Str("post_id", post.ID).Msg("comment fetch failed")
				continue
			}
			for _, comment := range comments {
				commentPublished := time.Unix(int64(comment.CreatedUTC), 0).UTC()
				if commentPublished.Before(windowStart) || !commentPublished.Before(windowEnd) {
					continue
				}
				if comment.Body == "[deleted]" || comment.Body == "[removed]" {
					continue
				}

				items = append(items, Item{
					ItemID:      "reddit_comment_" + comment.ID,
					Source:      SourceReddit,
					URL:         redditPublicURL + comment.Permalink,
					PublishedAt: commentPublished,
					Title:       "Comment on: " + truncateTitle(post.Title, 100),
					Description: comment.Body,
					Author:      comment.Author,
					Engagement: map[string]float64{
						"score": float64(comment.Score),
					},
					RawPayload: map[string]any{
						"subreddit":  subreddit,
						"post_id":    post.ID,
						"comment_id": comment.ID,
						"post_type":  "comment",
					},
				})
			}
		}
	}

	return items, nil
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Author      string  `json:"author"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	CreatedUTC  float64 `json:"created_utc"`
}

type redditComment struct {
	ID         string  `json:"id"`
	Body       string  `json:"body"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (s *RedditSource) fetchNewPosts(ctx context.Context, subreddit string) ([]redditPost, error) {
	limit := s.cfg.MaxPostsPerSubreddit
	if limit > redditMaxPageSize {
		limit = redditMaxPageSize
	}

	endpoint := fmt.Sprintf("/r/%s/new.json?limit=%d&raw_json=1", url.PathEscape(subreddit), limit)
	raw, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var post redditPost
		if err := json.Unmarshal(child.Data, &post); err != nil {
			s.logger.Debug().Err(err).Msg("skip malformed post payload")
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *RedditSource) fetchTopComments(ctx context.Context, subreddit, postID string) ([]redditComment, error) {
	endpoint := fmt.Sprintf("/r/%s/comments/%s.json?sort=top&limit=%d&depth=1&raw_json=1",
		url.PathEscape(subreddit), url.PathEscape(postID), s.cfg.MaxCommentsPerPost)
	raw, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// The comments endpoint returns [postListing, commentListing].
	var listings []redditListing
	if err := json.Unmarshal(raw, &listings); err != nil {
		return nil, fmt.Errorf("decode comment listing: %w", err)
	}
	if len(listings) < 2 {
		return nil, nil
	}

	comments := make([]redditComment, 0, len(listings[1].Data.Children))
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var comment redditComment
		if err := json.Unmarshal(child.Data, &comment); err != nil {
			s.logger.Debug().Err(err).Msg("skip malformed comment payload")
			continue
		}
		comments = append(comments, comment)
		if len(comments) >= s.cfg.MaxCommentsPerPost {
			break
		}
	}
	return comments, nil
}

func (s *RedditSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	base := redditPublicURL
	authenticated := s.clientID != "" && s.secret != ""
	if authenticated {
		if err := s.ensureToken(ctx); err != nil {
			return nil, err
		}
		base = redditBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Source: SourceReddit, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: reddit rate limited", ErrQuotaExceeded)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func (s *RedditSource) ensureToken(ctx context.Context) error {
	if s.token != "" && time.Now().Before(s.tokenExpires) {
		return nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, redditTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &AuthError{Source: SourceReddit, Err: fmt.Errorf("token status %d", resp.StatusCode)}
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if token.AccessToken == "" {
		return &AuthError{Source: SourceReddit, Err: fmt.Errorf("empty access token")}
	}

	s.token = token.AccessToken
	s.tokenExpires = time.Now().Add(time.Duration(token.ExpiresIn-60) * time.Second)
	return nil
}

func truncateTitle(title string, maxChars int) string {
	runes := []rune(title)
	if len(runes) <= maxChars {
		return title
	}
	return string(runes[:maxChars])
}
