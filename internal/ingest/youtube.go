package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/avgjoe1017/et-heatmap-v2/internal/config"
)

const youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

// YouTube Data API unit costs per operation.
const (
	youtubeCostList   = 1
	youtubeCostSearch = 100
)

// YouTubeSource resolves configured channels to their uploads playlists and
// fetches video metadata plus optional top comments for videos in the window.
type YouTubeSource struct {
	cfg        config.YouTubeSourceConfig
	apiKey     string
	httpClient *http.Client
	quota      *QuotaLedger
	logger     zerolog.Logger
}

func NewYouTubeSource(cfg config.YouTubeSourceConfig, appCfg *config.Config, quota *QuotaLedger, logger zerolog.Logger) *YouTubeSource {
	return &YouTubeSource{
		cfg:        cfg,
		apiKey:     appCfg.YouTubeAPIKey,
		httpClient: &http.Client{Timeout: appCfg.RequestTimeout},
		quota:      quota,
		logger:     logger.With().Str("source", SourceYouTube).Logger(),
	}
}

func (s *YouTubeSource) Name() string { return SourceYouTube }

func (s *YouTubeSource) Fetch(ctx context.Context, windowStart, windowEnd time.Time) ([]Item, error) {
	if s.apiKey == "" {
		return nil, &AuthError{Source: SourceYouTube, Err: fmt.Errorf("YOUTUBE_API_KEY is not set")}
	}

	items := make([]Item, 0, 128)

	for _, channel := range s.cfg.Channels {
		uploadsID, err := s.resolveUploadsPlaylist(ctx, channel)
		if err != nil {
			s.logger.Warn().Err(err).Str("channel", channel).Msg("channel resolve failed")
			continue
		}

		videoIDs, err := s.listRecentVideoIDs(ctx, uploadsID, windowStart)
		if err != nil {
			s.logger.Warn().Err(err).Str("channel", channel).Msg("uploads list failed")
			continue
		}
		if len(videoIDs) == 0 {
			continue
		}

		videos, err := s.fetchVideos(ctx, videoIDs)
		if err != nil {
			s.logger.Warn().Err(err).Str("channel", channel).Msg("video fetch failed")
			continue
		}

		for _, video := range videos {
			if video.PublishedAt.Before(windowStart) || !video.PublishedAt.Before(windowEnd) {
				continue
			}

			items = append(items, Item{
				ItemID:      "youtube_video_" + video.ID,
				Source:      SourceYouTube,
				URL:         "https://www.youtube.com/watch?v=" + video.ID,
				PublishedAt: video.PublishedAt,
				Title:       video.Title,
				Description: video.Description,
				Author:      video.ChannelTitle,
				Engagement: map[string]float64{
					"view_count":    video.ViewCount,
					"like_count":    video.LikeCount,
					"comment_count": video.CommentCount,
				},
				RawPayload: map[string]any{
					"channel":  channel,
					"video_id": video.ID,
					"kind":     "video",
				},
			})

			if !s.cfg.FetchComments {
				continue
			}
			comments, err := s.fetchTopComments(ctx, video.ID)
			if err != nil {
				s.logger.Warn().Err(err).Str("video_id", video.ID).Msg("comment fetch failed")
				continue
			}
			for _, comment := range comments {
				if comment.PublishedAt.Before(windowStart) || !comment.PublishedAt.Before(windowEnd) {
					continue
				}
				items = append(items, Item{
					ItemID:      "youtube_comment_" + comment.ID,
					Source:      SourceYouTubeComment,
					URL:         "https://www.youtube.com/watch?v=" + video.ID + "&lc=" + comment.ID,
					PublishedAt: comment.PublishedAt,
					Title:       "Comment on: " + truncateTitle(video.Title, 100),
					Description: comment.Text,
					Author:      comment.Author,
					Engagement: map[string]float64{
						"like_count":  comment.LikeCount,
						"reply_count": comment.ReplyCount,
					},
					RawPayload: map[string]any{
						"video_id":   video.ID,
						"comment_id": comment.ID,
						"kind":       "comment",
					},
				})
			}
		}
	}

	return items, nil
}

type youtubeVideo struct {
	ID           string
	Title        string
	Description  string
	ChannelTitle string
	PublishedAt  time.Time
	ViewCount    float64
	LikeCount    float64
	CommentCount float64
}

type youtubeComment struct {
	ID          string
	Text        string
	Author      string
	PublishedAt time.Time
	LikeCount   float64
	ReplyCount  float64
}

func (s *YouTubeSource) resolveUploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	params := url.Values{
		"part": {"contentDetails"},
		"id":   {channelID},
	}
	raw, err := s.call(ctx, "channels", params, youtubeCostList)
	if err != nil {
		return "", err
	}

	var payload struct {
		Items []struct {
			ContentDetails struct {
				RelatedPlaylists struct {
					Uploads string `json:"uploads"`
				} `json:"relatedPlaylists"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode channels response: %w", err)
	}
	if len(payload.Items) == 0 {
		return "", fmt.Errorf("channel %s not found", channelID)
	}
	uploads := payload.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", fmt.Errorf("channel %s has no uploads playlist", channelID)
	}
	return uploads, nil
}

func (s *YouTubeSource) listRecentVideoIDs(ctx context.Context, playlistID string, windowStart time.Time) ([]string, error) {
	params := url.Values{
		"part":       {"contentDetails"},
		"playlistId": {playlistID},
		"maxResults": {strconv.Itoa(min(s.cfg.MaxVideosPerChan, 50))},
	}
	raw, err := s.call(ctx, "playlistItems", params, youtubeCostList)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []struct {
			ContentDetails struct {
				VideoID          string    `json:"videoId"`
				VideoPublishedAt time.Time `json:"videoPublishedAt"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode playlist response: %w", err)
	}

	ids := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ContentDetails.VideoPublishedAt.Before(windowStart) {
			continue
		}
		ids = append(ids, item.ContentDetails.VideoID)
	}
	return ids, nil
}

func (s *YouTubeSource) fetchVideos(ctx context.Context, videoIDs []string) ([]youtubeVideo, error) {
	videos := make([]youtubeVideo, 0, len(videoIDs))

	for start := 0; start < len(videoIDs); start += 50 {
		end := min(start+50, len(videoIDs))
		params := url.Values{
			"part": {"snippet,statistics"},
			"id":   videoIDs[start:end],
		}
		raw, err := s.call(ctx, "videos", params, youtubeCostList)
		if err != nil {
			return nil, err
		}

		var payload struct {
			Items []struct {
				ID      string `json:"id"`
				Snippet struct {
					PublishedAt  time.Time `json:"publishedAt"`
					Title        string    `json:"title"`
					Description  string    `json:"description"`
					ChannelTitle string    `json:"channelTitle"`
				} `json:"snippet"`
				Statistics struct {
					ViewCount    string `json:"viewCount"`
					LikeCount    string `json:"likeCount"`
					CommentCount string `json:"commentCount"`
				} `json:"statistics"`
			} `json:"items"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode videos response: %w", err)
		}

		for _, item := range payload.Items {
			videos = append(videos, youtubeVideo{
				ID:           item.ID,
				Title:        item.Snippet.Title,
				Description:  item.Snippet.Description,
				ChannelTitle: item.Snippet.ChannelTitle,
				PublishedAt:  item.Snippet.PublishedAt.UTC(),
				ViewCount:    parseCount(item.Statistics.ViewCount),
				LikeCount:    parseCount(item.Statistics.LikeCount),
				CommentCount: parseCount(item.Statistics.CommentCount),
			})
		}
	}

	return videos, nil
}

func (s *YouTubeSource) fetchTopComments(ctx context.Context, videoID string) ([]youtubeComment, error) {
	params := url.Values{
		"part":       {"snippet"},
		"videoId":    {videoID},
		"order":      {"relevance"},
		"maxResults": {strconv.Itoa(min(s.cfg.MaxCommentsPerItem, 100))},
		"textFormat": {"plainText"},
	}
	raw, err := s.call(ctx, "commentThreads", params, youtubeCostList)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []struct {
			Snippet struct {
				TotalReplyCount float64 `json:"totalReplyCount"`
				TopLevelComment struct {
					ID      string `json:"id"`
					Snippet struct {
						TextDisplay       string    `json:"textDisplay"`
						AuthorDisplayName string    `json:"authorDisplayName"`
						LikeCount         float64   `json:"likeCount"`
						PublishedAt       time.Time `json:"publishedAt"`
					} `json:"snippet"`
				} `json:"topLevelComment"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode comment threads response: %w", err)
	}

	comments := make([]youtubeComment, 0, len(payload.Items))
	for _, item := range payload.Items {
		top := item.Snippet.TopLevelComment
		comments = append(comments, youtubeComment{
			ID:          top.ID,
			Text:        top.Snippet.TextDisplay,
			Author:      top.Snippet.AuthorDisplayName,
			PublishedAt: top.Snippet.PublishedAt.UTC(),
			LikeCount:   top.Snippet.LikeCount,
			ReplyCount:  item.Snippet.TotalReplyCount,
		})
	}
	return comments, nil
}

func (s *YouTubeSource) call(ctx context.Context, resource string, params url.Values, cost int) ([]byte, error) {
	if err := s.quota.Spend(cost); err != nil {
		return nil, err
	}

	params.Set("key", s.apiKey)
	endpoint := youtubeAPIBase + "/" + resource + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Source: SourceYouTube, Err: fmt.Errorf("%s status %d", resource, resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: youtube rate limited", ErrQuotaExceeded)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("fetch %s: status %d", resource, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func parseCount(raw string) float64 {
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}
