package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/pkg/httpclient"
)

// DefaultAPIBaseURL is the YouTube Data API v3 endpoint
const DefaultAPIBaseURL = "https://www.googleapis.com/youtube/v3"

// YouTube implements Provider on the YouTube Data API v3
type YouTube struct {
	client  httpclient.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

var _ Provider = (*YouTube)(nil)

// NewYouTube creates a YouTube metadata provider
func NewYouTube(client httpclient.Client, baseURL, apiKey string, logger *zap.Logger) *YouTube {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &YouTube{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
	}
}

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var thumbResses = []string{"maxres", "high", "medium", "standard", "default"}

func highestResThumbnail(thumbs map[string]thumbnail) string {
	for _, res := range thumbResses {
		if thumb, ok := thumbs[res]; ok {
			return thumb.URL
		}
	}
	return ""
}

type resVideos struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			PublishedAt          string               `json:"publishedAt"`
			ChannelID            string               `json:"channelId"`
			ChannelTitle         string               `json:"channelTitle"`
			Title                string               `json:"title"`
			Description          string               `json:"description"`
			Thumbnails           map[string]thumbnail `json:"thumbnails"`
			LiveBroadcastContent string               `json:"liveBroadcastContent"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	} `json:"items"`
}

type resChannels struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
		Statistics struct {
			VideoCount string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type resPlaylists struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
		ContentDetails struct {
			ItemCount int `json:"itemCount"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type resPlaylistItems struct {
	NextPageToken string `json:"nextPageToken,omitempty"`
	Items         []struct {
		ContentDetails struct {
			VideoID          string `json:"videoId"`
			VideoPublishedAt string `json:"videoPublishedAt"`
		} `json:"contentDetails"`
		Snippet struct {
			Title                  string               `json:"title"`
			Description            string               `json:"description"`
			ChannelID              string               `json:"channelId"`
			VideoOwnerChannelID    string               `json:"videoOwnerChannelId"`
			VideoOwnerChannelTitle string               `json:"videoOwnerChannelTitle"`
			Thumbnails             map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	} `json:"items"`
}

// apiError is the error envelope returned by Google APIs
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Uses 1 quota.
func (y *YouTube) GetItemDetails(ctx context.Context, id string) (*model.ItemMetadata, error) {
	var res resVideos
	if err := y.get(ctx, "videos", url.Values{"part": {"snippet,contentDetails,status"}, "id": {id}}, &res); err != nil {
		return nil, fmt.Errorf("video %q: %w", id, err)
	}

	if len(res.Items) == 0 {
		return nil, fmt.Errorf("video %q: %w", id, ErrNotFound)
	}

	v := res.Items[0]
	if v.Status.PrivacyStatus == "private" {
		return nil, fmt.Errorf("video %q: %w", id, ErrPrivate)
	}

	published, _ := parsePublishedTime(v.Snippet.PublishedAt)
	return &model.ItemMetadata{
		ID:           v.ID,
		Title:        v.Snippet.Title,
		Description:  v.Snippet.Description,
		ChannelID:    v.Snippet.ChannelID,
		ChannelTitle: v.Snippet.ChannelTitle,
		PublishedAt:  published,
		Duration:     v.ContentDetails.Duration,
		ThumbnailURL: highestResThumbnail(v.Snippet.Thumbnails),
		Privacy:      v.Status.PrivacyStatus,
		IsLive:       v.Snippet.LiveBroadcastContent != "" && v.Snippet.LiveBroadcastContent != "none",
	}, nil
}

// GetContainerDetails accepts a channel ID or a playlist ID. Uses 1 quota.
func (y *YouTube) GetContainerDetails(ctx context.Context, containerID string) (*model.ContainerMetadata, error) {
	if channelIDPattern.MatchString(containerID) {
		var res resChannels
		params := url.Values{"part": {"snippet,contentDetails,statistics"}, "id": {containerID}}
		if err := y.get(ctx, "channels", params, &res); err != nil {
			return nil, fmt.Errorf("channel %q: %w", containerID, err)
		}
		if len(res.Items) == 0 {
			return nil, fmt.Errorf("channel %q: %w", containerID, ErrContainerNotFound)
		}

		c := res.Items[0]
		count, _ := strconv.Atoi(c.Statistics.VideoCount)
		return &model.ContainerMetadata{
			ID:                c.ID,
			Title:             c.Snippet.Title,
			Description:       c.Snippet.Description,
			UploadsPlaylistID: c.ContentDetails.RelatedPlaylists.Uploads,
			ItemCount:         count,
		}, nil
	}

	var res resPlaylists
	params := url.Values{"part": {"snippet,contentDetails"}, "id": {containerID}}
	if err := y.get(ctx, "playlists", params, &res); err != nil {
		return nil, fmt.Errorf("playlist %q: %w", containerID, err)
	}
	if len(res.Items) == 0 {
		return nil, fmt.Errorf("playlist %q: %w", containerID, ErrContainerNotFound)
	}

	p := res.Items[0]
	return &model.ContainerMetadata{
		ID:                p.ID,
		Title:             p.Snippet.Title,
		Description:       p.Snippet.Description,
		UploadsPlaylistID: p.ID,
		ItemCount:         p.ContentDetails.ItemCount,
	}, nil
}

// ListContainerItems lists one page of a playlist, or of a channel's uploads
// playlist. Private and deleted entries are skipped. Uses 1 quota.
func (y *YouTube) ListContainerItems(ctx context.Context, containerID string, maxResults int, pageToken string) (*ItemPage, error) {
	playlistID := containerID
	if channelIDPattern.MatchString(containerID) {
		// Every channel's uploads playlist shares its ID after the prefix
		playlistID = "UU" + containerID[2:]
	}
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 50
	}

	params := url.Values{
		"part":       {"contentDetails,snippet,status"},
		"playlistId": {playlistID},
		"maxResults": {strconv.Itoa(maxResults)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var res resPlaylistItems
	if err := y.get(ctx, "playlistItems", params, &res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("playlist %q: %w", playlistID, ErrContainerNotFound)
		}
		return nil, fmt.Errorf("playlist %q items: %w", playlistID, err)
	}

	page := &ItemPage{NextPageToken: res.NextPageToken}
	for _, item := range res.Items {
		if item.Status.PrivacyStatus == "private" || item.ContentDetails.VideoID == "" {
			y.logger.Debug("Skipping unavailable playlist entry",
				zap.String("playlist_id", playlistID),
				zap.String("video_id", item.ContentDetails.VideoID))
			continue
		}

		published, _ := parsePublishedTime(item.ContentDetails.VideoPublishedAt)
		page.Items = append(page.Items, model.ItemMetadata{
			ID:           item.ContentDetails.VideoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    item.Snippet.VideoOwnerChannelID,
			ChannelTitle: item.Snippet.VideoOwnerChannelTitle,
			PublishedAt:  published,
			ThumbnailURL: highestResThumbnail(item.Snippet.Thumbnails),
			Privacy:      item.Status.PrivacyStatus,
		})
	}

	return page, nil
}

// ResolveContainerID looks up the channel ID of an @handle. Uses 1 quota.
func (y *YouTube) ResolveContainerID(ctx context.Context, handle string) (string, error) {
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}

	var res resChannels
	if err := y.get(ctx, "channels", url.Values{"part": {"id"}, "forHandle": {handle}}, &res); err != nil {
		return "", fmt.Errorf("resolving %q: %w", handle, err)
	}
	if len(res.Items) == 0 {
		return "", nil
	}
	return res.Items[0].ID, nil
}

func (y *YouTube) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", y.apiKey)
	target := fmt.Sprintf("%s/%s?%s", y.baseURL, endpoint, params.Encode())

	err := y.client.GetJSON(ctx, target, out)
	if err == nil {
		return nil
	}
	return translateAPIError(err)
}

// translateAPIError maps Google API error reasons onto package sentinels,
// keeping the transport error in the chain
func translateAPIError(err error) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	var body apiError
	_ = json.Unmarshal(statusErr.Body, &body)

	for _, e := range body.Error.Errors {
		switch e.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		case "playlistNotFound", "channelNotFound":
			return fmt.Errorf("%w: %w", ErrContainerNotFound, err)
		case "videoNotFound":
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}

	if statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func parsePublishedTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	published, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse published time %q: %w", value, err)
	}
	return published, nil
}
