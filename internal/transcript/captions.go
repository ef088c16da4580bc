package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"media-digest-go/internal/model"
	"media-digest-go/pkg/httpclient"
	"media-digest-go/pkg/storage"
)

const captionCacheNamespace = "captions"

var playabilityPattern = regexp.MustCompile(`"playabilityStatus":\s*\{\s*"status":\s*"([A-Z_]+)"`)

// rateLimitedError reports that the watch page answered with a captcha
type rateLimitedError struct {
	itemID string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("video %q got captcha: too many requests", e.itemID)
}

// HTTPStatusCode lets the classifier treat a captcha like a 429
func (e *rateLimitedError) HTTPStatusCode() int {
	return 429
}

type captionTrackList struct {
	PlayerCaptionsTracklistRenderer struct {
		CaptionTracks []captionTrack `json:"captionTracks"`
	} `json:"playerCaptionsTracklistRenderer"`
}

type captionTrack struct {
	BaseURL string `json:"baseUrl"`
	Name    struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

func (t captionTrack) auto() bool {
	return t.Kind == "asr"
}

type timedText struct {
	Entries []struct {
		Text  string  `xml:",chardata"`
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
	} `xml:"text"`
}

// YouTubeCaptions reads caption tracks from the public watch page
type YouTubeCaptions struct {
	client       httpclient.Client
	watchBaseURL string
	languages    []string
	strict       bool
	cache        *storage.FileCache
	logger       *zap.Logger
}

// CaptionOption customizes YouTubeCaptions
type CaptionOption func(*YouTubeCaptions)

// WithCache caches fetched captions by item ID
func WithCache(cache *storage.FileCache) CaptionOption {
	return func(y *YouTubeCaptions) {
		y.cache = cache
	}
}

// WithStrictLanguages fails with ErrLanguageUnsupported instead of picking a
// track outside the preferred languages
func WithStrictLanguages(strict bool) CaptionOption {
	return func(y *YouTubeCaptions) {
		y.strict = strict
	}
}

// NewYouTubeCaptions creates a caption source. languages is the preference
// order of caption languages.
func NewYouTubeCaptions(client httpclient.Client, watchBaseURL string, languages []string, logger *zap.Logger, opts ...CaptionOption) *YouTubeCaptions {
	y := &YouTubeCaptions{
		client:       client,
		watchBaseURL: strings.TrimRight(watchBaseURL, "/"),
		languages:    languages,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// FetchCaptions downloads and parses the best caption track of itemID
func (y *YouTubeCaptions) FetchCaptions(ctx context.Context, itemID string) (*Fetched, error) {
	if y.cache != nil {
		var cached Fetched
		if y.cache.Get(captionCacheNamespace, itemID, &cached) {
			y.logger.Debug("Captions served from cache", zap.String("item_id", itemID))
			return &cached, nil
		}
	}

	watchURL := fmt.Sprintf("%s/watch?v=%s", y.watchBaseURL, url.QueryEscape(itemID))
	resp, err := y.client.Get(ctx, watchURL, httpclient.WithHeader("Accept-Language", "en-US,en;q=0.9"))
	if err != nil {
		return nil, fmt.Errorf("requesting watch page of %q: %w", itemID, err)
	}

	tracks, err := y.extractTracks(itemID, resp.Body)
	if err != nil {
		return nil, err
	}

	track, ok := bestTrack(tracks, y.languages, y.strict)
	if !ok {
		if len(tracks) > 0 {
			return nil, fmt.Errorf("video %q has captions in %s: %w", itemID, trackLanguages(tracks), ErrLanguageUnsupported)
		}
		return nil, fmt.Errorf("video %q: %w", itemID, ErrNoCaptions)
	}

	trackURL, err := y.absolute(track.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("caption track url %q: %w", track.BaseURL, err)
	}

	captionResp, err := y.client.Get(ctx, trackURL)
	if err != nil {
		return nil, fmt.Errorf("downloading captions of %q: %w", itemID, err)
	}

	fetched, err := parseTimedText(captionResp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing captions of %q: %w", itemID, err)
	}
	if len(fetched.Segments) == 0 {
		return nil, fmt.Errorf("video %q has an empty caption track: %w", itemID, ErrNoCaptions)
	}
	fetched.Language = track.LanguageCode
	fetched.Manual = !track.auto()

	y.logger.Debug("Captions fetched",
		zap.String("item_id", itemID),
		zap.String("language", fetched.Language),
		zap.Bool("manual", fetched.Manual),
		zap.Int("segments", len(fetched.Segments)))

	if y.cache != nil {
		if err := y.cache.Set(captionCacheNamespace, itemID, fetched); err != nil {
			y.logger.Warn("Failed to cache captions", zap.String("item_id", itemID), zap.Error(err))
		}
	}

	return fetched, nil
}

// extractTracks finds the caption track list in the player response embedded
// in the watch page
func (y *YouTubeCaptions) extractTracks(itemID string, page []byte) ([]captionTrack, error) {
	content := string(page)
	if strings.Contains(content, `action="https://consent.youtube.com/s"`) {
		return nil, fmt.Errorf("video %q: watch page returned a consent form", itemID)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing watch page of %q: %w", itemID, err)
	}

	var player string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := s.Text(); strings.Contains(text, `"captions":`) {
			player = text
			return false
		}
		return true
	})

	if player == "" {
		if doc.Find(".g-recaptcha").Length() > 0 || strings.Contains(content, `class="g-recaptcha"`) {
			return nil, &rateLimitedError{itemID: itemID}
		}
		if match := playabilityPattern.FindStringSubmatch(content); match != nil {
			switch match[1] {
			case "LOGIN_REQUIRED":
				return nil, fmt.Errorf("video %q requires sign in: %w", itemID, ErrPrivate)
			case "ERROR", "UNPLAYABLE":
				return nil, fmt.Errorf("video %q is not playable: %w", itemID, ErrNotFound)
			}
		}
		return nil, fmt.Errorf("video %q: no captions json: %w", itemID, ErrNoCaptions)
	}

	raw := strings.SplitN(player, `"captions":`, 2)[1]
	raw = strings.SplitN(raw, `,"videoDetails`, 2)[0]
	raw = strings.ReplaceAll(raw, "\n", "")

	var list captionTrackList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decoding caption tracks of %q: %w", itemID, err)
	}
	return list.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

func (y *YouTubeCaptions) absolute(trackURL string) (string, error) {
	parsed, err := url.Parse(trackURL)
	if err != nil {
		return "", err
	}
	if parsed.IsAbs() {
		return trackURL, nil
	}
	base, err := url.Parse(y.watchBaseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(parsed).String(), nil
}

// bestTrack picks a preferred-language manual track, then a preferred-language
// auto track, then any manual track, then any auto track. Strict mode stops
// after the preferred languages.
func bestTrack(tracks []captionTrack, languages []string, strict bool) (captionTrack, bool) {
	for _, wantAuto := range []bool{false, true} {
		for _, lang := range languages {
			for _, t := range tracks {
				if t.auto() == wantAuto && matchesLanguage(t.LanguageCode, lang) {
					return t, true
				}
			}
		}
	}

	if strict && len(languages) > 0 {
		return captionTrack{}, false
	}

	for _, wantAuto := range []bool{false, true} {
		for _, t := range tracks {
			if t.auto() == wantAuto {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}

// matchesLanguage compares on the primary subtag, so "en" matches "en-GB"
func matchesLanguage(code, want string) bool {
	code = strings.ToLower(code)
	want = strings.ToLower(want)
	if code == want {
		return true
	}
	primary, _, _ := strings.Cut(code, "-")
	return primary == want
}

func trackLanguages(tracks []captionTrack) string {
	codes := make([]string, 0, len(tracks))
	for _, t := range tracks {
		codes = append(codes, t.LanguageCode)
	}
	return strings.Join(codes, ",")
}

func parseTimedText(body []byte) (*Fetched, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	fetched := &Fetched{}
	for _, entry := range doc.Entries {
		text := strings.TrimSpace(html.UnescapeString(entry.Text))
		if text == "" {
			continue
		}
		fetched.Segments = append(fetched.Segments, model.Segment{
			Start: entry.Start,
			End:   entry.Start + entry.Dur,
			Text:  text,
		})
	}
	return fetched, nil
}
