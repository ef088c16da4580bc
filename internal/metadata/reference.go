package metadata

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ReferenceKind tells what a reference points at
type ReferenceKind int

const (
	ReferenceItem ReferenceKind = iota
	ReferencePlaylist
	ReferenceChannel
	ReferenceHandle
)

// String returns the string representation of ReferenceKind
func (k ReferenceKind) String() string {
	switch k {
	case ReferenceItem:
		return "item"
	case ReferencePlaylist:
		return "playlist"
	case ReferenceChannel:
		return "channel"
	case ReferenceHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// Reference is a parsed media reference
type Reference struct {
	Raw  string
	Kind ReferenceKind
	ID   string
}

// IsContainer reports whether the reference expands into many items
func (r Reference) IsContainer() bool {
	return r.Kind != ReferenceItem
}

var (
	videoIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	channelIDPattern  = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
	playlistIDPattern = regexp.MustCompile(`^(PL|UU|LL|FL|OL|RD)[A-Za-z0-9_-]{10,}$`)
	handlePattern     = regexp.MustCompile(`^@[A-Za-z0-9._-]{3,30}$`)
)

// ParseReference recognizes video URLs and IDs, playlist URLs and IDs,
// channel URLs and IDs, and @handles
func ParseReference(raw string) (Reference, error) {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return Reference{}, fmt.Errorf("empty reference")
	}

	switch {
	case handlePattern.MatchString(ref):
		return Reference{Raw: raw, Kind: ReferenceHandle, ID: ref}, nil
	case channelIDPattern.MatchString(ref):
		return Reference{Raw: raw, Kind: ReferenceChannel, ID: ref}, nil
	case playlistIDPattern.MatchString(ref):
		return Reference{Raw: raw, Kind: ReferencePlaylist, ID: ref}, nil
	case videoIDPattern.MatchString(ref):
		return Reference{Raw: raw, Kind: ReferenceItem, ID: ref}, nil
	}

	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid reference %q: %w", raw, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch host {
	case "youtu.be":
		if videoIDPattern.MatchString(segments[0]) {
			return Reference{Raw: raw, Kind: ReferenceItem, ID: segments[0]}, nil
		}
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); videoIDPattern.MatchString(v) {
			return Reference{Raw: raw, Kind: ReferenceItem, ID: v}, nil
		}
		if list := u.Query().Get("list"); playlistIDPattern.MatchString(list) {
			return Reference{Raw: raw, Kind: ReferencePlaylist, ID: list}, nil
		}
		if len(segments) >= 2 {
			switch segments[0] {
			case "shorts", "embed", "live", "v":
				if videoIDPattern.MatchString(segments[1]) {
					return Reference{Raw: raw, Kind: ReferenceItem, ID: segments[1]}, nil
				}
			case "channel":
				if channelIDPattern.MatchString(segments[1]) {
					return Reference{Raw: raw, Kind: ReferenceChannel, ID: segments[1]}, nil
				}
			}
		}
		if handlePattern.MatchString(segments[0]) {
			return Reference{Raw: raw, Kind: ReferenceHandle, ID: segments[0]}, nil
		}
	}

	return Reference{}, fmt.Errorf("unrecognized reference: %q", raw)
}
