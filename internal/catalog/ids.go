package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidPlaylist = errors.New("invalid playlist reference")

var idPattern = regexp.MustCompile(`^[0-9A-Za-z]+$`)

// ParsePlaylistID extracts the playlist id from a bare id, a
// spotify:playlist:<id> URI or an open.spotify.com playlist URL.
func ParsePlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	var id string
	switch {
	case strings.HasPrefix(ref, "spotify:"):
		parts := strings.Split(ref, ":")
		if len(parts) < 3 || parts[len(parts)-2] != "playlist" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPlaylist, ref)
		}
		id = parts[len(parts)-1]
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidPlaylist, ref, err)
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := 0; i < len(segments)-1; i++ {
			if segments[i] == "playlist" {
				id = segments[i+1]
			}
		}
	default:
		id = ref
	}
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlaylist, ref)
	}
	return id, nil
}
