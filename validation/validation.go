package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nijaru/yt-scribe/errors"
)

// videoIDPattern matches canonical 11-character video identifiers.
var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ValidateVideoID rejects identifiers that are not exactly 11 characters
// from the conservative URL-safe set. This runs before any acquisition
// tier is attempted.
func ValidateVideoID(id string) error {
	const op = "validation.ValidateVideoID"

	if id == "" {
		return errors.InvalidInput(op, nil, "video ID is required")
	}
	if !videoIDPattern.MatchString(id) {
		return errors.InvalidInput(op, nil, "invalid video ID")
	}
	return nil
}

// ParseVideoID extracts a video ID from a bare identifier or any of the
// supported URL forms (watch, youtu.be, shorts, embed).
func ParseVideoID(input string) (string, error) {
	const op = "validation.ParseVideoID"

	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.InvalidInput(op, nil, "video URL or ID is required")
	}

	if videoIDPattern.MatchString(input) {
		return input, nil
	}

	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return "", errors.InvalidInput(op, err, "invalid URL format")
	}

	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	if host != "youtube.com" && host != "m.youtube.com" && host != "youtu.be" {
		return "", errors.InvalidInput(op, nil, "unsupported video URL")
	}

	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(parsed.Path, "/")
	case strings.HasPrefix(parsed.Path, "/watch"):
		id = parsed.Query().Get("v")
	case strings.HasPrefix(parsed.Path, "/shorts/"):
		id = strings.TrimPrefix(parsed.Path, "/shorts/")
	case strings.HasPrefix(parsed.Path, "/embed/"):
		id = strings.TrimPrefix(parsed.Path, "/embed/")
	case strings.HasPrefix(parsed.Path, "/live/"):
		id = strings.TrimPrefix(parsed.Path, "/live/")
	}
	id = strings.Trim(id, "/")
	if i := strings.IndexAny(id, "?&"); i >= 0 {
		id = id[:i]
	}

	if err := ValidateVideoID(id); err != nil {
		return "", err
	}
	return id, nil
}

// WatchURL builds the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
