// Package youtube resolves YouTube video references without network access
package youtube

import (
	"regexp"
	"strings"
)

const videoIDLength = 11

// videoURLPattern captures the video identifier after any known path or query marker.
// Supported shapes: watch?v=, &v=, youtu.be/, /embed/, /v/, /u/<x>/
var videoURLPattern = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)

// VideoID extracts the 11-character video identifier from a YouTube URL.
//
// The second return value is false when the URL does not match a known shape
// or the captured identifier is not exactly 11 characters long.
func VideoID(rawURL string) (string, bool) {
	match := videoURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if match == nil || len(match[2]) != videoIDLength {
		return "", false
	}
	return match[2], true
}

// EmbedURL builds the embeddable player URL for a video identifier
func EmbedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}

// LooksLikeVideoURL is a quick pre-check for user input before the URL is stored
func LooksLikeVideoURL(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return false
	}
	return strings.Contains(rawURL, "youtube.com/watch") ||
		strings.Contains(rawURL, "youtu.be/") ||
		strings.Contains(rawURL, "youtube.com/embed")
}
