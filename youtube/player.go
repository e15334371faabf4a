package youtube

import (
	"fmt"
	"sort"
	"strings"
)

// PlayerResponse is the slice of the player payload this service
// reads: playability, caption tracks, and adaptive stream formats.
type PlayerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`

	Captions struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`

	StreamingData struct {
		AdaptiveFormats []AdaptiveFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

// CaptionTrack describes one subtitle track. Kind is "asr" for
// auto-generated tracks and empty for uploaded ones.
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type AdaptiveFormat struct {
	Itag          int    `json:"itag"`
	MimeType      string `json:"mimeType"`
	Bitrate       int    `json:"bitrate"`
	ContentLength string `json:"contentLength"`
	URL           string `json:"url"`
}

// Playable reports whether playback is allowed, with the platform's
// reason when it is not.
func (pr *PlayerResponse) Playable() error {
	status := pr.PlayabilityStatus.Status
	if status == "" || status == "OK" {
		return nil
	}
	reason := pr.PlayabilityStatus.Reason
	if reason == "" {
		reason = status
	}
	return fmt.Errorf("video not playable: %s", reason)
}

// Tracks returns the caption tracks, which may be empty.
func (pr *PlayerResponse) Tracks() []CaptionTrack {
	return pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

// AudioFormats returns the audio-only adaptive formats carrying a
// direct URL, best bitrate first.
func (pr *PlayerResponse) AudioFormats() []AdaptiveFormat {
	var out []AdaptiveFormat
	for _, f := range pr.StreamingData.AdaptiveFormats {
		if f.URL == "" || !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bitrate > out[j].Bitrate })
	return out
}
