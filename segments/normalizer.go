package segments

import (
	"sort"
	"strings"

	"github.com/nijaru/yt-scribe/models"
)

const (
	// maxMergeGap is the largest silence, in seconds, across which two
	// segments are still considered part of one rolling caption window.
	maxMergeGap = 2.0

	// minOverlapRunes is the smallest suffix/prefix overlap that counts
	// as a rolling continuation rather than coincidence.
	minOverlapRunes = 4
)

// Normalize sorts raw segments, drops empty ones, and collapses the
// re-emitted rolling windows caption sources produce. Output offsets
// are strictly ascending and unique. Already-clean input (typical for
// STT output) passes through unchanged.
func Normalize(raw []models.TranscriptSegment) []models.TranscriptSegment {
	if len(raw) == 0 {
		return nil
	}

	sorted := make([]models.TranscriptSegment, 0, len(raw))
	for _, seg := range raw {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.Text == "" {
			continue
		}
		sorted = append(sorted, seg)
	}
	if len(sorted) == 0 {
		return nil
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	out := make([]models.TranscriptSegment, 0, len(sorted))
	out = append(out, sorted[0])

	for _, seg := range sorted[1:] {
		prev := &out[len(out)-1]
		if !merge(prev, seg) {
			out = append(out, seg)
		}
	}

	return out
}

// merge folds seg into prev when it repeats or continues prev's text
// within the merge window. Returns false when seg stands on its own.
func merge(prev *models.TranscriptSegment, seg models.TranscriptSegment) bool {
	sameOffset := seg.Offset == prev.Offset
	near := seg.Offset-prev.End() <= maxMergeGap

	prevLower := strings.ToLower(prev.Text)
	segLower := strings.ToLower(seg.Text)

	switch {
	case near && prevLower == segLower:
		// Straight re-emission.
		extend(prev, seg)
		return true

	case near && strings.HasPrefix(segLower, prevLower):
		// Rolling window grew: keep the longer text.
		prev.Text = seg.Text
		if len(seg.Words) > 0 {
			prev.Words = seg.Words
		}
		extend(prev, seg)
		return true

	case near && strings.Contains(prevLower, segLower):
		// Fragment already covered by the predecessor.
		extend(prev, seg)
		return true

	case near && overlapLen(prev.Text, seg.Text) >= minOverlapRunes:
		// Partial roll: stitch the non-overlapping remainder on.
		n := overlapLen(prev.Text, seg.Text)
		prev.Text += seg.Text[n:]
		prev.Words = append(prev.Words, seg.Words...)
		extend(prev, seg)
		return true

	case sameOffset:
		// Distinct captions at one timestamp collapse to a single
		// segment so offsets stay unique.
		prev.Text += " " + seg.Text
		prev.Words = append(prev.Words, seg.Words...)
		extend(prev, seg)
		return true
	}

	return false
}

// extend stretches prev's duration to cover seg's end.
func extend(prev *models.TranscriptSegment, seg models.TranscriptSegment) {
	if end := seg.End(); end > prev.End() {
		prev.Duration = end - prev.Offset
	}
}

// overlapLen returns the length in bytes of the longest suffix of a
// that case-insensitively matches a prefix of b.
func overlapLen(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if strings.EqualFold(a[len(a)-n:], b[:n]) {
			return n
		}
	}
	return 0
}
