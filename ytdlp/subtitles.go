package ytdlp

import (
	"context"
	"path/filepath"
	"strings"
)

// DownloadSubtitles fetches manual or automatic subtitles for url in
// the given language as WebVTT and returns the subtitle file path.
// Manual tracks win when both exist because yt-dlp writes them under
// the same name and prefers them.
func (r *Runner) DownloadSubtitles(ctx context.Context, url, lang, destDir string) (string, error) {
	const op = "Runner.DownloadSubtitles"

	_, err := r.Run(ctx,
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", "vtt",
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(destDir, "subs.%(ext)s"),
		url,
	)
	if err != nil {
		return "", err
	}

	// Subtitle files land as subs.<lang>.vtt.
	matches, err := filepath.Glob(filepath.Join(destDir, "subs.*"))
	if err != nil {
		return "", newCommandError(op, err, "failed to locate subtitle file")
	}
	for _, m := range matches {
		if strings.HasSuffix(m, "."+lang+".vtt") {
			return m, nil
		}
	}
	if len(matches) > 0 {
		return matches[0], nil
	}
	return "", newCommandError(op, nil, "no subtitles available")
}
