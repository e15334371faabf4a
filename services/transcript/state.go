package transcript

import "fmt"

// State tracks where an acquisition run is in the pipeline.
type State int

const (
	StateIdle State = iota
	StateCheckingCache
	StateExtractingCaptions
	StateDownloadingAudio
	StateTranscribing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingCache:
		return "checking_cache"
	case StateExtractingCaptions:
		return "extracting_captions"
	case StateDownloadingAudio:
		return "downloading_audio"
	case StateTranscribing:
		return "transcribing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal reports whether the run has finished, successfully or not.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}
