package audio

import "errors"

// ErrUnavailable is returned when no cue source is compiled in; callers
// skip the alert instead of failing the transition.
var ErrUnavailable = errors.New("audio cue source unavailable")

// CueSource supplies the short alert played at a stage transition as
// 20ms opus frames, keyed by the stage just entered.
type CueSource interface {
	Frames(stage string) ([][]byte, error)
}
