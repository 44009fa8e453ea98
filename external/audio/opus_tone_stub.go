//go:build !opus

package audio

import "github.com/pomora/pomora/internal/audio"

type noopToneSource struct{}

func NewOpusToneSource() audio.CueSource {
	return &noopToneSource{}
}

func (s *noopToneSource) Frames(_ string) ([][]byte, error) {
	return nil, audio.ErrUnavailable
}
