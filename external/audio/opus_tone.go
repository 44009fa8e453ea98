//go:build opus

package audio

import (
	"math"
	"sync"

	"github.com/hraban/opus"
	"github.com/pomora/pomora/internal/audio"
)

const (
	sampleRate      = 48000
	channels        = 2
	frameSizeMs     = 20
	samplesPerFrame = sampleRate * frameSizeMs / 1000
	amplitude       = 0.22
	fadeSeconds     = 0.012
)

type note struct {
	freq    float64
	seconds float64
}

// Ascending chime when focus starts, descending when the break starts.
var cueNotes = map[string][]note{
	"focus": {
		{freq: 523.25, seconds: 0.26},
		{freq: 659.25, seconds: 0.26},
		{freq: 783.99, seconds: 0.42},
	},
	"break": {
		{freq: 783.99, seconds: 0.26},
		{freq: 659.25, seconds: 0.26},
		{freq: 523.25, seconds: 0.42},
	},
}

// OpusToneSource synthesizes the stage chime as PCM and encodes it into
// 20ms opus frames ready for the voice gateway. Frames are built once per
// stage and cached; the chime never changes at runtime.
type OpusToneSource struct {
	mu    sync.Mutex
	cache map[string][][]byte
}

func NewOpusToneSource() audio.CueSource {
	return &OpusToneSource{cache: make(map[string][][]byte)}
}

func (s *OpusToneSource) Frames(stage string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frames, ok := s.cache[stage]; ok {
		return frames, nil
	}

	notes, ok := cueNotes[stage]
	if !ok {
		notes = cueNotes["focus"]
	}
	frames, err := encodeFrames(synthesize(notes))
	if err != nil {
		return nil, err
	}
	s.cache[stage] = frames
	return frames, nil
}

// synthesize renders the notes as interleaved stereo int16 samples with a
// short linear fade at each note edge to avoid clicks.
func synthesize(notes []note) []int16 {
	var pcm []int16
	for _, n := range notes {
		sampleCount := int(n.seconds * sampleRate)
		fadeCount := int(fadeSeconds * sampleRate)
		for i := 0; i < sampleCount; i++ {
			gain := 1.0
			if i < fadeCount {
				gain = float64(i) / float64(fadeCount)
			} else if remaining := sampleCount - i; remaining < fadeCount {
				gain = float64(remaining) / float64(fadeCount)
			}
			v := math.Sin(2*math.Pi*n.freq*float64(i)/sampleRate) * amplitude * gain
			sample := int16(v * math.MaxInt16)
			pcm = append(pcm, sample, sample)
		}
	}

	// The encoder wants whole frames; pad the tail with silence.
	frameSamples := samplesPerFrame * channels
	if rem := len(pcm) % frameSamples; rem != 0 {
		pcm = append(pcm, make([]int16, frameSamples-rem)...)
	}
	return pcm
}

func encodeFrames(pcm []int16) ([][]byte, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, err
	}

	frameSamples := samplesPerFrame * channels
	frames := make([][]byte, 0, len(pcm)/frameSamples)
	buf := make([]byte, 1400)
	for offset := 0; offset+frameSamples <= len(pcm); offset += frameSamples {
		n, err := enc.Encode(pcm[offset:offset+frameSamples], buf)
		if err != nil {
			return nil, err
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		frames = append(frames, frame)
	}
	return frames, nil
}
