package audio

import (
	"github.com/pomora/pomora/internal/audio"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.CueSource, error) {
		return NewOpusToneSource(), nil
	})
}
