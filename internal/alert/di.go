package alert

import (
	"github.com/pomora/pomora/internal/audio"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/timer"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Dispatcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		timers := do.MustInvoke[*timer.Service](i)
		dc := do.MustInvoke[discord.Client](i)
		cues := do.MustInvoke[audio.CueSource](i)
		return NewDispatcher(cfg, timers, dc, cues), nil
	})
}
