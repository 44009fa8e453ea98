package status

import (
	"github.com/jonboulle/clockwork"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/render"
	"github.com/pomora/pomora/internal/repository"
	"github.com/pomora/pomora/internal/timer"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		timers := do.MustInvoke[*timer.Service](i)
		repo := do.MustInvoke[repository.MessageRepository](i)
		dc := do.MustInvoke[discord.Client](i)
		renderer := do.MustInvoke[render.Renderer](i)
		clock := do.MustInvoke[clockwork.Clock](i)
		return NewManager(cfg, timers, repo, dc, renderer, clock), nil
	})
}
