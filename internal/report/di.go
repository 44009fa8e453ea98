package report

import (
	"github.com/jonboulle/clockwork"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/render"
	"github.com/pomora/pomora/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Reporter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		renderer := do.MustInvoke[render.Renderer](i)
		clock := do.MustInvoke[clockwork.Clock](i)
		return NewReporter(cfg, repo, repo, dc, renderer, clock), nil
	})
}
