package bot

import (
	"github.com/pomora/pomora/internal/alert"
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/discord"
	"github.com/pomora/pomora/internal/report"
	"github.com/pomora/pomora/internal/repository"
	"github.com/pomora/pomora/internal/status"
	"github.com/pomora/pomora/internal/timer"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		timers := do.MustInvoke[*timer.Service](i)
		statusManager := do.MustInvoke[*status.Manager](i)
		alerts := do.MustInvoke[*alert.Dispatcher](i)
		repo := do.MustInvoke[repository.Repository](i)
		dc := do.MustInvoke[discord.Client](i)
		reporter := do.MustInvoke[*report.Reporter](i)
		return NewManager(cfg, timers, statusManager, alerts, repo, dc, reporter), nil
	})
}
