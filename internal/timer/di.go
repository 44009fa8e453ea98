package timer

import (
	"github.com/jonboulle/clockwork"
	"github.com/pomora/pomora/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		clock := do.MustInvoke[clockwork.Clock](i)
		return NewService(cfg, clock), nil
	})
}
