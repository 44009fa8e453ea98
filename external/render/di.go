package render

import (
	"github.com/pomora/pomora/internal/config"
	"github.com/pomora/pomora/internal/render"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (render.Renderer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewHTTPRenderer(cfg.RenderServiceURL), nil
	})
}
