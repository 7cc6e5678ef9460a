package adminapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Dependencies struct {
	Moderators ModeratorDirectory
	AdminToken string
	Logger     *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	r.Get("/health", Health)

	handler := NewModeratorHandler(deps.Moderators)

	r.Route("/admin", func(r chi.Router) {
		r.Use(TokenMiddleware(deps.AdminToken, deps.Logger))

		r.Route("/moderators", func(r chi.Router) {
			r.Get("/", handler.List)
			r.Post("/", handler.Create)
			r.Get("/export", handler.Export)

			r.Route("/{telegramID}", func(r chi.Router) {
				r.Delete("/", handler.Delete)
				r.Post("/activate", handler.Activate)
				r.Post("/deactivate", handler.Deactivate)
				r.Get("/stats", handler.Stats)
			})
		})
	})
}
