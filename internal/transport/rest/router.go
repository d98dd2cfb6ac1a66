package rest

import (
	"net/http"

	customMW "github.com/KotFed0t/portfolio_tracker/internal/transport/rest/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(ctrl *Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(customMW.Logger)

	r.Get("/health", ctrl.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/price/{ticker}", ctrl.GetPrice)

		r.Post("/portfolios", ctrl.CreatePortfolio)

		r.Route("/portfolios/{id}", func(r chi.Router) {
			r.Get("/", ctrl.GetPortfolio)
			r.Post("/transactions", ctrl.ApplyTransaction)
			r.Post("/import", ctrl.ImportTransactions)
			r.Put("/holdings/{symbol}", ctrl.EditHolding)
			r.Delete("/holdings/{symbol}", ctrl.DeleteHolding)
			r.Put("/market", ctrl.SetMarket)
			r.Get("/export", ctrl.Export)
		})
	})

	return r
}
