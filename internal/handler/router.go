package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/restaurant-trends/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса аналитики заказов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/restaurants", func(r chi.Router) {
			r.Get("/", h.ListRestaurants)
			r.Post("/", h.CreateRestaurant)

			r.Get("/{id}", h.GetRestaurant)
			r.Delete("/{id}", h.DeleteRestaurant)
			r.Get("/{id}/analytics", h.RestaurantAnalytics)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
		})

		r.Get("/analytics/top-restaurants", h.TopRestaurants)
		r.Get("/dashboard/stats", h.DashboardStats)

		r.Post("/seed", h.Seed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
