package api

import (
	"delivery-dispatch-service/internal/api/handlers"
	"delivery-dispatch-service/internal/services"
	"delivery-dispatch-service/internal/socket"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(engine *services.Engine, hub *socket.Hub, allowedOrigins []string, log *slog.Logger) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	orders := &handlers.OrderHandler{Orders: engine}
	drivers := &handlers.DriverHandler{Drivers: engine}
	routes := &handlers.RouteHandler{Routes: engine}
	board := &handlers.BoardHandler{Hub: hub, Sessions: engine}
	health := &handlers.HealthHandler{Board: hub}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", health.Health)

	r.Post("/orders", orders.Submit)
	r.Get("/orders/{orderID}", orders.Get)
	r.Get("/slots/{slot}/window", orders.Window)
	r.Post("/slots/{slot}/batches", routes.CloseBatch)

	r.Route("/drivers/{driverID}", func(r chi.Router) {
		r.Put("/session", drivers.StartSession)
		r.Delete("/session", drivers.EndSession)
		r.Post("/heartbeat", drivers.Heartbeat)
		r.Get("/routes", drivers.ListRoutes)
	})

	r.Route("/routes/{routeID}", func(r chi.Router) {
		r.Get("/", routes.Get)
		r.Post("/claim", routes.Claim)
		r.Post("/stops/{stopID}/complete", routes.CompleteStop)
		r.Post("/stops/{stopID}/fail", routes.FailStop)
		r.Get("/earnings", routes.Earnings)
	})

	r.Get("/ws/board", board.ServeWs)

	return r
}
