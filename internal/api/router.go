package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/availability"
	"github.com/hackgods/assistance-scheduling/internal/booking"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Calendar     *availability.Manager
	Bookings     *booking.Registry
	Store        store.Store
	Log          *zap.Logger
	Env          string
	Version      string
	CORSOrigins  []string
	RateLimitRPS int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", SessionHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	// Health endpoints
	health := NewHealthHandler(map[string]Pinger{"store": cfg.Store}, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/sessions", createSessionHandler(cfg.Store))

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.Store, cfg.Log))
		r.Use(RequireSession)

		r.Get("/sessions/me", currentSessionHandler(cfg.Store))
		r.Delete("/sessions/me", deleteSessionHandler(cfg.Store, cfg.Bookings))

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/stats", statsHandler(cfg.Appointments))
			r.Get("/upcoming", upcomingHandler(cfg.Appointments))
			r.Get("/recent", recentHandler(cfg.Appointments))
			r.Get("/history", historyHandler(cfg.Appointments))
			r.Get("/reviews", reviewsHandler(cfg.Appointments))
			r.Get("/next", nextHandler(cfg.Appointments))
			r.Post("/{id}/cancel", cancelHandler(cfg.Appointments))
			r.Post("/{id}/rating", ratingHandler(cfg.Appointments))
			r.Post("/{id}/feedback", feedbackHandler(cfg.Appointments))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", openBookingHandler(cfg.Bookings))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getBookingHandler(cfg.Bookings))
				r.Delete("/", closeBookingHandler(cfg.Bookings))
				r.Get("/times", bookingTimesHandler(cfg.Bookings))
				r.Put("/specialist", selectSpecialistHandler(cfg.Bookings))
				r.Put("/date", selectDateHandler(cfg.Bookings))
				r.Put("/time", selectTimeHandler(cfg.Bookings))
				r.Put("/modality", selectModalityHandler(cfg.Bookings))
				r.Put("/notes", setNotesHandler(cfg.Bookings))
				r.Post("/next", advanceHandler(cfg.Bookings, false))
				r.Post("/back", backHandler(cfg.Bookings))
				r.Post("/submit", advanceHandler(cfg.Bookings, true))
			})
		})

		r.Route("/volunteers/{id}", func(r chi.Router) {
			r.Get("/available-times", availableTimesHandler(cfg.Appointments))
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/", calendarHandler(cfg.Calendar))
				r.Put("/{day}", editDayHandler(cfg.Calendar))
				r.Delete("/{day}", removeDayHandler(cfg.Calendar))
				r.Post("/{day}/slots", addSlotHandler(cfg.Calendar))
				r.Delete("/{day}/slots/{time}", removeSlotHandler(cfg.Calendar))
			})
		})
	})

	return r
}
