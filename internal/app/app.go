// Package app wires stores, services and the HTTP router into one unit so
// the server binary and the end-to-end tests assemble the same application.
package app

import (
	"time"

	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"biblioteca/internal/catalog"
	"biblioteca/internal/circulation"
	"biblioteca/internal/config"
	"biblioteca/internal/middleware"
	"biblioteca/internal/patrons"
	"biblioteca/internal/reporting"
	"biblioteca/internal/storage"
	"biblioteca/pkg/eventstore"
)

// App holds the assembled services and router.
type App struct {
	Catalog     catalog.Service
	Circulation circulation.Service
	Patrons     patrons.Service
	Reporting   reporting.Service
	Router      chi.Router
}

// New assembles the application over the given store and event journal.
func New(cfg *config.Config, logger *zap.Logger, store storage.Store, events eventstore.Appender) *App {
	secret := []byte(cfg.JWTSecret)
	loanPeriod := time.Duration(cfg.LoanPeriodDays) * 24 * time.Hour

	a := &App{
		Catalog:     catalog.NewService(store, events, logger),
		Circulation: circulation.NewService(store, events, logger, loanPeriod),
		Patrons:     patrons.NewService(store, events, logger, secret),
		Reporting:   reporting.NewService(store),
	}
	a.Router = a.buildRouter(logger, secret)
	return a
}

func (a *App) buildRouter(logger *zap.Logger, secret []byte) chi.Router {
	catalogHandler := catalog.NewHandler(a.Catalog)
	circulationHandler := circulation.NewHandler(a.Circulation)
	patronsHandler := patrons.NewHandler(a.Patrons)
	reportingHandler := reporting.NewHandler(a.Reporting)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Open reads.
		r.Get("/search", catalogHandler.HandleSearch)
		r.Get("/books", catalogHandler.HandleListBooks)
		r.Get("/books/{id}", catalogHandler.HandleGetBook)
		r.Get("/authors", catalogHandler.HandleListAuthors)
		r.Get("/authors/{id}", catalogHandler.HandleGetAuthor)
		r.Get("/categories", catalogHandler.HandleListCategories)
		r.Get("/categories/{id}", catalogHandler.HandleGetCategory)
		r.Get("/stats", reportingHandler.HandleStats)

		// Account endpoints.
		r.Post("/patrons", patronsHandler.HandleRegister)
		r.Post("/login", patronsHandler.HandleLogin)

		// Everything mutating requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(secret))

			r.Post("/books", catalogHandler.HandleCreateBook)
			r.Put("/books/{id}", catalogHandler.HandleUpdateBook)
			r.Delete("/books/{id}", catalogHandler.HandleDeleteBook)
			r.Post("/authors", catalogHandler.HandleCreateAuthor)
			r.Put("/authors/{id}", catalogHandler.HandleUpdateAuthor)
			r.Delete("/authors/{id}", catalogHandler.HandleDeleteAuthor)
			r.Post("/categories", catalogHandler.HandleCreateCategory)
			r.Put("/categories/{id}", catalogHandler.HandleUpdateCategory)
			r.Delete("/categories/{id}", catalogHandler.HandleDeleteCategory)

			r.Post("/loans", circulationHandler.HandleCheckout)
			r.Get("/loans", circulationHandler.HandleListLoans)
			r.Get("/loans/{id}", circulationHandler.HandleGetLoan)
			r.Post("/loans/{id}/return", circulationHandler.HandleReturn)
			r.Post("/reservations", circulationHandler.HandleReserve)
			r.Post("/reservations/{id}/cancel", circulationHandler.HandleCancelReservation)
			r.Get("/books/{id}/reservations", circulationHandler.HandleListReservations)

			r.Get("/patrons/{id}", patronsHandler.HandleGetPatron)
		})
	})

	return r
}
