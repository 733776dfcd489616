package router

import (
	"net/http"

	_ "pillsync/docs"
	"pillsync/internal/app"
	"pillsync/internal/domain/alarms"
	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/devices"
	"pillsync/internal/domain/history"
	"pillsync/internal/domain/learning"
	"pillsync/internal/domain/ledger"
	"pillsync/internal/domain/patients"
	"pillsync/internal/middleware"
	"pillsync/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si no viene, se arma una App in-memory.
	App *app.App
}

func NewRouter(opts Options) http.Handler {
	a := opts.App
	if a == nil {
		a = app.New(app.Options{})
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(a.Log))
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier, a.Log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Rutas por módulo
	patients.RegisterRoutes(r, a.Patients, a.Grants, a.History)
	ledger.RegisterRoutes(r, a.Ledger, a.Patients, a.Grants)
	alarms.RegisterRoutes(r, a.Alarms, a.Patients, a.Grants)
	devices.RegisterRoutes(r, a.Devices, a.Grants)
	history.RegisterRoutes(r, a.History, a.Patients, a.Grants)
	caregivers.RegisterRoutes(r, a.Grants, a.Patients)
	learning.RegisterRoutes(r, a.Learning)

	return r
}
