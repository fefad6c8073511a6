package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"partykit/internal/http/handlers"
	"partykit/internal/infra"
	"partykit/internal/middleware"
)

// Options carries the cross-cutting settings of the router.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(app.Catalog.MatchLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/themes", app.Themes)
	r.Get("/v1/items", app.Items)

	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
	r.Route("/v1/kits", func(r chi.Router) {
		r.With(limited).Post("/", app.CreateKit)
		r.Route("/{kit_id}", func(r chi.Router) {
			r.Get("/", app.GetKit)
			r.With(limited).Post("/runs", app.StartRun)
			r.Get("/images/{item_type}", app.KitImage)
			r.Get("/archive", app.KitArchive)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
