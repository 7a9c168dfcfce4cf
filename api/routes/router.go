package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmarrero/shelfstack-backend/api/controllers"
	"github.com/dmarrero/shelfstack-backend/api/middleware"
	"github.com/dmarrero/shelfstack-backend/internal/books"
	"github.com/dmarrero/shelfstack-backend/internal/lending"
	"github.com/dmarrero/shelfstack-backend/internal/members"
	"github.com/dmarrero/shelfstack-backend/pkg/config"
	"github.com/dmarrero/shelfstack-backend/pkg/db"
	"github.com/dmarrero/shelfstack-backend/pkg/logger"
	"github.com/dmarrero/shelfstack-backend/pkg/metrics"
	pkgredis "github.com/dmarrero/shelfstack-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     *pkgredis.Client
	Registry  *prometheus.Registry
	Members   members.Service
	Books     books.Service
	Lending   lending.Service
	HTTPStats *metrics.HTTPMetrics
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.Metrics(deps.HTTPStats),
	)

	var redisPinger pkgredis.Pinger
	var idempotencyStore pkgredis.IdempotencyStore
	if deps.Redis != nil {
		redisPinger = deps.Redis
		idempotencyStore = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, redisPinger))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, deps.Logger))

		r.Route("/members", func(r chi.Router) {
			r.Post("/", controllers.CreateMember(deps.Members, deps.Logger))
			r.Get("/{memberId}", controllers.GetMember(deps.Members, deps.Logger))
			r.Put("/{memberId}", controllers.UpdateMember(deps.Members, deps.Logger))
			r.Delete("/{memberId}", controllers.DeleteMember(deps.Members, deps.Logger))
		})

		r.Route("/books", func(r chi.Router) {
			r.Post("/", controllers.CreateBook(deps.Books, deps.Logger))
			r.Get("/{bookId}", controllers.GetBook(deps.Books, deps.Logger))
			r.Put("/{bookId}", controllers.UpdateBook(deps.Books, deps.Logger))
			r.Delete("/{bookId}", controllers.DeleteBook(deps.Books, deps.Logger))
			r.Get("/{bookId}/availability", controllers.BookAvailability(deps.Lending, deps.Logger))
		})

		r.Route("/borrowings", func(r chi.Router) {
			r.Post("/", controllers.CreateBorrowing(deps.Lending, deps.Logger))
			r.Get("/{borrowingId}", controllers.GetBorrowing(deps.Lending, deps.Logger))
			r.Put("/{borrowingId}", controllers.UpdateBorrowing(deps.Lending, deps.Logger))
			r.Delete("/{borrowingId}", controllers.DeleteBorrowing(deps.Lending, deps.Logger))
			r.Post("/{borrowingId}/return", controllers.ReturnBorrowing(deps.Lending, deps.Logger))
		})
	})

	return r
}
