package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/campify/internal/shop/infra/httpx/middlewares"
)

// RouterOptions selects the build the router serves.
type RouterOptions struct {
	// Admin mounts the administration routes behind RequireAdmin.
	Admin bool
	// Gatherer backs /metrics. Nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
	// ServiceName names the server spans.
	ServiceName string
}

func NewRouter(handler *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachCorrelation)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Healthz)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/session", func(r chi.Router) {
		r.Get("/", handler.CurrentSession)
		r.Post("/login", handler.Login)
		r.Post("/register", handler.Register)
		r.Post("/logout", handler.Logout)
		r.Put("/profile", handler.UpdateProfile)
		r.Put("/password", handler.ChangePassword)
		r.Post("/forgot-password", handler.ForgotPassword)
		r.Post("/reset-password", handler.ResetPassword)
	})

	r.Get("/products", handler.ListProducts)
	r.Get("/products/featured", handler.FeaturedProducts)
	r.Get("/products/{id}", handler.GetProduct)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", handler.GetCart)
		r.Delete("/", handler.ClearCart)
		r.Post("/items", handler.AddCartItem)
		r.Put("/items/{id}", handler.UpdateCartItem)
		r.Delete("/items/{id}", handler.RemoveCartItem)
	})

	r.Get("/orders", handler.ListOrders)
	r.Get("/checkout/quote", handler.Quote)
	r.Post("/checkout", handler.Checkout)

	r.Get("/notifications", handler.ListNotifications)
	r.Delete("/notifications/{id}", handler.DismissNotification)

	if opts.Admin {
		r.Route("/admin", func(r chi.Router) {
			r.Use(handler.RequireAdmin)

			r.Post("/products", handler.CreateProduct)
			r.Put("/products/{id}", handler.UpdateProduct)
			r.Delete("/products/{id}", handler.DeleteProduct)

			r.Get("/orders", handler.ListAllOrders)
			r.Get("/orders/{id}", handler.GetOrder)
			r.Delete("/orders/{id}", handler.DeleteOrder)

			r.Get("/users", handler.ListUsers)
			r.Post("/users/invite", handler.InviteUser)
			r.Delete("/users/{id}", handler.DeleteUser)
			r.Put("/users/{id}/ban", handler.BanUser)
			r.Put("/users/{id}/unban", handler.UnbanUser)

			r.Get("/stats", handler.DashboardStats)
		})
	}

	name := opts.ServiceName
	if name == "" {
		name = "gateway"
	}
	return otelhttp.NewHandler(r, name)
}
