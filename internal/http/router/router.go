package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/credlock/credlock/internal/health"
	"github.com/credlock/credlock/internal/http/handler"
	"github.com/credlock/credlock/internal/http/middleware"
	"github.com/credlock/credlock/internal/http/response"
)

// GlobalRateLimiterFunc and AuthRateLimiterFunc are distinct types so the
// two middlewares stay distinguishable when wired.
type GlobalRateLimiterFunc func(http.Handler) http.Handler

type AuthRateLimiterFunc func(http.Handler) http.Handler

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	WebAuthnHandler   *handler.WebAuthnHandler
	CORSOrigins       []string
	APIRateLimitRPM   int
	AuthRateLimitRPM  int
	GlobalRateLimiter GlobalRateLimiterFunc
	AuthRateLimiter   AuthRateLimiterFunc
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	// Attestation and assertion payloads fit comfortably under 64KB.
	r.Use(middleware.BodyLimit(64 << 10))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/session", dep.AuthHandler.Session)
		r.Post("/logout", dep.AuthHandler.Logout)

		// Credential-bearing routes share the tighter limiter.
		r.Group(func(r chi.Router) {
			r.Use(authLimiter)
			r.Post("/register", dep.AuthHandler.Register)
			r.Post("/login", dep.AuthHandler.Login)
			r.Route("/webauthn", func(r chi.Router) {
				r.Post("/register-options", dep.WebAuthnHandler.RegisterOptions)
				r.Post("/verify-registration", dep.WebAuthnHandler.VerifyRegistration)
				r.Post("/auth-options", dep.WebAuthnHandler.AuthOptions)
				r.Post("/verify-authentication", dep.WebAuthnHandler.VerifyAuthentication)
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
