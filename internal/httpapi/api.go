// Package httpapi is the HTTP surface of the fleet service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-playground/validator/v10"

	"irisfleet.io/internal/auth"
	"irisfleet.io/internal/fleet"
	"irisfleet.io/internal/obs"
)

// ReadyProbe reports readiness; with a DB handle it pings the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the tunables the middleware stack needs.
type Options struct {
	CORSOrigins []string
	RateBurst   int
	RatePerSec  int
	MaxBody     int64
}

// API wires handlers, middleware and domain services onto a ServeMux.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	authSvc    *auth.Service
	fleetSvc   fleet.Service
	validate   *validator.Validate
	opts       Options
}

// New builds the API. Either service may be exercised independently in
// tests; both are required for a full server.
func New(rp ReadyProbe, version string, authSvc *auth.Service, fleetSvc fleet.Service, opts Options) *API {
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 25
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 1 << 20
	}
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		authSvc:    authSvc,
		fleetSvc:   fleetSvc,
		validate:   validator.New(),
		opts:       opts,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/api/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.Handle("/api/auth/logout", a.Authenticate(http.HandlerFunc(a.handleLogout)))
	// Optional auth: anonymous callers are fine, but an authenticated
	// caller's identity enriches the audit trail.
	a.mux.Handle("/api/auth/forgot-password", a.OptionalAuth(http.HandlerFunc(a.handleForgotPassword)))
	a.mux.HandleFunc("/api/auth/reset-password", a.handleResetPassword)
	a.mux.HandleFunc("/api/auth/refresh", a.handleRefresh)
	a.mux.Handle("/api/auth/me", a.Authenticate(http.HandlerFunc(a.handleCurrentUser)))
	a.mux.Handle("/api/auth/change-password", a.Authenticate(http.HandlerFunc(a.handleChangePassword)))

	// vehicles
	a.mux.Handle("/api/vehicles", a.Authenticate(http.HandlerFunc(a.handleVehiclesCollection)))
	a.mux.Handle("/api/vehicles/", a.Authenticate(http.HandlerFunc(a.handleVehicleResource)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Resource not found")
	})

	return a
}

// Handler returns the fully wrapped handler chain.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, a.opts.MaxBody)
	h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSec)
	h = CORS(h, a.opts.CORSOrigins)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "iris-fleet-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
