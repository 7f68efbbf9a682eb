package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"fitbook.org/internal/auth"
	"fitbook.org/internal/booking"
	"fitbook.org/internal/events"
	"fitbook.org/internal/obs"
)

// ReadyProbe checks a dependency before the service reports ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. It wires the auth gate, the token service, the
// authorization guard and the domain services behind one ServeMux.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	authSvc     *auth.Service
	tokens      *auth.TokenService
	users       auth.UserStore
	guard       *auth.Guard
	businesses  *auth.BusinessService
	memberships *auth.MembershipService
	workouts    *booking.Service
	stream      *events.Stream

	rateBurst  int
	ratePerSec int
}

// Deps carries the services the API dispatches to.
type Deps struct {
	Auth        *auth.Service
	Tokens      *auth.TokenService
	Users       auth.UserStore
	Guard       *auth.Guard
	Businesses  *auth.BusinessService
	Memberships *auth.MembershipService
	Workouts    *booking.Service

	// Stream, when set, receives booking events and feeds the SSE endpoint.
	Stream *events.Stream

	// RateLimitBurst and RateLimitPerSecond tune the per-IP token bucket.
	// Zero values fall back to the defaults.
	RateLimitBurst     int
	RateLimitPerSecond int
}

const (
	defaultRateBurst  = 50
	defaultRatePerSec = 25
)

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  rp,
		version:     version,
		authSvc:     deps.Auth,
		tokens:      deps.Tokens,
		users:       deps.Users,
		guard:       deps.Guard,
		businesses:  deps.Businesses,
		memberships: deps.Memberships,
		workouts:    deps.Workouts,
		stream:      deps.Stream,
		rateBurst:   deps.RateLimitBurst,
		ratePerSec:  deps.RateLimitPerSecond,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = defaultRateBurst
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = defaultRatePerSec
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authentication
	a.mux.HandleFunc("/v1/auth/signup", a.handleSignup)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/google", a.handleGoogleLogin)

	// businesses and memberships
	a.mux.HandleFunc("/v1/businesses", a.handleBusinessCollection)
	a.mux.HandleFunc("/v1/businesses/", a.handleBusinessResource)
	a.mux.HandleFunc("/v1/memberships", a.handleMembershipCollection)
	a.mux.HandleFunc("/v1/memberships/", a.handleMembershipResource)

	// workouts and bookings
	a.mux.HandleFunc("/v1/workouts/availability", a.handleSetAvailability)
	a.mux.HandleFunc("/v1/workouts/availabilities", a.handleListAvailabilities)
	a.mux.HandleFunc("/v1/workouts/sessions/", a.handleSessionResource)
	a.mux.HandleFunc("/v1/bookings", a.handleBookingCollection)
	a.mux.HandleFunc("/v1/bookings/stream", a.StreamBookings)
	a.mux.HandleFunc("/v1/bookings/", a.handleBookingResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fitbook-api",
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
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "fitbook-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
